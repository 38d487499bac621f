package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendQdrant  = "qdrant"
	backendChromem = "chromem"
)

var (
	// recordsUpserted counts records written. Labels: backend.
	recordsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codefinder",
			Subsystem: "vectorstore",
			Name:      "records_upserted_total",
			Help:      "Total number of records written to the vector store",
		},
		[]string{"backend"},
	)

	// upsertFailures counts failed upsert calls. Labels: backend.
	upsertFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codefinder",
			Subsystem: "vectorstore",
			Name:      "upsert_failures_total",
			Help:      "Total number of failed upsert calls",
		},
		[]string{"backend"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codefinder",
			Subsystem: "vectorstore",
			Name:      "query_duration_seconds",
			Help:      "Duration of vector store queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

func observeQuery(backend string, start time.Time) {
	queryDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
}
