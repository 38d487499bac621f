package ingest

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/pavanjava/semantic-code-finder/internal/ingest"

var (
	chunksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codefinder",
		Subsystem: "ingest",
		Name:      "chunks_written_total",
		Help:      "Total number of chunks embedded and written",
	})

	secretsRedacted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codefinder",
		Subsystem: "ingest",
		Name:      "secrets_redacted_total",
		Help:      "Secrets redacted from chunks before storage, by rule",
	}, []string{"rule"})

	batchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codefinder",
		Subsystem: "ingest",
		Name:      "batch_failures_total",
		Help:      "Total number of chunk batches that failed to embed or write",
	})

	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codefinder",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Ingestion runs by outcome",
	}, []string{"outcome"})
)

// phaseMetrics records phase durations on the OpenTelemetry meter.
type phaseMetrics struct {
	duration metric.Float64Histogram
}

func newPhaseMetrics(meter metric.Meter, logger *zap.Logger) *phaseMetrics {
	h, err := meter.Float64Histogram(
		"codefinder.ingest.phase.duration_seconds",
		metric.WithDescription("Duration of ingestion phases"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300),
	)
	if err != nil {
		logger.Warn("failed to create phase duration histogram", zap.Error(err))
		return &phaseMetrics{}
	}
	return &phaseMetrics{duration: h}
}

func defaultPhaseMetrics(logger *zap.Logger) *phaseMetrics {
	return newPhaseMetrics(otel.Meter(instrumentationName), logger)
}

func (m *phaseMetrics) record(ctx context.Context, phase string, elapsed time.Duration, failed bool) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.Bool("error", failed),
	))
}
