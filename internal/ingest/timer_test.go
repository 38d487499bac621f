package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pavanjava/semantic-code-finder/internal/logging"
)

func TestPhaseTimer_StopOnce(t *testing.T) {
	logger := logging.NewTestLogger()
	var got []PhaseTiming
	timer := StartPhase(context.Background(), PhaseChunk, logger.Underlying(), func(pt PhaseTiming) {
		got = append(got, pt)
	})

	time.Sleep(2 * time.Millisecond)
	first := timer.Stop(nil)
	second := timer.Stop(errors.New("ignored"))

	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first, 2*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, PhaseChunk, got[0].Phase)
	assert.Empty(t, got[0].Err)
	assert.Len(t, logger.FilterMessage("phase completed").All(), 1)
	logger.AssertField(t, "phase completed", "phase", PhaseChunk)
}

func TestPhaseTimer_RecordsError(t *testing.T) {
	var got PhaseTiming
	timer := StartPhase(context.Background(), PhaseWrite, nil, func(pt PhaseTiming) { got = pt })
	timer.Stop(errors.New("upsert failed"))

	assert.Equal(t, PhaseWrite, got.Phase)
	assert.Equal(t, "upsert failed", got.Err)
}

func TestPhaseTimer_Metrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx := context.Background()
	m := newPhaseMetrics(provider.Meter("test"), zap.NewNop())

	for _, phase := range []string{PhaseCollect, PhaseChunk} {
		timer := StartPhase(ctx, phase, zap.NewNop(), nil)
		timer.metrics = m
		timer.Stop(nil)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	hist, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
	for _, dp := range hist.DataPoints {
		assert.EqualValues(t, 1, dp.Count)
	}
}

func TestPhaseMetrics_NilSafe(t *testing.T) {
	var m *phaseMetrics
	assert.NotPanics(t, func() { m.record(context.Background(), PhaseWrite, time.Second, true) })
}

func TestPhaseTimer_LogsAtInfo(t *testing.T) {
	logger := logging.NewTestLogger()
	StartPhase(context.Background(), PhaseCollect, logger.Underlying(), nil).Stop(nil)
	logger.AssertLogged(t, zapcore.InfoLevel, "phase completed")
}
