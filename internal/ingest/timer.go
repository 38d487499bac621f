package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PhaseTimer measures one phase. Stop it with defer so that every exit
// path, including errors, produces a timing.
type PhaseTimer struct {
	ctx     context.Context
	phase   string
	start   time.Time
	logger  *zap.Logger
	metrics *phaseMetrics
	record  func(PhaseTiming)

	once    sync.Once
	elapsed time.Duration
}

// StartPhase starts timing phase. record, when non-nil, receives the timing
// on Stop.
func StartPhase(ctx context.Context, phase string, logger *zap.Logger, record func(PhaseTiming)) *PhaseTimer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhaseTimer{ctx: ctx, phase: phase, start: time.Now(), logger: logger, record: record}
}

// Stop ends the phase and logs its elapsed time. Only the first call has
// an effect; later calls return the same duration.
func (t *PhaseTimer) Stop(err error) time.Duration {
	t.once.Do(func() {
		t.elapsed = time.Since(t.start)
		timing := PhaseTiming{Phase: t.phase, Elapsed: t.elapsed}
		fields := []zap.Field{zap.String("phase", t.phase), zap.Duration("elapsed", t.elapsed)}
		if err != nil {
			timing.Err = err.Error()
			fields = append(fields, zap.Error(err))
		}
		t.logger.Info("phase completed", fields...)
		t.metrics.record(t.ctx, t.phase, t.elapsed, err != nil)
		if t.record != nil {
			t.record(timing)
		}
	})
	return t.elapsed
}
