package logging

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newOTELCore bridges zap entries into the OpenTelemetry log pipeline,
// honouring the configured minimum level.
func newOTELCore(level zapcore.LevelEnabler, provider log.LoggerProvider) zapcore.Core {
	return &minLevelCore{
		Core:  otelzap.NewCore("codefinder", otelzap.WithLoggerProvider(provider)),
		level: level,
	}
}

type minLevelCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (c *minLevelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *minLevelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fields), level: c.level}
}
