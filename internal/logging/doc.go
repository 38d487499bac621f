// Package logging provides structured logging for codefinder on top of zap.
//
// Logger methods take a context.Context so that trace/span IDs and the
// request or ingest-run ID travel with every entry:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "phase completed", zap.String("phase", "chunk"))
//
// Packages that are used as libraries (collector, ingest, vectorstore) take a
// plain *zap.Logger; hand them Logger.Underlying().
//
// Output goes to stdout, to the OpenTelemetry log pipeline via the otelzap
// bridge, or both. Entries below error level can be sampled; errors never are.
package logging
