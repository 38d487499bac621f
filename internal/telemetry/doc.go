// Package telemetry wires OpenTelemetry tracing and metrics export for
// codefinder.
//
// Spans cover every ingestion phase, store call and search. Metrics cover
// phase durations and embedding latency. Export goes to an OTLP collector
// over gRPC or HTTP and is disabled by default:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sample_rate: 1.0
//
// Prometheus counters are served separately on the HTTP server's /metrics
// endpoint and do not depend on this package.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "op")
//	span.End()
//	tt.AssertSpanExists(t, "op")
package telemetry
