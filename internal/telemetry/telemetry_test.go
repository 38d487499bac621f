package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pavanjava/semantic-code-finder/internal/config"
)

func TestConfig_Validate(t *testing.T) {
	enabled := func(mutate func(*Config)) *Config {
		c := NewDefaultConfig()
		c.Enabled = true
		mutate(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "default", config: NewDefaultConfig()},
		{name: "disabled skips checks", config: &Config{}},
		{name: "enabled local", config: enabled(func(*Config) {})},
		{name: "missing endpoint", config: enabled(func(c *Config) { c.Endpoint = "" }), wantErr: "endpoint is required"},
		{name: "missing service name", config: enabled(func(c *Config) { c.ServiceName = "" }), wantErr: "service_name is required"},
		{name: "bad protocol", config: enabled(func(c *Config) { c.Protocol = "udp" }), wantErr: "protocol must be"},
		{name: "insecure remote", config: enabled(func(c *Config) { c.Endpoint = "otel.example.com:4317" }), wantErr: "insecure connections"},
		{name: "secure remote", config: enabled(func(c *Config) {
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		})},
		{name: "loopback ip", config: enabled(func(c *Config) { c.Endpoint = "127.0.0.1:4317" })},
		{name: "ipv6 loopback", config: enabled(func(c *Config) { c.Endpoint = "[::1]:4317" })},
		{name: "http scheme", config: enabled(func(c *Config) {
			c.Protocol = ProtocolHTTP
			c.Endpoint = "http://localhost:4318"
		})},
		{name: "sample rate", config: enabled(func(c *Config) { c.SampleRate = 1.5 }), wantErr: "sample_rate"},
		{name: "export interval", config: enabled(func(c *Config) { c.Metrics.ExportInterval = 0 }), wantErr: "export interval"},
		{name: "shutdown timeout", config: enabled(func(c *Config) { c.ShutdownAfter = 0 }), wantErr: "shutdown timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.TelemetryConfig{
		Enabled:    true,
		Endpoint:   "localhost:4318",
		Protocol:   ProtocolHTTP,
		Insecure:   true,
		SampleRate: 0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "codefinder", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.NoError(t, cfg.Validate())
}

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	res := newResource(cfg)

	found := map[string]string{}
	for _, attr := range res.Attributes() {
		found[string(attr.Key)] = attr.Value.AsString()
	}
	assert.Equal(t, "codefinder", found["service.name"])
	assert.Equal(t, "dev", found["service.version"])
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = -1

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_WithExporter(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.Enabled = false

	tel, err := New(ctx, cfg, nil, WithTraceExporter(exporter))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	_, span := tel.Tracer("test").Start(ctx, "ingest.collect")
	span.End()
	require.NoError(t, tel.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "ingest.collect", spans[0].Name)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, tel.Shutdown(shutdownCtx))
	assert.False(t, tel.IsEnabled())
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
}

func TestTestTelemetry(t *testing.T) {
	ctx := context.Background()
	tt := NewTestTelemetry()

	_, span := tt.Tracer("test").Start(ctx, "search.Search")
	span.SetAttributes(
		attribute.String("search.collection", "codebase_chunks"),
		attribute.Int("search.limit", 5),
		attribute.Bool("search.capped", false),
	)
	span.End()

	tt.AssertSpanExists(t, "search.Search")
	tt.AssertSpanAttribute(t, "search.Search", "search.collection", "codebase_chunks")
	tt.AssertSpanAttribute(t, "search.Search", "search.limit", int64(5))
	tt.AssertSpanAttribute(t, "search.Search", "search.capped", false)
	assert.Nil(t, tt.SpanByName("missing"))

	counter, err := tt.Meter("test").Int64Counter("codefinder.test.count")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rm, err := tt.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "codefinder.test.count", rm.ScopeMetrics[0].Metrics[0].Name)
}
