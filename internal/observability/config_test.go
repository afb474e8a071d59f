package observability

import (
	"testing"

	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigSamplesEverythingOutsideProduction(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("MUTRAPRO_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEPLOYMENT_ENV", "")

	dev := LoadConfig(config.Config{Environment: "development"})
	assert.Equal(t, defaultServiceName, dev.Service.Name)
	assert.InDelta(t, 1.0, dev.Otel.SamplingRatio, 0.0001)
	assert.True(t, dev.Debug())

	prod := LoadConfig(config.Config{AppName: "payments", Environment: "production"})
	assert.Equal(t, "payments", prod.Service.Name)
	assert.InDelta(t, 0.1, prod.Otel.SamplingRatio, 0.0001)
	assert.False(t, prod.Debug())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MUTRAPRO_LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "http")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg := LoadConfig(config.Config{Environment: "production", OTLPEndpoint: "localhost:4317", LogFile: " app.log "})
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "app.log", cfg.Log.File)
	assert.True(t, cfg.Debug())
	assert.True(t, cfg.Otel.Enabled)
	assert.Equal(t, "http/protobuf", cfg.Otel.Protocol)
	assert.Equal(t, "collector:4318", cfg.Otel.Endpoint)
	assert.InDelta(t, 0.5, cfg.Otel.SamplingRatio, 0.0001)

	tracingCfg := cfg.TracingConfig()
	assert.Equal(t, cfg.Otel.Endpoint, tracingCfg.ExporterEndpoint)
	assert.Equal(t, cfg.Service.Environment, cfg.MetricsConfig().Environment)
	assert.Equal(t, "app.log", cfg.LoggerConfig().File)
}

func TestNormalizeProtocol(t *testing.T) {
	assert.Equal(t, "grpc", normalizeProtocol(""))
	assert.Equal(t, "grpc", normalizeProtocol("grpc/protobuf"))
	assert.Equal(t, "http/protobuf", normalizeProtocol("HTTP/JSON"))
}
