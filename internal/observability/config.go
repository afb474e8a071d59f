package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/smallbiznis/mutrapro/internal/observability/logger"
	"github.com/smallbiznis/mutrapro/internal/observability/metrics"
	"github.com/smallbiznis/mutrapro/internal/observability/tracing"
)

const defaultServiceName = "mutrapro"

// Config is the observability view of the service configuration. Process
// settings come from config.Config; the standard OTEL_* and LOG_* variables
// override them so collectors can be pointed elsewhere without a redeploy.
type Config struct {
	Service ServiceInfo
	Log     LogSettings
	Otel    OtelSettings
}

type ServiceInfo struct {
	Name        string
	Environment string
	Version     string
}

type LogSettings struct {
	Level  string
	Format string
	File   string
}

type OtelSettings struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	service := ServiceInfo{
		Name:        firstNonEmpty(cfg.AppName, defaultServiceName),
		Environment: lookup([]string{"DEPLOYMENT_ENV"}, cfg.Environment),
		Version:     lookup([]string{"SERVICE_VERSION"}, cfg.AppVersion),
	}

	// every payment trace is kept outside production, where volumes are small
	// and a missing reconciliation span hurts more than the export cost
	sampling := 1.0
	if cfg.IsProduction() {
		sampling = 0.1
	}
	if raw := lookup([]string{"OTEL_SAMPLING_RATIO"}, ""); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			sampling = parsed
		}
	}

	return Config{
		Service: service,
		Log: LogSettings{
			Level:  strings.ToLower(lookup([]string{"MUTRAPRO_LOG_LEVEL", "LOG_LEVEL"}, "info")),
			Format: strings.ToLower(lookup([]string{"MUTRAPRO_LOG_FORMAT", "LOG_FORMAT"}, "json")),
			File:   strings.TrimSpace(cfg.LogFile),
		},
		Otel: OtelSettings{
			Enabled:       parseBool(lookup([]string{"OTEL_ENABLED"}, ""), false),
			Endpoint:      lookup([]string{"OTEL_EXPORTER_OTLP_ENDPOINT"}, cfg.OTLPEndpoint),
			Protocol:      normalizeProtocol(lookup([]string{"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "OTEL_EXPORTER_OTLP_PROTOCOL"}, "grpc")),
			SamplingRatio: sampling,
		},
	}
}

// Debug turns on caller stacks and verbose request logging.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Service.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.Service.Name,
		Environment:         c.Service.Environment,
		Version:             c.Service.Version,
		Level:               c.Log.Level,
		Format:              c.Log.Format,
		Debug:               c.Debug(),
		File:                c.Log.File,
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.Otel.Enabled,
		ServiceName:      c.Service.Name,
		ServiceVersion:   c.Service.Version,
		Environment:      c.Service.Environment,
		ExporterEndpoint: c.Otel.Endpoint,
		ExporterProtocol: c.Otel.Protocol,
		SamplingRatio:    c.Otel.SamplingRatio,
	}
}

func (c Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.Otel.Enabled,
		ExporterEndpoint: c.Otel.Endpoint,
		ExporterProtocol: c.Otel.Protocol,
		ServiceName:      c.Service.Name,
		Environment:      c.Service.Environment,
	}
}

// normalizeProtocol maps the OTLP protocol spellings we see in deployments
// onto the two exporters we build.
func normalizeProtocol(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "http", "http/protobuf", "http/json":
		return "http/protobuf"
	default:
		return "grpc"
	}
}

// lookup returns the first non-empty variable in keys, else def.
func lookup(keys []string, def string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(def)
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
