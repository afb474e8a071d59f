package observability

import (
	"github.com/smallbiznis/mutrapro/internal/observability/logger"
	"github.com/smallbiznis/mutrapro/internal/observability/metrics"
	"github.com/smallbiznis/mutrapro/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires logging, tracing and the payment reconciliation metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		Config.TracingConfig,
		Config.MetricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.ReconciliationWithConfig,
	),
	fx.Invoke(announce),
)

// announce forces the tracer provider to be built at startup and records
// where telemetry is going.
func announce(cfg Config, _ *sdktrace.TracerProvider, log *zap.Logger) {
	log.Named("observability").Info("telemetry configured",
		zap.String("environment", cfg.Service.Environment),
		zap.Bool("otel_enabled", cfg.Otel.Enabled),
		zap.String("otel_protocol", cfg.Otel.Protocol),
		zap.Float64("sampling_ratio", cfg.Otel.SamplingRatio),
	)
}
