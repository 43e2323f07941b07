package observability

import (
	"github.com/smallbiznis/claimaudit/internal/observability/logger"
	"github.com/smallbiznis/claimaudit/internal/observability/metrics"
	"github.com/smallbiznis/claimaudit/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the tracer provider and both metric
// pipelines: OTLP lifecycle instruments and Prometheus batch collectors.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.logger,
		Config.tracing,
		Config.metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.BatchWithConfig,
	),
	// Nothing else depends on the tracer provider; force it so the global
	// is installed before the first request.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
