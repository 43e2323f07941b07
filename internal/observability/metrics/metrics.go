package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the OTLP meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	// ExportInterval defaults to 10s.
	ExportInterval time.Duration
}

// Metrics holds the lifecycle instruments pushed over OTLP. Batch planning
// instruments live in BatchMetrics and are scraped by Prometheus instead.
type Metrics struct {
	transitions metric.Int64Counter
	decisions   metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewProvider installs the global meter provider. With export disabled a
// noop provider is used so instruments stay cheap to call.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName(cfg.ServiceName)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("metrics")
	if lc != nil {
		lc.Append(fx.StopHook(func(ctx context.Context) error {
			log.Info("flushing meter provider")
			return provider.Shutdown(ctx)
		}))
	}
	log.Info("otlp metrics enabled",
		zap.String("protocol", cfg.ExporterProtocol),
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.Duration("interval", interval),
	)
	return provider, nil
}

func serviceName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "claimaudit"
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg.ServiceName))

	transitions, err := meter.Int64Counter("claimaudit_case_audit_transitions_total",
		metric.WithDescription("Case audit actions by kind and outcome."))
	if err != nil {
		return nil, err
	}
	decisions, err := meter.Int64Counter("claimaudit_permission_decisions_total",
		metric.WithDescription("Permission evaluations by reason."))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("claimaudit_case_audit_action_seconds",
		metric.WithDescription("Case audit action latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transitions: transitions,
		decisions:   decisions,
		latency:     latency,
	}, nil
}

// RecordTransition counts one action attempt with its classified outcome.
func (m *Metrics) RecordTransition(ctx context.Context, kind string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", ClassifyActionOutcome(err)),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDecision counts permission evaluations.
func (m *Metrics) RecordDecision(ctx context.Context, allowed bool, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.Bool("allowed", allowed),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":    {},
	"outcome": {},
	"allowed": {},
	"reason":  {},
	"origin":  {},
	"trigger": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
