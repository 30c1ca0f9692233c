package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/balojey/tradewizard/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// GatewayMetrics holds the metric instruments tracking provider calls
// and the resilience layer.
type GatewayMetrics struct {
	callTotal           metric.Int64Counter
	callDuration        metric.Float64Histogram
	callActive          metric.Int64UpDownCounter
	rateLimitRejections metric.Int64Counter
	circuitTransitions  metric.Int64Counter
	fallbackServes      metric.Int64Counter
	retryTotal          metric.Int64Counter
}

// NewGatewayMetrics creates metric instruments on the given meter.
func NewGatewayMetrics(meter metric.Meter) (*GatewayMetrics, error) {
	callTotal, err := meter.Int64Counter("gateway.call.total",
		metric.WithDescription("Total provider calls by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.call.total counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram("gateway.call.duration",
		metric.WithDescription("Duration of provider calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.call.duration histogram: %w", err)
	}

	callActive, err := meter.Int64UpDownCounter("gateway.call.active",
		metric.WithDescription("Number of in-flight provider calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.call.active gauge: %w", err)
	}

	rateLimitRejections, err := meter.Int64Counter("gateway.ratelimit.rejections",
		metric.WithDescription("Rate limiter rejections by bucket and reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.ratelimit.rejections counter: %w", err)
	}

	circuitTransitions, err := meter.Int64Counter("gateway.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.circuit.transitions counter: %w", err)
	}

	fallbackServes, err := meter.Int64Counter("gateway.fallback.serves",
		metric.WithDescription("Responses served from fallback or stale cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.fallback.serves counter: %w", err)
	}

	retryTotal, err := meter.Int64Counter("gateway.retry.total",
		metric.WithDescription("Retry attempts by provider and operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gateway.retry.total counter: %w", err)
	}

	return &GatewayMetrics{
		callTotal:           callTotal,
		callDuration:        callDuration,
		callActive:          callActive,
		rateLimitRejections: rateLimitRejections,
		circuitTransitions:  circuitTransitions,
		fallbackServes:      fallbackServes,
		retryTotal:          retryTotal,
	}, nil
}

// RecordCallStart increments the in-flight call count.
func (m *GatewayMetrics) RecordCallStart(ctx context.Context) {
	m.callActive.Add(ctx, 1)
}

// RecordOutcome decrements in-flight calls and records the finished call.
func (m *GatewayMetrics) RecordOutcome(ctx context.Context, o Outcome) {
	m.callActive.Add(ctx, -1)
	m.callTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", o.Provider),
		attribute.String("operation", o.Operation),
		attribute.String("source", string(o.Source)),
		attribute.Bool("success", o.Success),
	))
	m.callDuration.Record(ctx, o.Duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", o.Provider),
		attribute.String("operation", o.Operation),
	))
	if o.Source == SourceFallback || o.Source == SourceStaleCache {
		m.fallbackServes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", o.Provider),
			attribute.String("operation", o.Operation),
			attribute.Bool("stale", o.Source == SourceStaleCache),
		))
	}
}

// RecordRateLimitRejection records a rate limiter rejection.
func (m *GatewayMetrics) RecordRateLimitRejection(ctx context.Context, bucket, reason string) {
	m.rateLimitRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bucket", bucket),
		attribute.String("reason", reason),
	))
}

// RecordCircuitTransition records a circuit breaker state change.
func (m *GatewayMetrics) RecordCircuitTransition(ctx context.Context, name, from, to string) {
	m.circuitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("circuit", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRetry records a retry attempt.
func (m *GatewayMetrics) RecordRetry(ctx context.Context, provider, operation string, attempt int) {
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.Int("attempt", attempt),
	))
}
