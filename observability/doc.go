// Package observability provides OpenTelemetry tracing and metrics for
// the gateway's provider calls and resilience machinery.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("tradewizard"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "marketdata.quote")
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("tradewizard"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewGatewayMetrics(observability.Meter("tradewizard"))
//	metrics.RecordOutcome(ctx, outcome)
//
// Health:
//
//	health := observability.NewServiceHealth("tradewizard", "1.0.0")
//	health.AddComponent(provider.CheckHealth(ctx))
package observability
