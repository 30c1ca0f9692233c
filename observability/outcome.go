package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Source identifies where a response ultimately came from.
type Source string

const (
	// SourceLive means the upstream provider answered.
	SourceLive Source = "live"
	// SourceStaleCache means an expired-or-not cached payload was served.
	SourceStaleCache Source = "stale_cache"
	// SourceFallback means a caller-supplied fallback produced the data.
	SourceFallback Source = "fallback"
)

// Outcome summarizes one finished provider call for metrics and spans.
type Outcome struct {
	Provider  string
	Operation string
	Source    Source
	Success   bool
	ItemCount int
	Duration  time.Duration
	Err       error
}

// CallTracker follows one provider call from start to finish, tying its
// span and metrics together.
type CallTracker struct {
	Provider  string
	Operation string
	RequestID string
	StartTime time.Time
	Metrics   *GatewayMetrics
}

// NewCallTracker creates a tracker for a single provider call.
// If metrics is nil, metric recording is silently skipped.
func NewCallTracker(provider, operation, requestID string, metrics *GatewayMetrics) *CallTracker {
	return &CallTracker{
		Provider:  provider,
		Operation: operation,
		RequestID: requestID,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

// Start begins the span for this call and records the in-flight metric.
func (ct *CallTracker) Start(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, ct.Provider+"."+ct.Operation)
	span.SetAttributes(
		attribute.String(AttrProvider, ct.Provider),
		attribute.String(AttrOperation, ct.Operation),
		attribute.String(AttrRequestID, ct.RequestID),
	)
	if ct.Metrics != nil {
		ct.Metrics.RecordCallStart(ctx)
	}
	return ctx, span
}

// End closes the span and records the outcome.
func (ct *CallTracker) End(ctx context.Context, span trace.Span, source Source, itemCount int, err error) Outcome {
	outcome := Outcome{
		Provider:  ct.Provider,
		Operation: ct.Operation,
		Source:    source,
		Success:   err == nil,
		ItemCount: itemCount,
		Duration:  time.Since(ct.StartTime),
		Err:       err,
	}

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrSource, string(source)),
		attribute.Int64(AttrDurationMs, outcome.Duration.Milliseconds()),
	)
	span.End()

	if ct.Metrics != nil {
		ct.Metrics.RecordOutcome(ctx, outcome)
	}
	return outcome
}

// Duration returns the elapsed time since the call started.
func (ct *CallTracker) Duration() time.Duration {
	return time.Since(ct.StartTime)
}
