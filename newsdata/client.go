package newsdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/balojey/tradewizard/httpclient"
	"github.com/balojey/tradewizard/logger"
	"github.com/balojey/tradewizard/observability"
	"github.com/balojey/tradewizard/resilience"
	"github.com/balojey/tradewizard/validation"
)

// Client fetches news through the resilience stack.
type Client struct {
	http    *httpclient.Client
	res     *resilience.Client
	log     *logger.Logger
	metrics *observability.GatewayMetrics
	config  Config
}

// New creates a news client, registering its rate limit buckets on the
// shared registry. metrics may be nil.
func New(cfg Config, registry *resilience.Registry, log *logger.Logger, metrics *observability.GatewayMetrics) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	http, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Auth:    httpclient.APIKeyAuthHeader(cfg.APIKey, "X-ACCESS-KEY"),
	})
	if err != nil {
		return nil, err
	}

	if err := registry.Register(cfg.Latest.toBucketConfig(BucketLatest)); err != nil {
		return nil, err
	}
	if err := registry.Register(cfg.Archive.toBucketConfig(BucketArchive)); err != nil {
		return nil, err
	}

	log = log.WithComponent(ProviderName)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries

	breaker := resilience.DefaultCircuitBreakerConfig(ProviderName)
	breaker.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("circuit state changed", logger.Fields(
			logger.FieldState, to.String(),
			"from", from.String(),
		))
		if metrics != nil {
			metrics.RecordCircuitTransition(context.Background(), name, from.String(), to.String())
		}
	}

	res := resilience.NewClient(resilience.ClientConfig{
		Name:           ProviderName,
		Registry:       registry,
		Buckets:        []string{BucketLatest, BucketArchive},
		CircuitBreaker: breaker,
		Retry:          retry,
		Cache:          resilience.CacheConfig{DefaultTTL: cfg.CacheTTL},
		BucketFor:      bucketFor,
		OnRetry: func(operation string, attempt int, err error, delay time.Duration) {
			op, _, _ := strings.Cut(operation, ":")
			log.Debug("retrying after transport error", logger.Fields(
				logger.FieldOperation, op,
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
			))
			if metrics != nil {
				metrics.RecordRetry(context.Background(), ProviderName, op, attempt)
			}
		},
		OnFallback: func(operation, reason string) {
			log.Warn("serving fallback headlines", logger.Fields(
				logger.FieldOperation, operation,
				logger.FieldReason, reason,
			))
		},
		OnFallbackError: func(operation string, err error) {
			log.Error("fallback failed", logger.ErrorFields(operation, err))
		},
	})

	return &Client{
		http:    http,
		res:     res,
		log:     log,
		metrics: metrics,
		config:  cfg,
	}, nil
}

// bucketFor maps an operation cache key to its rate limit bucket.
func bucketFor(operation string) string {
	if strings.HasPrefix(operation, "search_archive:") {
		return BucketArchive
	}
	return BucketLatest
}

// LatestHeadlines fetches the most recent headlines matching the request.
func (c *Client) LatestHeadlines(ctx context.Context, req LatestRequest) ([]Article, error) {
	if req.Limit == 0 {
		req.Limit = 10
	}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("latest_headlines:%s:%s:%s:%d", req.Query, req.Category, req.Language, req.Limit)
	return c.fetch(ctx, "latest_headlines", key, func(ctx context.Context) ([]Article, error) {
		opts := []httpclient.RequestOption{
			httpclient.WithQueryParam("limit", fmt.Sprintf("%d", req.Limit)),
		}
		if req.Query != "" {
			opts = append(opts, httpclient.WithQueryParam("q", req.Query))
		}
		if req.Category != "" {
			opts = append(opts, httpclient.WithQueryParam("category", req.Category))
		}
		if req.Language != "" {
			opts = append(opts, httpclient.WithQueryParam("language", req.Language))
		}
		resp, err := httpclient.Get[articlesResponse](c.http, ctx, "/v1/latest", opts...)
		if err != nil {
			return nil, err
		}
		return resp.Data.Articles, nil
	})
}

// SearchArchive searches historical articles in a time window.
func (c *Client) SearchArchive(ctx context.Context, req ArchiveRequest) ([]Article, error) {
	if req.Limit == 0 {
		req.Limit = 10
	}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	if err := validation.New().TimeOrder("window", req.From, req.To).Validate(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("search_archive:%s:%d:%d:%s:%d",
		req.Query, req.From.Unix(), req.To.Unix(), req.Language, req.Limit)
	return c.fetch(ctx, "search_archive", key, func(ctx context.Context) ([]Article, error) {
		opts := []httpclient.RequestOption{
			httpclient.WithQueryParam("q", req.Query),
			httpclient.WithQueryParam("limit", fmt.Sprintf("%d", req.Limit)),
		}
		if !req.From.IsZero() {
			opts = append(opts, httpclient.WithQueryParam("from", req.From.UTC().Format("2006-01-02")))
		}
		if !req.To.IsZero() {
			opts = append(opts, httpclient.WithQueryParam("to", req.To.UTC().Format("2006-01-02")))
		}
		if req.Language != "" {
			opts = append(opts, httpclient.WithQueryParam("language", req.Language))
		}
		resp, err := httpclient.Get[articlesResponse](c.http, ctx, "/v1/archive", opts...)
		if err != nil {
			return nil, err
		}
		return resp.Data.Articles, nil
	})
}

// fetch runs one provider call through the resilience client with
// tracing, metrics and logging around it.
func (c *Client) fetch(ctx context.Context, operation, key string, fn func(context.Context) ([]Article, error)) ([]Article, error) {
	requestID := uuid.NewString()
	tracker := observability.NewCallTracker(ProviderName, operation, requestID, c.metrics)
	ctx, span := tracker.Start(ctx)

	live := false
	articles, err := resilience.Execute(ctx, c.res, key, func(ctx context.Context) ([]Article, error) {
		out, err := fn(ctx)
		if err == nil {
			live = true
		}
		return out, err
	}, nil)

	source := observability.SourceLive
	if err == nil && !live {
		source = observability.SourceStaleCache
	}
	outcome := tracker.End(ctx, span, source, len(articles), err)

	fields := logger.Fields(
		logger.FieldRequestID, requestID,
		logger.FieldOperation, operation,
		logger.FieldDuration, outcome.Duration.Milliseconds(),
		logger.FieldItemCount, len(articles),
		logger.FieldStale, source == observability.SourceStaleCache,
	)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		c.log.Error("fetch failed", fields)
		return nil, err
	}
	c.log.Info("fetch complete", fields)
	return articles, nil
}

// Status reports the provider's resilience state.
func (c *Client) Status() resilience.ClientStatus {
	return c.res.Status()
}

// CacheAge reports the age of a cached operation payload.
func (c *Client) CacheAge(operation string) (time.Duration, bool) {
	return c.res.CacheAge(operation)
}

// CheckHealth reports provider health from the circuit state.
func (c *Client) CheckHealth(ctx context.Context) observability.Health {
	status := c.res.Status()
	h := observability.Health{
		Name:   ProviderName,
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"circuit": status.Circuit.State,
		},
	}
	if !status.Healthy {
		h.Status = observability.HealthStatusDegraded
		h.Message = "circuit open, serving cached headlines"
	}
	return h
}

// ResetCircuit closes the provider's circuit breaker.
func (c *Client) ResetCircuit() {
	c.res.ResetCircuit()
}

// ClearCache drops all cached payloads.
func (c *Client) ClearCache() {
	c.res.ClearCache()
}
