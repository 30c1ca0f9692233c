package marketdata

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

// Client fetches market data through the resilience stack.
type Client struct {
	http    *httpclient.Client
	res     *resilience.Client
	log     *logger.Logger
	metrics *observability.GatewayMetrics
	config  Config
}

// New creates a market data client, registering its rate limit buckets
// on the shared registry. metrics may be nil.
func New(cfg Config, registry *resilience.Registry, log *logger.Logger, metrics *observability.GatewayMetrics) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	http, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Auth:    httpclient.APIKeyAuthQuery(cfg.APIKey, "apikey"),
	})
	if err != nil {
		return nil, err
	}

	if err := registry.Register(cfg.Market.toBucketConfig(BucketMarket)); err != nil {
		return nil, err
	}
	if err := registry.Register(cfg.Crypto.toBucketConfig(BucketCrypto)); err != nil {
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
		Buckets:        []string{BucketMarket, BucketCrypto},
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
			log.Warn("serving fallback data", logger.Fields(
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
// Keys look like "quote:AAPL" or "crypto_price:BTC/USD".
func bucketFor(operation string) string {
	if strings.HasPrefix(operation, "crypto_price:") {
		return BucketCrypto
	}
	return BucketMarket
}

// Quote fetches the current quote for a stock symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	if err := validation.Symbol("symbol", symbol); err != nil {
		return nil, err
	}
	return fetch(ctx, c, "quote", fmt.Sprintf("quote:%s", symbol), func(ctx context.Context) (*Quote, error) {
		resp, err := httpclient.Get[Quote](c.http, ctx, "/v1/quote",
			httpclient.WithQueryParam("symbol", symbol))
		if err != nil {
			return nil, err
		}
		return &resp.Data, nil
	}, func(q *Quote) int { return 1 })
}

// Candles fetches an OHLCV series.
func (c *Client) Candles(ctx context.Context, req CandlesRequest) ([]Candle, error) {
	if req.Limit == 0 {
		req.Limit = 100
	}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("candles:%s:%s:%d", req.Symbol, req.Interval, req.Limit)
	return fetch(ctx, c, "candles", key, func(ctx context.Context) ([]Candle, error) {
		resp, err := httpclient.Get[candlesResponse](c.http, ctx, "/v1/candles",
			httpclient.WithQueryParam("symbol", req.Symbol),
			httpclient.WithQueryParam("interval", req.Interval),
			httpclient.WithQueryParam("limit", fmt.Sprintf("%d", req.Limit)))
		if err != nil {
			return nil, err
		}
		return resp.Data.Candles, nil
	}, func(cs []Candle) int { return len(cs) })
}

// CryptoPrice fetches the current price for a crypto pair like "BTC/USD".
func (c *Client) CryptoPrice(ctx context.Context, pair string) (*CryptoPrice, error) {
	if err := validation.Symbol("pair", pair); err != nil {
		return nil, err
	}
	return fetch(ctx, c, "crypto_price", fmt.Sprintf("crypto_price:%s", pair), func(ctx context.Context) (*CryptoPrice, error) {
		resp, err := httpclient.Get[CryptoPrice](c.http, ctx, "/v1/crypto/price",
			httpclient.WithQueryParam("pair", pair))
		if err != nil {
			return nil, err
		}
		return &resp.Data, nil
	}, func(p *CryptoPrice) int { return 1 })
}

// fetch runs one provider call through the resilience client with
// tracing, metrics and logging around it.
func fetch[T any](ctx context.Context, c *Client, operation, key string, fn func(context.Context) (T, error), count func(T) int) (T, error) {
	requestID := uuid.NewString()
	tracker := observability.NewCallTracker(ProviderName, operation, requestID, c.metrics)
	ctx, span := tracker.Start(ctx)

	live := false
	result, err := resilience.Execute(ctx, c.res, key, func(ctx context.Context) (T, error) {
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

	items := 0
	if err == nil {
		items = count(result)
	}
	outcome := tracker.End(ctx, span, source, items, err)

	fields := logger.Fields(
		logger.FieldRequestID, requestID,
		logger.FieldOperation, operation,
		logger.FieldDuration, outcome.Duration.Milliseconds(),
		logger.FieldItemCount, items,
		logger.FieldStale, source == observability.SourceStaleCache,
	)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		c.log.Error("fetch failed", fields)
		var zero T
		return zero, err
	}
	c.log.Info("fetch complete", fields)
	return result, nil
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
		h.Message = "circuit open, serving cached data"
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
