// Package marketdata is the gateway's client for the upstream market
// data API (stock quotes, candles, and crypto prices).
//
// Every call runs through the resilience stack: the "market" and
// "crypto" rate limit buckets, a per-provider circuit breaker, retry
// with backoff, and a TTL fallback cache that serves stale payloads
// during upstream outages. Callers receive typed results and never
// talk to the upstream directly.
//
//	client, err := marketdata.New(cfg, registry, log, metrics)
//	quote, err := client.Quote(ctx, "AAPL")
package marketdata
