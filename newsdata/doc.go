// Package newsdata is the gateway's client for the upstream financial
// news API (latest headlines and archive search).
//
// Calls run through the resilience stack with the "latest" and
// "archive" rate limit buckets, a per-provider circuit breaker, retry
// with backoff, and a TTL fallback cache. News endpoints have a much
// smaller daily quota than market data, so the quota guard matters
// more here: once the day's budget is spent, calls degrade straight to
// cached headlines instead of waiting for the reset.
package newsdata
