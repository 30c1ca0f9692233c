// Package server exposes the gateway's introspection and admin HTTP
// API, backed by Gin with h2c support on a single port.
//
// Read endpoints report rate limit bucket state, circuit breaker state
// and provider health; admin endpoints reset buckets, daily quotas,
// circuits and caches, and are guarded by JWT bearer auth.
//
//	srv := server.New(cfg, log)
//	server.RegisterRoutes(srv, registry, providers, tokens)
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Stop(ctx)
package server
