// Package resilience is the gateway every outbound provider call passes
// through. It combines four mechanisms that are only useful together:
//
//   - TokenBucket: per-resource burst limiting with daily-quota tracking
//   - Registry: named buckets plus a coordination window capping
//     simultaneous in-flight requests
//   - CircuitBreaker: sliding-window failure detection that stops calling
//     a provider that is down
//   - FallbackCache: TTL-bounded store of the last good result, served
//     when the live path is unavailable
//
// Client ties them together around a single Execute entry point:
//
//	reg := resilience.NewRegistry(resilience.DefaultRegistryConfig())
//	defer reg.Close()
//	reg.Register(resilience.BucketConfig{Name: "latest", Capacity: 30, RefillRate: 2, DailyQuota: 5000})
//
//	client := resilience.NewClient(resilience.ClientConfig{Name: "newsdata", Registry: reg})
//	headlines, err := resilience.Execute(ctx, client, "latest", fetchLatest, nil)
//
// All state is process-local; nothing here coordinates across processes.
package resilience
