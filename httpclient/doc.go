// Package httpclient provides the raw HTTP transport used by provider
// adapters.
//
// The client handles URL resolution, authentication, JSON encoding and
// decoding, and classifies response status codes into typed errors that
// the resilience layer understands. It deliberately does NOT retry,
// rate limit, or break circuits itself: those concerns belong to the
// resilience client that wraps provider calls, and stacking them at
// both layers would multiply attempts.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Auth:    httpclient.APIKeyAuthHeader(key, "X-ACCESS-KEY"),
//	})
//	resp, err := httpclient.Get[QuoteResponse](client, ctx, "/v1/quote",
//	    httpclient.WithQueryParam("symbol", "AAPL"))
package httpclient
