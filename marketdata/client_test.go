package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/balojey/tradewizard/logger"
	"github.com/balojey/tradewizard/observability"
	"github.com/balojey/tradewizard/resilience"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		CacheTTL:   time.Minute,
		MaxRetries: 1,
		Market:     BucketSettings{Capacity: 100, RefillRate: 100, DailyQuota: 10000},
		Crypto:     BucketSettings{Capacity: 100, RefillRate: 100, DailyQuota: 10000},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	registry := resilience.NewRegistry(resilience.DefaultRegistryConfig())
	t.Cleanup(registry.Close)

	client, err := New(testConfig(baseURL), registry, logger.NewDefault("test"), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestClient_Quote_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "test-key" {
			t.Errorf("expected apikey param, got %q", r.URL.Query().Get("apikey"))
		}
		if r.URL.Path != "/v1/quote" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","price":187.32,"change":1.2,"change_percent":0.65}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	quote, err := client.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Symbol != "AAPL" {
		t.Errorf("expected AAPL, got %q", quote.Symbol)
	}
	if quote.Price != 187.32 {
		t.Errorf("expected price 187.32, got %v", quote.Price)
	}
}

func TestClient_Quote_InvalidSymbol(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")
	if _, err := client.Quote(context.Background(), "not a symbol"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestClient_Candles_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("expected interval=1d, got %q", r.URL.Query().Get("interval"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","candles":[
			{"time":"2026-08-28T00:00:00Z","open":185,"high":188,"low":184,"close":187,"volume":1000},
			{"time":"2026-08-29T00:00:00Z","open":187,"high":189,"low":186,"close":188,"volume":1200}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	candles, err := client.Candles(context.Background(), CandlesRequest{Symbol: "AAPL", Interval: "1d", Limit: 2})
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[1].Close != 188 {
		t.Errorf("expected close 188, got %v", candles[1].Close)
	}
}

func TestClient_Candles_InvalidInterval(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")
	_, err := client.Candles(context.Background(), CandlesRequest{Symbol: "AAPL", Interval: "5y", Limit: 10})
	if err == nil {
		t.Fatal("expected validation error for interval")
	}
}

func TestClient_CryptoPrice_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/crypto/price" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("pair") != "BTC/USD" {
			t.Errorf("expected pair=BTC/USD, got %q", r.URL.Query().Get("pair"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pair":"BTC/USD","price":64250.5,"volume_24h":1.5e9}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	price, err := client.CryptoPrice(context.Background(), "BTC/USD")
	if err != nil {
		t.Fatalf("CryptoPrice failed: %v", err)
	}
	if price.Price != 64250.5 {
		t.Errorf("expected price 64250.5, got %v", price.Price)
	}
}

func TestClient_Quote_ServesStaleCacheDuringOutage(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","price":187.32}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	// Seed the cache with a live fetch.
	if _, err := client.Quote(ctx, "AAPL"); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}

	// Upstream goes down; the cached quote keeps being served.
	healthy.Store(false)
	quote, err := client.Quote(ctx, "AAPL")
	if err != nil {
		t.Fatalf("expected stale cache serve, got %v", err)
	}
	if quote.Price != 187.32 {
		t.Errorf("expected cached price, got %v", quote.Price)
	}
}

func TestClient_OutageWithoutCacheFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Quote(context.Background(), "TSLA")
	if err == nil {
		t.Fatal("expected error with empty cache")
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"quote:AAPL", BucketMarket},
		{"candles:AAPL:1d:100", BucketMarket},
		{"crypto_price:BTC/USD", BucketCrypto},
	}
	for _, tt := range tests {
		if got := bucketFor(tt.key); got != tt.want {
			t.Errorf("bucketFor(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestClient_CheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	h := client.CheckHealth(ctx)
	if h.Status != "up" {
		t.Errorf("expected up before failures, got %s", h.Status)
	}

	// Trip the breaker with repeated failures.
	for i := 0; i < 5; i++ {
		_, _ = client.Quote(ctx, "AAPL")
	}
	h = client.CheckHealth(ctx)
	if h.Status != "degraded" {
		t.Errorf("expected degraded after circuit opens, got %s", h.Status)
	}

	client.ResetCircuit()
	h = client.CheckHealth(ctx)
	if h.Status != "up" {
		t.Errorf("expected up after reset, got %s", h.Status)
	}
}

func TestClient_RecordsCircuitTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := observability.NewGatewayMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewGatewayMetrics failed: %v", err)
	}

	registry := resilience.NewRegistry(resilience.DefaultRegistryConfig())
	t.Cleanup(registry.Close)
	client, err := New(testConfig(srv.URL), registry, logger.NewDefault("test"), metrics)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = client.Quote(ctx, "AAPL")
	}
	if client.Status().Healthy {
		t.Fatal("expected the circuit to be open")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	found := false
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "gateway.circuit.transitions" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected circuit transition data points after the breaker tripped")
	}
}

func TestClient_Status(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")
	status := client.Status()
	if status.Name != ProviderName {
		t.Errorf("expected provider name, got %q", status.Name)
	}
	if _, ok := status.Buckets[BucketMarket]; !ok {
		t.Error("expected market bucket in status")
	}
	if _, ok := status.Buckets[BucketCrypto]; !ok {
		t.Error("expected crypto bucket in status")
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://x", APIKey: "k"}
	cfg.ApplyDefaults()
	if cfg.Market.Capacity != 30 || cfg.Market.RefillRate != 2.0 {
		t.Errorf("unexpected market defaults: %+v", cfg.Market)
	}
	if cfg.Crypto.DailyQuota != 2000 {
		t.Errorf("unexpected crypto defaults: %+v", cfg.Crypto)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("expected 5m cache TTL, got %v", cfg.CacheTTL)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing base_url")
	}
	cfg.BaseURL = "http://x"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing api_key")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
