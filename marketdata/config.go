package marketdata

import (
	"fmt"
	"time"

	"github.com/balojey/tradewizard/resilience"
)

const (
	// ProviderName identifies this provider in logs, metrics and status.
	ProviderName = "marketdata"

	// BucketMarket is the rate limit bucket for stock endpoints.
	BucketMarket = "market"
	// BucketCrypto is the rate limit bucket for crypto endpoints.
	BucketCrypto = "crypto"
)

// BucketSettings configures one rate limit bucket from YAML/env.
type BucketSettings struct {
	Capacity      float64 `yaml:"capacity" mapstructure:"capacity"`
	RefillRate    float64 `yaml:"refill_rate" mapstructure:"refill_rate"`
	DailyQuota    int64   `yaml:"daily_quota" mapstructure:"daily_quota"`
	ResetHourUTC  int     `yaml:"reset_hour_utc" mapstructure:"reset_hour_utc"`
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

func (s BucketSettings) toBucketConfig(name string) resilience.BucketConfig {
	return resilience.BucketConfig{
		Name:          name,
		Capacity:      s.Capacity,
		RefillRate:    s.RefillRate,
		DailyQuota:    s.DailyQuota,
		ResetHourUTC:  s.ResetHourUTC,
		MaxConcurrent: s.MaxConcurrent,
	}
}

// Config configures the market data client.
type Config struct {
	// BaseURL is the upstream API root.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// APIKey authenticates with the upstream, sent as a query parameter.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Timeout bounds a single upstream request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// CacheTTL is how long fetched payloads stay fresh in the fallback cache.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// MaxRetries is the number of attempts per call.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// Market configures the stock endpoints bucket.
	Market BucketSettings `yaml:"market" mapstructure:"market"`
	// Crypto configures the crypto endpoints bucket.
	Crypto BucketSettings `yaml:"crypto" mapstructure:"crypto"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Market.Capacity <= 0 {
		c.Market = BucketSettings{Capacity: 30, RefillRate: 2.0, DailyQuota: 5000}
	}
	if c.Crypto.Capacity <= 0 {
		c.Crypto = BucketSettings{Capacity: 20, RefillRate: 1.0, DailyQuota: 2000}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("marketdata: base_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("marketdata: api_key is required")
	}
	if c.Market.RefillRate <= 0 {
		return fmt.Errorf("marketdata: market.refill_rate must be positive")
	}
	if c.Crypto.RefillRate <= 0 {
		return fmt.Errorf("marketdata: crypto.refill_rate must be positive")
	}
	return nil
}
