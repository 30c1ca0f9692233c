package newsdata

import (
	"fmt"
	"time"

	"github.com/balojey/tradewizard/resilience"
)

const (
	// ProviderName identifies this provider in logs, metrics and status.
	ProviderName = "newsdata"

	// BucketLatest is the rate limit bucket for the latest-headlines endpoint.
	BucketLatest = "latest"
	// BucketArchive is the rate limit bucket for archive search.
	BucketArchive = "archive"
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

// Config configures the news client.
type Config struct {
	// BaseURL is the upstream API root.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// APIKey authenticates with the upstream, sent as the X-ACCESS-KEY header.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Timeout bounds a single upstream request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// CacheTTL is how long fetched payloads stay fresh in the fallback
	// cache. Headlines age fast, so the default is shorter than market data.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// MaxRetries is the number of attempts per call.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// Latest configures the latest-headlines bucket.
	Latest BucketSettings `yaml:"latest" mapstructure:"latest"`
	// Archive configures the archive-search bucket.
	Archive BucketSettings `yaml:"archive" mapstructure:"archive"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 2 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Latest.Capacity <= 0 {
		c.Latest = BucketSettings{Capacity: 10, RefillRate: 0.5, DailyQuota: 200}
	}
	if c.Archive.Capacity <= 0 {
		c.Archive = BucketSettings{Capacity: 5, RefillRate: 0.2, DailyQuota: 50}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("newsdata: base_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("newsdata: api_key is required")
	}
	if c.Latest.RefillRate <= 0 {
		return fmt.Errorf("newsdata: latest.refill_rate must be positive")
	}
	if c.Archive.RefillRate <= 0 {
		return fmt.Errorf("newsdata: archive.refill_rate must be positive")
	}
	return nil
}
