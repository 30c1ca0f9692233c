package main

import (
	"fmt"

	"github.com/balojey/tradewizard/config"
	"github.com/balojey/tradewizard/marketdata"
	"github.com/balojey/tradewizard/newsdata"
	"github.com/balojey/tradewizard/server"
)

// TelemetryConfig controls the optional OTLP exporters.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// ProvidersConfig groups the upstream provider settings.
type ProvidersConfig struct {
	MarketData marketdata.Config `yaml:"marketdata" mapstructure:"marketdata"`
	NewsData   newsdata.Config   `yaml:"newsdata" mapstructure:"newsdata"`
}

// AppConfig is the full configuration of the gateway binary.
type AppConfig struct {
	Service   config.ServiceConfig `yaml:"service" mapstructure:"service"`
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Providers ProvidersConfig      `yaml:"providers" mapstructure:"providers"`
	Telemetry TelemetryConfig      `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills unset fields.
func (c *AppConfig) ApplyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = serviceName
	}
	c.Service.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Providers.MarketData.ApplyDefaults()
	c.Providers.NewsData.ApplyDefaults()
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.SampleRate <= 0 {
		c.Telemetry.SampleRate = 1.0
	}
}

// Validate checks the configuration after defaults are applied.
func (c *AppConfig) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Providers.MarketData.Validate(); err != nil {
		return fmt.Errorf("providers.marketdata: %w", err)
	}
	if err := c.Providers.NewsData.Validate(); err != nil {
		return fmt.Errorf("providers.newsdata: %w", err)
	}
	return nil
}
