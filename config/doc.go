// Package config loads service configuration from YAML files and
// environment variables using viper, with optional .env support via
// godotenv.
//
// Configuration is layered: a config.yml file provides the base, a .env
// file (when present) fills in secrets, and process environment
// variables override both. Environment keys map to nested config keys
// by underscore splitting, so PROVIDERS_NEWSDATA_API_KEY reaches
// providers.newsdata.api_key.
//
// Services embed ServiceConfig in their own config struct and extend
// ApplyDefaults/Validate:
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Server server.Config `yaml:"server" mapstructure:"server"`
//	}
//
//	var cfg AppConfig
//	if err := config.Load("tradewizard", &cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
