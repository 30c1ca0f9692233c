// Command tradewizard runs the resilience gateway: rate-limited,
// circuit-protected access to the market data and news providers with
// an HTTP introspection and admin API.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/balojey/tradewizard/config"
	"github.com/balojey/tradewizard/logger"
	"github.com/balojey/tradewizard/marketdata"
	"github.com/balojey/tradewizard/newsdata"
	"github.com/balojey/tradewizard/observability"
	"github.com/balojey/tradewizard/resilience"
	"github.com/balojey/tradewizard/server"
	"github.com/balojey/tradewizard/version"
)

const serviceName = "tradewizard"

func main() {
	var cfg AppConfig
	if err := config.Load(serviceName, &cfg); err != nil {
		logger.NewDefault(serviceName).Fatal("failed to load configuration",
			logger.ErrorFields("config.load", err))
	}
	cfg.ApplyDefaults()
	if cfg.Service.Version == "" {
		cfg.Service.Version = version.Short()
	}
	if err := cfg.Validate(); err != nil {
		logger.NewDefault(serviceName).Fatal("invalid configuration",
			logger.ErrorFields("config.validate", err))
	}

	log := logger.New(&cfg.Service.Logging, cfg.Service.Name)
	logger.SetGlobalLogger(log)
	log.Info("starting gateway", logger.Fields(
		"version", cfg.Service.Version,
		"environment", cfg.Service.Environment,
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := initTelemetry(ctx, &cfg, log)

	registryCfg := resilience.DefaultRegistryConfig()
	registryCfg.OnReject = func(bucket, reason string) {
		log.Warn("rate limit rejection", logger.Fields(
			logger.FieldBucket, bucket,
			logger.FieldReason, reason,
		))
		if metrics != nil {
			metrics.RecordRateLimitRejection(context.Background(), bucket, reason)
		}
	}
	registry := resilience.NewRegistry(registryCfg)
	defer registry.Close()

	market, err := marketdata.New(cfg.Providers.MarketData, registry, log, metrics)
	if err != nil {
		log.Fatal("failed to initialize market data provider",
			logger.ErrorFields("marketdata.new", err))
	}
	news, err := newsdata.New(cfg.Providers.NewsData, registry, log, metrics)
	if err != nil {
		log.Fatal("failed to initialize news provider",
			logger.ErrorFields("newsdata.new", err))
	}

	if !cfg.Server.Enabled {
		log.Warn("http server disabled, nothing to serve")
		return
	}

	tokens, err := server.NewTokenService(cfg.Server.AdminSecret, cfg.Server.AdminIssuer, 0)
	if err != nil {
		log.Fatal("failed to initialize admin token service",
			logger.ErrorFields("server.tokens", err))
	}

	srv := server.New(cfg.Server, log)
	server.RegisterRoutes(srv, server.Deps{
		Registry: registry,
		Providers: map[string]server.Provider{
			marketdata.ProviderName: market,
			newsdata.ProviderName:   news,
		},
		Tokens:      tokens,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	if err := srv.Start(ctx); err != nil {
		log.Fatal("failed to start http server", logger.ErrorFields("server.start", err))
	}
	log.Info("http server listening", logger.Fields("addr", srv.Addr()))

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.ErrorFields("server.stop", err))
	}
	log.Info("shutdown complete")
}

// initTelemetry sets up the OTLP exporters when telemetry is enabled.
// Returns nil metrics when disabled; the providers tolerate that.
func initTelemetry(ctx context.Context, cfg *AppConfig, log *logger.Logger) *observability.GatewayMetrics {
	if !cfg.Telemetry.Enabled {
		return nil
	}

	tracerCfg := observability.DefaultTracerConfig(cfg.Service.Name)
	tracerCfg.ServiceVersion = cfg.Service.Version
	tracerCfg.Environment = cfg.Service.Environment
	tracerCfg.Endpoint = cfg.Telemetry.Endpoint
	tracerCfg.Insecure = cfg.Telemetry.Insecure
	tracerCfg.SampleRate = cfg.Telemetry.SampleRate
	tp, err := observability.InitTracer(ctx, tracerCfg)
	if err != nil {
		log.Error("failed to initialize tracer, continuing without traces",
			logger.ErrorFields("observability.tracer", err))
	} else {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	meterCfg := observability.DefaultMeterConfig(cfg.Service.Name)
	meterCfg.ServiceVersion = cfg.Service.Version
	meterCfg.Environment = cfg.Service.Environment
	meterCfg.Endpoint = cfg.Telemetry.Endpoint
	meterCfg.Insecure = cfg.Telemetry.Insecure
	mp, err := observability.InitMeter(ctx, meterCfg)
	if err != nil {
		log.Error("failed to initialize meter, continuing without metrics",
			logger.ErrorFields("observability.meter", err))
		return nil
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mp.Shutdown(shutdownCtx)
	}()

	metrics, err := observability.NewGatewayMetrics(observability.Meter(cfg.Service.Name))
	if err != nil {
		log.Error("failed to create gateway metrics",
			logger.ErrorFields("observability.metrics", err))
		return nil
	}
	return metrics
}
