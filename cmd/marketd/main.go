package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"limitlesswork/config"
	"limitlesswork/core"
	"limitlesswork/core/events"
	"limitlesswork/core/genesis"
	"limitlesswork/core/state"
	"limitlesswork/observability"
	"limitlesswork/observability/logging"
	"limitlesswork/observability/metrics"
	"limitlesswork/observability/otel"
	"limitlesswork/rpc"
	"limitlesswork/storage"
	"limitlesswork/storage/eventlog"
)

const (
	serviceName  = "marketd"
	envOverride  = "MARKET_ENV"
	listenEnvVar = "MARKET_LISTEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (TOML or YAML)")
	listenFlag := flag.String("listen", "", "Override the JSON-RPC listen address")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, resolveListen(*listenFlag, cfg.ListenAddress, os.LookupEnv)); err != nil {
		slog.Error("marketd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// resolveListen picks the listen address from the flag, then the environment,
// then the config file.
func resolveListen(flagValue, configured string, lookup func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v, ok := lookup(listenEnvVar); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return configured
}

func run(cfg *config.Config, listen string) error {
	env := cfg.Log.Environment
	if v := strings.TrimSpace(os.Getenv(envOverride)); v != "" {
		env = v
	}
	logger := logging.SetupWithOptions(serviceName, env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, otel.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if cfg.Backend != "memory" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("prepare data directory: %w", err)
		}
	}
	db, err := storage.Open(cfg.Backend, cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Backend, err)
	}
	defer db.Close()
	store := state.NewStore(db)

	hub := events.NewHub()
	emitters := events.Multi{hub, observability.Events()}
	var source rpc.EventSource
	if cfg.EventLogPath != "" {
		log, err := eventlog.Open(cfg.EventLogPath)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer log.Close()
		emitters = append(emitters, log)
		source = log
	}
	store.SetEmitter(emitters)

	spec, err := cfg.GenesisSpec()
	if err != nil {
		return fmt.Errorf("build genesis: %w", err)
	}
	applied, err := genesis.Apply(store, spec)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis applied", slog.Int("accounts", len(spec.Balances())), slog.Any("roles", spec.RoleNames()))
	}

	feeCollector, err := cfg.FeeCollectorAddress()
	if err != nil {
		return err
	}
	processor, err := core.NewStateProcessor(store, core.Options{
		ChainID:        cfg.ChainID,
		FeeCollector:   feeCollector,
		StandardFeeBps: cfg.StandardFeeBps,
		PremiumFeeBps:  cfg.PremiumFeeBps,
		Pauses:         cfg.Pauses(),
		Metrics:        metrics.Market(),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create state processor: %w", err)
	}

	secret := strings.TrimSpace(cfg.RPC.JWTSecret)
	if secret == "" {
		logger.Warn("RPC JWT secret not configured; transaction submission is disabled")
	}
	server := rpc.NewServer(processor, source, hub, rpc.ServerConfig{
		JWTSecret:    secret,
		RateLimit:    cfg.RPC.RateLimit,
		RateBurst:    cfg.RPC.RateBurst,
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		Logger:       logger,
	})

	logger.Info("starting marketd",
		slog.String("listen", listen),
		slog.Uint64("chain_id", cfg.ChainID),
		slog.String("backend", cfg.Backend),
		slog.Any("paused", cfg.PausedModules))
	return server.Start(ctx, listen)
}
