package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/openfeeds/oracle-aggregator/pkg/aggregator"
	"github.com/openfeeds/oracle-aggregator/pkg/api"
	"github.com/openfeeds/oracle-aggregator/pkg/config"
	"github.com/openfeeds/oracle-aggregator/pkg/engine"
	"github.com/openfeeds/oracle-aggregator/pkg/gate"
	"github.com/openfeeds/oracle-aggregator/pkg/logging"
	"github.com/openfeeds/oracle-aggregator/pkg/metrics"
	"github.com/openfeeds/oracle-aggregator/pkg/pool"
	"github.com/openfeeds/oracle-aggregator/pkg/registry"
	"github.com/openfeeds/oracle-aggregator/pkg/sources"
)

const version = "0.1.0-dev"

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	envFile    = flag.String("env", "", "Optional .env file loaded before config expansion")
	showVer    = flag.Bool("version", false, "Show version and exit")
	dryRun     = flag.Bool("dry-run", false, "Run rounds but skip registry writes")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("oracled version %s\n", version)
		os.Exit(0)
	}

	// Environment variables referenced by ${VAR} in the config file must be
	// present before Load expands them.
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting oracled", "version", version, "assets", cfg.Assets)

	if *dryRun {
		logger.Warn("DRY RUN MODE ENABLED - Consensus prices will be computed but NOT written to the registry")
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err.Error())
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, cfg, *dryRun, logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil && ctx.Err() == nil {
			logger.Error("Engine failed", "error", err.Error())
			cancel()
		}
	}

	logger.Info("Shutdown complete")
}

// run wires all components together and blocks until the context is
// canceled.
func run(ctx context.Context, cfg *config.Config, dryRun bool, logger *logging.Logger) error {
	reg, err := buildRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	logger.Info("Registry ready", "backend", cfg.Registry.Backend)

	srcs, err := buildSources(cfg, logger)
	if err != nil {
		return err
	}

	exclusions := make([]pool.Exclusion, 0, len(cfg.Pool.Exclusions))
	for _, excl := range cfg.Pool.Exclusions {
		exclusions = append(exclusions, pool.Exclusion{Asset: excl.Asset, Source: excl.Source})
	}

	srcPool := pool.New(srcs, pool.Config{
		FetchTimeout: cfg.Pool.FetchTimeout.ToDuration(),
		MaxAttempts:  cfg.Pool.MaxAttempts,
		BackoffBase:  cfg.Pool.BackoffBase.ToDuration(),
		Exclusions:   exclusions,
	}, logger)

	agg := aggregator.New(cfg.Validation.MinSources, logger)

	g := gate.New(reg, gate.Config{
		MinSources:     cfg.Validation.MinSources,
		MaxDeviationBp: cfg.Validation.MaxDeviationBp,
	}, logger)

	// The node's own identity must be an active publisher before the first
	// round, otherwise every publish is rejected. The admin identity is
	// seeded by the registry; everything else is registered here.
	if err := g.EnsurePublisher(ctx, cfg.Node.Admin, cfg.Node.Identity, "node"); err != nil {
		return fmt.Errorf("failed to authorize node identity %q: %w", cfg.Node.Identity, err)
	}
	logger.Info("Node identity authorized", "identity", cfg.Node.Identity)

	var alerter engine.Alerter
	if cfg.Alerts.WebhookURL != "" {
		alerter = engine.NewWebhookAlerter(cfg.Alerts.WebhookURL, cfg.Alerts.Timeout.ToDuration(), logger)
	} else {
		alerter = engine.NewLogAlerter(logger)
	}

	eng := engine.New(engine.Config{
		Assets:                cfg.Assets,
		Identity:              cfg.Node.Identity,
		UpdateInterval:        cfg.Engine.UpdateInterval.ToDuration(),
		HealthInterval:        cfg.Engine.HealthInterval.ToDuration(),
		FailureAlertThreshold: cfg.Engine.FailureAlertThreshold,
		ReferenceAsset:        cfg.Engine.ReferenceAsset,
		DryRun:                dryRun,
	}, srcPool, agg, g, reg, alerter, logger)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Addr, cfg.Assets, reg, logger)
		if cfg.API.WebSocket {
			hub := api.NewWebSocketHub(logger)
			apiServer.SetWebSocketHub(hub)
			eng.OnPublish(hub.Publish)
		}

		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("API server error", "error", err.Error())
			}
		}()
	}

	defer func() {
		if apiServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Stop(shutdownCtx); err != nil {
				logger.Error("API server shutdown failed", "error", err.Error())
			}
		}
	}()

	return eng.Run(ctx)
}

// buildRegistry selects the registry backend from configuration.
func buildRegistry(ctx context.Context, cfg *config.Config) (registry.Registry, error) {
	staleness := cfg.Validation.StalenessThreshold.ToDuration()

	switch cfg.Registry.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Registry.Redis.Addr,
			Password: cfg.Registry.Redis.Password,
			DB:       cfg.Registry.Redis.DB,
		})
		return registry.NewRedis(ctx, client, cfg.Node.Admin, staleness)
	default:
		return registry.NewMemory(cfg.Node.Admin, staleness), nil
	}
}

// buildSources instantiates every enabled source from the factory registry.
// A single broken source config is skipped, not fatal; zero usable sources
// is.
func buildSources(cfg *config.Config, logger *logging.Logger) ([]sources.Source, error) {
	var srcs []sources.Source

	for _, sourceCfg := range cfg.Sources {
		if !sourceCfg.Enabled {
			continue
		}

		logger.Info("Initializing source", "type", sourceCfg.Type, "name", sourceCfg.Name)

		// Inject the logger so sources do not create their own.
		if sourceCfg.Config == nil {
			sourceCfg.Config = make(map[string]interface{})
		}
		sourceCfg.Config["logger"] = logger

		source, err := sources.Create(sourceCfg.Type, sourceCfg.Name, sourceCfg.Config)
		if err != nil {
			logger.Warn("Failed to create source", "type", sourceCfg.Type, "name", sourceCfg.Name, "error", err.Error())
			continue
		}

		srcs = append(srcs, source)
		logger.Info("Source ready", "source", source.Name(), "symbols", source.Symbols())
	}

	if len(srcs) == 0 {
		return nil, fmt.Errorf("no sources available")
	}
	return srcs, nil
}
