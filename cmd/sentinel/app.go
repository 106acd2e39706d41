package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"aidSentinel/internal/api"
	"aidSentinel/internal/config"
	"aidSentinel/internal/directory"
	"aidSentinel/internal/executor"
	"aidSentinel/internal/feed"
	"aidSentinel/internal/ledger"
	"aidSentinel/internal/ledger/postgres"
	"aidSentinel/internal/model"
	"aidSentinel/internal/notify"
	"aidSentinel/internal/oracle"
	"aidSentinel/internal/pipeline"
)

// App holds the wired pipeline and its closable collaborators.
type App struct {
	Coordinator *pipeline.Coordinator
	Poller      *pipeline.Poller
	Registry    *prometheus.Registry

	pgStore  *postgres.Store
	chain    *executor.ChainExecutor
	notifier *notify.KafkaNotifier
}

// buildApp assembles the pipeline from config. MOCK mode swaps the
// executor and oracle for deterministic doubles; the pipeline itself
// is identical in both modes.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Registry: prometheus.NewRegistry()}

	dir, err := directory.Load(cfg.RecipientsFile, logger)
	if err != nil {
		return nil, err
	}

	var store ledger.Store
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect ledger: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		app.pgStore = pg
		store = pg
	} else {
		store = ledger.NewMemoryStore()
	}

	var exec executor.Executor
	if cfg.Mode == "LIVE" && cfg.RPCURL != "" {
		chain, err := executor.NewChainExecutor(ctx, executor.ChainConfig{
			RPCURL:          cfg.RPCURL,
			PrivateKeyHex:   cfg.PrivateKey,
			ContractAddress: cfg.ContractAddress,
			ChainID:         cfg.ChainID,
			Cap:             cfg.MaxPayout,
			MaxRetries:      cfg.MaxRetries,
			RetryBackoff:    cfg.RetryBackoff,
		}, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("build chain executor: %w", err)
		}
		app.chain = chain
		exec = chain
	} else {
		exec = executor.NewMockExecutor(cfg.MaxPayout)
	}

	var client oracle.ReasoningClient
	if cfg.Mode == "LIVE" && (cfg.OracleAPIKey != "" || cfg.OracleURL != "") {
		client = oracle.NewGeminiClient(cfg.OracleURL, cfg.OracleAPIKey, cfg.OracleTimeout)
	}
	adapter := oracle.NewAdapter(client, cfg.MaxRetries, cfg.RetryBackoff, logger)

	policy := model.DefaultPolicy()
	policy.MaxPayout = cfg.MaxPayout

	opts := []pipeline.Option{
		pipeline.WithMetrics(pipeline.NewMetrics(app.Registry)),
	}
	if cfg.ScenariosFile != "" {
		scenarios, err := pipeline.LoadScenarios(cfg.ScenariosFile)
		if err != nil {
			app.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithScenarios(scenarios))
	}
	if len(cfg.KafkaBrokers) > 0 {
		app.notifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		opts = append(opts, pipeline.WithNotifier(app.notifier))
	}

	app.Coordinator = pipeline.NewCoordinator(
		pipeline.Config{Policy: policy, InitialBalance: cfg.InitialBalance},
		store, adapter, dir, exec, logger, opts...,
	)

	if cfg.Mode == "LIVE" {
		sources, err := buildSources(cfg.Sources, cfg.FeedTimeout)
		if err != nil {
			app.Close()
			return nil, err
		}
		normalizer := feed.NewNormalizer(logger)
		app.Poller = pipeline.NewPoller(sources, normalizer, app.Coordinator, cfg.PollInterval, logger)
	}

	return app, nil
}

func buildSources(names []string, timeout time.Duration) ([]feed.Source, error) {
	sources := make([]feed.Source, 0, len(names))
	for _, name := range names {
		switch model.Source(name) {
		case model.SourceGDACS:
			sources = append(sources, feed.NewGDACS(timeout))
		case model.SourceEONET:
			sources = append(sources, feed.NewEONET(timeout))
		case model.SourceNWS:
			sources = append(sources, feed.NewNWS(timeout, ""))
		default:
			return nil, fmt.Errorf("unknown feed source %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one feed source is required")
	}
	return sources, nil
}

// NewServer builds the HTTP surface over the wired pipeline.
func (a *App) NewServer(logger *zap.Logger) *api.Server {
	return api.NewServer(a.Coordinator, a.Poller, a.Registry, logger)
}

func (a *App) Close() {
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}
