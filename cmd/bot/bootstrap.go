package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/0Papitchu/GBPBot-sub001/internal/decision"
	"github.com/0Papitchu/GBPBot-sub001/internal/decisionlog"
	"github.com/0Papitchu/GBPBot-sub001/internal/engine"
	"github.com/0Papitchu/GBPBot-sub001/internal/engine/engineobs"
	"github.com/0Papitchu/GBPBot-sub001/internal/gate"
	"github.com/0Papitchu/GBPBot-sub001/internal/interfaces"
	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/news"
	"github.com/0Papitchu/GBPBot-sub001/internal/notify"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider/claude"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider/localfast"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider/locallarge"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider/openai"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider/provobs"
	"github.com/0Papitchu/GBPBot-sub001/internal/registry"
	"github.com/0Papitchu/GBPBot-sub001/internal/scorecache"
	"github.com/0Papitchu/GBPBot-sub001/internal/store"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old decision log files if retention is configured
func compressOldLogs(ctx context.Context) {
	v := os.Getenv("GBPBOT_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid GBPBOT_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := decisionlog.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old decision logs", "error", err)
	}
}

// initializeAnalyzers builds one analyzer per enabled provider entry, each
// wrapped with observability middleware, keyed by provider ID.
func initializeAnalyzers(ctx context.Context, cfg *store.Config) map[string]interfaces.Analyzer {
	system := cfg.LLM.System
	schema := cfg.LLM.Schema

	analyzers := make(map[string]interfaces.Analyzer, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			logger.Info(ctx, "Provider disabled in config", "provider_id", pc.ID)
			continue
		}
		desc := provider.DescriptorFromConfig(pc)

		var a interfaces.Analyzer
		switch desc.Kind {
		case provider.KindLocalFast:
			a = localfast.New()
		case provider.KindLocalLarge:
			a = locallarge.New(desc, system, schema)
		case provider.KindRemote:
			switch desc.Backend {
			case "CLAUDE":
				a = claude.New(desc, system, schema)
			default:
				a = openai.New(desc, system, schema)
			}
		default:
			logger.Warn(ctx, "Unknown provider kind - skipping",
				"provider_id", pc.ID, "kind", pc.Kind)
			continue
		}

		// Wrap with observability middleware
		analyzers[desc.ID] = provobs.Wrap(desc.ID, a)
	}
	return analyzers
}

// initializeRegistry builds the provider registry over the configured
// descriptors. Disabled entries still register so Explicit selection can
// report them as disabled rather than unknown.
func initializeRegistry(cfg *store.Config) *registry.Registry {
	descs := make([]provider.Descriptor, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		descs = append(descs, provider.DescriptorFromConfig(pc))
	}
	return registry.New(descs, uint32(cfg.Breaker.FailureThreshold), cfg.Breaker.OpenTimeout)
}

// initializeEnricher builds the news sentiment enricher, or nil when disabled
func initializeEnricher(ctx context.Context, cfg *store.Config) interfaces.Enricher {
	if !cfg.News.Enabled {
		logger.Info(ctx, "News sentiment enrichment disabled in config")
		return nil
	}
	svcCfg := news.DefaultServiceConfig()
	svcCfg.Enabled = true
	if cfg.News.MaxArticles > 0 {
		svcCfg.MaxArticles = cfg.News.MaxArticles
	}
	if cfg.News.CacheDuration > 0 {
		svcCfg.CacheDuration = cfg.News.CacheDuration
	}
	if cfg.News.ScraperTimeout > 0 {
		svcCfg.ScraperTimeout = cfg.News.ScraperTimeout
	}
	logger.Info(ctx, "News sentiment enrichment enabled",
		"max_articles", svcCfg.MaxArticles,
		"cache_duration", svcCfg.CacheDuration,
	)
	return news.NewService(svcCfg)
}

// initializeOrchestrator wires cache, registry, analyzers and enricher into
// the decision orchestrator.
func initializeOrchestrator(cfg *store.Config, reg *registry.Registry, analyzers map[string]interfaces.Analyzer, enricher interfaces.Enricher) interfaces.Orchestrator {
	cache := scorecache.New(cfg.Cache.Capacity)
	ttl := decision.TTLConfig{
		Low:    cfg.Cache.TTLLow,
		Normal: cfg.Cache.TTLNormal,
		High:   cfg.Cache.TTLHigh,
	}
	return decision.New(cache, reg, analyzers, enricher, ttl)
}

// initializeEngine builds the scan engine with observability, plus the
// concrete engine for periodic summaries.
func initializeEngine(ctx context.Context, cfg *store.Config, orch interfaces.Orchestrator) (interfaces.Engine, *engine.Engine, *notify.Throttle) {
	g := gate.New(gate.FromStore(cfg))
	throttle := notify.New(cfg.Notify.MaxPerHour, cfg.Notify.PerChannel, cfg.Notify.SummaryInterval)

	// TODO: add a live snapshot source backed by the chain RPC once the
	// data pipeline lands; DRY_RUN uses deterministic static snapshots.
	var source interfaces.SnapshotSource = engine.NewStaticSource()
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - snapshots are simulated")
	}

	eng := engine.New(cfg, source, orch, g, throttle)

	// Wrap with observability middleware
	return engineobs.Wrap(eng), eng, throttle
}
