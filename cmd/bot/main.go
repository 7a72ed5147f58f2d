package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/engine"
	"github.com/0Papitchu/GBPBot-sub001/internal/interfaces"
	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/notify"
	"github.com/0Papitchu/GBPBot-sub001/internal/store"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = trace.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx)

	analyzers := initializeAnalyzers(ctx, cfg)
	if len(analyzers) == 0 {
		logger.Error(ctx, "No enabled providers in config - nothing to do")
		os.Exit(1)
	}

	reg := initializeRegistry(cfg)
	enricher := initializeEnricher(ctx, cfg)
	orch := initializeOrchestrator(cfg, reg, analyzers, enricher)
	eng, base, throttle := initializeEngine(ctx, cfg, orch)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	logger.Info(ctx, "Bot started",
		"chain", cfg.Chain,
		"mode", cfg.Mode,
		"tokens", len(cfg.Watchlist),
		"providers", len(analyzers),
		"poll_seconds", cfg.PollSeconds,
	)

	runLoop(ctx, cfg, eng, base, throttle, sigc)
	logger.Info(ctx, "Shutting down")
}

// runLoop scans the watchlist each poll interval until interrupted.
func runLoop(ctx context.Context, cfg *store.Config, eng interfaces.Engine, base *engine.Engine, throttle *notify.Throttle, sigc <-chan os.Signal) {
	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	scan := func() {
		for _, token := range cfg.Watchlist {
			if ctx.Err() != nil {
				return
			}
			// Step failures are logged by the engine middleware; one bad
			// token must not stall the rest of the watchlist.
			_, _ = eng.Step(ctx, token)
		}
		base.Summarize(ctx)
	}

	scan()
	for {
		select {
		case now := <-tick.C:
			throttle.Tick(now)
			scan()
		case <-sigc:
			return
		case <-ctx.Done():
			return
		}
	}
}
