package engine

import (
	"context"
	"errors"

	"github.com/0Papitchu/GBPBot-sub001/internal/decisionlog"
	"github.com/0Papitchu/GBPBot-sub001/internal/gate"
	"github.com/0Papitchu/GBPBot-sub001/internal/interfaces"
	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/notify"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider"
	"github.com/0Papitchu/GBPBot-sub001/internal/store"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// AlertChannel is the notification channel the scan loop emits signals on.
// The chat transport maps it to its own destination identifiers.
const AlertChannel = "alerts"

// Engine is the scan-loop consumer of the decision core: snapshot, decide,
// gate, log, and emit a throttled alert. It never places orders; in LIVE mode
// the gated execution parameters are handed to the external trading engine,
// in DRY_RUN they are only logged.
type Engine struct {
	cfg      *store.Config
	source   interfaces.SnapshotSource
	orch     interfaces.Orchestrator
	gate     *gate.Gate
	throttle *notify.Throttle
}

func New(cfg *store.Config, source interfaces.SnapshotSource, orch interfaces.Orchestrator, g *gate.Gate, throttle *notify.Throttle) *Engine {
	return &Engine{cfg: cfg, source: source, orch: orch, gate: g, throttle: throttle}
}

// Step runs one scan pass for a single watchlist token.
func (e *Engine) Step(ctx context.Context, tokenAddress string) (*types.StepResult, error) {
	logger.Debug(ctx, "Starting scan step", "token", tokenAddress)

	subject, err := e.source.Snapshot(ctx, tokenAddress)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to snapshot token", err, "token", tokenAddress)
		return nil, err
	}

	rec, err := e.orch.Decide(ctx, subject, types.Auto, e.cfg.DecideBudget)
	if err != nil {
		if errors.Is(err, provider.ErrExhausted) {
			// No decision available is a skip, never an assumed score of
			// zero; the opportunity can be retried on the next pass.
			logger.Risk(ctx, tokenAddress, "NO_DECISION", "error", err)
			return &types.StepResult{
				TokenAddress: tokenAddress,
				Skipped:      true,
				SkipReason:   "all providers exhausted",
			}, nil
		}
		return nil, err
	}

	vol := subject.Snapshot.Volatility()
	params := e.gate.Evaluate(rec, vol)

	if err := decisionlog.Append(rec, subject, params); err != nil {
		logger.Warn(ctx, "Failed to append decision log", "token", tokenAddress, "error", err)
	}

	result := &types.StepResult{
		TokenAddress: tokenAddress,
		Record:       rec,
		Params:       params,
	}

	if !params.Admit {
		logger.Info(ctx, "Opportunity rejected by gate",
			"token", tokenAddress,
			"score", rec.Score,
			"volatility", string(vol),
		)
		return result, nil
	}

	logger.Info(ctx, "Opportunity admitted",
		"token", tokenAddress,
		"score", rec.Score,
		"review", params.Review,
		"slippage_bps", params.SlippageBps,
		"timeout_ms", params.Timeout.Milliseconds(),
		"mode", e.cfg.Mode,
	)

	if e.throttle.Admit(AlertChannel, "signal") {
		result.Alerted = true
		logger.Info(ctx, "Alert emitted",
			"channel", AlertChannel,
			"token", tokenAddress,
			"score", rec.Score,
		)
	} else {
		logger.Debug(ctx, "Alert suppressed by throttle", "channel", AlertChannel, "token", tokenAddress)
	}

	return result, nil
}

// Summarize emits the periodic summary when its interval has elapsed, and
// reports whether it did.
func (e *Engine) Summarize(ctx context.Context) bool {
	if !e.throttle.Admit(AlertChannel, notify.CategorySummary) {
		return false
	}
	logger.Info(ctx, "Periodic summary emitted",
		"channel", AlertChannel,
		"tokens", len(e.cfg.Watchlist),
	)
	return true
}
