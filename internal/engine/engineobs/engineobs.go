package engineobs

import (
	"context"

	"github.com/0Papitchu/GBPBot-sub001/internal/interfaces"
	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// observableEngine wraps an Engine with logging and tracing
type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap wraps an engine with observability middleware
func Wrap(engine interfaces.Engine) interfaces.Engine {
	return &observableEngine{engine: engine}
}

func (oe *observableEngine) Step(ctx context.Context, tokenAddress string) (*types.StepResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	result, err := oe.engine.Step(ctx, tokenAddress)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Scan step failed", err, "token", tokenAddress)
		return nil, err
	}

	if result.Skipped {
		logger.InfoSkip(ctx, 1, "Scan step skipped",
			"token", tokenAddress,
			"reason", result.SkipReason,
		)
		return result, nil
	}

	logger.InfoSkip(ctx, 1, "Scan step completed",
		"token", tokenAddress,
		"score", result.Record.Score,
		"provider_id", result.Record.ProviderID,
		"admit", result.Params.Admit,
		"alerted", result.Alerted,
	)
	return result, nil
}
