package interfaces

import (
	"context"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

type Engine interface {
	Step(ctx context.Context, tokenAddress string) (*types.StepResult, error)
}
