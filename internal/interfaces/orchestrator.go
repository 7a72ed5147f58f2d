package interfaces

import (
	"context"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

type Orchestrator interface {
	Decide(ctx context.Context, subject types.Subject, strategy types.Strategy, overallBudget time.Duration) (types.DecisionRecord, error)
}
