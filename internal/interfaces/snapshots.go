package interfaces

import (
	"context"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// SnapshotSource observes the current market state of a token. The real
// implementation lives with the chain/DEX clients outside this core; a static
// source backs DRY_RUN mode.
type SnapshotSource interface {
	Snapshot(ctx context.Context, tokenAddress string) (types.Subject, error)
}
