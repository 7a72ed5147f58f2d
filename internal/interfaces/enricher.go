package interfaces

import (
	"context"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Enricher supplies extra context (news sentiment, social signal) merged into
// a Subject before it is handed to the slower providers. Enrichment is best
// effort: an empty map and nil error means nothing useful was found.
type Enricher interface {
	Enrich(ctx context.Context, subject types.Subject) (map[string]any, error)
}
