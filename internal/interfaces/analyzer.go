package interfaces

import (
	"context"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Analyzer is the uniform contract for every scoring backend: the fast local
// classifier, the local large model, and the remote LLMs. The per-attempt
// latency budget arrives as the context deadline; implementations must return
// at or before it, never after.
type Analyzer interface {
	Analyze(ctx context.Context, subject types.Subject) (types.Analysis, error)
}
