package provobs

import (
	"context"

	"github.com/0Papitchu/GBPBot-sub001/internal/interfaces"
	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// observableAnalyzer wraps an Analyzer with logging and tracing
type observableAnalyzer struct {
	id       string
	analyzer interfaces.Analyzer
}

// Compile-time interface check
var _ interfaces.Analyzer = (*observableAnalyzer)(nil)

// Wrap wraps an analyzer with observability middleware
func Wrap(id string, analyzer interfaces.Analyzer) interfaces.Analyzer {
	return &observableAnalyzer{id: id, analyzer: analyzer}
}

func (oa *observableAnalyzer) Analyze(ctx context.Context, subject types.Subject) (types.Analysis, error) {
	ctx, span := trace.StartSpan(ctx, "provider.Analyze")
	defer span.End()

	// Skip(1) so log lines report the wrapped call site, not this middleware.
	logger.DebugSkip(ctx, 1, "Requesting analysis",
		"provider_id", oa.id,
		"token", subject.TokenAddress,
		"kind", string(subject.Kind),
	)

	analysis, err := oa.analyzer.Analyze(ctx, subject)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Analysis failed", err,
			"provider_id", oa.id,
			"token", subject.TokenAddress,
		)
		return types.Analysis{}, err
	}

	logger.InfoSkip(ctx, 1, "Analysis received",
		"provider_id", oa.id,
		"token", subject.TokenAddress,
		"score", analysis.Score,
		"confidence", analysis.Confidence,
	)

	return analysis, nil
}
