package localfast

import (
	"context"
	"strings"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Classifier is the sub-millisecond heuristic token scorer used on the
// sniping path, where remote models cannot meet the latency budget. It scores
// purely from the market snapshot: liquidity depth, LP lock, holder
// concentration, contract status and taxes. No I/O.
type Classifier struct {
	minLiquidityUSD float64
}

func New() *Classifier {
	return &Classifier{minLiquidityUSD: 25_000}
}

type signal struct {
	delta int
	flag  string
}

// Analyze scores the subject from its snapshot. It never blocks; the only
// nod to cancellation is a final context check so a caller whose budget
// already expired does not get a late result.
func (c *Classifier) Analyze(ctx context.Context, subject types.Subject) (types.Analysis, error) {
	snap := subject.Snapshot

	signals := []signal{}
	add := func(cond bool, delta int, flag string) {
		if cond {
			signals = append(signals, signal{delta: delta, flag: flag})
		}
	}

	add(snap.LiquidityUSD >= c.minLiquidityUSD, 10, "liquidity_ok")
	add(snap.LiquidityUSD < c.minLiquidityUSD, -15, "thin_liquidity")
	add(snap.LPLockedPct >= 80, 10, "lp_locked")
	add(snap.LPLockedPct < 30, -20, "lp_unlocked")
	add(snap.OwnershipRenounced, 10, "ownership_renounced")
	add(snap.ContractVerified, 5, "contract_verified")
	add(!snap.ContractVerified, -10, "contract_unverified")
	add(snap.TopHolderPct > 40, -20, "holder_concentration")
	add(snap.TopHolderPct > 0 && snap.TopHolderPct < 10, 10, "holders_distributed")
	add(snap.HolderCount >= 500, 5, "holder_base")
	add(snap.BuyTaxPct > 10, -15, "high_buy_tax")
	add(snap.SellTaxPct > 10, -15, "high_sell_tax")
	// A sell tax this high is the classic honeypot signature.
	add(snap.SellTaxPct > 25, -40, "honeypot_suspect")

	score := 50
	flags := make([]string, 0, len(signals))
	for _, s := range signals {
		score += s.delta
		flags = append(flags, s.flag)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	// Confidence grows with signal coverage but a heuristic never claims the
	// certainty of a full model pass.
	confidence := 0.4 + 0.03*float64(len(signals))
	if confidence > 0.75 {
		confidence = 0.75
	}

	if err := ctx.Err(); err != nil {
		return types.Analysis{}, err
	}

	return types.Analysis{
		Score:      score,
		Confidence: confidence,
		Rationale:  strings.Join(flags, ","),
	}, nil
}
