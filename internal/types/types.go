package types

import (
	"fmt"
	"time"
)

// SubjectKind tells the registry what is being scored.
type SubjectKind string

const (
	SubjectToken  SubjectKind = "TOKEN"
	SubjectMarket SubjectKind = "MARKET"
)

// VolatilityClass is the coarse market-state classification used to scale
// cache TTLs and execution parameters.
type VolatilityClass string

const (
	VolatilityLow    VolatilityClass = "LOW"
	VolatilityNormal VolatilityClass = "NORMAL"
	VolatilityHigh   VolatilityClass = "HIGH"
)

// MarketSnapshot captures the on-chain and market state of a token pair at
// observation time. All fields are read-only inputs to the analyzers.
type MarketSnapshot struct {
	PriceUSD           float64 `json:"price_usd"`
	LiquidityUSD       float64 `json:"liquidity_usd"`
	Volume24hUSD       float64 `json:"volume_24h_usd"`
	PriceChange1hPct   float64 `json:"price_change_1h_pct"`
	HolderCount        int     `json:"holder_count"`
	TopHolderPct       float64 `json:"top_holder_pct"`
	LPLockedPct        float64 `json:"lp_locked_pct"`
	BuyTaxPct          float64 `json:"buy_tax_pct"`
	SellTaxPct         float64 `json:"sell_tax_pct"`
	ContractVerified   bool    `json:"contract_verified"`
	OwnershipRenounced bool    `json:"ownership_renounced"`
}

// Subject is the token/pair being scored. Construct once, do not mutate;
// concurrent decisions share Subject values by copy.
type Subject struct {
	Kind         SubjectKind    `json:"kind"`
	TokenAddress string         `json:"token_address"`
	PairAddress  string         `json:"pair_address,omitempty"`
	ContractHash string         `json:"contract_hash,omitempty"`
	Snapshot     MarketSnapshot `json:"snapshot"`
	Context      map[string]any `json:"context,omitempty"`
	ObservedAt   time.Time      `json:"observed_at"`
}

// KeyBucket is the coarse timestamp bucket baked into cache keys, so two
// snapshots of the same token taken close together share a cached score.
const KeyBucket = 30 * time.Second

// Key returns the content-derived cache key for the subject.
func (s Subject) Key() string {
	hash := s.ContractHash
	if len(hash) > 10 {
		hash = hash[:10]
	}
	return fmt.Sprintf("%s:%s:%s:%d", s.Kind, s.TokenAddress, hash,
		s.ObservedAt.Unix()/int64(KeyBucket/time.Second))
}

// Volatility classifies the snapshot from its short-window price move.
func (s MarketSnapshot) Volatility() VolatilityClass {
	move := s.PriceChange1hPct
	if move < 0 {
		move = -move
	}
	switch {
	case move >= 10:
		return VolatilityHigh
	case move < 2:
		return VolatilityLow
	default:
		return VolatilityNormal
	}
}

// Analysis is the raw output of one provider call, before the orchestrator
// normalizes it into a DecisionRecord.
type Analysis struct {
	Score      int     `json:"score"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// CachedProviderID is recorded on DecisionRecords served from the score cache.
const CachedProviderID = "cached"

// DecisionRecord is the normalized result of analysis. Score and Confidence
// are always populated together; a record is never partially built.
type DecisionRecord struct {
	Score      int             `json:"score"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
	ProviderID string          `json:"provider_id"`
	ProducedAt time.Time       `json:"produced_at"`
	Volatility VolatilityClass `json:"volatility"`
}

// ExecutionParams is what the gate hands the trading engine: whether to take
// the opportunity at all, and with what slippage/timeout envelope.
type ExecutionParams struct {
	Admit       bool          `json:"admit"`
	Review      bool          `json:"review"`
	SlippageBps float64       `json:"slippage_bps"`
	Timeout     time.Duration `json:"timeout"`
}

// StepResult is one pass of the scan loop over a watchlist token.
type StepResult struct {
	TokenAddress string          `json:"token_address"`
	Record       DecisionRecord  `json:"record"`
	Params       ExecutionParams `json:"params"`
	Skipped      bool            `json:"skipped"`
	SkipReason   string          `json:"skip_reason,omitempty"`
	Alerted      bool            `json:"alerted"`
}

// Strategy selects how the registry picks providers. The zero value is the
// ordered automatic fallback; Explicit pins one provider with no fallback.
type Strategy struct {
	Provider string
}

var Auto = Strategy{}

func Explicit(providerID string) Strategy {
	return Strategy{Provider: providerID}
}

func (s Strategy) IsAuto() bool { return s.Provider == "" }

func (s Strategy) String() string {
	if s.IsAuto() {
		return "auto"
	}
	return "explicit:" + s.Provider
}
