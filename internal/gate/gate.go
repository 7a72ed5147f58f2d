package gate

import (
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/store"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Config holds the score bands and volatility multipliers. The zero value is
// not usable; build one with FromStore or DefaultConfig.
type Config struct {
	AdmitScore          int
	ReviewScore         int
	BaseSlippageBps     float64
	ReviewSlippageBps   float64
	BaseTimeout         time.Duration
	HighVolSlippageMult float64
	HighVolTimeoutMult  float64
}

// DefaultConfig mirrors the config-file defaults.
func DefaultConfig() Config {
	return Config{
		AdmitScore:          80,
		ReviewScore:         50,
		BaseSlippageBps:     50,
		ReviewSlippageBps:   150,
		BaseTimeout:         10 * time.Second,
		HighVolSlippageMult: 2.0,
		HighVolTimeoutMult:  0.5,
	}
}

// FromStore builds gate config from the loaded configuration file.
func FromStore(cfg *store.Config) Config {
	return Config{
		AdmitScore:          cfg.Gate.AdmitScore,
		ReviewScore:         cfg.Gate.ReviewScore,
		BaseSlippageBps:     cfg.Gate.BaseSlippageBps,
		ReviewSlippageBps:   cfg.Gate.ReviewSlippageBps,
		BaseTimeout:         cfg.Gate.BaseTimeout,
		HighVolSlippageMult: cfg.Gate.HighVolSlippageMult,
		HighVolTimeoutMult:  cfg.Gate.HighVolTimeoutMult,
	}
}

// Gate maps a decision record plus the current volatility classification to
// execution parameters. It is a pure function bank: no state, no I/O, and the
// same inputs always yield identical outputs, so the trading path can be
// tested without mocking a single provider.
type Gate struct {
	cfg Config
}

func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate applies the score bands, then the volatility multipliers.
//
// Bands: score at or above AdmitScore admits with tight slippage; the band
// between ReviewScore and AdmitScore admits with wider slippage and flags the
// trade for secondary review; below ReviewScore rejects. HIGH volatility
// widens slippage tolerance and shortens the timeout regardless of band,
// trading price precision for speed; LOW and NORMAL use baseline values.
func (g *Gate) Evaluate(rec types.DecisionRecord, vol types.VolatilityClass) types.ExecutionParams {
	var params types.ExecutionParams

	switch {
	case rec.Score >= g.cfg.AdmitScore:
		params = types.ExecutionParams{
			Admit:       true,
			SlippageBps: g.cfg.BaseSlippageBps,
			Timeout:     g.cfg.BaseTimeout,
		}
	case rec.Score >= g.cfg.ReviewScore:
		params = types.ExecutionParams{
			Admit:       true,
			Review:      true,
			SlippageBps: g.cfg.ReviewSlippageBps,
			Timeout:     g.cfg.BaseTimeout,
		}
	default:
		return types.ExecutionParams{}
	}

	if vol == types.VolatilityHigh {
		params.SlippageBps *= g.cfg.HighVolSlippageMult
		params.Timeout = time.Duration(float64(params.Timeout) * g.cfg.HighVolTimeoutMult)
	}
	return params
}
