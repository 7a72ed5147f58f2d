package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// StaticSource fabricates deterministic market snapshots from the token
// address, for DRY_RUN mode and tests. The same address always yields the
// same snapshot shape, so runs are reproducible without any chain RPC.
type StaticSource struct{}

func NewStaticSource() *StaticSource {
	return &StaticSource{}
}

func (s *StaticSource) Snapshot(_ context.Context, tokenAddress string) (types.Subject, error) {
	sum := sha256.Sum256([]byte(strings.ToLower(tokenAddress)))
	r := func(i int, mod uint64) float64 {
		return float64(binary.BigEndian.Uint64(sum[i:i+8]) % mod)
	}

	snap := types.MarketSnapshot{
		PriceUSD:           r(0, 10_000)/1000 + 0.0001,
		LiquidityUSD:       r(8, 500_000),
		Volume24hUSD:       r(16, 2_000_000),
		PriceChange1hPct:   r(24, 400)/10 - 20, // -20% .. +20%
		HolderCount:        int(r(0, 5_000)),
		TopHolderPct:       r(8, 60),
		LPLockedPct:        r(16, 100),
		BuyTaxPct:          r(24, 15),
		SellTaxPct:         r(0, 30),
		ContractVerified:   sum[1]%2 == 0,
		OwnershipRenounced: sum[2]%2 == 0,
	}

	return types.Subject{
		Kind:         types.SubjectToken,
		TokenAddress: tokenAddress,
		ContractHash: "0x" + strings.ToLower(strings.TrimPrefix(tokenAddress, "0x")),
		Snapshot:     snap,
		ObservedAt:   time.Now(),
	}, nil
}
