package wallet

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFundingAmount(t *testing.T) {
	tests := []struct {
		name     string
		strategy FundingStrategy
		balance  *big.Int
		cost     *big.Int
		target   *big.Int
		want     *big.Int
	}{
		{
			name:     "covered balance never funds",
			strategy: FundPerTx,
			balance:  big.NewInt(1000),
			cost:     big.NewInt(1000),
			want:     big.NewInt(0),
		},
		{
			name:     "no fund declines",
			strategy: NoFund,
			balance:  big.NewInt(1),
			cost:     big.NewInt(1000),
			want:     big.NewInt(0),
		},
		{
			name:     "per tx funds exact shortfall",
			strategy: FundPerTx,
			balance:  big.NewInt(200),
			cost:     big.NewInt(1000),
			want:     big.NewInt(800),
		},
		{
			name:     "per tx from zero",
			strategy: FundPerTx,
			balance:  big.NewInt(0),
			cost:     big.NewInt(1000),
			want:     big.NewInt(1000),
		},
		{
			name:     "threshold funds to target",
			strategy: FundWithThreshold,
			balance:  big.NewInt(200),
			cost:     big.NewInt(1000),
			target:   big.NewInt(5000),
			want:     big.NewInt(4800),
		},
		{
			name:     "threshold target at balance declines",
			strategy: FundWithThreshold,
			balance:  big.NewInt(200),
			cost:     big.NewInt(1000),
			target:   big.NewInt(200),
			want:     big.NewInt(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fundingAmount(tt.strategy, tt.balance, tt.cost, tt.target)
			require.Zero(t, tt.want.Cmp(got))
		})
	}
}

func TestBufferedCost(t *testing.T) {
	require.Zero(t, big.NewInt(120).Cmp(bufferedCost(big.NewInt(100))))
	require.Zero(t, big.NewInt(1200000000000000).Cmp(bufferedCost(big.NewInt(1000000000000000))))
	// Integer division rounds down.
	require.Zero(t, big.NewInt(1).Cmp(bufferedCost(big.NewInt(1))))
}
