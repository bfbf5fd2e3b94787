// Package eip1559 derives dynamic fee parameters for user operations and
// funding transfers from the chain head.
package eip1559

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// Bundlers commonly reject operations tipping below 1 gwei.
var minPriorityFeeWei = big.NewInt(1000000000)

// Backend is the subset of a chain client needed to price an operation.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// Fees holds the EIP-1559 fee pair attached to a user operation.
type Fees struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// SuggestFees reads the latest base fee and suggested tip and returns
// maxFeePerGas = 2*baseFee + tip, which keeps an operation includable
// through several consecutive full blocks. The tip is floored at 1 gwei.
func SuggestFees(ctx context.Context, backend Backend) (*Fees, error) {
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain head: %w", err)
	}
	if head.BaseFee == nil {
		return nil, fmt.Errorf("chain head %s has no base fee, dynamic fees unsupported", head.Number)
	}

	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas tip cap: %w", err)
	}
	if tip.Cmp(minPriorityFeeWei) < 0 {
		tip = new(big.Int).Set(minPriorityFeeWei)
	}

	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)

	return &Fees{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
	}, nil
}

// Bump scales a fee by (100+percent)/100 using integer arithmetic.
// A zero percent returns a copy of the input.
func Bump(fee *big.Int, percent int64) *big.Int {
	return new(big.Int).Div(
		new(big.Int).Mul(fee, big.NewInt(100+percent)),
		big.NewInt(100),
	)
}
