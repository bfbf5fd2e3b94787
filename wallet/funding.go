package wallet

import (
	"fmt"
	"math/big"
)

// FundingStrategy selects how the owner EOA tops up the smart account
// before an operation is submitted.
type FundingStrategy uint8

const (
	// NoFund never transfers. Sends fail when the balance is short.
	NoFund FundingStrategy = iota

	// FundPerTx transfers exactly the shortfall before each send that
	// needs it.
	FundPerTx

	// FundWithThreshold refills the account to a target balance whenever
	// it cannot cover the buffered cost.
	FundWithThreshold
)

// ParseFundingStrategy maps a configuration string onto a strategy.
func ParseFundingStrategy(s string) (FundingStrategy, error) {
	switch s {
	case "none":
		return NoFund, nil
	case "per-tx":
		return FundPerTx, nil
	case "threshold":
		return FundWithThreshold, nil
	default:
		return NoFund, fmt.Errorf("unknown funding strategy %q", s)
	}
}

func (s FundingStrategy) String() string {
	switch s {
	case NoFund:
		return "none"
	case FundPerTx:
		return "per-tx"
	case FundWithThreshold:
		return "threshold"
	default:
		return fmt.Sprintf("FundingStrategy(%d)", uint8(s))
	}
}

// fundingAmount returns the wei to transfer for the given strategy when the
// account balance cannot cover the buffered cost. Zero means no transfer.
func fundingAmount(strategy FundingStrategy, balance, bufferedCost, target *big.Int) *big.Int {
	if balance.Cmp(bufferedCost) >= 0 {
		return new(big.Int)
	}

	switch strategy {
	case FundPerTx:
		return new(big.Int).Sub(bufferedCost, balance)
	case FundWithThreshold:
		if target.Cmp(balance) <= 0 {
			return new(big.Int)
		}
		return new(big.Int).Sub(target, balance)
	default:
		return new(big.Int)
	}
}
