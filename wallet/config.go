package wallet

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

// Defaults applied by Config.Normalize.
const (
	DefaultFeeBumpPercent = 0
	DefaultConfirmations  = 1
)

var maxNonceKey = new(big.Int).Lsh(big.NewInt(1), 192)

// Config describes one smart account: the chain it lives on, the endpoints
// to reach it through, and the funding policy applied before each send.
type Config struct {
	// OwnerPrivateKey is the hex-encoded EOA key that owns the account and
	// funds it.
	OwnerPrivateKey string `validate:"required"`

	// ChainID is optional. Zero means the node's detected chain id is
	// authoritative; a non-zero value is checked against it at Initialize.
	ChainID    int64  `validate:"gte=0"`
	NodeURL    string `validate:"required,url"`
	BundlerURL string `validate:"required,url"`

	// EntryPoint and Factory override the built-in profile of the detected
	// chain. Chains without a profile require both.
	EntryPoint common.Address
	Factory    common.Address

	// Salt feeds the factory's counterfactual address derivation. Nil
	// means zero.
	Salt *big.Int

	// NonceKey selects the entry-point nonce sequence, below 2^192.
	NonceKey *big.Int

	// Funding names the strategy: "none", "per-tx" or "threshold".
	Funding string `validate:"required,funding"`

	// TargetBalance is the refill target in wei, required for "threshold".
	TargetBalance *big.Int

	// FeeBumpPercent inflates suggested fees by 0 to 200 percent.
	FeeBumpPercent int64 `validate:"gte=0,lte=200"`

	// ReceiptAttempts and ReceiptInterval shape bundler receipt polling.
	// Zero values fall back to the bundler package defaults.
	ReceiptAttempts int
	ReceiptInterval time.Duration

	// Confirmations is the number of blocks a funding transfer waits for.
	Confirmations uint64
}

// Custom validation for the Funding field.
func validFundingStrategy(fl validator.FieldLevel) bool {
	_, err := ParseFundingStrategy(fl.Field().String())
	return err == nil
}

// NewValidator returns a validator with the wallet's custom rules
// registered.
func NewValidator() (*validator.Validate, error) {
	v := validator.New()

	if err := v.RegisterValidation("funding", validFundingStrategy); err != nil {
		return nil, fmt.Errorf("failed to register validator for funding: %w", err)
	}

	return v, nil
}

// Validate checks the config and applies defaults in place.
func (c *Config) Validate() error {
	v, err := NewValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid wallet config: %w", err)
	}

	strategy, err := ParseFundingStrategy(c.Funding)
	if err != nil {
		return err
	}
	if strategy == FundWithThreshold {
		if c.TargetBalance == nil || c.TargetBalance.Sign() <= 0 {
			return fmt.Errorf("threshold funding requires a positive target balance")
		}
	} else if c.TargetBalance != nil {
		return fmt.Errorf("target balance only applies to threshold funding")
	}

	if c.NonceKey != nil {
		if c.NonceKey.Sign() < 0 || c.NonceKey.Cmp(maxNonceKey) >= 0 {
			return fmt.Errorf("nonce key must fit in 192 bits")
		}
	}

	if c.Salt == nil {
		c.Salt = new(big.Int)
	}
	if c.NonceKey == nil {
		c.NonceKey = new(big.Int)
	}
	if c.Confirmations == 0 {
		c.Confirmations = DefaultConfirmations
	}

	return nil
}

// Strategy returns the parsed funding strategy. Call after Validate.
func (c *Config) Strategy() FundingStrategy {
	strategy, _ := ParseFundingStrategy(c.Funding)
	return strategy
}
