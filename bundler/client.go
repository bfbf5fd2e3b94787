// Package bundler implements the JSON-RPC client side of the ERC-4337
// bundler API: gas estimation, submission, and receipt polling for user
// operations.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/blndgs/smartaccount/userop"
)

const (
	methodEstimateGas          = "eth_estimateUserOperationGas"
	methodSendUserOperation    = "eth_sendUserOperation"
	methodGetReceipt           = "eth_getUserOperationReceipt"
	methodSupportedEntryPoints = "eth_supportedEntryPoints"
)

// Receipt polling defaults, roughly one minute end to end.
const (
	DefaultReceiptAttempts = 30
	DefaultReceiptInterval = 2 * time.Second
)

// ErrReceiptTimeout reports that the bundler never surfaced a receipt
// within the polling window. The operation may still land later.
var ErrReceiptTimeout = errors.New("timed out waiting for user operation receipt")

// rpcBackend is the slice of rpc.Client the bundler client uses.
type rpcBackend interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// GasEstimate is the bundler's response to eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
}

// Receipt is the bundler's view of an included user operation. Success
// reflects the account-level execution outcome, which can be false even
// when the enclosing transaction succeeded.
type Receipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Success       bool           `json:"success"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Reason        string         `json:"reason"`
	Receipt       *types.Receipt `json:"receipt"`
}

// Client talks to one ERC-4337 bundler endpoint.
type Client struct {
	rpc    rpcBackend
	logger zerolog.Logger
}

// New wraps an existing RPC backend.
func New(backend rpcBackend, logger zerolog.Logger) *Client {
	return &Client{
		rpc:    backend,
		logger: logger.With().Str("component", "bundler").Logger(),
	}
}

// Dial connects to the bundler at rawURL.
func Dial(ctx context.Context, rawURL string, logger zerolog.Logger) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bundler at %s: %w", rawURL, err)
	}
	return New(rc, logger), nil
}

// SupportedEntryPoints returns the entry point addresses the bundler
// accepts operations for.
func (c *Client) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := c.rpc.CallContext(ctx, &out, methodSupportedEntryPoints); err != nil {
		return nil, fmt.Errorf("%s failed: %w", methodSupportedEntryPoints, err)
	}
	return out, nil
}

// EstimateUserOperationGas asks the bundler to simulate the operation and
// return its three gas components. The operation should carry a dummy
// signature so validation cost is realistic.
func (c *Client) EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (*GasEstimate, error) {
	var out GasEstimate
	if err := c.rpc.CallContext(ctx, &out, methodEstimateGas, op, entryPoint); err != nil {
		return nil, fmt.Errorf("%s failed: %w", methodEstimateGas, err)
	}
	if out.PreVerificationGas == nil || out.VerificationGasLimit == nil || out.CallGasLimit == nil {
		return nil, fmt.Errorf("%s returned incomplete estimate", methodEstimateGas)
	}
	return &out, nil
}

// SendUserOperation submits a signed operation and returns the user
// operation hash the bundler acknowledged it under.
func (c *Client) SendUserOperation(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (common.Hash, error) {
	var out common.Hash
	if err := c.rpc.CallContext(ctx, &out, methodSendUserOperation, op, entryPoint); err != nil {
		return common.Hash{}, fmt.Errorf("%s failed: %w", methodSendUserOperation, err)
	}

	c.logger.Info().
		Str("userOpHash", out.Hex()).
		Str("sender", op.Sender.Hex()).
		Msg("user operation submitted")

	return out, nil
}

// GetUserOperationReceipt fetches the receipt for a submitted operation.
// A (nil, nil) return means the bundler has not included it yet.
func (c *Client) GetUserOperationReceipt(ctx context.Context, userOpHash common.Hash) (*Receipt, error) {
	var out *Receipt
	if err := c.rpc.CallContext(ctx, &out, methodGetReceipt, userOpHash); err != nil {
		return nil, fmt.Errorf("%s failed: %w", methodGetReceipt, err)
	}
	return out, nil
}

// WaitForReceipt polls for the operation's receipt until it appears, the
// attempts run out, or the context is cancelled. Transport errors during
// polling are treated as transient. Zero attempts or interval fall back to
// the package defaults.
func (c *Client) WaitForReceipt(ctx context.Context, userOpHash common.Hash, attempts int, interval time.Duration) (*Receipt, error) {
	if attempts <= 0 {
		attempts = DefaultReceiptAttempts
	}
	if interval <= 0 {
		interval = DefaultReceiptInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		timer.Reset(interval)

		receipt, err := c.GetUserOperationReceipt(ctx, userOpHash)
		if err != nil {
			c.logger.Debug().
				Err(err).
				Int("attempt", i+1).
				Msg("receipt poll failed, retrying")
			continue
		}
		if receipt != nil {
			return receipt, nil
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", ErrReceiptTimeout, userOpHash, attempts)
}

// NonceBig returns the receipt nonce as a big.Int, zero when absent.
func (r *Receipt) NonceBig() *big.Int {
	if r.Nonce == nil {
		return new(big.Int)
	}
	return (*big.Int)(r.Nonce)
}
