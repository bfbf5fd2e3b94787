// Package chainio talks to an Ethereum node for the handful of direct reads
// and writes a smart-account wallet needs: counterfactual address
// resolution, deployment and balance checks, entry-point nonces, and native
// transfers that fund the account.
package chainio

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/blndgs/smartaccount/eip1559"
)

const transferGasLimit = 21000

// Funding transfers poll once per interval with a bounded budget, mirroring
// the bundler receipt wait.
const fundingReceiptAttempts = 60

// Backend is the subset of ethclient.Client the wallet uses. It exists so
// tests can substitute a fake node.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ Backend = (*ethclient.Client)(nil)

// TxSigner signs raw transactions for funding transfers.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client wraps a node backend with the wallet's chain operations.
type Client struct {
	backend      Backend
	logger       zerolog.Logger
	pollInterval time.Duration
}

// New returns a Client over the given backend.
func New(backend Backend, logger zerolog.Logger) *Client {
	return &Client{
		backend:      backend,
		logger:       logger.With().Str("component", "chainio").Logger(),
		pollInterval: time.Second,
	}
}

// Dial connects to the node at rawURL.
func Dial(ctx context.Context, rawURL string, logger zerolog.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node at %s: %w", rawURL, err)
	}
	return New(ec, logger), nil
}

// Backend exposes the underlying node backend.
func (c *Client) Backend() Backend { return c.backend }

// ChainID returns the connected chain's id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.backend.ChainID(ctx)
}

// SuggestFees derives an EIP-1559 fee pair from the current chain head.
func (c *Client) SuggestFees(ctx context.Context) (*eip1559.Fees, error) {
	return eip1559.SuggestFees(ctx, c.backend)
}

// IsDeployed reports whether the address has contract code.
func (c *Client) IsDeployed(ctx context.Context, account common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, account, nil)
	if err != nil {
		return false, fmt.Errorf("failed to fetch code at %s: %w", account, err)
	}
	return len(code) > 0, nil
}

// GetBalance returns the native balance of the account.
func (c *Client) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance of %s: %w", account, err)
	}
	return balance, nil
}

// ResolveAccountAddress asks the factory for the counterfactual account
// address of (owner, salt) via its getAddress view. The result is the same
// before and after deployment.
func (c *Client) ResolveAccountAddress(ctx context.Context, factory, owner common.Address, salt *big.Int) (common.Address, error) {
	if salt == nil {
		salt = big.NewInt(0)
	}

	input, err := accountFactoryABIParsed.Pack("getAddress", owner, salt)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to encode getAddress call: %w", err)
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: input}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("getAddress call to factory %s failed: %w", factory, err)
	}

	results, err := accountFactoryABIParsed.Unpack("getAddress", output)
	if err != nil {
		return common.Address{}, fmt.Errorf("malformed getAddress response from factory %s: %w", factory, err)
	}

	account, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("malformed getAddress response from factory %s", factory)
	}

	c.logger.Debug().
		Str("owner", owner.Hex()).
		Str("account", account.Hex()).
		Msg("resolved account address")

	return account, nil
}

// GetNonce reads the account's next nonce under the given key from the
// entry point. The entry point returns zero for accounts it has never seen,
// including undeployed ones.
func (c *Client) GetNonce(ctx context.Context, entryPoint, account common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = big.NewInt(0)
	}

	input, err := entryPointABIParsed.Pack("getNonce", account, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode getNonce call: %w", err)
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &entryPoint, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("getNonce call to entry point %s failed: %w", entryPoint, err)
	}

	results, err := entryPointABIParsed.Unpack("getNonce", output)
	if err != nil {
		return nil, fmt.Errorf("malformed getNonce response from entry point %s: %w", entryPoint, err)
	}

	nonce, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("malformed getNonce response from entry point %s", entryPoint)
	}
	return nonce, nil
}

// TransferNative sends amount wei from the signer EOA to the recipient and
// waits for the transaction to land plus the requested number of
// confirmations. It returns the transaction hash once confirmed.
func (c *Client) TransferNative(ctx context.Context, signer TxSigner, to common.Address, amount *big.Int, confirmations uint64) (common.Hash, error) {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}

	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch chain head: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       transferGasLimit,
		To:        &to,
		Value:     amount,
	})

	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send funding transaction: %w", err)
	}

	c.logger.Info().
		Str("tx", signed.Hash().Hex()).
		Str("to", to.Hex()).
		Str("amount", amount.String()).
		Msg("funding transfer sent")

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return common.Hash{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, fmt.Errorf("funding transaction %s reverted", signed.Hash())
	}

	if err := c.waitConfirmations(ctx, receipt.BlockNumber.Uint64(), confirmations); err != nil {
		return common.Hash{}, err
	}

	return signed.Hash(), nil
}

func (c *Client) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for i := 0; i < fundingReceiptAttempts; i++ {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return nil, fmt.Errorf("no receipt for funding transaction %s after %d attempts", txHash, fundingReceiptAttempts)
}

func (c *Client) waitConfirmations(ctx context.Context, minedAt, confirmations uint64) error {
	if confirmations <= 1 {
		return nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		current, err := c.backend.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch block number: %w", err)
		}
		if current >= minedAt+confirmations-1 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
