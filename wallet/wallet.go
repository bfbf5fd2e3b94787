// Package wallet orchestrates an ERC-4337 smart account over a node, a
// bundler, and an owner key: counterfactual address resolution, funding
// policy, user operation construction, signing, submission, and receipt
// tracking.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/blndgs/smartaccount/bundler"
	"github.com/blndgs/smartaccount/chainio"
	"github.com/blndgs/smartaccount/eip1559"
	"github.com/blndgs/smartaccount/signer"
	"github.com/blndgs/smartaccount/userop"
)

// Verification gas for an already deployed SimpleAccount is stable, so the
// bundler's estimate is replaced by a pinned limit. Deployment operations
// keep the estimate since initCode execution dominates.
const deployedVerificationGas = 100000

// Cost buffer applied before funding checks, 20 percent over the maximum
// prefund.
const (
	costBufferNum = 120
	costBufferDen = 100
)

// ChainClient is the node-facing surface the wallet needs. Satisfied by
// *chainio.Client.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	IsDeployed(ctx context.Context, account common.Address) (bool, error)
	GetBalance(ctx context.Context, account common.Address) (*big.Int, error)
	ResolveAccountAddress(ctx context.Context, factory, owner common.Address, salt *big.Int) (common.Address, error)
	GetNonce(ctx context.Context, entryPoint, account common.Address, key *big.Int) (*big.Int, error)
	SuggestFees(ctx context.Context) (*eip1559.Fees, error)
	TransferNative(ctx context.Context, txSigner chainio.TxSigner, to common.Address, amount *big.Int, confirmations uint64) (common.Hash, error)
}

var _ ChainClient = (*chainio.Client)(nil)

// BundlerClient is the bundler-facing surface the wallet needs. Satisfied
// by *bundler.Client.
type BundlerClient interface {
	SupportedEntryPoints(ctx context.Context) ([]common.Address, error)
	EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (*bundler.GasEstimate, error)
	SendUserOperation(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (common.Hash, error)
	WaitForReceipt(ctx context.Context, userOpHash common.Hash, attempts int, interval time.Duration) (*bundler.Receipt, error)
}

var _ BundlerClient = (*bundler.Client)(nil)

// Result reports a completed send: the operation hash the bundler tracked
// it under, the enclosing transaction, and the full receipt.
type Result struct {
	UserOpHash common.Hash
	TxHash     common.Hash
	Receipt    *bundler.Receipt
}

// SmartAccount drives one counterfactual account. Methods are not safe for
// concurrent use; callers serialize sends per account, which the entry
// point nonce would force anyway.
type SmartAccount struct {
	cfg     Config
	owner   *signer.Signer
	chain   ChainClient
	bundler BundlerClient
	logger  zerolog.Logger

	chainID     *big.Int
	entryPoint  common.Address
	factory     common.Address
	address     common.Address
	deployed    bool
	initialized bool
}

// New builds a SmartAccount from the config. Call Initialize before any
// chain-touching method.
func New(cfg Config, logger zerolog.Logger) (*SmartAccount, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	owner, err := signer.New(cfg.OwnerPrivateKey)
	if err != nil {
		return nil, err
	}

	return &SmartAccount{
		cfg:   cfg,
		owner: owner,
		logger: logger.With().
			Str("component", "wallet").
			Logger(),
	}, nil
}

// Initialize connects to the node and bundler, detects the chain, verifies
// the bundler serves the entry point, and resolves the account address. The
// node's chain id is authoritative; a configured id only acts as an
// expected-id check, and the detected id keys the built-in profile lookup
// when the config leaves the contract addresses unset.
func (sa *SmartAccount) Initialize(ctx context.Context) error {
	if sa.chain == nil {
		chain, err := chainio.Dial(ctx, sa.cfg.NodeURL, sa.logger)
		if err != nil {
			return err
		}
		sa.chain = chain
	}
	if sa.bundler == nil {
		bc, err := bundler.Dial(ctx, sa.cfg.BundlerURL, sa.logger)
		if err != nil {
			return err
		}
		sa.bundler = bc
	}

	chainID, err := sa.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch node chain id: %w", err)
	}
	if sa.cfg.ChainID != 0 && chainID.Cmp(big.NewInt(sa.cfg.ChainID)) != 0 {
		return fmt.Errorf("%w: node reports %s, config expects %d", ErrChainMismatch, chainID, sa.cfg.ChainID)
	}
	sa.chainID = chainID
	sa.logger = sa.logger.With().Int64("chain_id", chainID.Int64()).Logger()

	sa.entryPoint = sa.cfg.EntryPoint
	sa.factory = sa.cfg.Factory
	if sa.entryPoint == (common.Address{}) || sa.factory == (common.Address{}) {
		profile, ok := KnownChain(chainID.Int64())
		if !ok {
			return fmt.Errorf("%w: chain %s needs explicit entry point and factory addresses", ErrUnsupportedChain, chainID)
		}
		if sa.entryPoint == (common.Address{}) {
			sa.entryPoint = profile.EntryPoint
		}
		if sa.factory == (common.Address{}) {
			sa.factory = profile.Factory
		}
	}

	entryPoints, err := sa.bundler.SupportedEntryPoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch supported entry points: %w", err)
	}
	supported := false
	for _, ep := range entryPoints {
		if ep == sa.entryPoint {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: %s", ErrUnsupportedEntryPoint, sa.entryPoint)
	}

	sa.address, err = sa.chain.ResolveAccountAddress(ctx, sa.factory, sa.owner.Address(), sa.cfg.Salt)
	if err != nil {
		return err
	}

	sa.deployed, err = sa.chain.IsDeployed(ctx, sa.address)
	if err != nil {
		return err
	}

	sa.initialized = true
	sa.logger.Info().
		Str("account", sa.address.Hex()).
		Str("owner", sa.owner.Address().Hex()).
		Bool("deployed", sa.deployed).
		Msg("smart account initialized")

	return nil
}

// Address returns the smart account address. Zero before Initialize.
func (sa *SmartAccount) Address() common.Address { return sa.address }

// Owner returns the owner EOA address.
func (sa *SmartAccount) Owner() common.Address { return sa.owner.Address() }

// ChainID returns the detected chain id. Nil before Initialize.
func (sa *SmartAccount) ChainID() *big.Int { return sa.chainID }

// IsDeployed reports whether the account contract existed as of the last
// check.
func (sa *SmartAccount) IsDeployed() bool { return sa.deployed }

// GetBalance returns the account's native balance.
func (sa *SmartAccount) GetBalance(ctx context.Context) (*big.Int, error) {
	if !sa.initialized {
		return nil, ErrNotInitialized
	}
	return sa.chain.GetBalance(ctx, sa.address)
}

// SendTransaction executes one call through the account and waits for its
// receipt.
func (sa *SmartAccount) SendTransaction(ctx context.Context, call chainio.Call) (*Result, error) {
	callData, err := chainio.EncodeExecute(call)
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}
	return sa.send(ctx, callData)
}

// SendBatch executes the calls atomically in order through a single user
// operation.
func (sa *SmartAccount) SendBatch(ctx context.Context, calls []chainio.Call) (*Result, error) {
	callData, err := chainio.EncodeExecuteBatch(calls)
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}
	return sa.send(ctx, callData)
}

// EstimateCost returns the buffered worst-case wei cost of executing the
// calls, the amount the funding policy is checked against.
func (sa *SmartAccount) EstimateCost(ctx context.Context, calls []chainio.Call) (*big.Int, error) {
	if !sa.initialized {
		return nil, ErrNotInitialized
	}

	var callData []byte
	var err error
	if len(calls) == 1 {
		callData, err = chainio.EncodeExecute(calls[0])
	} else {
		callData, err = chainio.EncodeExecuteBatch(calls)
	}
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}

	op, err := sa.buildEstimatedOp(ctx, callData)
	if err != nil {
		return nil, err
	}
	return bufferedCost(op.GetMaxPrefund()), nil
}

func (sa *SmartAccount) send(ctx context.Context, callData []byte) (*Result, error) {
	if !sa.initialized {
		return nil, ErrNotInitialized
	}

	if err := sa.ensureFunds(ctx, callData); err != nil {
		return nil, err
	}

	// Rebuild after funding so nonce and fees are current.
	op, err := sa.buildEstimatedOp(ctx, callData)
	if err != nil {
		return nil, err
	}

	if _, err := sa.owner.SignUserOp(op, sa.entryPoint, sa.chainID); err != nil {
		return nil, stageErr(StageSign, err)
	}

	userOpHash, err := sa.bundler.SendUserOperation(ctx, op, sa.entryPoint)
	if err != nil {
		return nil, stageErr(StageSubmit, err)
	}

	receipt, err := sa.bundler.WaitForReceipt(ctx, userOpHash, sa.cfg.ReceiptAttempts, sa.cfg.ReceiptInterval)
	if err != nil {
		return nil, stageErr(StageReceipt, err)
	}

	result := &Result{UserOpHash: userOpHash, Receipt: receipt}
	if receipt.Receipt != nil {
		result.TxHash = receipt.Receipt.TxHash
	}

	// Any mined receipt for an initCode op means deployment ran, even when
	// the inner call reverted. Re-probe so the next send skips initCode.
	if len(op.InitCode) > 0 {
		if receipt.Success {
			sa.deployed = true
		} else if deployed, probeErr := sa.chain.IsDeployed(ctx, sa.address); probeErr == nil {
			sa.deployed = deployed
		}
	}

	if !receipt.Success {
		reason := receipt.Reason
		if reason == "" {
			reason = "execution reverted"
		}
		return result, stageErr(StageExecute, fmt.Errorf("user operation %s failed on chain: %s", userOpHash, reason))
	}

	sa.logger.Info().
		Str("userOpHash", userOpHash.Hex()).
		Str("tx", result.TxHash.Hex()).
		Str("nonce", receipt.NonceBig().String()).
		Msg("user operation confirmed")

	return result, nil
}

// ensureFunds applies the funding policy: estimate the buffered cost,
// compare against the balance, and top up from the owner EOA when the
// strategy allows it.
func (sa *SmartAccount) ensureFunds(ctx context.Context, callData []byte) error {
	op, err := sa.buildEstimatedOp(ctx, callData)
	if err != nil {
		return err
	}
	needed := bufferedCost(op.GetMaxPrefund())

	balance, err := sa.chain.GetBalance(ctx, sa.address)
	if err != nil {
		return stageErr(StageFunding, err)
	}
	if balance.Cmp(needed) >= 0 {
		return nil
	}

	amount := fundingAmount(sa.cfg.Strategy(), balance, needed, sa.cfg.TargetBalance)
	if amount.Sign() == 0 {
		return stageErr(StageFunding, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, needed))
	}

	sa.logger.Info().
		Str("strategy", sa.cfg.Strategy().String()).
		Str("amount", amount.String()).
		Msg("funding smart account")

	if _, err := sa.chain.TransferNative(ctx, sa.owner, sa.address, amount, sa.cfg.Confirmations); err != nil {
		return stageErr(StageFunding, err)
	}

	balance, err = sa.chain.GetBalance(ctx, sa.address)
	if err != nil {
		return stageErr(StageFunding, err)
	}
	if balance.Cmp(needed) < 0 {
		return stageErr(StageFunding, fmt.Errorf("%w after funding: have %s, need %s", ErrInsufficientBalance, balance, needed))
	}
	return nil
}

// buildEstimatedOp assembles a draft operation with a fresh nonce, current
// fees and a dummy signature, then fills its gas fields from the bundler's
// estimate.
func (sa *SmartAccount) buildEstimatedOp(ctx context.Context, callData []byte) (*userop.UserOperation, error) {
	nonce, err := sa.chain.GetNonce(ctx, sa.entryPoint, sa.address, sa.cfg.NonceKey)
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}

	initCode := []byte{}
	if !sa.deployed {
		initCode, err = chainio.EncodeInitCode(sa.factory, sa.owner.Address(), sa.cfg.Salt)
		if err != nil {
			return nil, stageErr(StageBuild, err)
		}
	}

	fees, err := sa.chain.SuggestFees(ctx)
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}

	op := &userop.UserOperation{
		Sender:               sa.address,
		Nonce:                nonce,
		InitCode:             initCode,
		CallData:             callData,
		CallGasLimit:         new(big.Int),
		VerificationGasLimit: new(big.Int),
		PreVerificationGas:   new(big.Int),
		MaxFeePerGas:         eip1559.Bump(fees.MaxFeePerGas, sa.cfg.FeeBumpPercent),
		MaxPriorityFeePerGas: eip1559.Bump(fees.MaxPriorityFeePerGas, sa.cfg.FeeBumpPercent),
		PaymasterAndData:     []byte{},
		Signature:            signer.DummySignatureBytes(),
	}

	estimate, err := sa.bundler.EstimateUserOperationGas(ctx, op, sa.entryPoint)
	if err != nil {
		return nil, stageErr(StageEstimate, err)
	}

	op.CallGasLimit = (*big.Int)(estimate.CallGasLimit)
	op.PreVerificationGas = (*big.Int)(estimate.PreVerificationGas)
	if sa.deployed {
		op.VerificationGasLimit = big.NewInt(deployedVerificationGas)
	} else {
		op.VerificationGasLimit = (*big.Int)(estimate.VerificationGasLimit)
	}

	return op, nil
}

func bufferedCost(cost *big.Int) *big.Int {
	return new(big.Int).Div(
		new(big.Int).Mul(cost, big.NewInt(costBufferNum)),
		big.NewInt(costBufferDen),
	)
}
