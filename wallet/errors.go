package wallet

import "fmt"

type walletError string

func (e walletError) Error() string {
	return string(e)
}

const (
	// ErrNotInitialized is returned by operations invoked before Initialize.
	ErrNotInitialized = walletError("wallet is not initialized")

	// ErrChainMismatch is returned when the node's chain id disagrees with
	// the configured one.
	ErrChainMismatch = walletError("node chain id does not match configured chain")

	// ErrUnsupportedChain is returned when the chain has no built-in
	// profile and the config carries no explicit contract addresses.
	ErrUnsupportedChain = walletError("chain has no built-in profile")

	// ErrUnsupportedEntryPoint is returned when the bundler does not serve
	// the configured entry point.
	ErrUnsupportedEntryPoint = walletError("bundler does not support the configured entry point")

	// ErrInsufficientBalance is returned when the account cannot cover the
	// buffered operation cost and the funding policy declines to top it up.
	ErrInsufficientBalance = walletError("account balance below buffered operation cost")
)

// Stage labels the pipeline step a send failed in.
type Stage string

const (
	StageEncode   Stage = "encode"
	StageFunding  Stage = "funding"
	StageBuild    Stage = "build"
	StageEstimate Stage = "estimate"
	StageSign     Stage = "sign"
	StageSubmit   Stage = "submit"
	StageReceipt  Stage = "receipt"
	StageExecute  Stage = "execute"
)

// OpError wraps a pipeline failure with the stage it happened in, so
// callers can tell a signing problem from a bundler rejection or an
// on-chain revert.
type OpError struct {
	Stage Stage
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("user operation failed at %s: %v", e.Stage, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &OpError{Stage: stage, Err: err}
}
