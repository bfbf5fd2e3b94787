package userop

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	addressT = abi.Type{T: abi.AddressTy, Size: 20}
	uint256T = abi.Type{T: abi.UintTy, Size: 256}
	bytes32T = abi.Type{T: abi.FixedBytesTy, Size: 32}
)

// PackForSignature ABI-encodes the operation the way the entry point does
// when computing the user operation hash: byte fields are replaced by their
// keccak256 digest and the signature is omitted.
func (op *UserOperation) PackForSignature() ([]byte, error) {
	args := abi.Arguments{
		{Type: addressT},
		{Type: uint256T},
		{Type: bytes32T},
		{Type: bytes32T},
		{Type: uint256T},
		{Type: uint256T},
		{Type: uint256T},
		{Type: uint256T},
		{Type: uint256T},
		{Type: bytes32T},
	}
	packed, err := args.Pack(
		op.Sender,
		op.Nonce,
		toBytes32(crypto.Keccak256(op.InitCode)),
		toBytes32(crypto.Keccak256(op.CallData)),
		op.CallGasLimit,
		op.VerificationGasLimit,
		op.PreVerificationGas,
		op.MaxFeePerGas,
		op.MaxPriorityFeePerGas,
		toBytes32(crypto.Keccak256(op.PaymasterAndData)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack user operation: %w", err)
	}
	return packed, nil
}

// GetUserOpHash returns the hash signed by the account owner and checked by
// the entry point during validation. It binds the packed operation to the
// given entry point address and chain id.
func (op *UserOperation) GetUserOpHash(entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	packed, err := op.PackForSignature()
	if err != nil {
		return common.Hash{}, err
	}

	args := abi.Arguments{
		{Type: bytes32T},
		{Type: addressT},
		{Type: uint256T},
	}
	enc, err := args.Pack(
		toBytes32(crypto.Keccak256(packed)),
		entryPoint,
		chainID,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack user operation hash: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

func toBytes32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}
