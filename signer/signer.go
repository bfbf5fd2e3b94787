// Package signer wraps a secp256k1 owner key and produces the two signature
// shapes the wallet needs: EIP-191 prefixed signatures over user operation
// hashes, and EIP-1559 transaction signatures for funding transfers.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blndgs/smartaccount/userop"
)

// DummySignature is a well-formed 65-byte signature used as a placeholder
// during gas estimation so the bundler simulates a realistic validation
// cost. It never recovers to a live key.
const DummySignature = "0xfffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffc1c"

// Signer holds the smart account owner key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// New builds a Signer from a hex-encoded private key, with or without the
// 0x prefix.
func New(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid owner private key: %w", err)
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the EOA address of the owner key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignUserOp signs the operation hash for the given entry point and chain,
// stores the signature on the operation, and returns it. The hash is
// wrapped in the EIP-191 personal message prefix, matching what
// SimpleAccount recovers during validation, and the recovery byte is
// shifted into the {27,28} range.
func (s *Signer) SignUserOp(op *userop.UserOperation, entryPoint common.Address, chainID *big.Int) ([]byte, error) {
	hash, err := op.GetUserOpHash(entryPoint, chainID)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign user operation: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	op.Signature = sig
	return sig, nil
}

// SignTx signs a transaction with the owner key for the given chain.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// DummySignatureBytes returns the decoded placeholder signature.
func DummySignatureBytes() []byte {
	return hexutil.MustDecode(DummySignature)
}
