package chainio

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	chainID      *big.Int
	code         []byte
	balance      *big.Int
	callResult   []byte
	callErr      error
	lastCall     ethereum.CallMsg
	pendingNonce uint64
	sentTx       *types.Transaction
	receipt      *types.Receipt
	receiptErr   error
	receiptDelay int
	receiptCalls int
	blockNumber  uint64
}

func (f *fakeBackend) ChainID(_ context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	return f.code, nil
}

func (f *fakeBackend) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCall = call
	return f.callResult, f.callErr
}

func (f *fakeBackend) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1000000000)}, nil
}

func (f *fakeBackend) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (f *fakeBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return f.pendingNonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sentTx = tx
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	f.receiptCalls++
	if f.receipt != nil && f.receiptCalls > f.receiptDelay {
		return f.receipt, nil
	}
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) BlockNumber(_ context.Context) (uint64, error) { return f.blockNumber, nil }

type fakeTxSigner struct {
	addr common.Address
}

func (f *fakeTxSigner) Address() common.Address { return f.addr }

func (f *fakeTxSigner) SignTx(tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

func newTestClient(backend Backend) *Client {
	return New(backend, zerolog.Nop())
}

func TestIsDeployed(t *testing.T) {
	client := newTestClient(&fakeBackend{code: []byte{}})
	deployed, err := client.IsDeployed(context.Background(), testTarget)
	require.NoError(t, err)
	require.False(t, deployed)

	client = newTestClient(&fakeBackend{code: []byte{0x60, 0x80}})
	deployed, err = client.IsDeployed(context.Background(), testTarget)
	require.NoError(t, err)
	require.True(t, deployed)
}

func TestResolveAccountAddress(t *testing.T) {
	account := common.HexToAddress("0x1306b01bC3e4AD202612D3843387e94737673F53")
	backend := &fakeBackend{callResult: common.LeftPadBytes(account.Bytes(), 32)}
	client := newTestClient(backend)

	got, err := client.ResolveAccountAddress(context.Background(), testFactory, testOwner, big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, account, got)
	require.Equal(t, testFactory, *backend.lastCall.To)
}

func TestResolveAccountAddress_Malformed(t *testing.T) {
	client := newTestClient(&fakeBackend{callResult: []byte{0x01}})
	_, err := client.ResolveAccountAddress(context.Background(), testFactory, testOwner, nil)
	require.Error(t, err)
}

func TestResolveAccountAddress_CallError(t *testing.T) {
	client := newTestClient(&fakeBackend{callErr: errors.New("execution reverted")})
	_, err := client.ResolveAccountAddress(context.Background(), testFactory, testOwner, nil)
	require.ErrorContains(t, err, "getAddress call")
}

func TestGetNonce(t *testing.T) {
	backend := &fakeBackend{callResult: common.LeftPadBytes(big.NewInt(42).Bytes(), 32)}
	client := newTestClient(backend)

	entryPoint := common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	nonce, err := client.GetNonce(context.Background(), entryPoint, testTarget, nil)
	require.NoError(t, err)
	require.Zero(t, big.NewInt(42).Cmp(nonce))
	require.Equal(t, entryPoint, *backend.lastCall.To)
}

func TestTransferNative(t *testing.T) {
	backend := &fakeBackend{
		chainID:     big.NewInt(11155111),
		blockNumber: 10,
	}
	client := newTestClient(backend)
	signer := &fakeTxSigner{addr: testOwner}

	// Receipt is available on the first poll.
	backend.receipt = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(10),
	}

	hash, err := client.TransferNative(context.Background(), signer, testTarget, big.NewInt(1000), 1)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, hash)
	require.NotNil(t, backend.sentTx)
	require.Equal(t, uint64(transferGasLimit), backend.sentTx.Gas())
	require.Zero(t, big.NewInt(1000).Cmp(backend.sentTx.Value()))
}

func TestTransferNative_WrappedNotFound(t *testing.T) {
	// RPC middleware may wrap the not-found sentinel; the wait must treat
	// it as pending, not fatal.
	backend := &fakeBackend{
		chainID:      big.NewInt(11155111),
		receiptErr:   fmt.Errorf("rpc call failed: %w", ethereum.NotFound),
		receiptDelay: 2,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(10),
		},
		blockNumber: 10,
	}
	client := newTestClient(backend)
	client.pollInterval = time.Millisecond

	_, err := client.TransferNative(context.Background(), &fakeTxSigner{addr: testOwner}, testTarget, big.NewInt(1), 1)
	require.NoError(t, err)
	require.Equal(t, 3, backend.receiptCalls)
}

func TestTransferNative_ReceiptBudgetExhausted(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(11155111)}
	client := newTestClient(backend)
	client.pollInterval = time.Millisecond

	_, err := client.TransferNative(context.Background(), &fakeTxSigner{addr: testOwner}, testTarget, big.NewInt(1), 1)
	require.ErrorContains(t, err, "no receipt for funding transaction")
	require.Equal(t, fundingReceiptAttempts, backend.receiptCalls)
}

func TestTransferNative_Reverted(t *testing.T) {
	backend := &fakeBackend{
		chainID: big.NewInt(11155111),
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			BlockNumber: big.NewInt(10),
		},
	}
	client := newTestClient(backend)

	_, err := client.TransferNative(context.Background(), &fakeTxSigner{addr: testOwner}, testTarget, big.NewInt(1), 1)
	require.ErrorContains(t, err, "reverted")
}
