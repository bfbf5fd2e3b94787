package userop

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func mockUserOperation() *UserOperation {
	return &UserOperation{
		Sender:               common.HexToAddress("0x66C0AeE289c4D332302dda4DE7555191d76B6E99"),
		Nonce:                big.NewInt(7),
		InitCode:             []byte{},
		CallData:             hexutil.MustDecode("0xb61d27f6"),
		CallGasLimit:         big.NewInt(65000),
		VerificationGasLimit: big.NewInt(100000),
		PreVerificationGas:   big.NewInt(21000),
		MaxFeePerGas:         big.NewInt(20000000000),
		MaxPriorityFeePerGas: big.NewInt(1000000000),
		PaymasterAndData:     []byte{},
		Signature:            []byte{},
	}
}

func TestUserOperation_GetMaxPrefund(t *testing.T) {
	op := mockUserOperation()

	// (65000 + 100000 + 21000) * 20 gwei
	want, ok := new(big.Int).SetString("3720000000000000", 10)
	require.True(t, ok)
	require.Zero(t, want.Cmp(op.GetMaxPrefund()))
}

func TestUserOperation_GetDynamicGasPrice(t *testing.T) {
	op := mockUserOperation()

	tests := []struct {
		name    string
		baseFee *big.Int
		want    *big.Int
	}{
		{
			name:    "base fee plus tip below cap",
			baseFee: big.NewInt(10000000000),
			want:    big.NewInt(11000000000),
		},
		{
			name:    "capped at max fee",
			baseFee: big.NewInt(30000000000),
			want:    big.NewInt(20000000000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Zero(t, tt.want.Cmp(op.GetDynamicGasPrice(tt.baseFee)))
		})
	}
}

func TestUserOperation_GetFactory(t *testing.T) {
	op := mockUserOperation()
	require.Equal(t, common.Address{}, op.GetFactory())

	factory := common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")
	op.InitCode = append(factory.Bytes(), hexutil.MustDecode("0x5fbfb9cf")...)
	require.Equal(t, factory, op.GetFactory())
}

func TestUserOperation_HasSignature(t *testing.T) {
	op := mockUserOperation()
	require.False(t, op.HasSignature())

	op.Signature = make([]byte, SignatureLength)
	require.True(t, op.HasSignature())
}

func TestUserOperation_JSONRoundTrip(t *testing.T) {
	op := mockUserOperation()
	op.Signature = make([]byte, SignatureLength)

	data, err := json.Marshal(op)
	require.NoError(t, err)

	// Numeric fields travel as 0x quantities.
	wire := map[string]string{}
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Equal(t, "0x7", wire["nonce"])
	require.Equal(t, "0xfde8", wire["callGasLimit"])
	require.Equal(t, "0x", wire["initCode"])
	require.Equal(t, "0x", wire["paymasterAndData"])

	var got UserOperation
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, op.Sender, got.Sender)
	require.Zero(t, op.Nonce.Cmp(got.Nonce))
	require.Equal(t, op.CallData, got.CallData)
	require.Zero(t, op.MaxFeePerGas.Cmp(got.MaxFeePerGas))
	require.Equal(t, op.Signature, got.Signature)
}

func TestUserOperation_UnmarshalJSON_BadQuantity(t *testing.T) {
	var op UserOperation
	err := json.Unmarshal([]byte(`{"sender":"0x0000000000000000000000000000000000000000","nonce":"7"}`), &op)
	require.Error(t, err)
}
