package chainio

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

var (
	testFactory = common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")
	testOwner   = common.HexToAddress("0x66C0AeE289c4D332302dda4DE7555191d76B6E99")
	testTarget  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

func TestEncodeExecute(t *testing.T) {
	data, err := EncodeExecute(Call{
		To:    testTarget,
		Value: big.NewInt(1),
		Data:  []byte{0x01, 0x02},
	})
	require.NoError(t, err)

	// execute(address,uint256,bytes)
	require.Equal(t, hexutil.MustDecode("0xb61d27f6"), data[:4])
}

func TestEncodeExecute_NilDefaults(t *testing.T) {
	bare, err := EncodeExecute(Call{To: testTarget})
	require.NoError(t, err)

	explicit, err := EncodeExecute(Call{To: testTarget, Value: big.NewInt(0), Data: []byte{}})
	require.NoError(t, err)

	require.Equal(t, explicit, bare)
}

func TestEncodeExecuteBatch(t *testing.T) {
	data, err := EncodeExecuteBatch([]Call{
		{To: testTarget, Value: big.NewInt(5)},
		{To: testOwner, Data: []byte{0xaa}},
	})
	require.NoError(t, err)

	// executeBatch(address[],uint256[],bytes[])
	require.Equal(t, hexutil.MustDecode("0x47e1da2a"), data[:4])
}

func TestEncodeExecuteBatch_Empty(t *testing.T) {
	_, err := EncodeExecuteBatch(nil)
	require.Error(t, err)
}

func TestEncodeInitCode(t *testing.T) {
	initCode, err := EncodeInitCode(testFactory, testOwner, big.NewInt(0))
	require.NoError(t, err)

	require.Equal(t, testFactory.Bytes(), initCode[:20])
	// createAccount(address,uint256)
	require.Equal(t, hexutil.MustDecode("0x5fbfb9cf"), initCode[20:24])
	// selector plus two static arguments
	require.Len(t, initCode, 20+4+64)

	nilSalt, err := EncodeInitCode(testFactory, testOwner, nil)
	require.NoError(t, err)
	require.Equal(t, initCode, nilSalt)
}

func TestEncodeInitCode_SaltChangesCode(t *testing.T) {
	a, err := EncodeInitCode(testFactory, testOwner, big.NewInt(0))
	require.NoError(t, err)
	b, err := EncodeInitCode(testFactory, testOwner, big.NewInt(1))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
