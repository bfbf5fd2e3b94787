package chainio

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Call describes one action the smart account executes on chain: a target,
// an optional native value, and optional calldata. A nil Value means zero
// and nil Data means a bare transfer.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// EncodeExecute returns SimpleAccount.execute(dest, value, func) calldata
// for a single call.
func EncodeExecute(call Call) ([]byte, error) {
	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	data := call.Data
	if data == nil {
		data = []byte{}
	}

	packed, err := simpleAccountABIParsed.Pack("execute", call.To, value, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute call: %w", err)
	}
	return packed, nil
}

// EncodeExecuteBatch returns SimpleAccount.executeBatch calldata packing the
// calls into three parallel arrays in input order.
func EncodeExecuteBatch(calls []Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("batch requires at least one call")
	}

	dests := make([]common.Address, len(calls))
	values := make([]*big.Int, len(calls))
	funcs := make([][]byte, len(calls))
	for i, call := range calls {
		dests[i] = call.To
		values[i] = call.Value
		if values[i] == nil {
			values[i] = big.NewInt(0)
		}
		funcs[i] = call.Data
		if funcs[i] == nil {
			funcs[i] = []byte{}
		}
	}

	packed, err := simpleAccountABIParsed.Pack("executeBatch", dests, values, funcs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode executeBatch call: %w", err)
	}
	return packed, nil
}

// EncodeInitCode returns the initCode for a counterfactual deployment: the
// factory address followed by createAccount(owner, salt) calldata.
func EncodeInitCode(factory, owner common.Address, salt *big.Int) ([]byte, error) {
	if salt == nil {
		salt = big.NewInt(0)
	}

	callData, err := accountFactoryABIParsed.Pack("createAccount", owner, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode createAccount call: %w", err)
	}
	return append(factory.Bytes(), callData...), nil
}
