package chainio

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs for the three v0.6 contracts the wallet talks to directly.
// Everything else goes through the bundler.

const simpleAccountABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "dest", "type": "address"},
			{"internalType": "uint256", "name": "value", "type": "uint256"},
			{"internalType": "bytes", "name": "func", "type": "bytes"}
		],
		"name": "execute",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address[]", "name": "dest", "type": "address[]"},
			{"internalType": "uint256[]", "name": "value", "type": "uint256[]"},
			{"internalType": "bytes[]", "name": "func", "type": "bytes[]"}
		],
		"name": "executeBatch",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const accountFactoryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "uint256", "name": "salt", "type": "uint256"}
		],
		"name": "createAccount",
		"outputs": [
			{"internalType": "contract SimpleAccount", "name": "ret", "type": "address"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "uint256", "name": "salt", "type": "uint256"}
		],
		"name": "getAddress",
		"outputs": [
			{"internalType": "address", "name": "", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

const entryPointABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "sender", "type": "address"},
			{"internalType": "uint192", "name": "key", "type": "uint192"}
		],
		"name": "getNonce",
		"outputs": [
			{"internalType": "uint256", "name": "nonce", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	simpleAccountABIParsed  abi.ABI
	accountFactoryABIParsed abi.ABI
	entryPointABIParsed     abi.ABI
)

func init() {
	var err error
	simpleAccountABIParsed, err = abi.JSON(strings.NewReader(simpleAccountABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse SimpleAccount ABI: %v", err))
	}
	accountFactoryABIParsed, err = abi.JSON(strings.NewReader(accountFactoryABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse SimpleAccountFactory ABI: %v", err))
	}
	entryPointABIParsed, err = abi.JSON(strings.NewReader(entryPointABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse EntryPoint ABI: %v", err))
	}
}
