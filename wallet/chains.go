package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Canonical v0.6 deployment addresses, identical across chains.
var (
	DefaultEntryPoint     = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	DefaultAccountFactory = common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")
)

// ChainProfile carries the per-chain protocol addresses and presentation
// details for the chains the wallet knows out of the box. Other chains work
// too, with explicit addresses in the config.
type ChainProfile struct {
	ChainID     int64
	Name        string
	Currency    string
	EntryPoint  common.Address
	Factory     common.Address
	ExplorerURL string
}

var chainProfiles = map[int64]ChainProfile{
	1:        {ChainID: 1, Name: "Ethereum", Currency: "ETH", EntryPoint: DefaultEntryPoint, Factory: DefaultAccountFactory, ExplorerURL: "https://etherscan.io"},
	137:      {ChainID: 137, Name: "Polygon", Currency: "POL", EntryPoint: DefaultEntryPoint, Factory: DefaultAccountFactory, ExplorerURL: "https://polygonscan.com"},
	8453:     {ChainID: 8453, Name: "Base", Currency: "ETH", EntryPoint: DefaultEntryPoint, Factory: DefaultAccountFactory, ExplorerURL: "https://basescan.org"},
	11155111: {ChainID: 11155111, Name: "Sepolia", Currency: "ETH", EntryPoint: DefaultEntryPoint, Factory: DefaultAccountFactory, ExplorerURL: "https://sepolia.etherscan.io"},
}

// KnownChain returns the built-in profile for a chain id.
func KnownChain(chainID int64) (ChainProfile, bool) {
	p, ok := chainProfiles[chainID]
	return p, ok
}

// ProfileForChain returns the profile for a chain id, or a generic one for
// chains not in the table.
func ProfileForChain(chainID int64) ChainProfile {
	if p, ok := chainProfiles[chainID]; ok {
		return p
	}
	return ChainProfile{ChainID: chainID, Name: fmt.Sprintf("chain %d", chainID), Currency: "ETH"}
}

// TxURL returns an explorer link for a transaction hash, or empty when the
// chain has no known explorer.
func (p ChainProfile) TxURL(txHash common.Hash) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", p.ExplorerURL, txHash.Hex())
}

// UserOpURL returns a jiffyscan link for a user operation hash.
func (p ChainProfile) UserOpURL(userOpHash common.Hash) string {
	return fmt.Sprintf("https://jiffyscan.xyz/userOpHash/%s", userOpHash.Hex())
}
