// Command smartaccount is a thin CLI over the wallet package: resolve a
// counterfactual account address, check its balance, and send value or
// calldata through it.
package main

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blndgs/smartaccount/chainio"
	"github.com/blndgs/smartaccount/wallet"
)

var (
	flagKey        string
	flagChainID    int64
	flagNodeURL    string
	flagBundlerURL string
	flagEntryPoint string
	flagFactory    string
	flagSalt       int64
	flagFunding    string
	flagTarget     string
	flagFeeBump    int64
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "smartaccount",
	Short: "Operate an ERC-4337 smart account from the command line",
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the counterfactual account address and deployment state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sa, err := initWallet(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("owner:    %s\n", sa.Owner().Hex())
		fmt.Printf("account:  %s\n", sa.Address().Hex())
		fmt.Printf("deployed: %t\n", sa.IsDeployed())
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the account's native balance in wei",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sa, err := initWallet(cmd)
		if err != nil {
			return err
		}

		balance, err := sa.GetBalance(cmd.Context())
		if err != nil {
			return err
		}

		profile := wallet.ProfileForChain(sa.ChainID().Int64())
		fmt.Printf("%s %s (wei)\n", balance, profile.Currency)
		return nil
	},
}

var (
	flagSendTo    string
	flagSendValue string
	flagSendData  string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Submit a user operation executing one call",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !common.IsHexAddress(flagSendTo) {
			return fmt.Errorf("invalid recipient address %q", flagSendTo)
		}

		call := chainio.Call{To: common.HexToAddress(flagSendTo)}
		if flagSendValue != "" {
			value, ok := new(big.Int).SetString(flagSendValue, 10)
			if !ok {
				return fmt.Errorf("invalid wei amount %q", flagSendValue)
			}
			call.Value = value
		}
		if flagSendData != "" {
			data, err := hexutil.Decode(flagSendData)
			if err != nil {
				return fmt.Errorf("invalid calldata: %w", err)
			}
			call.Data = data
		}

		sa, err := initWallet(cmd)
		if err != nil {
			return err
		}

		result, err := sa.SendTransaction(cmd.Context(), call)
		if err != nil {
			return err
		}

		profile := wallet.ProfileForChain(sa.ChainID().Int64())
		fmt.Printf("userOpHash: %s\n", result.UserOpHash.Hex())
		fmt.Printf("tx:         %s\n", result.TxHash.Hex())
		if link := profile.TxURL(result.TxHash); link != "" {
			fmt.Printf("explorer:   %s\n", link)
		}
		fmt.Printf("tracker:    %s\n", profile.UserOpURL(result.UserOpHash))
		return nil
	},
}

func buildConfig() (wallet.Config, error) {
	cfg := wallet.Config{
		OwnerPrivateKey: flagKey,
		ChainID:         flagChainID,
		NodeURL:         flagNodeURL,
		BundlerURL:      flagBundlerURL,
		Salt:            big.NewInt(flagSalt),
		Funding:         flagFunding,
		FeeBumpPercent:  flagFeeBump,
	}

	if flagEntryPoint != "" {
		if !common.IsHexAddress(flagEntryPoint) {
			return cfg, fmt.Errorf("invalid entry point address %q", flagEntryPoint)
		}
		cfg.EntryPoint = common.HexToAddress(flagEntryPoint)
	}
	if flagFactory != "" {
		if !common.IsHexAddress(flagFactory) {
			return cfg, fmt.Errorf("invalid factory address %q", flagFactory)
		}
		cfg.Factory = common.HexToAddress(flagFactory)
	}
	if flagTarget != "" {
		target, ok := new(big.Int).SetString(flagTarget, 10)
		if !ok {
			return cfg, fmt.Errorf("invalid target balance %q", flagTarget)
		}
		cfg.TargetBalance = target
	}

	return cfg, nil
}

func initWallet(cmd *cobra.Command) (*wallet.SmartAccount, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if flagVerbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}

	sa, err := wallet.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := sa.Initialize(cmd.Context()); err != nil {
		return nil, err
	}
	return sa, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagKey, "key", "", "hex-encoded owner private key")
	pf.Int64Var(&flagChainID, "chain-id", 0, "expected chain id, 0 accepts whatever the node reports")
	pf.StringVar(&flagNodeURL, "node-url", "http://localhost:8545", "Ethereum node RPC URL")
	pf.StringVar(&flagBundlerURL, "bundler-url", "http://localhost:4337", "ERC-4337 bundler RPC URL")
	pf.StringVar(&flagEntryPoint, "entry-point", "", "entry point address, canonical v0.6 when empty")
	pf.StringVar(&flagFactory, "factory", "", "account factory address, canonical v0.6 when empty")
	pf.Int64Var(&flagSalt, "salt", 0, "account derivation salt")
	pf.StringVar(&flagFunding, "funding", "none", "funding strategy: none, per-tx or threshold")
	pf.StringVar(&flagTarget, "target-balance", "", "refill target in wei for threshold funding")
	pf.Int64Var(&flagFeeBump, "fee-bump", 0, "percent added to suggested fees")
	pf.BoolVar(&flagVerbose, "verbose", false, "log progress to stderr")

	sendCmd.Flags().StringVar(&flagSendTo, "to", "", "recipient address")
	sendCmd.Flags().StringVar(&flagSendValue, "value", "", "wei to transfer")
	sendCmd.Flags().StringVar(&flagSendData, "data", "", "hex calldata")
	_ = sendCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
