package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show your DTC and native balances on the active network",
	Long: `Show the wallet's DTC balance, native balance, and the bridge limits
on the network the configured RPC endpoint reports.

Examples:
  dtc-bridge balance
  dtc-bridge balance --json`,
	Args: cobra.NoArgs,
	Run:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	a, err := newApp(ctx, verbose, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balance..."
		s.Start()
	}
	err = a.orch.RefreshBalance(ctx)
	native, nativeErr := a.client.NativeBalance(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	decimals := a.orch.Decimals()
	balance := a.orch.Balance()
	txCap := a.orch.CapPerTx()
	maxSendable := a.orch.MaxSendable()

	if jsonOutput {
		output := map[string]interface{}{
			"address":      a.client.Address().Hex(),
			"chain_id":     a.client.ChainID(),
			"direction":    a.orch.Direction().Tag(),
			"balance":      formatToken(balance, decimals),
			"max_sendable": formatToken(maxSendable, decimals),
		}
		if txCap != nil {
			output["cap_per_tx"] = formatToken(txCap, decimals)
		}
		if nativeErr == nil {
			output["native_balance_eth"] = formatEther(native)
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                       BALANCES")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Address:      %s\n", color.CyanString(a.client.Address().Hex()))
	fmt.Printf("  Network:      %s (chain %d)\n", a.cfg.Network, a.client.ChainID())
	fmt.Printf("  Direction:    %s\n", color.YellowString(a.orch.Direction().String()))
	fmt.Printf("  DTC balance:  %s\n", formatToken(balance, decimals))
	if nativeErr == nil {
		fmt.Printf("  Native:       %s ETH\n", formatEther(native))
	}
	if txCap != nil {
		fmt.Printf("  Cap per tx:   %s DTC\n", formatToken(txCap, decimals))
	}
	fmt.Printf("  Max sendable: %s DTC\n", formatToken(maxSendable, decimals))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
