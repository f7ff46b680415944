package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dtc-bridge/pkg/evm"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a bridge transaction",
	Long: `Check a submitted transaction on the active network: pending,
mined, or reverted. This reports the origin-chain transaction only; token
delivery on the destination chain follows once LayerZero relays the message.

Examples:
  dtc-bridge status 0x1234...abcd
  dtc-bridge status 0x1234...abcd --watch
  dtc-bridge status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	txArg := args[0]
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	if !strings.HasPrefix(txArg, "0x") || len(txArg) != 66 {
		printError(fmt.Errorf("invalid transaction hash: %s", txArg))
		os.Exit(1)
	}
	txHash := common.HexToHash(txArg)

	// Read-only lookup, no signing key required.
	a, err := newApp(ctx, verbose, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if watchStatus {
		watchTxStatus(ctx, a, txHash, jsonOutput)
	} else {
		checkTxStatus(ctx, a, txHash, jsonOutput)
	}
}

func checkTxStatus(ctx context.Context, a *app, txHash common.Hash, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	st, err := a.client.Status(ctx, txHash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTxStatus(a, st)
	}
}

func watchTxStatus(ctx context.Context, a *app, txHash common.Hash, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(txHash.Hex()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		st, err := a.client.Status(ctx, txHash)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayTxStatus(a, st)
			if !st.Pending {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func displayTxStatus(a *app, st *evm.TransactionStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Transaction: %s\n", color.CyanString(a.explorerTxURL(a.client.ChainID(), st.Hash)))

	switch {
	case st.Pending:
		fmt.Printf("  Status:      %s\n", color.YellowString("PENDING"))
	case st.Reverted:
		fmt.Printf("  Status:      %s\n", color.RedString("REVERTED"))
	default:
		fmt.Printf("  Status:      %s\n", color.GreenString("MINED"))
	}

	if !st.Pending {
		fmt.Printf("  Block:       %d\n", st.BlockNumber)
		fmt.Printf("  Gas used:    %d\n", st.GasUsed)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
