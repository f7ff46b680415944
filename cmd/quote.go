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

var quoteRecipient string

var quoteCmd = &cobra.Command{
	Use:   "quote <amount>",
	Short: "Quote the LayerZero fee for a transfer",
	Long: `Quote the native fee for bridging the given amount, without sending
anything. The quote is computed against the exact transfer parameters the
send command would use.

Examples:
  dtc-bridge quote 12.5
  dtc-bridge quote 12.5 --recipient 0xabc...def
  dtc-bridge quote 12.5 --json`,
	Args: cobra.ExactArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteRecipient, "recipient", "", "Recipient address on the destination chain (defaults to your own address)")
}

func runQuote(cmd *cobra.Command, args []string) {
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
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a.orch.SetRecipient(quoteRecipient)
	a.orch.SetAmount(args[0])

	if !jsonOutput {
		s.Suffix = " Quoting fee..."
		s.Start()
	}
	fee, err := a.orch.QuoteOnce(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"direction":      a.orch.Direction().Tag(),
			"amount":         a.orch.Amount(),
			"native_fee_wei": fee.NativeFee.String(),
			"native_fee_eth": formatEther(fee.NativeFee),
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      FEE QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Direction:   %s\n", color.YellowString(a.orch.Direction().String()))
	fmt.Printf("  Amount:      %s DTC\n", a.orch.Amount())
	fmt.Printf("  Native fee:  ~%s ETH (%s wei)\n", formatEther(fee.NativeFee), fee.NativeFee)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
