package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dtc-bridge/pkg/types"
)

var (
	sendRecipient string
	sendMax       bool
	sendNoConfirm bool
)

var sendCmd = &cobra.Command{
	Use:   "send <amount>",
	Short: "Bridge DTC to the other network",
	Long: `Bridge DTC tokens across to the other network. The direction follows
the chain the configured RPC endpoint reports: connected to Linea the tokens
go to Base, connected to Base they go to Linea.

The command quotes the LayerZero fee, checks your token balance, the
per-transaction cap, and your native funds, approves the spender when the
allowance is short, then submits the send and waits for it to be mined.

Examples:
  dtc-bridge send 12.5
  dtc-bridge send 12.5 --recipient 0xabc...def
  dtc-bridge send --max --yes`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendRecipient, "recipient", "", "Recipient address on the destination chain (defaults to your own address)")
	sendCmd.Flags().BoolVar(&sendMax, "max", false, "Send the maximum amount (balance, bounded by the cap)")
	sendCmd.Flags().BoolVarP(&sendNoConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSend(cmd *cobra.Command, args []string) {
	if len(args) == 0 && !sendMax {
		printError(fmt.Errorf("provide an amount or use --max"))
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	ctx := cmd.Context()

	a, err := newApp(ctx, verbose, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching balance..."
	s.Start()
	err = a.orch.RefreshBalance(ctx)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a.orch.SetRecipient(sendRecipient)
	if sendMax {
		a.orch.UseMaximum()
	} else {
		a.orch.SetAmount(args[0])
	}

	s.Suffix = " Quoting fee..."
	s.Start()
	fee, err := a.orch.QuoteOnce(ctx)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	displaySendSummary(a, fee)

	if !sendNoConfirm {
		if !confirmSend() {
			fmt.Println("\nSend cancelled.")
			os.Exit(0)
		}
	}

	s.Suffix = " Bridging..."
	s.Start()
	err = a.orch.SubmitSend(ctx)
	s.Stop()

	if err != nil {
		printError(err)
		fmt.Println("Recent activity:")
		for _, e := range a.orch.Logs() {
			fmt.Printf("  %s  %s\n", e.Time.Format("15:04:05"), e.Message)
		}
		os.Exit(1)
	}

	printSuccess(color.GreenString("✓ Bridge transaction confirmed!"))

	items := a.orch.History()
	if len(items) > 0 && items[0].TxHash != "" {
		fmt.Printf("  Transaction: %s\n", color.CyanString(a.explorerTxURL(items[0].ChainID, items[0].TxHash)))
	}
	fmt.Println("\nTokens arrive on the destination chain once LayerZero delivers the message (typically a few minutes).")
	fmt.Println("You can review past transfers using:")
	color.Cyan("  dtc-bridge history\n")
}

func displaySendSummary(a *app, fee *types.FeeQuote) {
	orch := a.orch
	decimals := orch.Decimals()

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    BRIDGE TRANSFER")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Direction:   %s\n", color.YellowString(orch.Direction().String()))
	fmt.Printf("  Amount:      %s DTC\n", orch.Amount())
	recipient := orch.Recipient()
	if recipient == "" {
		recipient = a.client.Address().Hex() + " (your address)"
	}
	fmt.Printf("  Recipient:   %s\n", color.CyanString(recipient))
	fmt.Printf("  Balance:     %s DTC\n", formatToken(orch.Balance(), decimals))
	if cap := orch.CapPerTx(); cap != nil {
		fmt.Printf("  Cap per tx:  %s DTC\n", formatToken(cap, decimals))
	}
	fmt.Printf("  Native fee:  ~%s ETH\n", formatEther(fee.NativeFee))

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func confirmSend() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with bridge transfer? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
