package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dtc-bridge/config"
	"dtc-bridge/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past bridge transfers",
	Long: `List the recorded bridge attempts, newest first. The log is kept in a
local file and bounded to the most recent entries.

Examples:
  dtc-bridge history
  dtc-bridge history --json`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	log := newLogger(verbose)
	defer func() { _ = log.Sync() }()

	hist := history.NewStore(cfg.HistoryFile, cfg.HistoryMax, log)
	items := hist.Items()

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(items) == 0 {
		fmt.Println("\nNo bridge transfers recorded yet.")
		fmt.Printf("History file: %s\n\n", hist.FilePath())
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       BRIDGE HISTORY")
	fmt.Println(strings.Repeat("=", 70))

	for _, item := range items {
		fmt.Printf("\n  %s  %s  %s DTC  %s\n",
			item.Time.Format("2006-01-02 15:04:05"),
			item.Direction,
			item.Amount,
			coloredHistoryStatus(item.Status))
		fmt.Printf("    Recipient: %s\n", shortAddress(item.Recipient))
		if item.TxHash != "" {
			link := item.TxHash
			if base := cfg.ExplorerFor(item.ChainID); base != "" {
				link = fmt.Sprintf("%s/tx/%s", base, item.TxHash)
			}
			fmt.Printf("    Tx:        %s\n", color.HiBlackString(link))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredHistoryStatus(status history.Status) string {
	switch status {
	case history.StatusConfirmed:
		return color.GreenString(string(status))
	case history.StatusPending:
		return color.YellowString(string(status))
	case history.StatusError:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}
