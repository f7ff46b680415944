package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "dtc-bridge",
	Short: "A CLI for bridging DTC between Linea and Base over LayerZero",
	Long: `dtc-bridge moves DTC tokens between Linea and Base using the LayerZero
OFT contracts. The transfer direction follows the network the configured RPC
endpoint reports: connected to Linea you bridge to Base, and vice versa.

Examples:
  dtc-bridge balance
  dtc-bridge quote 12.5
  dtc-bridge send 12.5 --recipient 0xabc...def
  dtc-bridge history
  dtc-bridge status <tx-hash> --watch`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// newLogger builds the structured logger behind the CLI output. Verbose mode
// switches to a human-readable development config at debug level.
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
