package cmd

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dtc-bridge/config"
	"dtc-bridge/pkg/amount"
	"dtc-bridge/pkg/bridge"
	"dtc-bridge/pkg/evm"
	"dtc-bridge/pkg/history"
	"dtc-bridge/pkg/types"
)

// app bundles everything a command needs for one run: the loaded config, the
// RPC client, the history store, and the orchestrator wired on top of them.
type app struct {
	cfg    *config.Config
	client *evm.Client
	hist   *history.Store
	orch   *bridge.Orchestrator
	log    *zap.Logger
}

// newApp connects to the configured RPC endpoint and wires the orchestrator.
// When needSigner is set, a missing private key is an error up front rather
// than a failure mid-send.
func newApp(ctx context.Context, verbose, needSigner bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if needSigner {
		if err := cfg.RequireSigner(); err != nil {
			return nil, err
		}
	}

	log := newLogger(verbose)

	client, err := evm.Dial(ctx, cfg.ActiveRPC(), cfg.PrivateKey, log)
	if err != nil {
		return nil, err
	}

	hist := history.NewStore(cfg.HistoryFile, cfg.HistoryMax, log)

	lineaLeg := evm.NewLineaLeg(client,
		common.HexToAddress(cfg.LineaToken),
		common.HexToAddress(cfg.LineaAdapter))
	baseLeg := evm.NewBaseLeg(client,
		common.HexToAddress(cfg.BaseOFT),
		common.HexToAddress(cfg.BaseRouter))

	contracts := func(dir types.Direction) bridge.Contracts {
		if dir == types.BaseToLinea {
			return baseLeg
		}
		return lineaLeg
	}

	orch := bridge.New(bridge.Config{
		LzReceiveGasDefault: cfg.LzReceiveGasDefault,
		FeeBufferLinea:      big.NewInt(cfg.FeeBufferLineaWei),
		FeeBufferBase:       big.NewInt(cfg.FeeBufferBaseWei),
		ApprovalPolicy:      bridge.ApprovalPolicy(cfg.ApprovalPolicy),
		RequiresDeposit:     cfg.RequiresDeposit,
		QuoteDebounce:       cfg.QuoteDebounce,
	}, client, contracts, hist, log)

	return &app{cfg: cfg, client: client, hist: hist, orch: orch, log: log}, nil
}

func (a *app) Close() {
	a.client.Close()
	_ = a.log.Sync()
}

// explorerTxURL builds a block-explorer link for a transaction, or returns
// the bare hash when the chain has no configured explorer.
func (a *app) explorerTxURL(chainID uint64, txHash string) string {
	base := a.cfg.ExplorerFor(chainID)
	if base == "" || txHash == "" {
		return txHash
	}
	return fmt.Sprintf("%s/tx/%s", base, txHash)
}

// formatToken renders a minor-unit amount as a decimal token string.
func formatToken(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return amount.FormatUnits(v, decimals, bridge.MaxFracDigits)
}

// formatEther renders a wei amount as a decimal ETH string.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return amount.FormatUnits(wei, 18, 8)
}

// shortAddress abbreviates a hex address for display, leaving anything that
// is not a full address (placeholders included) untouched.
func shortAddress(s string) string {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
