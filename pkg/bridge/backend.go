package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"dtc-bridge/pkg/types"
)

// Session is the wallet/session provider: who is connected, on which chain,
// and with how much native currency.
type Session interface {
	// Active reports whether a wallet session exists.
	Active() bool
	// ChainID is the active network. Zero when no session is active.
	ChainID() uint64
	// Address is the connected account.
	Address() common.Address
	// NativeBalance reads the account's native-currency balance.
	NativeBalance(ctx context.Context) (*big.Int, error)
}

// Contracts is the per-direction view of the deployed contracts: the origin
// token's ERC-20 surface, the spender that pulls it, and the bridge
// submission entry point. One implementation exists per transfer leg.
type Contracts interface {
	// Decimals reads the origin token's declared precision.
	Decimals(ctx context.Context) (uint8, error)
	// BalanceOf reads the owner's origin-token balance.
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	// Allowance reads the owner's allowance toward the leg's spender.
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
	// Approve raises the allowance toward the leg's spender and returns the
	// transaction hash.
	Approve(ctx context.Context, amount *big.Int) (common.Hash, error)
	// CapPerTx reads the destination-enforced per-transaction cap.
	// (nil, nil) means the leg has no cap.
	CapPerTx(ctx context.Context) (*big.Int, error)
	// LzReceiveGas reads the destination-side execution gas configured on
	// the leg's router. (nil, nil) means the configured default applies.
	LzReceiveGas(ctx context.Context) (*big.Int, error)
	// QuoteSend asks the origin contract for the messaging fee of a
	// prospective send.
	QuoteSend(ctx context.Context, p types.SendParam) (*types.FeeQuote, error)
	// Send submits the cross-chain transfer with the native fee attached as
	// the call's value.
	Send(ctx context.Context, p types.SendParam, fee *types.FeeQuote) (common.Hash, error)
	// Deposit transfers tokens into the leg's intermediary contract ahead
	// of the bridge submission, on legs that require it.
	Deposit(ctx context.Context, amount *big.Int) (common.Hash, error)
	// WaitMined blocks until the transaction is included, returning an
	// error on revert. The wait is bounded only by ctx.
	WaitMined(ctx context.Context, tx common.Hash) error
}
