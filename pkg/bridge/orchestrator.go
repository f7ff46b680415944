// Package bridge implements the bridge transaction orchestrator: an
// explicit state machine turning a user-supplied (amount, recipient) pair
// into a correctly sequenced set of on-chain operations, from fee quote and
// balance/cap checks through optional approval and deposit to the
// cross-chain send, its confirmation, and persisted history.
package bridge

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dtc-bridge/pkg/amount"
	"dtc-bridge/pkg/history"
	"dtc-bridge/pkg/lzopts"
	"dtc-bridge/pkg/quote"
	"dtc-bridge/pkg/types"
)

// ApprovalPolicy selects how much allowance an approval transaction grants.
type ApprovalPolicy string

const (
	// ApproveUnlimited grants maxUint256 so one approval covers all future
	// sends on the leg.
	ApproveUnlimited ApprovalPolicy = "unlimited"
	// ApproveExact grants only the amount of the current send.
	ApproveExact ApprovalPolicy = "exact"
)

// Default safety buffers added on top of the quoted fee when checking
// native funds. The Base leg runs more on-chain steps, so its buffer is
// larger.
var (
	DefaultFeeBufferLinea = big.NewInt(80_000_000_000_000)  // 0.00008 ETH
	DefaultFeeBufferBase  = big.NewInt(120_000_000_000_000) // 0.00012 ETH
)

const (
	// DefaultLzReceiveGas is the destination-side gas budget used when the
	// router does not publish one.
	DefaultLzReceiveGas = 200_000
	// MaxFracDigits bounds the fractional digits of re-rendered amounts.
	MaxFracDigits = 6
	// logRingSize bounds the in-memory console log.
	logRingSize = 200
)

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	LzReceiveGasDefault uint64
	FeeBufferLinea      *big.Int
	FeeBufferBase       *big.Int
	ApprovalPolicy      ApprovalPolicy
	// RequiresDeposit enables the pre-transfer deposit step on the
	// Base -> Linea leg for router deployments that do not pull via
	// allowance.
	RequiresDeposit bool
	QuoteDebounce   time.Duration
}

func (c Config) withDefaults() Config {
	if c.LzReceiveGasDefault == 0 {
		c.LzReceiveGasDefault = DefaultLzReceiveGas
	}
	if c.FeeBufferLinea == nil {
		c.FeeBufferLinea = DefaultFeeBufferLinea
	}
	if c.FeeBufferBase == nil {
		c.FeeBufferBase = DefaultFeeBufferBase
	}
	if c.ApprovalPolicy == "" {
		c.ApprovalPolicy = ApproveUnlimited
	}
	if c.QuoteDebounce <= 0 {
		c.QuoteDebounce = quote.DefaultDebounce
	}
	return c
}

// LogEntry is one line of the console log exposed to the presentation
// layer.
type LogEntry struct {
	Time    time.Time
	Message string
}

// Orchestrator owns the bridge state machine. All contract operations
// within one send are awaited sequentially; the only overlapping async work
// is the debounced background quoter, whose stale results are discarded.
type Orchestrator struct {
	cfg       Config
	session   Session
	contracts func(types.Direction) Contracts
	hist      *history.Store
	quoter    *quote.Quoter
	log       *zap.Logger

	mu             sync.Mutex
	state          State
	status         string
	lastErr        error
	errRecoverable bool

	amountStr    string
	recipientStr string

	decimals     uint8
	balance      *big.Int
	capPerTx     *big.Int // nil when the leg has no known cap
	lzReceiveGas *big.Int // nil when the router publishes none

	fee      *types.FeeQuote
	feeStamp types.QuoteStamp

	fetchGen     uint64
	sendInFlight bool

	logs []LogEntry
}

// New builds an orchestrator. contracts resolves the per-direction contract
// view; it is only called for supported directions.
func New(cfg Config, session Session, contracts func(types.Direction) Contracts, hist *history.Store, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg.withDefaults(),
		session:   session,
		contracts: contracts,
		hist:      hist,
		log:       log,
		state:     StateConnectWallet,
		status:    "CONNECT WALLET — required to bridge.",
		decimals:  18,
		balance:   new(big.Int),
	}
	o.quoter = quote.New(o.cfg.QuoteDebounce, o.applyQuote, log)
	o.note("App loaded")
	o.note("Direction auto-selected from network")
	return o
}

// Direction derives the transfer direction from the active session.
func (o *Orchestrator) Direction() types.Direction {
	return o.directionNow()
}

// State returns the current state tag.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// StatusText returns the human-readable status line.
func (o *Orchestrator) StatusText() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// LastError returns the most recent send failure, if any.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Fee returns a copy of the current quote, or nil when none is valid.
func (o *Orchestrator) Fee() *types.FeeQuote {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fee == nil {
		return nil
	}
	out := &types.FeeQuote{}
	if o.fee.NativeFee != nil {
		out.NativeFee = new(big.Int).Set(o.fee.NativeFee)
	}
	if o.fee.LZTokenFee != nil {
		out.LZTokenFee = new(big.Int).Set(o.fee.LZTokenFee)
	}
	return out
}

// Balance returns the last fetched origin-token balance in minor units.
func (o *Orchestrator) Balance() *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return new(big.Int).Set(o.balance)
}

// Decimals returns the origin token's precision.
func (o *Orchestrator) Decimals() uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.decimals
}

// CapPerTx returns the destination per-transaction cap, or nil when none is
// known.
func (o *Orchestrator) CapPerTx() *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.capPerTx == nil {
		return nil
	}
	return new(big.Int).Set(o.capPerTx)
}

// Amount returns the raw amount string as entered.
func (o *Orchestrator) Amount() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.amountStr
}

// Recipient returns the raw recipient string as entered.
func (o *Orchestrator) Recipient() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recipientStr
}

// ExceedsBalance reports whether the entered amount is above the wallet's
// token balance.
func (o *Orchestrator) ExceedsBalance() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return amount.ExceedsBalance(o.parsedAmountLocked(), o.balance)
}

// ExceedsCap reports whether the entered amount is above the destination
// cap. Always false when no cap is known.
func (o *Orchestrator) ExceedsCap() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return amount.ExceedsCap(o.parsedAmountLocked(), o.capPerTx)
}

// MaxSendable returns min(balance, cap-if-known) in minor units.
func (o *Orchestrator) MaxSendable() *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return amount.MaxSendable(o.balance, o.capPerTx)
}

// History returns the recorded transfer attempts, newest first.
func (o *Orchestrator) History() []history.Item {
	return o.hist.Items()
}

// Logs returns a copy of the console log ring.
func (o *Orchestrator) Logs() []LogEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]LogEntry, len(o.logs))
	copy(out, o.logs)
	return out
}

// SetAmount updates the entered amount, invalidates the current quote, and
// schedules a debounced re-quote.
func (o *Orchestrator) SetAmount(s string) {
	o.mu.Lock()
	o.amountStr = s
	o.fee = nil
	o.recomputeLocked()
	o.scheduleQuoteLocked()
	o.mu.Unlock()
}

// SetRecipient updates the explicit recipient, invalidates the current
// quote, and schedules a debounced re-quote.
func (o *Orchestrator) SetRecipient(s string) {
	o.mu.Lock()
	o.recipientStr = s
	o.fee = nil
	o.recomputeLocked()
	o.scheduleQuoteLocked()
	o.mu.Unlock()
}

// UseMaximum sets the amount to min(balance, cap-if-known), re-rendered as
// a truncated decimal string.
func (o *Orchestrator) UseMaximum() {
	o.mu.Lock()
	max := amount.MaxSendable(o.balance, o.capPerTx)
	s := amount.FormatUnits(max, o.decimals, MaxFracDigits)
	o.mu.Unlock()

	o.SetAmount(s)
	o.note("Max set from wallet balance (and cap where applicable).")
}

// RefreshBalance fetches the token's decimals and the wallet's balance for
// the current (network, account) pair, plus the router parameters on the
// Base leg. A refresh started for a superseded pair is discarded.
func (o *Orchestrator) RefreshBalance(ctx context.Context) error {
	o.mu.Lock()
	o.fetchGen++
	gen := o.fetchGen
	o.fee = nil

	if !o.session.Active() {
		o.balance = new(big.Int)
		o.decimals = 18
		o.capPerTx = nil
		o.lzReceiveGas = nil
		o.recomputeLocked()
		o.mu.Unlock()
		return nil
	}
	dir := o.directionLocked()
	if dir == types.DirectionUnsupported {
		o.balance = new(big.Int)
		o.capPerTx = nil
		o.lzReceiveGas = nil
		o.recomputeLocked()
		o.mu.Unlock()
		return nil
	}

	o.state = StateFetchingBalance
	o.status = "FETCHING BALANCE…"
	owner := o.session.Address()
	c := o.contracts(dir)
	o.mu.Unlock()

	dec, err := c.Decimals(ctx)
	var bal *big.Int
	if err == nil {
		bal, err = c.BalanceOf(ctx, owner)
	}

	// Router parameters are advisory; failure to read them is non-fatal.
	var txCap, gas *big.Int
	if err == nil {
		if txCap, _ = c.CapPerTx(ctx); txCap != nil {
			o.note("Loaded router params (lzReceiveGas, capPerTx).")
		}
		gas, _ = c.LzReceiveGas(ctx)
	}

	o.mu.Lock()
	if o.fetchGen != gen {
		// Superseded by a newer (network, account) pair.
		o.mu.Unlock()
		return nil
	}
	if err != nil {
		o.state = StateError
		o.errRecoverable = false
		o.status = "ERROR — failed to fetch balance."
		o.mu.Unlock()
		o.note("Error (balance): %s", shortMessage(err))
		return fmt.Errorf("fetch balance: %w", err)
	}

	o.decimals = dec
	o.balance = bal
	o.capPerTx = txCap
	o.lzReceiveGas = gas
	o.state = StateReady
	o.status = "READY — waiting for input."
	o.recomputeLocked()
	o.scheduleQuoteLocked()
	o.mu.Unlock()
	return nil
}

// QuoteOnce computes an authoritative fee quote for the current inputs,
// bypassing the debounce window. Used by headless callers that want a fee
// estimate without submitting anything.
func (o *Orchestrator) QuoteOnce(ctx context.Context) (*types.FeeQuote, error) {
	o.mu.Lock()
	if !o.session.Active() {
		o.mu.Unlock()
		return nil, ErrNoSession
	}
	dir := o.directionLocked()
	if dir == types.DirectionUnsupported {
		o.mu.Unlock()
		return nil, ErrWrongNetwork
	}
	amt := o.parsedAmountLocked()
	if amt == nil {
		o.mu.Unlock()
		return nil, amount.ErrNoValidAmount
	}
	recipient, ok := o.effectiveRecipientLocked()
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("invalid recipient address")
	}
	param, err := o.buildSendParamLocked(dir, amt, recipient)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	c := o.contracts(dir)
	o.mu.Unlock()

	fee, err := o.quoter.QuoteNow(ctx, func(ctx context.Context) (*types.FeeQuote, error) {
		return c.QuoteSend(ctx, param)
	})
	if err != nil {
		return nil, fmt.Errorf("fee quote failed: %w", err)
	}

	o.mu.Lock()
	o.fee = fee
	o.feeStamp = types.StampFor(dir, amt, recipient)
	o.mu.Unlock()
	return fee, nil
}

// SubmitSend runs one complete send attempt: authoritative quote, native
// funds check, allowance gate, optional deposit, the cross-chain send, and
// the confirmation wait. It is triggered once per explicit user action and
// never retries on its own.
func (o *Orchestrator) SubmitSend(ctx context.Context) error {
	o.mu.Lock()
	if o.sendInFlight {
		o.mu.Unlock()
		return ErrSendInProgress
	}

	// Validation gate: no state progression beyond validation on failure.
	if !o.session.Active() {
		o.state = StateConnectWallet
		o.status = "CONNECT WALLET — required to bridge."
		o.mu.Unlock()
		o.note("Send blocked: wallet not connected.")
		return ErrNoSession
	}
	dir := o.directionLocked()
	if dir == types.DirectionUnsupported {
		o.state = StateWrongNetwork
		o.status = "WRONG NETWORK — switch required."
		o.mu.Unlock()
		o.note("Send blocked: unsupported network.")
		return ErrWrongNetwork
	}

	entered := o.amountStr
	amt := o.parsedAmountLocked()
	if amt == nil {
		serr := &SendError{Kind: ErrKindInvalidInput, Direction: dir, Amount: entered, Reason: "enter a valid amount > 0"}
		o.validationErrorLocked(serr)
		o.mu.Unlock()
		o.note("Send blocked: invalid amount.")
		return serr
	}
	if amount.ExceedsBalance(amt, o.balance) {
		serr := &SendError{Kind: ErrKindPolicyViolation, Direction: dir, Amount: entered, Reason: "amount exceeds your DTC balance"}
		o.validationErrorLocked(serr)
		o.mu.Unlock()
		o.note("Send blocked: exceeds balance.")
		return serr
	}
	if amount.ExceedsCap(amt, o.capPerTx) {
		serr := &SendError{Kind: ErrKindPolicyViolation, Direction: dir, Amount: entered, Reason: "amount exceeds cap per tx"}
		o.validationErrorLocked(serr)
		o.mu.Unlock()
		o.note("Send blocked: exceeds cap.")
		return serr
	}
	recipient, ok := o.effectiveRecipientLocked()
	if !ok {
		serr := &SendError{Kind: ErrKindInvalidInput, Direction: dir, Amount: entered, Reason: "enter a valid recipient address"}
		o.validationErrorLocked(serr)
		o.mu.Unlock()
		o.note("Send blocked: invalid recipient.")
		return serr
	}

	param, err := o.buildSendParamLocked(dir, amt, recipient)
	if err != nil {
		serr := &SendError{Kind: ErrKindInvalidInput, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "invalid execution options", Cause: err}
		o.validationErrorLocked(serr)
		o.mu.Unlock()
		return serr
	}

	c := o.contracts(dir)
	owner := o.session.Address()
	chainID := o.session.ChainID()

	// The send owns the machine from here: a debounced quote resolving in
	// the background must not be applied anymore.
	o.sendInFlight = true
	o.quoter.Cancel()
	o.state = StateQuotingFee
	o.status = "QUOTING FEE…"
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.sendInFlight = false
		o.mu.Unlock()
	}()

	o.note("Send: %s amount=%s recipient=%s", dir, entered, recipient.Hex())

	// Authoritative quote for the exact, final SendParam.
	fee, err := o.quoter.QuoteNow(ctx, func(ctx context.Context) (*types.FeeQuote, error) {
		return c.QuoteSend(ctx, param)
	})
	if err != nil {
		serr := &SendError{Kind: ErrKindQuoteFailed, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "fee quote failed", Cause: err}
		return o.failSend(serr, false)
	}

	o.mu.Lock()
	o.fee = fee
	o.feeStamp = types.StampFor(dir, amt, recipient)
	o.mu.Unlock()
	o.note("Native fee: %s wei", fee.NativeFee)

	if !o.hasEnoughNative(ctx, dir, fee.NativeFee) {
		serr := &SendError{Kind: ErrKindInsufficientNative, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "insufficient native funds for fee + gas"}
		return o.failSend(serr, false)
	}

	// Allowance gate: approve and wait for inclusion when short.
	allowance, err := c.Allowance(ctx, owner)
	if err != nil {
		serr := &SendError{Kind: ErrKindOnChainRejected, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "allowance check failed", Cause: err}
		return o.failSend(serr, true)
	}
	if allowance.Cmp(amt) < 0 {
		o.setPhase(StateNeedApproval, "NEED APPROVAL — allowance too low.")
		o.note("Allowance low. Approving spender (%s policy)…", o.cfg.ApprovalPolicy)

		approveAmt := amt
		if o.cfg.ApprovalPolicy == ApproveUnlimited {
			approveAmt = abi.MaxUint256
		}

		o.setPhase(StateApproving, "APPROVING…")
		approveHash, err := c.Approve(ctx, approveAmt)
		if err != nil {
			serr := &SendError{Kind: ErrKindOnChainRejected, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "approval rejected", Cause: err}
			return o.failSend(serr, true)
		}
		o.note("Approve tx sent: %s", approveHash.Hex())

		if err := c.WaitMined(ctx, approveHash); err != nil {
			serr := &SendError{Kind: ErrKindOnChainRejected, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "approval failed on-chain", Cause: err}
			return o.failSend(serr, true)
		}
		o.note("Approve confirmed.")
	}

	// Pre-transfer deposit into the intermediary contract, on the leg that
	// requires it.
	if dir == types.BaseToLinea && o.cfg.RequiresDeposit {
		o.setPhase(StateDepositing, "DEPOSITING…")
		depositHash, err := c.Deposit(ctx, amt)
		if err != nil {
			serr := &SendError{Kind: ErrKindOnChainRejected, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "deposit rejected", Cause: err}
			return o.failSend(serr, true)
		}
		o.note("Deposit tx sent: %s", depositHash.Hex())
		if err := c.WaitMined(ctx, depositHash); err != nil {
			serr := &SendError{Kind: ErrKindOnChainRejected, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "deposit failed on-chain", Cause: err}
			return o.failSend(serr, true)
		}
		o.note("Deposit confirmed.")
	}

	o.setPhase(StateSending, "SENDING…")
	sendHash, err := c.Send(ctx, param, fee)
	if err != nil {
		serr := &SendError{Kind: ErrKindOnChainRejected, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "send rejected", Cause: err}
		return o.failSend(serr, true)
	}
	o.note("Bridge tx sent: %s", sendHash.Hex())

	// Optimistic history entry: recorded before confirmation so a crash
	// does not lose the attempt.
	o.hist.Append(history.Item{
		Time:      time.Now(),
		Direction: dir.Tag(),
		Amount:    entered,
		Recipient: recipient.Hex(),
		ChainID:   chainID,
		TxHash:    sendHash.Hex(),
		Status:    history.StatusPending,
	})

	if err := c.WaitMined(ctx, sendHash); err != nil {
		serr := &SendError{Kind: ErrKindOnChainRejected, Direction: dir, Amount: entered, Recipient: recipient.Hex(), Reason: "send failed on-chain", Cause: err}
		return o.failSend(serr, true)
	}

	o.hist.MarkConfirmed(sendHash.Hex())

	o.mu.Lock()
	o.state = StateConfirmed
	o.status = "CONFIRMED — transaction mined."
	o.lastErr = nil
	o.mu.Unlock()
	o.note("Confirmed.")

	// Best-effort balance refresh after confirmation.
	if bal, err := c.BalanceOf(ctx, owner); err == nil {
		o.mu.Lock()
		o.balance = bal
		o.mu.Unlock()
	}

	return nil
}

// hasEnoughNative checks the wallet covers fee plus the per-direction
// buffer. A failed balance read fails open: transient RPC trouble must not
// block the user, but the degraded check is logged.
func (o *Orchestrator) hasEnoughNative(ctx context.Context, dir types.Direction, nativeFee *big.Int) bool {
	buffer := o.cfg.FeeBufferLinea
	if dir == types.BaseToLinea {
		buffer = o.cfg.FeeBufferBase
	}

	bal, err := o.session.NativeBalance(ctx)
	if err != nil {
		o.log.Warn("native balance check skipped, proceeding", zap.Error(err))
		o.note("Warning: could not read native balance (pre-check skipped).")
		return true
	}

	needed := new(big.Int).Add(nativeFee, buffer)
	if bal.Cmp(needed) < 0 {
		o.note("Insufficient native balance. Have %s wei, need ~%s wei (fee + buffer).", bal, needed)
		return false
	}
	return true
}

// applyQuote receives completed background quotes from the quoter. Results
// arriving after a send began, or stamped for inputs that changed since,
// are discarded.
func (o *Orchestrator) applyQuote(r quote.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sendInFlight {
		return
	}
	current, ok := o.currentStampLocked()
	if !ok || r.Stamp != current {
		if o.state == StateQuotingFee {
			o.recomputeLocked()
		}
		return
	}

	if r.Err != nil {
		o.fee = nil
		if o.state == StateQuotingFee {
			o.state = StateReady
			o.status = "READY — waiting for input."
		}
		o.logs = appendLog(o.logs, LogEntry{Time: time.Now(), Message: fmt.Sprintf("Error (quote): %s", shortMessage(r.Err))})
		return
	}

	o.fee = r.Fee
	o.feeStamp = r.Stamp
	if o.state == StateQuotingFee {
		o.state = StateReady
		o.status = "READY — waiting for input."
	}
}

// scheduleQuoteLocked queues a debounced background quote when every input
// is valid, and clears quote state otherwise.
func (o *Orchestrator) scheduleQuoteLocked() {
	if o.sendInFlight {
		return
	}
	if !o.session.Active() {
		o.dropQuoteLocked()
		return
	}
	dir := o.directionLocked()
	amt := o.parsedAmountLocked()
	recipient, ok := o.effectiveRecipientLocked()
	if dir == types.DirectionUnsupported || amt == nil || !ok ||
		amount.ExceedsBalance(amt, o.balance) || amount.ExceedsCap(amt, o.capPerTx) {
		o.dropQuoteLocked()
		return
	}

	param, err := o.buildSendParamLocked(dir, amt, recipient)
	if err != nil {
		o.dropQuoteLocked()
		return
	}

	c := o.contracts(dir)
	stamp := types.StampFor(dir, amt, recipient)
	o.quoter.Schedule(context.Background(), stamp, func(ctx context.Context) (*types.FeeQuote, error) {
		o.mu.Lock()
		if !o.sendInFlight && !o.state.sendPhase() {
			o.state = StateQuotingFee
			o.status = "QUOTING FEE…"
		}
		o.mu.Unlock()
		return c.QuoteSend(ctx, param)
	})
}

// dropQuoteLocked cancels any pending background quote. With nothing in
// flight anymore, a stale QUOTING_FEE is released and the state recomputed
// from the current inputs.
func (o *Orchestrator) dropQuoteLocked() {
	o.quoter.Cancel()
	if o.state == StateQuotingFee {
		o.state = StateReady
		o.status = "READY — waiting for input."
		o.recomputeLocked()
	}
}

// recomputeLocked advances the reactive part of the state machine in strict
// priority order: session, network, balance, cap, then error recovery.
// States owned by an in-flight send are left alone.
func (o *Orchestrator) recomputeLocked() {
	if o.sendInFlight || o.state.sendPhase() || o.state == StateFetchingBalance {
		return
	}

	switch {
	case !o.session.Active():
		o.state = StateConnectWallet
		o.status = "CONNECT WALLET — required to bridge."
	case o.directionLocked() == types.DirectionUnsupported:
		o.state = StateWrongNetwork
		o.status = "WRONG NETWORK — switch required."
	case amount.ExceedsBalance(o.parsedAmountLocked(), o.balance):
		o.state = StateError
		o.errRecoverable = true
		o.status = "ERROR — amount exceeds your DTC balance."
	case amount.ExceedsCap(o.parsedAmountLocked(), o.capPerTx):
		o.state = StateError
		o.errRecoverable = true
		o.status = "ERROR — amount exceeds cap per tx."
	default:
		// Only validation-induced errors recover silently; a failed
		// transaction or insufficient funds requires a new user action.
		if o.state == StateError && !o.errRecoverable {
			return
		}
		if o.state == StateError || o.state == StateConnectWallet || o.state == StateWrongNetwork {
			o.state = StateReady
			o.status = "READY — waiting for input."
		}
	}
}

// validationErrorLocked records a recoverable pre-flight rejection.
func (o *Orchestrator) validationErrorLocked(serr *SendError) {
	o.state = StateError
	o.errRecoverable = true
	o.status = "ERROR — " + serr.Short() + "."
	o.lastErr = serr
}

// failSend is the catch-all for failures after validation: it parks the
// machine in ERROR with the originating message and, for on-chain failures,
// appends a best-effort ERROR history item.
func (o *Orchestrator) failSend(serr *SendError, persist bool) error {
	o.mu.Lock()
	o.state = StateError
	o.errRecoverable = false
	o.status = "ERROR — " + serr.Short() + "."
	o.lastErr = serr
	o.mu.Unlock()

	o.note("Error (send): %s", shortMessage(serr))

	if persist {
		amt := serr.Amount
		if amt == "" {
			amt = "—"
		}
		recipient := serr.Recipient
		if recipient == "" {
			recipient = "—"
		}
		o.hist.Append(history.Item{
			Time:      time.Now(),
			Direction: serr.Direction.Tag(),
			Amount:    amt,
			Recipient: recipient,
			ChainID:   serr.Direction.OriginChainID(),
			Status:    history.StatusError,
		})
	}
	return serr
}

func (o *Orchestrator) setPhase(s State, status string) {
	o.mu.Lock()
	o.state = s
	o.status = status
	o.mu.Unlock()
}

func (o *Orchestrator) directionNow() types.Direction {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.directionLocked()
}

func (o *Orchestrator) directionLocked() types.Direction {
	if !o.session.Active() {
		return types.DirectionUnsupported
	}
	return types.DirectionForChain(o.session.ChainID())
}

func (o *Orchestrator) parsedAmountLocked() *big.Int {
	v, err := amount.ParseUnits(o.amountStr, o.decimals)
	if err != nil {
		return nil
	}
	return v
}

// effectiveRecipientLocked resolves the recipient: the explicit one when
// valid, else the connected wallet's own address.
func (o *Orchestrator) effectiveRecipientLocked() (common.Address, bool) {
	r := strings.TrimSpace(o.recipientStr)
	if r != "" {
		if common.IsHexAddress(r) {
			return common.HexToAddress(r), true
		}
		return common.Address{}, false
	}
	if o.session.Active() {
		return o.session.Address(), true
	}
	return common.Address{}, false
}

func (o *Orchestrator) currentStampLocked() (types.QuoteStamp, bool) {
	dir := o.directionLocked()
	amt := o.parsedAmountLocked()
	recipient, ok := o.effectiveRecipientLocked()
	if dir == types.DirectionUnsupported || amt == nil || !ok {
		return types.QuoteStamp{}, false
	}
	return types.StampFor(dir, amt, recipient), true
}

func (o *Orchestrator) buildSendParamLocked(dir types.Direction, amt *big.Int, recipient common.Address) (types.SendParam, error) {
	gas := new(big.Int).SetUint64(o.cfg.LzReceiveGasDefault)
	if o.lzReceiveGas != nil {
		gas = o.lzReceiveGas
	}
	opts, err := lzopts.BuildLzReceiveOptions(gas, nil)
	if err != nil {
		return types.SendParam{}, fmt.Errorf("build executor options: %w", err)
	}
	return types.SendParam{
		DstEID:       dir.DestinationEID(),
		To:           types.AddressToBytes32(recipient),
		AmountLD:     amt,
		MinAmountLD:  amt,
		ExtraOptions: opts,
		ComposeMsg:   []byte{},
		OFTCmd:       []byte{},
	}, nil
}

// note appends to the console ring and mirrors to the structured logger.
func (o *Orchestrator) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	o.mu.Lock()
	o.logs = appendLog(o.logs, LogEntry{Time: time.Now(), Message: msg})
	o.mu.Unlock()
	o.log.Debug(msg)
}

func appendLog(logs []LogEntry, e LogEntry) []LogEntry {
	logs = append(logs, e)
	if len(logs) > logRingSize {
		logs = logs[len(logs)-logRingSize:]
	}
	return logs
}

func shortMessage(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
