package bridge

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtc-bridge/pkg/history"
	"dtc-bridge/pkg/types"
)

var (
	testAddr      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeSession struct {
	active    bool
	chainID   uint64
	addr      common.Address
	native    *big.Int
	nativeErr error
}

func (s *fakeSession) Active() bool           { return s.active }
func (s *fakeSession) ChainID() uint64        { return s.chainID }
func (s *fakeSession) Address() common.Address { return s.addr }
func (s *fakeSession) NativeBalance(ctx context.Context) (*big.Int, error) {
	if s.nativeErr != nil {
		return nil, s.nativeErr
	}
	return new(big.Int).Set(s.native), nil
}

type fakeContracts struct {
	mu sync.Mutex

	decimals  uint8
	balance   *big.Int
	capPerTx  *big.Int
	gas       *big.Int
	allowance *big.Int
	fee       *types.FeeQuote

	quoteErr   error
	quoteGate  func() // called inside QuoteSend before it returns
	approveErr error
	sendErr    error
	waitErr    map[common.Hash]error

	approvedAmount *big.Int
	sentParam      types.SendParam
	events         []string
	nextHash       byte
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{
		decimals:  6,
		balance:   big.NewInt(5_000_000), // 5 tokens
		allowance: new(big.Int),
		fee:       &types.FeeQuote{NativeFee: big.NewInt(1000), LZTokenFee: new(big.Int)},
		waitErr:   map[common.Hash]error{},
	}
}

func (c *fakeContracts) record(event string) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *fakeContracts) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeContracts) hash() common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextHash++
	return common.BytesToHash([]byte{c.nextHash})
}

func (c *fakeContracts) Decimals(ctx context.Context) (uint8, error) { return c.decimals, nil }

func (c *fakeContracts) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return new(big.Int).Set(c.balance), nil
}

func (c *fakeContracts) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	c.record("allowance")
	return new(big.Int).Set(c.allowance), nil
}

func (c *fakeContracts) Approve(ctx context.Context, amount *big.Int) (common.Hash, error) {
	c.record("approve")
	if c.approveErr != nil {
		return common.Hash{}, c.approveErr
	}
	c.mu.Lock()
	c.approvedAmount = new(big.Int).Set(amount)
	c.mu.Unlock()
	return c.hash(), nil
}

func (c *fakeContracts) CapPerTx(ctx context.Context) (*big.Int, error) {
	if c.capPerTx == nil {
		return nil, nil
	}
	return new(big.Int).Set(c.capPerTx), nil
}

func (c *fakeContracts) LzReceiveGas(ctx context.Context) (*big.Int, error) {
	if c.gas == nil {
		return nil, nil
	}
	return new(big.Int).Set(c.gas), nil
}

func (c *fakeContracts) QuoteSend(ctx context.Context, p types.SendParam) (*types.FeeQuote, error) {
	c.record("quote")
	if c.quoteGate != nil {
		c.quoteGate()
	}
	if c.quoteErr != nil {
		return nil, c.quoteErr
	}
	return c.fee, nil
}

func (c *fakeContracts) Send(ctx context.Context, p types.SendParam, fee *types.FeeQuote) (common.Hash, error) {
	c.record("send")
	if c.sendErr != nil {
		return common.Hash{}, c.sendErr
	}
	c.mu.Lock()
	c.sentParam = p
	c.mu.Unlock()
	return c.hash(), nil
}

func (c *fakeContracts) Deposit(ctx context.Context, amount *big.Int) (common.Hash, error) {
	c.record("deposit")
	return c.hash(), nil
}

func (c *fakeContracts) WaitMined(ctx context.Context, tx common.Hash) error {
	c.record("wait")
	return c.waitErr[tx]
}

type fixture struct {
	session   *fakeSession
	contracts *fakeContracts
	hist      *history.Store
	orch      *Orchestrator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	session := &fakeSession{
		active:  true,
		chainID: types.LineaChainID,
		addr:    testAddr,
		native:  big.NewInt(1_000_000_000_000_000_000), // 1 ETH
	}
	contracts := newFakeContracts()
	hist := history.NewStore(filepath.Join(t.TempDir(), "history.json"), 25, nil)

	// A huge debounce keeps background quotes out of state machine tests;
	// quoter behavior has its own tests.
	if cfg.QuoteDebounce == 0 {
		cfg.QuoteDebounce = time.Hour
	}

	orch := New(cfg, session, func(types.Direction) Contracts { return contracts }, hist, nil)
	return &fixture{session: session, contracts: contracts, hist: hist, orch: orch}
}

func (f *fixture) ready(t *testing.T) {
	t.Helper()
	require.NoError(t, f.orch.RefreshBalance(context.Background()))
	require.Equal(t, StateReady, f.orch.State())
}

func TestInitialStateIsConnectWallet(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.active = false

	assert.Equal(t, StateConnectWallet, f.orch.State())

	err := f.orch.SubmitSend(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, f.contracts.Events())
}

func TestUnsupportedNetworkIsHardGate(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.chainID = 1 // mainnet, not a supported leg

	require.NoError(t, f.orch.RefreshBalance(context.Background()))
	assert.Equal(t, StateWrongNetwork, f.orch.State())
	assert.Equal(t, types.DirectionUnsupported, f.orch.Direction())

	err := f.orch.SubmitSend(context.Background())
	assert.ErrorIs(t, err, ErrWrongNetwork)
	assert.Empty(t, f.contracts.Events(), "no contract call may happen on an unsupported network")
	assert.Equal(t, 0, f.hist.Len())
}

func TestAmountExceedsBalanceThenRecovers(t *testing.T) {
	f := newFixture(t, Config{})
	f.ready(t)

	// balance is 5 tokens at 6 decimals
	f.orch.SetAmount("10")
	assert.True(t, f.orch.ExceedsBalance())
	assert.Equal(t, StateError, f.orch.State())

	err := f.orch.SubmitSend(context.Background())
	var serr *SendError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrKindPolicyViolation, serr.Kind)
	assert.Empty(t, f.contracts.Events(), "send must never reach the allowance/send phase")

	// Correcting the amount auto-clears the validation error.
	f.orch.SetAmount("4")
	assert.False(t, f.orch.ExceedsBalance())
	assert.Equal(t, StateReady, f.orch.State())
}

func TestCapOnlyAppliesWhenKnown(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.chainID = types.BaseChainID
	f.contracts.capPerTx = big.NewInt(3_000_000) // 3 tokens
	f.ready(t)

	f.orch.SetAmount("4")
	assert.True(t, f.orch.ExceedsCap())
	assert.Equal(t, StateError, f.orch.State())

	err := f.orch.SubmitSend(context.Background())
	var serr *SendError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrKindPolicyViolation, serr.Kind)

	// Without a cap the same amount is fine regardless of size.
	f.contracts.capPerTx = nil
	require.NoError(t, f.orch.RefreshBalance(context.Background()))
	f.orch.SetAmount("4")
	assert.False(t, f.orch.ExceedsCap())
	assert.Equal(t, StateReady, f.orch.State())
}

func TestInvalidAmountBlocksSend(t *testing.T) {
	f := newFixture(t, Config{})
	f.ready(t)

	for _, bad := range []string{"", "0", "-1", "abc", "1.2.3"} {
		f.orch.SetAmount(bad)
		err := f.orch.SubmitSend(context.Background())
		var serr *SendError
		require.ErrorAs(t, err, &serr, "amount %q", bad)
		assert.Equal(t, ErrKindInvalidInput, serr.Kind)
	}
	assert.Empty(t, f.contracts.Events())
}

func TestInvalidRecipientBlocksSend(t *testing.T) {
	f := newFixture(t, Config{})
	f.ready(t)

	f.orch.SetAmount("1")
	f.orch.SetRecipient("not-an-address")

	err := f.orch.SubmitSend(context.Background())
	var serr *SendError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrKindInvalidInput, serr.Kind)
}

func TestRecipientDefaultsToOwnAddress(t *testing.T) {
	f := newFixture(t, Config{})
	f.ready(t)

	f.orch.SetAmount("1")
	require.NoError(t, f.orch.SubmitSend(context.Background()))

	assert.Equal(t, types.AddressToBytes32(testAddr), f.contracts.sentParam.To)
}

func TestSuccessfulSendConfirmsHistory(t *testing.T) {
	f := newFixture(t, Config{})
	f.contracts.allowance = big.NewInt(1_000_000_000) // ample
	f.ready(t)

	f.orch.SetAmount("1.5")
	f.orch.SetRecipient(testRecipient.Hex())

	require.NoError(t, f.orch.SubmitSend(context.Background()))
	assert.Equal(t, StateConfirmed, f.orch.State())

	items := f.hist.Items()
	require.Len(t, items, 1)
	assert.Equal(t, history.StatusConfirmed, items[0].Status)
	assert.Equal(t, "1.5", items[0].Amount)
	assert.Equal(t, testRecipient.Hex(), items[0].Recipient)
	assert.Equal(t, "LINEA_TO_BASE", items[0].Direction)
	assert.NotEmpty(t, items[0].TxHash)

	// No approval was needed and the order was quote -> allowance -> send.
	assert.Equal(t, []string{"quote", "allowance", "send", "wait"}, f.contracts.Events())

	// Send param carries the exact amount as both amount and slippage floor.
	assert.Equal(t, "1500000", f.contracts.sentParam.AmountLD.String())
	assert.Equal(t, "1500000", f.contracts.sentParam.MinAmountLD.String())
	assert.Equal(t, types.EIDBase, f.contracts.sentParam.DstEID)
}

func TestAllowanceGateApprovesBeforeSend(t *testing.T) {
	f := newFixture(t, Config{})
	f.contracts.allowance = new(big.Int) // zero: approval required
	f.ready(t)

	f.orch.SetAmount("1")
	require.NoError(t, f.orch.SubmitSend(context.Background()))

	assert.Equal(t,
		[]string{"quote", "allowance", "approve", "wait", "send", "wait"},
		f.contracts.Events(),
		"approval must be submitted and mined before the send")

	// Default policy is unlimited.
	assert.Equal(t, abi.MaxUint256.String(), f.contracts.approvedAmount.String())
}

func TestExactApprovalPolicy(t *testing.T) {
	f := newFixture(t, Config{ApprovalPolicy: ApproveExact})
	f.ready(t)

	f.orch.SetAmount("2")
	require.NoError(t, f.orch.SubmitSend(context.Background()))

	assert.Equal(t, "2000000", f.contracts.approvedAmount.String())
}

func TestApprovalRejectionIsFatalAndPersisted(t *testing.T) {
	f := newFixture(t, Config{})
	f.contracts.approveErr = fmt.Errorf("user rejected the request")
	f.ready(t)

	f.orch.SetAmount("1")
	err := f.orch.SubmitSend(context.Background())

	var serr *SendError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrKindOnChainRejected, serr.Kind)
	assert.Equal(t, StateError, f.orch.State())

	items := f.hist.Items()
	require.Len(t, items, 1)
	assert.Equal(t, history.StatusError, items[0].Status)

	// A failed transaction does not auto-recover on the next input edit.
	f.orch.SetAmount("0.5")
	assert.Equal(t, StateError, f.orch.State())
}

func TestInsufficientNativeBlocksEverything(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.native = big.NewInt(10) // nowhere near fee + buffer
	f.ready(t)

	f.orch.SetAmount("1")
	err := f.orch.SubmitSend(context.Background())

	var serr *SendError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrKindInsufficientNative, serr.Kind)
	assert.Equal(t, StateError, f.orch.State())

	for _, ev := range f.contracts.Events() {
		assert.NotContains(t, []string{"approve", "send"}, ev,
			"no approval or send may be submitted without native funds")
	}
	assert.Equal(t, 0, f.hist.Len())
}

func TestNativeCheckFailsOpen(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.nativeErr = fmt.Errorf("rpc timeout")
	f.ready(t)

	f.orch.SetAmount("1")
	require.NoError(t, f.orch.SubmitSend(context.Background()))
	assert.Equal(t, StateConfirmed, f.orch.State())
}

func TestSendRevertAppendsSeparateErrorItem(t *testing.T) {
	f := newFixture(t, Config{})
	f.contracts.allowance = big.NewInt(1_000_000_000)
	f.ready(t)

	f.orch.SetAmount("1")
	f.orch.SetRecipient(testRecipient.Hex())

	// The send submits fine but reverts while mining. The fake's first
	// issued hash will be the send transaction.
	sendHash := common.BytesToHash([]byte{1})
	f.contracts.waitErr[sendHash] = fmt.Errorf("execution reverted")

	err := f.orch.SubmitSend(context.Background())
	var serr *SendError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrKindOnChainRejected, serr.Kind)
	assert.Equal(t, StateError, f.orch.State())

	// The optimistic PENDING item stays pending; a separate ERROR item is
	// appended on top.
	items := f.hist.Items()
	require.Len(t, items, 2)
	assert.Equal(t, history.StatusError, items[0].Status)
	assert.Empty(t, items[0].TxHash)
	assert.Equal(t, history.StatusPending, items[1].Status)
	assert.Equal(t, sendHash.Hex(), items[1].TxHash)
}

func TestQuoteFailureDuringSendIsNotPersisted(t *testing.T) {
	f := newFixture(t, Config{})
	f.contracts.quoteErr = fmt.Errorf("execution reverted")
	f.ready(t)

	f.orch.SetAmount("1")
	err := f.orch.SubmitSend(context.Background())

	var serr *SendError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrKindQuoteFailed, serr.Kind)
	assert.Equal(t, 0, f.hist.Len())
}

func TestDepositLegRunsBetweenApprovalAndSend(t *testing.T) {
	f := newFixture(t, Config{RequiresDeposit: true})
	f.session.chainID = types.BaseChainID
	f.ready(t)

	f.orch.SetAmount("1")
	require.NoError(t, f.orch.SubmitSend(context.Background()))

	assert.Equal(t,
		[]string{"quote", "allowance", "approve", "wait", "deposit", "wait", "send", "wait"},
		f.contracts.Events())
	assert.Equal(t, types.EIDLinea, f.contracts.sentParam.DstEID)
}

func TestDepositSkippedOnLineaLeg(t *testing.T) {
	f := newFixture(t, Config{RequiresDeposit: true})
	f.contracts.allowance = big.NewInt(1_000_000_000)
	f.ready(t)

	f.orch.SetAmount("1")
	require.NoError(t, f.orch.SubmitSend(context.Background()))
	assert.NotContains(t, f.contracts.Events(), "deposit")
}

func TestUseMaximumHonorsBalanceAndCap(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.chainID = types.BaseChainID
	f.contracts.capPerTx = big.NewInt(3_000_000)
	f.ready(t)

	f.orch.UseMaximum()
	assert.Equal(t, "3", f.orch.Amount())

	f.contracts.capPerTx = big.NewInt(9_000_000)
	require.NoError(t, f.orch.RefreshBalance(context.Background()))
	f.orch.UseMaximum()
	assert.Equal(t, "5", f.orch.Amount(), "balance binds when below the cap")
}

func TestBackgroundQuoteAppliesWhenCurrent(t *testing.T) {
	f := newFixture(t, Config{QuoteDebounce: 10 * time.Millisecond})
	f.ready(t)

	f.orch.SetAmount("1")

	require.Eventually(t, func() bool {
		return f.orch.Fee() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "1000", f.orch.Fee().NativeFee.String())
	assert.Equal(t, StateReady, f.orch.State())
}

func TestStaleBackgroundQuoteIsDiscarded(t *testing.T) {
	f := newFixture(t, Config{QuoteDebounce: 10 * time.Millisecond})
	f.ready(t)

	f.orch.SetAmount("1")
	// Change the amount immediately: the first quote, if it ever ran, is
	// stale and must not stick.
	f.orch.SetAmount("2")

	require.Eventually(t, func() bool {
		return f.orch.Fee() != nil
	}, time.Second, 5*time.Millisecond)

	// The fee on record must be stamped for the final amount.
	f.orch.mu.Lock()
	stamp := f.orch.feeStamp
	f.orch.mu.Unlock()
	assert.Equal(t, "2000000", stamp.Amount)
}

func TestInvalidInputWhileQuoteInFlightReleasesQuotingState(t *testing.T) {
	f := newFixture(t, Config{QuoteDebounce: 5 * time.Millisecond})
	f.ready(t)

	started := make(chan struct{})
	release := make(chan struct{})
	f.contracts.quoteGate = func() {
		close(started)
		<-release
	}

	f.orch.SetAmount("1")
	<-started
	require.Equal(t, StateQuotingFee, f.orch.State())

	// Invalidating the input cancels the in-flight quote; with nothing in
	// flight anymore the machine may not keep reporting QUOTING_FEE.
	f.orch.SetAmount("abc")
	assert.Equal(t, StateReady, f.orch.State())

	// The superseded result resolving later must change nothing.
	close(release)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateReady, f.orch.State())
	assert.Nil(t, f.orch.Fee())
}

func TestBackgroundQuoteFailureIsTransient(t *testing.T) {
	f := newFixture(t, Config{QuoteDebounce: 5 * time.Millisecond})
	f.contracts.quoteErr = fmt.Errorf("execution reverted")
	f.ready(t)

	f.orch.SetAmount("1")

	require.Eventually(t, func() bool {
		for _, ev := range f.contracts.Events() {
			if ev == "quote" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return f.orch.State() != StateQuotingFee
	}, time.Second, 5*time.Millisecond)

	// A failed background quote clears the fee and settles back to READY;
	// it is not a terminal error and nothing is persisted.
	assert.Equal(t, StateReady, f.orch.State())
	assert.Nil(t, f.orch.Fee())
	assert.Equal(t, 0, f.hist.Len())
}

func TestFeeReturnsACopy(t *testing.T) {
	f := newFixture(t, Config{})
	f.ready(t)

	f.orch.SetAmount("1")
	_, err := f.orch.QuoteOnce(context.Background())
	require.NoError(t, err)

	fee := f.orch.Fee()
	require.NotNil(t, fee)
	fee.NativeFee.SetInt64(0)

	assert.Equal(t, "1000", f.orch.Fee().NativeFee.String())
}

func TestSecondSendWhileInFlightIsRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.contracts.allowance = big.NewInt(1_000_000_000)
	f.ready(t)
	f.orch.SetAmount("1")

	f.orch.mu.Lock()
	f.orch.sendInFlight = true
	f.orch.mu.Unlock()

	err := f.orch.SubmitSend(context.Background())
	assert.ErrorIs(t, err, ErrSendInProgress)
}
