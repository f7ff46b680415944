// Package quote schedules fee quotes against the origin chain contract.
//
// Background quotes are debounced: a quiescence window must pass after the
// last input change before the contract is asked. Each schedule bumps a
// generation counter; a completing quote whose generation is no longer
// current is discarded, never merged. Cancellation is advisory only.
package quote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dtc-bridge/pkg/types"
)

// DefaultDebounce matches the input quiescence window of the web client.
const DefaultDebounce = 350 * time.Millisecond

// Func performs one quote call for an already-built SendParam.
type Func func(ctx context.Context) (*types.FeeQuote, error)

// Result is a completed background quote, stamped with the exact inputs it
// was computed for. Err is set when the quote failed; failure is transient
// and clears any current quote.
type Result struct {
	Stamp types.QuoteStamp
	Fee   *types.FeeQuote
	Err   error
}

// Quoter runs debounced background quotes and synchronous authoritative
// ones. Only the most recently scheduled request may deliver a result.
type Quoter struct {
	debounce time.Duration
	apply    func(Result)
	log      *zap.Logger

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

// New builds a Quoter delivering completed background quotes to apply.
func New(debounce time.Duration, apply func(Result), log *zap.Logger) *Quoter {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Quoter{debounce: debounce, apply: apply, log: log}
}

// Schedule queues a background quote for the given stamp, superseding any
// pending or in-flight one. The quote runs after the debounce window on its
// own goroutine; its result is delivered through apply only if no newer
// schedule or cancel happened in the meantime.
func (q *Quoter) Schedule(ctx context.Context, stamp types.QuoteStamp, fn Func) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.gen++
	gen := q.gen

	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.debounce, func() {
		if !q.current(gen) {
			return
		}
		fee, err := fn(ctx)
		if err != nil {
			q.log.Debug("background quote failed", zap.Error(err))
		}
		// Re-check after the call: a newer schedule wins.
		if !q.current(gen) {
			return
		}
		q.apply(Result{Stamp: stamp, Fee: fee, Err: err})
	})
}

// Cancel discards any pending or in-flight background quote. Safe to call
// at any time; an already-running contract call is not aborted, its result
// is simply ignored.
func (q *Quoter) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// QuoteNow performs the authoritative synchronous quote used inside a send.
// It cancels any background quote first so a stale debounced result cannot
// race the send.
func (q *Quoter) QuoteNow(ctx context.Context, fn Func) (*types.FeeQuote, error) {
	q.Cancel()
	return fn(ctx)
}

func (q *Quoter) current(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen == gen
}
