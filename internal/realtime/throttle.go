package realtime

import (
	"sync"
	"time"

	"claimlens/internal/domain"
)

// claimBatcher coalesces raw claim-update events into batches. Events are
// buffered for a short window; non-empty window batches are then rate
// limited so at most one batch goes out per minInterval. When several
// windows complete inside one interval only the most recent batch survives,
// but every event inside an emitted batch is delivered, in arrival order.
type claimBatcher struct {
	window      time.Duration
	minInterval time.Duration
	emit        func([]domain.ClaimUpdateEvent)

	mu          sync.Mutex
	buffer      []domain.ClaimUpdateEvent
	pending     []domain.ClaimUpdateEvent
	windowTimer *time.Timer
	emitTimer   *time.Timer
	lastEmit    time.Time
}

func newClaimBatcher(window, minInterval time.Duration, emit func([]domain.ClaimUpdateEvent)) *claimBatcher {
	return &claimBatcher{
		window:      window,
		minInterval: minInterval,
		emit:        emit,
	}
}

// add buffers one raw event and arms the window timer if idle.
func (b *claimBatcher) add(ev domain.ClaimUpdateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer = append(b.buffer, ev)
	if b.windowTimer == nil {
		b.windowTimer = time.AfterFunc(b.window, b.flushWindow)
	}
}

// flushWindow closes the current buffer window. Empty windows are discarded;
// a non-empty batch replaces any batch still waiting on the rate limit.
func (b *claimBatcher) flushWindow() {
	b.mu.Lock()
	b.windowTimer = nil
	batch := b.buffer
	b.buffer = nil
	if len(batch) == 0 {
		b.mu.Unlock()
		return
	}
	b.pending = batch

	since := time.Since(b.lastEmit)
	if b.lastEmit.IsZero() || since >= b.minInterval {
		b.emitLocked()
		return
	}
	if b.emitTimer == nil {
		b.emitTimer = time.AfterFunc(b.minInterval-since, b.flushPending)
	}
	b.mu.Unlock()
}

func (b *claimBatcher) flushPending() {
	b.mu.Lock()
	b.emitTimer = nil
	if b.pending == nil {
		b.mu.Unlock()
		return
	}
	b.emitLocked()
}

// emitLocked hands the pending batch to the emit callback. Called with the
// mutex held; releases it before emitting so subscribers can re-enter.
func (b *claimBatcher) emitLocked() {
	batch := b.pending
	b.pending = nil
	b.lastEmit = time.Now()
	b.mu.Unlock()
	b.emit(batch)
}

// reset cancels pending timers and drops buffered events. The batcher stays
// usable; a later add starts a fresh window.
func (b *claimBatcher) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.windowTimer != nil {
		b.windowTimer.Stop()
		b.windowTimer = nil
	}
	if b.emitTimer != nil {
		b.emitTimer.Stop()
		b.emitTimer = nil
	}
	b.buffer = nil
	b.pending = nil
	b.lastEmit = time.Time{}
}
