package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimlens/internal/domain"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]domain.ClaimUpdateEvent
}

func (r *batchRecorder) record(batch []domain.ClaimUpdateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *batchRecorder) snapshot() [][]domain.ClaimUpdateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]domain.ClaimUpdateEvent, len(r.batches))
	copy(out, r.batches)
	return out
}

func ev(claimID string) domain.ClaimUpdateEvent {
	return domain.ClaimUpdateEvent{ClaimID: claimID}
}

func TestClaimBatcher_CoalescesBurstIntoSingleBatch(t *testing.T) {
	rec := &batchRecorder{}
	b := newClaimBatcher(40*time.Millisecond, 300*time.Millisecond, rec.record)
	defer b.reset()

	for i := 0; i < 10; i++ {
		b.add(ev(string(rune('a' + i))))
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	batches := rec.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 10)
	// Arrival order is preserved inside the batch.
	assert.Equal(t, "a", batches[0][0].ClaimID)
	assert.Equal(t, "j", batches[0][9].ClaimID)
}

func TestClaimBatcher_RateLimitKeepsOnlyLatestBatch(t *testing.T) {
	rec := &batchRecorder{}
	b := newClaimBatcher(20*time.Millisecond, 250*time.Millisecond, rec.record)
	defer b.reset()

	// First window emits immediately (nothing emitted yet).
	b.add(ev("c1"))
	time.Sleep(60 * time.Millisecond)

	// Two more windows complete inside the min interval; the second batch
	// supersedes the first, which is dropped wholesale.
	b.add(ev("c2"))
	time.Sleep(60 * time.Millisecond)
	b.add(ev("c3"))
	time.Sleep(60 * time.Millisecond)

	require.Len(t, rec.snapshot(), 1)

	// After the interval elapses only the superseding batch arrives.
	time.Sleep(250 * time.Millisecond)
	batches := rec.snapshot()
	require.Len(t, batches, 2)
	assert.Equal(t, "c1", batches[0][0].ClaimID)
	require.Len(t, batches[1], 1)
	assert.Equal(t, "c3", batches[1][0].ClaimID)
}

func TestClaimBatcher_ResetDropsBufferedEvents(t *testing.T) {
	rec := &batchRecorder{}
	b := newClaimBatcher(40*time.Millisecond, 200*time.Millisecond, rec.record)

	b.add(ev("c1"))
	b.reset()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	// The batcher stays usable after reset.
	b.add(ev("c2"))
	time.Sleep(100 * time.Millisecond)
	batches := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "c2", batches[0][0].ClaimID)
}
