package polling_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"claimlens/internal/domain"
	"claimlens/internal/polling"
	"claimlens/mocks"
)

var errUpstream = errors.New("upstream unavailable")

func testOrchestrator(client *mocks.MockDocumentClient) *polling.Orchestrator {
	return polling.New(client, polling.Config{
		Interval:   25 * time.Millisecond,
		MaxRetries: 2,
	})
}

func processing(id string, pct int) *domain.DocumentProcessingStatus {
	return &domain.DocumentProcessingStatus{
		DocumentID:      id,
		Status:          domain.DocStatusProcessing,
		ProcessingStage: domain.StageParsing,
		ProgressPercent: pct,
	}
}

func completed(id string) *domain.DocumentProcessingStatus {
	return &domain.DocumentProcessingStatus{
		DocumentID:      id,
		Status:          domain.DocStatusCompleted,
		ProgressPercent: 100,
	}
}

// drain collects every delivery until the stream closes.
func drain(t *testing.T, sub *polling.Subscription) []polling.StatusUpdate {
	t.Helper()
	var updates []polling.StatusUpdate
	timeout := time.After(3 * time.Second)
	for {
		select {
		case u, ok := <-sub.C:
			if !ok {
				return updates
			}
			updates = append(updates, u)
		case <-timeout:
			t.Fatal("stream did not close in time")
		}
	}
}

func TestPollUntilComplete_StreamsUntilTerminal(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(processing("doc-1", 40), nil).Once()
	client.On("GetStatus", mock.Anything, "doc-1").Return(processing("doc-1", 80), nil).Once()
	client.On("GetStatus", mock.Anything, "doc-1").Return(completed("doc-1"), nil)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	updates := drain(t, orch.PollUntilComplete("doc-1"))

	require.NotEmpty(t, updates)
	first := updates[0]
	require.NoError(t, first.Err)
	assert.Equal(t, domain.DocStatusProcessing, first.Status.Status)
	last := updates[len(updates)-1]
	require.NoError(t, last.Err)
	assert.Equal(t, domain.DocStatusCompleted, last.Status.Status)
	assert.Equal(t, 100, last.Status.ProgressPercent)
}

func TestPollUntilComplete_ConcurrentSubscribersShareOneLoop(t *testing.T) {
	var fetches int32
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").
		Run(func(mock.Arguments) { atomic.AddInt32(&fetches, 1) }).
		Return(processing("doc-1", 50), nil).Once()
	client.On("GetStatus", mock.Anything, "doc-1").
		Run(func(mock.Arguments) { atomic.AddInt32(&fetches, 1) }).
		Return(completed("doc-1"), nil)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	subA := orch.PollUntilComplete("doc-1")
	subB := orch.PollUntilComplete("doc-1")

	updatesA := drain(t, subA)
	updatesB := drain(t, subB)

	assert.Equal(t, domain.DocStatusCompleted, updatesA[len(updatesA)-1].Status.Status)
	assert.Equal(t, domain.DocStatusCompleted, updatesB[len(updatesB)-1].Status.Status)
	// One shared fetch stream: processing then completed, not doubled.
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestPollUntilComplete_RetriesExhaustedEndsStreamWithError(t *testing.T) {
	var fetches int32
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").
		Run(func(mock.Arguments) { atomic.AddInt32(&fetches, 1) }).
		Return(nil, errUpstream)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	updates := drain(t, orch.PollUntilComplete("doc-1"))

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	require.Error(t, last.Err)
	assert.ErrorIs(t, last.Err, domain.ErrRetriesExhausted)
	// Initial fetch plus MaxRetries consecutive failures.
	assert.Equal(t, int32(3), atomic.LoadInt32(&fetches))
}

func TestPollUntilComplete_TransientErrorRecovers(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(nil, errUpstream).Once()
	client.On("GetStatus", mock.Anything, "doc-1").Return(completed("doc-1"), nil)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	updates := drain(t, orch.PollUntilComplete("doc-1"))

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	require.NoError(t, last.Err)
	assert.Equal(t, domain.DocStatusCompleted, last.Status.Status)
}

func TestPollMultiple_EmptyInputCompletesImmediately(t *testing.T) {
	orch := testOrchestrator(new(mocks.MockDocumentClient))
	defer orch.StopAll()

	agg := orch.PollMultiple(nil)

	select {
	case snapshot, ok := <-agg.C:
		require.True(t, ok)
		assert.Empty(t, snapshot)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	_, ok := <-agg.C
	assert.False(t, ok, "stream should be closed")
}

func TestPollMultiple_DeduplicatesDocumentIDs(t *testing.T) {
	var fetches int32
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").
		Run(func(mock.Arguments) { atomic.AddInt32(&fetches, 1) }).
		Return(completed("doc-1"), nil)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	agg := orch.PollMultiple([]string{"doc-1", "doc-1", "doc-1"})
	for range agg.C {
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestPollMultiple_MemberFailureIsIsolated(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(processing("doc-1", 60), nil).Once()
	client.On("GetStatus", mock.Anything, "doc-1").Return(completed("doc-1"), nil)
	client.On("GetStatus", mock.Anything, "doc-2").Return(nil, errUpstream)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	agg := orch.PollMultiple([]string{"doc-1", "doc-2"})

	var final map[string]domain.DocumentProcessingStatus
	timeout := time.After(3 * time.Second)
	for {
		select {
		case snapshot, ok := <-agg.C:
			if !ok {
				require.NotNil(t, final)
				assert.Equal(t, domain.DocStatusCompleted, final["doc-1"].Status)
				assert.Equal(t, domain.DocStatusFailed, final["doc-2"].Status)
				assert.Contains(t, final["doc-2"].Error, "retries exhausted")
				return
			}
			final = snapshot
		case <-timeout:
			t.Fatal("aggregate stream did not close in time")
		}
	}
}

func TestStopPolling_NextSubscriberGetsFreshLoop(t *testing.T) {
	var fetches int32
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").
		Run(func(mock.Arguments) { atomic.AddInt32(&fetches, 1) }).
		Return(processing("doc-1", 10), nil)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	sub := orch.PollUntilComplete("doc-1")
	select {
	case u := <-sub.C:
		require.NoError(t, u.Err)
	case <-time.After(time.Second):
		t.Fatal("no first delivery")
	}

	orch.StopPolling("doc-1")
	for range sub.C {
	}

	before := atomic.LoadInt32(&fetches)
	sub2 := orch.PollUntilComplete("doc-1")
	defer sub2.Cancel()

	// A fresh loop fetches immediately, not after a leftover interval.
	select {
	case u := <-sub2.C:
		require.NoError(t, u.Err)
	case <-time.After(time.Second):
		t.Fatal("no delivery from fresh loop")
	}
	assert.Greater(t, atomic.LoadInt32(&fetches), before)
}

func TestStopAll_NextSubscriberGetsFreshLoop(t *testing.T) {
	var fetches int32
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { atomic.AddInt32(&fetches, 1) }).
		Return(processing("doc-1", 10), nil)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	subA := orch.PollUntilComplete("doc-1")
	subB := orch.PollUntilComplete("doc-2")
	for _, sub := range []*polling.Subscription{subA, subB} {
		select {
		case u := <-sub.C:
			require.NoError(t, u.Err)
		case <-time.After(time.Second):
			t.Fatal("no first delivery")
		}
	}

	orch.StopAll()
	for range subA.C {
	}
	for range subB.C {
	}

	before := atomic.LoadInt32(&fetches)
	sub := orch.PollUntilComplete("doc-1")
	defer sub.Cancel()

	// A brand-new loop fetches immediately, not on a leftover interval.
	select {
	case u := <-sub.C:
		require.NoError(t, u.Err)
	case <-time.After(time.Second):
		t.Fatal("no delivery from fresh loop")
	}
	assert.Greater(t, atomic.LoadInt32(&fetches), before)
}

func TestSubscriptionCancel_LastSubscriberStopsLoop(t *testing.T) {
	var fetches int32
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").
		Run(func(mock.Arguments) { atomic.AddInt32(&fetches, 1) }).
		Return(processing("doc-1", 10), nil)

	orch := testOrchestrator(client)
	defer orch.StopAll()

	sub := orch.PollUntilComplete("doc-1")
	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("no first delivery")
	}
	sub.Cancel()

	time.Sleep(50 * time.Millisecond) // let an in-flight tick settle
	n := atomic.LoadInt32(&fetches)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&fetches))
}

func TestGetMultipleExtractedData_SubstitutesPlaceholderOnFailure(t *testing.T) {
	good := &domain.DocumentExtraction{DocumentID: "doc-1"}
	good.Patient.Name = domain.ExtractedField{Value: "John Doe", Confidence: 0.9}

	client := new(mocks.MockDocumentClient)
	client.On("GetExtractedData", mock.Anything, "doc-1").Return(good, nil)
	client.On("GetExtractedData", mock.Anything, "doc-2").Return(nil, errUpstream)

	orch := testOrchestrator(client)
	results := orch.GetMultipleExtractedData(context.Background(), []string{"doc-1", "doc-2"})

	require.Len(t, results, 2)
	assert.Equal(t, "doc-1", results[0].DocumentID)
	assert.Equal(t, "John Doe", results[0].Patient.Name.Value)

	assert.Equal(t, "doc-2", results[1].DocumentID)
	assert.True(t, results[1].NeedsReview)
	require.Len(t, results[1].ValidationIssues, 1)
	assert.Contains(t, results[1].ValidationIssues[0], "extraction fetch failed")
}
