// Package polling converts the document-processing status endpoint into
// deduplicated, terminating, retryable per-document streams and aggregates
// many documents into one live status map.
package polling

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"claimlens/internal/domain"
	"claimlens/internal/port"
)

// Config holds orchestrator settings.
type Config struct {
	Interval   time.Duration
	MaxRetries int
}

// StatusUpdate is one delivery on a polling stream: either a status snapshot
// or a stream-ending error. The stream channel is closed after a terminal
// status or an error has been delivered.
type StatusUpdate struct {
	Status domain.DocumentProcessingStatus
	Err    error
}

// Subscription is one subscriber's handle on a shared polling stream.
type Subscription struct {
	C      <-chan StatusUpdate
	cancel func()
}

// Cancel detaches this subscriber. When the last subscriber detaches the
// underlying polling loop stops and its cache entry is purged.
func (s *Subscription) Cancel() { s.cancel() }

// AggregateSubscription delivers incremental snapshots of a multi-document
// status map. The channel closes once every member has reached a terminal
// state or the subscription is canceled.
type AggregateSubscription struct {
	C      <-chan map[string]domain.DocumentProcessingStatus
	cancel func()
}

// Cancel stops the aggregate and detaches from all member streams.
func (s *AggregateSubscription) Cancel() { s.cancel() }

// Orchestrator owns the id → polling-loop cache. It is the cache's only
// writer; subscribers only read delivered snapshots.
type Orchestrator struct {
	client port.DocumentClient
	cfg    Config

	mu    sync.Mutex
	loops map[string]*pollLoop
}

// New creates an Orchestrator. Zero config fields fall back to a 2s poll
// interval and 3 retries.
func New(client port.DocumentClient, cfg Config) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Orchestrator{
		client: client,
		cfg:    cfg,
		loops:  make(map[string]*pollLoop),
	}
}

// PollUntilComplete returns a subscription on the single shared polling loop
// for the document. A concurrent second caller joins the same loop; no
// second fetch stream is started. The loop fetches immediately, then once
// per interval, and closes after delivering a terminal status or, once
// retries are exhausted, a stream error.
func (o *Orchestrator) PollUntilComplete(documentID string) *Subscription {
	for {
		l := o.loopFor(documentID)
		if sub := l.subscribe(o); sub != nil {
			return sub
		}
		// The loop finished between lookup and subscribe; start fresh.
	}
}

// GetStatus is a one-shot, uncached status fetch.
func (o *Orchestrator) GetStatus(ctx context.Context, documentID string) (*domain.DocumentProcessingStatus, error) {
	return o.client.GetStatus(ctx, documentID)
}

// GetExtractedData is a one-shot, uncached extraction fetch.
func (o *Orchestrator) GetExtractedData(ctx context.Context, documentID string) (*domain.DocumentExtraction, error) {
	return o.client.GetExtractedData(ctx, documentID)
}

// PollMultiple fans out PollUntilComplete per document and delivers a live
// map of the latest statuses. An empty input completes immediately with an
// empty map. A member whose stream fails is substituted with a synthetic
// failed status; its siblings are unaffected.
func (o *Orchestrator) PollMultiple(documentIDs []string) *AggregateSubscription {
	out := make(chan map[string]domain.DocumentProcessingStatus, 16)
	if len(documentIDs) == 0 {
		out <- map[string]domain.DocumentProcessingStatus{}
		close(out)
		return &AggregateSubscription{C: out, cancel: func() {}}
	}

	ids := dedupe(documentIDs)
	subs := make([]*Subscription, len(ids))
	for i, id := range ids {
		subs[i] = o.PollUntilComplete(id)
	}

	var mu sync.Mutex
	latest := make(map[string]domain.DocumentProcessingStatus, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(id string, sub *Subscription) {
			defer wg.Done()
			for u := range sub.C {
				mu.Lock()
				if u.Err != nil {
					latest[id] = domain.DocumentProcessingStatus{
						DocumentID: id,
						Status:     domain.DocStatusFailed,
						Error:      u.Err.Error(),
					}
				} else {
					latest[id] = u.Status
				}
				snapshot := copyStatusMap(latest)
				mu.Unlock()
				trySend(out, snapshot)
			}
		}(id, subs[i])
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	cancel := func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}
	return &AggregateSubscription{C: out, cancel: cancel}
}

// GetMultipleExtractedData fetches extraction results for many documents in
// parallel. A per-document failure is substituted with a zero-confidence
// placeholder flagged needs_review and carrying a diagnostic validation
// issue; sibling fetches are unaffected. Results come back in input order.
func (o *Orchestrator) GetMultipleExtractedData(ctx context.Context, documentIDs []string) []domain.DocumentExtraction {
	results := make([]domain.DocumentExtraction, len(documentIDs))
	var wg sync.WaitGroup
	for i, id := range documentIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			data, err := o.client.GetExtractedData(ctx, id)
			if err != nil {
				log.Printf("polling.Orchestrator: extracted data for %s: %v", id, err)
				results[i] = domain.DocumentExtraction{
					DocumentID:  id,
					NeedsReview: true,
					ValidationIssues: []string{
						fmt.Sprintf("extraction fetch failed: %v", err),
					},
				}
				return
			}
			results[i] = *data
		}(i, id)
	}
	wg.Wait()
	return results
}

// StopPolling cancels the loop for one document and purges its cache entry.
// Subscribers' streams close without a terminal delivery. A subsequent
// PollUntilComplete starts an entirely fresh loop.
func (o *Orchestrator) StopPolling(documentID string) {
	o.mu.Lock()
	l := o.loops[documentID]
	delete(o.loops, documentID)
	o.mu.Unlock()
	if l != nil {
		l.cancel()
		l.finish()
	}
}

// StopAll cancels every active loop and empties the cache.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	loops := make([]*pollLoop, 0, len(o.loops))
	for _, l := range o.loops {
		loops = append(loops, l)
	}
	o.loops = make(map[string]*pollLoop)
	o.mu.Unlock()
	for _, l := range loops {
		l.cancel()
		l.finish()
	}
}

// loopFor returns the live loop for a document, starting one if absent.
func (o *Orchestrator) loopFor(documentID string) *pollLoop {
	o.mu.Lock()
	defer o.mu.Unlock()
	if l, ok := o.loops[documentID]; ok {
		return l
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &pollLoop{
		id:     documentID,
		cancel: cancel,
		subs:   make(map[uuid.UUID]chan StatusUpdate),
	}
	o.loops[documentID] = l
	go o.run(ctx, l)
	return l
}

// removeLoop purges a loop's cache entry. The pointer comparison guards
// against a stale loop purging a fresh entry created after a restart.
func (o *Orchestrator) removeLoop(l *pollLoop) {
	o.mu.Lock()
	if o.loops[l.id] == l {
		delete(o.loops, l.id)
	}
	o.mu.Unlock()
}

// run is the fetch loop: one immediate fetch, then one per interval. Fetch
// ticks are sequential, so deliveries are strictly in tick order.
func (o *Orchestrator) run(ctx context.Context, l *pollLoop) {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	retries := 0
	for {
		status, err := o.client.GetStatus(ctx, l.id)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			retries++
			if retries > o.cfg.MaxRetries {
				log.Printf("polling.Orchestrator: document %s: %v (retries exhausted)", l.id, err)
				o.removeLoop(l)
				l.fail(fmt.Errorf("%w: %v", domain.ErrRetriesExhausted, err))
				return
			}
			log.Printf("polling.Orchestrator: document %s: %v (retry %d/%d)", l.id, err, retries, o.cfg.MaxRetries)
		default:
			retries = 0
			l.broadcast(StatusUpdate{Status: *status})
			if status.Status.Terminal() {
				o.removeLoop(l)
				l.finish()
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollLoop is one shared fetch loop plus its subscriber registry.
type pollLoop struct {
	id     string
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[uuid.UUID]chan StatusUpdate
	closed bool
}

// subscribe registers a new subscriber channel, or returns nil if the loop
// has already finished.
func (l *pollLoop) subscribe(o *Orchestrator) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	key := uuid.New()
	ch := make(chan StatusUpdate, 16)
	l.subs[key] = ch
	return &Subscription{C: ch, cancel: func() { l.unsubscribe(o, key) }}
}

// unsubscribe detaches one subscriber; the last one out stops the loop.
func (l *pollLoop) unsubscribe(o *Orchestrator, key uuid.UUID) {
	l.mu.Lock()
	ch, ok := l.subs[key]
	if ok {
		delete(l.subs, key)
		close(ch)
	}
	last := ok && !l.closed && len(l.subs) == 0
	if last {
		l.closed = true
	}
	l.mu.Unlock()
	if last {
		l.cancel()
		o.removeLoop(l)
	}
}

func (l *pollLoop) broadcast(u StatusUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for _, ch := range l.subs {
		sendLatest(ch, u)
	}
}

// fail delivers a stream error to every subscriber and closes the stream.
func (l *pollLoop) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for _, ch := range l.subs {
		sendLatest(ch, StatusUpdate{Err: err})
		close(ch)
	}
	l.subs = nil
}

// finish closes every subscriber channel without a further delivery.
func (l *pollLoop) finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for _, ch := range l.subs {
		close(ch)
	}
	l.subs = nil
}

// sendLatest delivers without blocking the loop: if the subscriber's buffer
// is full the oldest pending update is dropped. Statuses are snapshots, so a
// slow subscriber still observes the newest state in order.
func sendLatest(ch chan StatusUpdate, u StatusUpdate) {
	for {
		select {
		case ch <- u:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func trySend(ch chan map[string]domain.DocumentProcessingStatus, m map[string]domain.DocumentProcessingStatus) {
	for {
		select {
		case ch <- m:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func copyStatusMap(m map[string]domain.DocumentProcessingStatus) map[string]domain.DocumentProcessingStatus {
	out := make(map[string]domain.DocumentProcessingStatus, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
