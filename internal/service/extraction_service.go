package service

import (
	"context"
	"log"
	"sync"

	"claimlens/internal/domain"
	"claimlens/internal/merge"
	"claimlens/internal/polling"
)

// ExtractionService tracks a claim's documents through processing and keeps
// one merged extraction record current as documents complete.
type ExtractionService interface {
	Track(claimID string, documentIDs []string) error
	Statuses(claimID string) (map[string]domain.DocumentProcessingStatus, error)
	Record(claimID string) (*domain.MergedExtractionRecord, error)
	ResolveConflict(claimID, field, value, sourceDocumentID string) (*domain.MergedExtractionRecord, error)
	StopTracking(claimID string) error
	Shutdown()
}

type extractionService struct {
	orch *polling.Orchestrator

	mu       sync.Mutex
	sessions map[string]*trackingSession
}

// NewExtractionService creates an ExtractionService on top of a polling
// orchestrator.
func NewExtractionService(orch *polling.Orchestrator) ExtractionService {
	return &extractionService{
		orch:     orch,
		sessions: make(map[string]*trackingSession),
	}
}

// trackingSession is one claim's live view: latest per-document statuses,
// fetched extractions, and the current merged record. The record is replaced
// wholesale on every change, so a pointer handed out earlier stays a
// consistent snapshot.
type trackingSession struct {
	claimID string
	docIDs  []string
	agg     *polling.AggregateSubscription

	mu          sync.Mutex
	statuses    map[string]domain.DocumentProcessingStatus
	extractions map[string]domain.DocumentExtraction
	record      *domain.MergedExtractionRecord
	done        chan struct{}
}

// Track starts polling the claim's documents. Tracking the same claim again
// replaces the previous session.
func (s *extractionService) Track(claimID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return domain.ErrNoDocuments
	}

	s.mu.Lock()
	if old, ok := s.sessions[claimID]; ok {
		delete(s.sessions, claimID)
		old.agg.Cancel()
	}
	sess := &trackingSession{
		claimID:     claimID,
		docIDs:      append([]string(nil), documentIDs...),
		agg:         s.orch.PollMultiple(documentIDs),
		statuses:    make(map[string]domain.DocumentProcessingStatus),
		extractions: make(map[string]domain.DocumentExtraction),
		record:      merge.Merge(nil, nil, nil),
		done:        make(chan struct{}),
	}
	s.sessions[claimID] = sess
	s.mu.Unlock()

	log.Printf("extractionService: tracking claim %s (%d documents)", claimID, len(documentIDs))
	go s.watch(sess)
	return nil
}

// watch consumes the aggregate status stream, fetching extraction results as
// documents complete and re-merging after each change.
func (s *extractionService) watch(sess *trackingSession) {
	defer close(sess.done)
	for snapshot := range sess.agg.C {
		sess.mu.Lock()
		sess.statuses = snapshot
		var toFetch []string
		for id, st := range snapshot {
			if st.Status != domain.DocStatusCompleted {
				continue
			}
			if _, ok := sess.extractions[id]; !ok {
				toFetch = append(toFetch, id)
			}
		}
		sess.mu.Unlock()

		var results []domain.DocumentExtraction
		if len(toFetch) > 0 {
			results = s.orch.GetMultipleExtractedData(context.Background(), toFetch)
		}
		sess.mu.Lock()
		for _, r := range results {
			sess.extractions[r.DocumentID] = r
		}
		sess.remergeLocked()
		sess.mu.Unlock()
	}
	log.Printf("extractionService: claim %s: all documents terminal", sess.claimID)
}

// remergeLocked rebuilds the merged record from the current document set.
// Caller holds sess.mu.
func (sess *trackingSession) remergeLocked() {
	docs := make([]domain.DocumentExtraction, 0, len(sess.docIDs))
	for _, id := range sess.docIDs {
		if d, ok := sess.extractions[id]; ok {
			docs = append(docs, d)
		}
	}
	statuses := make(map[string]domain.DocumentStatus, len(sess.statuses))
	for id, st := range sess.statuses {
		statuses[id] = st.Status
	}
	sess.record = merge.Merge(docs, statuses, sess.record)
}

// Statuses returns a copy of the latest per-document statuses for a claim.
func (s *extractionService) Statuses(claimID string) (map[string]domain.DocumentProcessingStatus, error) {
	sess, err := s.session(claimID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make(map[string]domain.DocumentProcessingStatus, len(sess.statuses))
	for k, v := range sess.statuses {
		out[k] = v
	}
	return out, nil
}

// Record returns the claim's current merged extraction record.
func (s *extractionService) Record(claimID string) (*domain.MergedExtractionRecord, error) {
	sess, err := s.session(claimID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.record, nil
}

// ResolveConflict applies a reviewer's choice to a conflicted field and
// returns the updated record. The resolution survives later re-merges as
// long as the field's candidate set does not change.
func (s *extractionService) ResolveConflict(claimID, field, value, sourceDocumentID string) (*domain.MergedExtractionRecord, error) {
	sess, err := s.session(claimID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Resolve against a clone so previously handed-out records stay
	// consistent snapshots.
	rec := cloneRecord(sess.record)
	if err := merge.ResolveConflict(rec, field, value, sourceDocumentID); err != nil {
		return nil, err
	}
	sess.record = rec
	return rec, nil
}

// StopTracking cancels the claim's polling session.
func (s *extractionService) StopTracking(claimID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[claimID]
	delete(s.sessions, claimID)
	s.mu.Unlock()
	if !ok {
		return domain.ErrClaimNotTracked
	}
	sess.agg.Cancel()
	<-sess.done
	return nil
}

// Shutdown stops every session and the orchestrator's polling loops.
func (s *extractionService) Shutdown() {
	s.mu.Lock()
	sessions := make([]*trackingSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*trackingSession)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.agg.Cancel()
		<-sess.done
	}
	s.orch.StopAll()
}

func (s *extractionService) session(claimID string) (*trackingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[claimID]
	if !ok {
		return nil, domain.ErrClaimNotTracked
	}
	return sess, nil
}

func cloneRecord(rec *domain.MergedExtractionRecord) *domain.MergedExtractionRecord {
	out := *rec
	out.Conflicts = make([]domain.DataConflict, len(rec.Conflicts))
	copy(out.Conflicts, rec.Conflicts)
	out.FieldSources = make(map[string]string, len(rec.FieldSources))
	for k, v := range rec.FieldSources {
		out.FieldSources[k] = v
	}
	out.FieldConfidences = make(map[string]float64, len(rec.FieldConfidences))
	for k, v := range rec.FieldConfidences {
		out.FieldConfidences[k] = v
	}
	return &out
}
