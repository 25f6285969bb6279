package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"claimlens/internal/domain"
	"claimlens/internal/polling"
	"claimlens/internal/service"
	"claimlens/mocks"
)

func newService(client *mocks.MockDocumentClient) service.ExtractionService {
	orch := polling.New(client, polling.Config{
		Interval:   20 * time.Millisecond,
		MaxRetries: 2,
	})
	return service.NewExtractionService(orch)
}

func completedStatus(id string) *domain.DocumentProcessingStatus {
	return &domain.DocumentProcessingStatus{
		DocumentID:      id,
		Status:          domain.DocStatusCompleted,
		ProgressPercent: 100,
	}
}

func extraction(id, patientName string, confidence float64) *domain.DocumentExtraction {
	d := &domain.DocumentExtraction{DocumentID: id}
	d.Patient.Name = domain.ExtractedField{Value: patientName, Confidence: confidence}
	return d
}

// waitForRecord polls the service until cond holds for the claim's record.
func waitForRecord(t *testing.T, svc service.ExtractionService, claimID string, cond func(*domain.MergedExtractionRecord) bool) *domain.MergedExtractionRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := svc.Record(claimID)
		require.NoError(t, err)
		if cond(rec) {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("record did not reach expected state in time")
	return nil
}

func TestTrack_RequiresDocumentIDs(t *testing.T) {
	svc := newService(new(mocks.MockDocumentClient))
	err := svc.Track("clm-1", nil)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestTrack_MergesCompletedDocumentsAndRaisesConflict(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(completedStatus("doc-1"), nil)
	client.On("GetStatus", mock.Anything, "doc-2").Return(completedStatus("doc-2"), nil)
	client.On("GetExtractedData", mock.Anything, "doc-1").Return(extraction("doc-1", "John Doe", 0.90), nil)
	client.On("GetExtractedData", mock.Anything, "doc-2").Return(extraction("doc-2", "Jon Doe", 0.60), nil)

	svc := newService(client)
	defer svc.Shutdown()

	require.NoError(t, svc.Track("clm-1", []string{"doc-1", "doc-2"}))

	rec := waitForRecord(t, svc, "clm-1", func(r *domain.MergedExtractionRecord) bool {
		return len(r.Conflicts) == 1
	})

	c := rec.Conflict("patient.name")
	require.NotNil(t, c)
	assert.Equal(t, "John Doe", c.ResolvedValue)
	assert.Equal(t, domain.ResolvedFromAuto, c.ResolvedFrom)
	assert.True(t, c.RequiresReview)
	assert.Equal(t, "John Doe", rec.Patient.Name)
	assert.Equal(t, "doc-1", rec.FieldSources["patient.name"])

	statuses, err := svc.Statuses("clm-1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, domain.DocStatusCompleted, statuses["doc-1"].Status)
	assert.Equal(t, domain.DocStatusCompleted, statuses["doc-2"].Status)
}

func TestResolveConflict_UpdatesRecordWithoutMutatingSnapshots(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(completedStatus("doc-1"), nil)
	client.On("GetStatus", mock.Anything, "doc-2").Return(completedStatus("doc-2"), nil)
	client.On("GetExtractedData", mock.Anything, "doc-1").Return(extraction("doc-1", "John Doe", 0.90), nil)
	client.On("GetExtractedData", mock.Anything, "doc-2").Return(extraction("doc-2", "Jon Doe", 0.60), nil)

	svc := newService(client)
	defer svc.Shutdown()

	require.NoError(t, svc.Track("clm-1", []string{"doc-1", "doc-2"}))
	before := waitForRecord(t, svc, "clm-1", func(r *domain.MergedExtractionRecord) bool {
		return len(r.Conflicts) == 1
	})

	resolved, err := svc.ResolveConflict("clm-1", "patient.name", "Jon Doe", "doc-2")
	require.NoError(t, err)
	assert.Equal(t, "Jon Doe", resolved.Patient.Name)
	assert.False(t, resolved.HasUnresolvedConflicts())

	// The snapshot handed out before resolution is untouched.
	assert.Equal(t, "John Doe", before.Patient.Name)
	assert.True(t, before.HasUnresolvedConflicts())

	after, err := svc.Record("clm-1")
	require.NoError(t, err)
	assert.Equal(t, "Jon Doe", after.Patient.Name)
}

func TestResolveConflict_UnknownClaim(t *testing.T) {
	svc := newService(new(mocks.MockDocumentClient))
	_, err := svc.ResolveConflict("missing", "patient.name", "x", "doc-1")
	assert.ErrorIs(t, err, domain.ErrClaimNotTracked)
}

func TestTrack_FailedDocumentExcludedFromMerge(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(completedStatus("doc-1"), nil)
	client.On("GetStatus", mock.Anything, "doc-2").Return(nil, errors.New("upstream unavailable"))
	client.On("GetExtractedData", mock.Anything, "doc-1").Return(extraction("doc-1", "John Doe", 0.90), nil)

	svc := newService(client)
	defer svc.Shutdown()

	require.NoError(t, svc.Track("clm-1", []string{"doc-1", "doc-2"}))

	rec := waitForRecord(t, svc, "clm-1", func(r *domain.MergedExtractionRecord) bool {
		return r.Patient.Name != ""
	})
	assert.Equal(t, "John Doe", rec.Patient.Name)
	assert.Empty(t, rec.Conflicts)

	// doc-2 exhausts its retries and surfaces as failed; its extraction is
	// never fetched.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		statuses, err := svc.Statuses("clm-1")
		require.NoError(t, err)
		if statuses["doc-2"].Status == domain.DocStatusFailed {
			client.AssertNotCalled(t, "GetExtractedData", mock.Anything, "doc-2")
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("doc-2 never reported failed")
}

func TestStopTracking_RemovesSession(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(&domain.DocumentProcessingStatus{
		DocumentID: "doc-1",
		Status:     domain.DocStatusProcessing,
	}, nil)

	svc := newService(client)
	defer svc.Shutdown()

	require.NoError(t, svc.Track("clm-1", []string{"doc-1"}))
	require.NoError(t, svc.StopTracking("clm-1"))

	_, err := svc.Record("clm-1")
	assert.ErrorIs(t, err, domain.ErrClaimNotTracked)
	assert.ErrorIs(t, svc.StopTracking("clm-1"), domain.ErrClaimNotTracked)
}

func TestTrack_SameClaimReplacesSession(t *testing.T) {
	client := new(mocks.MockDocumentClient)
	client.On("GetStatus", mock.Anything, "doc-1").Return(completedStatus("doc-1"), nil)
	client.On("GetStatus", mock.Anything, "doc-2").Return(completedStatus("doc-2"), nil)
	client.On("GetExtractedData", mock.Anything, "doc-1").Return(extraction("doc-1", "John Doe", 0.90), nil)
	client.On("GetExtractedData", mock.Anything, "doc-2").Return(extraction("doc-2", "Jane Roe", 0.85), nil)

	svc := newService(client)
	defer svc.Shutdown()

	require.NoError(t, svc.Track("clm-1", []string{"doc-1"}))
	require.NoError(t, svc.Track("clm-1", []string{"doc-2"}))

	rec := waitForRecord(t, svc, "clm-1", func(r *domain.MergedExtractionRecord) bool {
		return r.Patient.Name != ""
	})
	assert.Equal(t, "Jane Roe", rec.Patient.Name)
}
