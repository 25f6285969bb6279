package mocks

import (
	"github.com/stretchr/testify/mock"

	"claimlens/internal/domain"
)

// MockExtractionService is a mock implementation of service.ExtractionService.
type MockExtractionService struct {
	mock.Mock
}

func (m *MockExtractionService) Track(claimID string, documentIDs []string) error {
	args := m.Called(claimID, documentIDs)
	return args.Error(0)
}

func (m *MockExtractionService) Statuses(claimID string) (map[string]domain.DocumentProcessingStatus, error) {
	args := m.Called(claimID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.DocumentProcessingStatus), args.Error(1)
}

func (m *MockExtractionService) Record(claimID string) (*domain.MergedExtractionRecord, error) {
	args := m.Called(claimID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MergedExtractionRecord), args.Error(1)
}

func (m *MockExtractionService) ResolveConflict(claimID, field, value, sourceDocumentID string) (*domain.MergedExtractionRecord, error) {
	args := m.Called(claimID, field, value, sourceDocumentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MergedExtractionRecord), args.Error(1)
}

func (m *MockExtractionService) StopTracking(claimID string) error {
	args := m.Called(claimID)
	return args.Error(0)
}

func (m *MockExtractionService) Shutdown() {
	m.Called()
}
