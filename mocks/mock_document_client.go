package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimlens/internal/domain"
)

// MockDocumentClient is a mock implementation of port.DocumentClient.
type MockDocumentClient struct {
	mock.Mock
}

func (m *MockDocumentClient) GetStatus(ctx context.Context, documentID string) (*domain.DocumentProcessingStatus, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentProcessingStatus), args.Error(1)
}

func (m *MockDocumentClient) GetExtractedData(ctx context.Context, documentID string) (*domain.DocumentExtraction, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentExtraction), args.Error(1)
}
