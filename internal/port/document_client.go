package port

import (
	"context"

	"claimlens/internal/domain"
)

// DocumentClient fetches per-document processing status and extraction
// results from the document-processing API.
type DocumentClient interface {
	GetStatus(ctx context.Context, documentID string) (*domain.DocumentProcessingStatus, error)
	GetExtractedData(ctx context.Context, documentID string) (*domain.DocumentExtraction, error)
}
