package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrClaimNotTracked   = errors.New("claim is not being tracked")
	ErrConflictNotFound  = errors.New("no conflict recorded for this field")
	ErrNoDocuments       = errors.New("no document ids supplied")
	ErrChannelClosed     = errors.New("realtime channel is closed")
	ErrPollingStopped    = errors.New("polling was stopped before completion")
	ErrRetriesExhausted  = errors.New("status fetch retries exhausted")
	ErrInvalidStatusBody = errors.New("status response does not match expected format")
)
