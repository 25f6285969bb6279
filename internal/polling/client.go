package polling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"claimlens/internal/domain"
)

// Client implements port.DocumentClient against the document-processing API:
// GET {base}/documents/{id}/status and GET {base}/documents/{id}/extracted-data.
type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewClient creates a document API client. Individual fetches carry no
// client-side timeout; resilience comes from the orchestrator's retry count.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{},
	}
}

// GetStatus fetches a document's current processing status.
func (c *Client) GetStatus(ctx context.Context, documentID string) (*domain.DocumentProcessingStatus, error) {
	var status domain.DocumentProcessingStatus
	url := fmt.Sprintf("%s/documents/%s/status", c.baseURL, documentID)
	if err := c.getJSON(ctx, url, &status); err != nil {
		return nil, err
	}
	if status.DocumentID == "" {
		status.DocumentID = documentID
	}
	return &status, nil
}

// GetExtractedData fetches a document's extraction payload with per-field
// confidences.
func (c *Client) GetExtractedData(ctx context.Context, documentID string) (*domain.DocumentExtraction, error) {
	var data domain.DocumentExtraction
	url := fmt.Sprintf("%s/documents/%s/extracted-data", c.baseURL, documentID)
	if err := c.getJSON(ctx, url, &data); err != nil {
		return nil, err
	}
	if data.DocumentID == "" {
		data.DocumentID = documentID
	}
	return &data, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling document API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrDocumentNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("document API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidStatusBody, err)
	}
	return nil
}
