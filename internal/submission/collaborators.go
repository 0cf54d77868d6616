package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quotewizard/internal/domain"
	"quotewizard/internal/storage"
)

// StoreCollaborator writes records into the service's own store.
type StoreCollaborator struct {
	Store storage.QuoteRequestStore
}

func (c StoreCollaborator) Insert(ctx context.Context, table string, record domain.QuoteRequest) error {
	if table != domain.QuoteRequestsTable {
		return fmt.Errorf("unknown table %q", table)
	}
	_, err := c.Store.CreateQuoteRequest(ctx, record)
	return err
}

// RESTCollaborator inserts rows through a PostgREST-style endpoint:
// POST {base}/rest/v1/{table} with apikey and bearer headers.
type RESTCollaborator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTCollaborator creates a RESTCollaborator. A zero timeout leaves the
// request bounded only by the caller's context.
func NewRESTCollaborator(baseURL, apiKey string, timeout time.Duration) *RESTCollaborator {
	return &RESTCollaborator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *RESTCollaborator) Insert(ctx context.Context, table string, record domain.QuoteRequest) error {
	body, err := json.Marshal([]domain.QuoteRequest{record})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	url := c.baseURL + "/rest/v1/" + table
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var errBody struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errBody)
	msg := errBody.Message
	if msg == "" {
		msg = errBody.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if errBody.Details != "" {
		msg += " - " + errBody.Details
	}
	return fmt.Errorf("insert into %s rejected (status %d): %s", table, resp.StatusCode, msg)
}
