package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quotewizard/internal/api"
	"quotewizard/internal/domain"
	"quotewizard/internal/wizard"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Client talks to a quotewizard server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for baseURL. token is only sent to admin routes.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, admin bool, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Detail = e.Error, e.Detail
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateSession starts a wizard session.
func (c *Client) CreateSession(ctx context.Context) (api.SessionResponse, error) {
	var out api.SessionResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/quote/sessions", false, nil, &out)
	return out, err
}

// SubmitStep answers step n of session id.
func (c *Client) SubmitStep(ctx context.Context, id string, n int, in wizard.StepInput) (api.SessionResponse, error) {
	var out api.SessionResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/quote/sessions/"+url.PathEscape(id)+"/steps/"+strconv.Itoa(n), false, in, &out)
	return out, err
}

// Submit hands the finished session to the server.
func (c *Client) Submit(ctx context.Context, id string) (api.SubmitResponse, error) {
	var out api.SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/quote/sessions/"+url.PathEscape(id)+"/submit", false, nil, &out)
	return out, err
}

// DeleteSession discards a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/quote/sessions/"+url.PathEscape(id), false, nil, nil)
}

// QuoteRequestPage is one page of the admin quote request listing.
type QuoteRequestPage struct {
	Items  []domain.QuoteRequest `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ListQuoteRequests calls the admin listing with the given query filters.
func (c *Client) ListQuoteRequests(ctx context.Context, q url.Values) (QuoteRequestPage, error) {
	var out QuoteRequestPage
	path := "/api/v1/quote-requests"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	err := c.do(ctx, http.MethodGet, path, true, nil, &out)
	return out, err
}
