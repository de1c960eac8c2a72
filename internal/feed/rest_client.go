package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"mentiond/internal/models"
	"mentiond/internal/services"
	"mentiond/internal/structures"
)

// TransportError carries the upstream HTTP status and the server-provided
// message verbatim, so callers can surface the backend's own diagnostics.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d", e.StatusCode)
	}
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Message)
}

type RestClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewRestClient(conf *structures.Config) services.BackendClientInterface {
	return &RestClient{
		baseURL: strings.TrimRight(conf.Backend.BaseURL, "/"),
		token:   conf.Backend.Token,
		httpClient: &http.Client{
			Timeout: conf.Backend.RequestTimeout,
		},
	}
}

// FetchSnapshot loads the bounded most-recent-first snapshot for a scope.
// Failures are returned as-is for the caller to retry; this layer never
// retries snapshot loads on its own.
func (c *RestClient) FetchSnapshot(ctx context.Context, scopeID string, limit int) ([]*models.MentionRecord, error) {
	q := url.Values{}
	q.Set("scope", scopeID)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, "/mentions?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unable to decode snapshot payload: %w", err)
	}
	return NormalizeAll(raw), nil
}

// SetLead flips the lead flag on the backend and returns the canonical
// record. Idempotent: repeating the same desired value yields the same
// end state.
func (c *RestClient) SetLead(ctx context.Context, id string, desired bool) (*models.MentionRecord, error) {
	payload, err := json.Marshal(map[string]bool{"isLead": desired})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPatch, "/mentions/"+url.PathEscape(id)+"/lead", payload)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unable to decode mutation payload: %w", err)
	}
	rec := Normalize(raw)
	if rec == nil {
		return nil, fmt.Errorf("mutation response is missing a record id")
	}
	return rec, nil
}

func (c *RestClient) do(ctx context.Context, method, requestPath string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return payload, nil
	}

	var errPayload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(payload, &errPayload)
	message := errPayload.Message
	if message == "" {
		message = errPayload.Error
	}
	return nil, &TransportError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
