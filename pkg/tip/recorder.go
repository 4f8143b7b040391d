package tip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tipx/tipx/pkg/ledger/service"
)

const recorderTimeout = 30 * time.Second

// HTTPRecorder reports settled contributions to the ledger API over HTTP.
type HTTPRecorder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRecorder creates a recorder talking to the ledger API at baseURL.
func NewHTTPRecorder(baseURL string) *HTTPRecorder {
	return &HTTPRecorder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: recorderTimeout},
	}
}

// Record posts the contribution and returns the ledger's payout response.
func (r *HTTPRecorder) Record(ctx context.Context, req service.RecordRequest) (*service.RecordResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/api/contributions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build record request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ledger API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("record rejected (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("record rejected (%d)", resp.StatusCode)
	}

	result := new(service.RecordResult)
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("failed to decode record response: %w", err)
	}
	return result, nil
}
