package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes bounds worker responses; a runaway runner must not
// exhaust memory here.
const maxResponseBytes = 16 << 20

// HTTPWorker calls a remote extraction worker service. The remote side
// owns headless-browser rendering and script execution; this client only
// enforces the request/response contract and the caller's deadline.
type HTTPWorker struct {
	baseURL string
	client  *http.Client
}

// NewHTTPWorker creates a client for the extraction worker at baseURL.
func NewHTTPWorker(baseURL string, client *http.Client) *HTTPWorker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPWorker{baseURL: baseURL, client: client}
}

type extractRequest struct {
	URL        string `json:"url"`
	ModuleName string `json:"module_name,omitempty"`
	ScriptCode string `json:"script_code,omitempty"`
	Hints      Hints  `json:"hints"`
}

type extractResponse struct {
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Extract posts the extraction request and decodes the result. The
// context carries the caller's timeout.
func (w *HTTPWorker) Extract(ctx context.Context, url string, spec Spec, hints Hints) (*Result, error) {
	payload, err := json.Marshal(extractRequest{
		URL:        url,
		ModuleName: spec.ModuleName,
		ScriptCode: spec.ScriptCode,
		Hints:      hints,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.baseURL+"/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction worker call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read extraction response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction worker returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded extractResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("extraction worker error: %s", decoded.Error)
	}
	if decoded.Result == nil {
		return nil, fmt.Errorf("extraction worker returned no result")
	}

	return decoded.Result, nil
}

// Ensure HTTPWorker implements Worker.
var _ Worker = (*HTTPWorker)(nil)
