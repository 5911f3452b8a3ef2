package track

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cddevrks/code-run/internal/job"
)

// HTTPAPI implements API against the REST interface of a running server.
type HTTPAPI struct {
	base   string
	client *http.Client
}

// NewHTTPAPI creates a client for the given base URL, e.g.
// "http://localhost:8090".
func NewHTTPAPI(baseURL string) *HTTPAPI {
	return &HTTPAPI{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *HTTPAPI) Execute(ctx context.Context, req job.ExecuteRequest) (*job.ExecuteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	// Rejections come back with a non-2xx code but the same body shape;
	// the caller distinguishes on the success flag.
	var resp job.ExecuteResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("server returned %d: %w", httpResp.StatusCode, err)
	}
	return &resp, nil
}

func (a *HTTPAPI) Status(ctx context.Context, jobID string) (*job.StatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+"/api/status/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request returned %d", httpResp.StatusCode)
	}

	var resp job.StatusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return &resp, nil
}
