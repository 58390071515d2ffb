package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	remoteLanguage = "python"
	remoteVersion  = "3"
)

// RemoteRunner executes code through a hosted execution endpoint.
// Request: source plus language/version. Response: captured stdout and
// stderr.
type RemoteRunner struct {
	baseURL string
	client  *http.Client
}

// NewRemoteRunner creates a runner for the hosted execution API.
func NewRemoteRunner(baseURL string, timeout time.Duration) *RemoteRunner {
	return &RemoteRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Source   string `json:"source"`
}

type remoteResponse struct {
	Run Result `json:"run"`
}

// Run submits source to the remote sandbox and returns its output.
func (r *RemoteRunner) Run(ctx context.Context, source string) (*Result, error) {
	body, err := json.Marshal(remoteRequest{
		Language: remoteLanguage,
		Version:  remoteVersion,
		Source:   source,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal execution request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execution request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: execution endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode execution response: %v", ErrUnavailable, err)
	}

	out.Run.Stdout = truncate(out.Run.Stdout)
	out.Run.Stderr = truncate(out.Run.Stderr)
	return &out.Run, nil
}
