package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRemoteRunnerRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/execute" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Language != "python" || req.Version != "3" {
			t.Errorf("language/version = %s/%s", req.Language, req.Version)
		}
		if req.Source != "print(42)" {
			t.Errorf("source = %q", req.Source)
		}
		_ = json.NewEncoder(w).Encode(remoteResponse{Run: Result{Stdout: "42\n"}})
	}))
	defer srv.Close()

	runner := NewRemoteRunner(srv.URL, 2*time.Second)
	result, err := runner.Run(context.Background(), "print(42)")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stdout != "42\n" {
		t.Errorf("stdout = %q, want %q", result.Stdout, "42\n")
	}
}

func TestRemoteRunnerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over capacity", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	runner := NewRemoteRunner(srv.URL, 2*time.Second)
	if _, err := runner.Run(context.Background(), "print(42)"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestRemoteRunnerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	runner := NewRemoteRunner(srv.URL, time.Second)
	if _, err := runner.Run(context.Background(), "print(42)"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestRemoteRunnerBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	runner := NewRemoteRunner(srv.URL, time.Second)
	if _, err := runner.Run(context.Background(), "print(42)"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestRemoteRunnerTruncatesOutput(t *testing.T) {
	big := strings.Repeat("x", maxOutputBytes+100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(remoteResponse{Run: Result{Stdout: big}})
	}))
	defer srv.Close()

	runner := NewRemoteRunner(srv.URL, 2*time.Second)
	result, err := runner.Run(context.Background(), "print('x' * 1000000)")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Stdout) >= len(big) {
		t.Errorf("stdout not truncated: %d bytes", len(result.Stdout))
	}
}
