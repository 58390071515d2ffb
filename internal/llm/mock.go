package llm

import (
	"context"
	"iter"
	"sync"
)

// MockClient is a scripted Client for tests. Responses are returned in
// order; once exhausted, the last response repeats.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Requests  []Request
	calls     int
}

// Complete returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.next(), nil
}

// Stream yields the next scripted response in three chunks to exercise
// incremental consumption.
func (m *MockClient) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	err := m.Err
	text := ""
	if err == nil {
		text = m.next()
	}
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		if err != nil {
			yield("", err)
			return
		}
		for len(text) > 0 {
			n := len(text)/3 + 1
			if n > len(text) {
				n = len(text)
			}
			if !yield(text[:n], nil) {
				return
			}
			text = text[n:]
		}
	}
}

// CallCount returns how many requests the mock has served.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *MockClient) next() string {
	if len(m.Responses) == 0 {
		m.calls++
		return ""
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx]
}
