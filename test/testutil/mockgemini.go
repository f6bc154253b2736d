package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockGemini is an httptest.Server that simulates the Gemini
// models/{model}:streamGenerateContent endpoint in SSE mode.
type MockGemini struct {
	Server *httptest.Server

	mu          sync.Mutex
	chunks      []string
	failStatus  int
	failMessage string
	requests    []map[string]any
	paths       []string
}

// NewMockGemini creates and starts a mock that streams chunks.
func NewMockGemini(chunks ...string) *MockGemini {
	m := &MockGemini{chunks: chunks}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Fail makes every request fail with a Google API error body.
func (m *MockGemini) Fail(status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatus, m.failMessage = status, message
}

// Close shuts down the mock server.
func (m *MockGemini) Close() { m.Server.Close() }

// URL returns the base URL of the mock server.
func (m *MockGemini) URL() string { return m.Server.URL }

// Requests returns the decoded bodies received so far.
func (m *MockGemini) Requests() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.requests...)
}

// Paths returns the request paths received so far.
func (m *MockGemini) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

func (m *MockGemini) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, ":streamGenerateContent") {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, body)
	m.paths = append(m.paths, r.URL.Path)
	chunks := m.chunks
	failStatus, failMessage := m.failStatus, m.failMessage
	m.mu.Unlock()

	if failStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failStatus)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    failStatus,
				"message": failMessage,
				"status":  http.StatusText(failStatus),
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for i, c := range chunks {
		candidate := map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": c}}},
			"index":   0,
		}
		if i == len(chunks)-1 {
			candidate["finishReason"] = "STOP"
		}
		data, _ := json.Marshal(map[string]any{"candidates": []any{candidate}})
		fmt.Fprintf(w, "data: %s\r\n\r\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
