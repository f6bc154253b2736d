package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockAnthropic is an httptest.Server that simulates the Anthropic
// /v1/messages streaming endpoint.
type MockAnthropic struct {
	Server *httptest.Server

	mu sync.Mutex
	// Chunks are streamed as text deltas.
	chunks []string
	// failStatus, when non-zero, rejects the request with an API error.
	failStatus  int
	failType    string
	failMessage string
	// streamErrorAfter, when >= 0, emits an error event after that many chunks.
	streamErrorAfter int
	requests         []map[string]any
}

// NewMockAnthropic creates and starts a mock that streams chunks.
func NewMockAnthropic(chunks ...string) *MockAnthropic {
	m := &MockAnthropic{chunks: chunks, streamErrorAfter: -1}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Fail makes every request fail with an Anthropic error body.
func (m *MockAnthropic) Fail(status int, errType, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatus, m.failType, m.failMessage = status, errType, message
}

// FailMidStream emits an overloaded error event after n chunks.
func (m *MockAnthropic) FailMidStream(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErrorAfter = n
}

// Close shuts down the mock server.
func (m *MockAnthropic) Close() { m.Server.Close() }

// URL returns the base URL of the mock server.
func (m *MockAnthropic) URL() string { return m.Server.URL }

// Requests returns the decoded bodies received so far.
func (m *MockAnthropic) Requests() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.requests...)
}

func (m *MockAnthropic) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/messages" || r.Method != http.MethodPost {
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
	chunks := m.chunks
	failStatus, failType, failMessage := m.failStatus, m.failType, m.failMessage
	errAfter := m.streamErrorAfter
	m.mu.Unlock()

	if failStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failStatus)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": failType, "message": failMessage},
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	write := func(event string, payload any) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	write("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id": "msg_mock", "type": "message", "role": "assistant", "content": []any{},
			"model": body["model"], "stop_reason": nil, "stop_sequence": nil,
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 1},
		},
	})
	write("content_block_start", map[string]any{
		"type": "content_block_start", "index": 0,
		"content_block": map[string]any{"type": "text", "text": ""},
	})
	for i, c := range chunks {
		if i == errAfter {
			write("error", map[string]any{
				"type":  "error",
				"error": map[string]any{"type": "overloaded_error", "message": "Overloaded"},
			})
			return
		}
		write("content_block_delta", map[string]any{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]any{"type": "text_delta", "text": c},
		})
	}
	write("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
	write("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": "end_turn", "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": len(chunks)},
	})
	write("message_stop", map[string]any{"type": "message_stop"})
}
