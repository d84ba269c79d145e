package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockScoringServer creates a test server that mocks scoring server responses.
type MockScoringServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockScoringServer creates a new mock scoring server. Handlers are
// keyed by exact request path; unknown paths return 404.
func NewMockScoringServer(t *testing.T) *MockScoringServer {
	t.Helper()
	m := &MockScoringServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// RespondJSON writes v as a JSON response body.
func RespondJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode mock response: %v", err)
	}
}
