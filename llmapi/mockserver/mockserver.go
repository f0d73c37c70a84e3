// Package mockserver provides a mock OpenAI-compatible chat-completions
// backend for testing llmapi.Client implementations, built as a
// functional-options httptest server.
package mockserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

// Server wraps an httptest.Server preconfigured as a chat-completions
// endpoint.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// RequestCount tracks the total number of completions requests seen.
	RequestCount int32

	reply      string
	err        bool
	replyFunc  func(body map[string]any) (string, bool)
	requestLog []map[string]any
	models     []string
}

// Option configures a mock server.
type Option func(*Server)

// WithReply sets the fixed assistant reply text returned for every
// request.
func WithReply(reply string) Option {
	return func(s *Server) { s.reply = reply }
}

// WithError makes the server return a 500 for every request, simulating
// upstream LLM failure.
func WithError() Option {
	return func(s *Server) { s.err = true }
}

// WithReplyFunc installs a custom handler computing the reply (or
// failure) from the decoded request body.
func WithReplyFunc(f func(body map[string]any) (string, bool)) Option {
	return func(s *Server) { s.replyFunc = f }
}

// WithModels sets the model ids returned by GET /models.
func WithModels(ids []string) Option {
	return func(s *Server) { s.models = ids }
}

// New starts a mock chat-completions server configured by opts.
func New(opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Requests returns a copy of every decoded request body seen so far, in
// order received.
func (s *Server) Requests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.requestLog))
	copy(out, s.requestLog)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.RequestCount, 1)

	if r.URL.Path == "/models" {
		data := make([]map[string]string, 0, len(s.models))
		for _, id := range s.models {
			data = append(data, map[string]string{"id": id})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.requestLog = append(s.requestLog, body)
	s.mu.Unlock()

	if s.err {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	reply := s.reply
	ok := true
	if s.replyFunc != nil {
		reply, ok = s.replyFunc(body)
	}
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": reply}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
