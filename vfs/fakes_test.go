package vfs

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"llmfs/config"
	"llmfs/session"
)

// fakeLLM is a scriptable llmapi.Client for tests: it never makes a
// network call, and records every call it receives.
type fakeLLM struct {
	mu        sync.Mutex
	models    []string
	replies   map[string]string // keyed by prompt, used by Query and Converse alike
	failOn    string            // prompt that triggers an error
	queries   []string
	conversed []session.Conversation // every Converse snapshot, in order
}

func (f *fakeLLM) Query(ctx context.Context, model string, params config.ModelParameters, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, prompt)
	return f.reply(prompt)
}

// Converse keys the reply on the newest user turn: the tail of the
// snapshot's message history.
func (f *fakeLLM) Converse(ctx context.Context, model string, params config.ModelParameters, conv session.Conversation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversed = append(f.conversed, conv)
	if len(conv.Messages) == 0 {
		return "", fmt.Errorf("fake: empty conversation")
	}
	return f.reply(conv.Messages[len(conv.Messages)-1].Text)
}

func (f *fakeLLM) reply(prompt string) (string, error) {
	if f.failOn != "" && prompt == f.failOn {
		return "", fmt.Errorf("fake upstream failure")
	}
	if reply, ok := f.replies[prompt]; ok {
		return reply, nil
	}
	return "reply to: " + prompt, nil
}

// lastConversation returns the most recent Converse snapshot.
func (f *fakeLLM) lastConversation(t testing.TB) session.Conversation {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conversed) == 0 {
		t.Fatal("no Converse calls recorded")
	}
	return f.conversed[len(f.conversed)-1]
}

func (f *fakeLLM) ListModels(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.models...), nil
}

// fakeSearch is a scriptable searchapi.Client for tests: it simulates a
// backend holding indexes, each with a document set, purely in memory.
type fakeSearch struct {
	mu        sync.Mutex
	indexes   map[string]map[string]string // index -> doc -> text
	failIndex string                       // index name whose CreateIndex fails
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{indexes: make(map[string]map[string]string)}
}

func (s *fakeSearch) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeSearch) ListDocuments(ctx context.Context, index string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.indexes[index]
	if !ok {
		return nil, fmt.Errorf("no such index %q", index)
	}
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeSearch) CreateIndex(ctx context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index == s.failIndex {
		return fmt.Errorf("fake backend error")
	}
	if _, ok := s.indexes[index]; ok {
		return fmt.Errorf("index %q already exists", index)
	}
	s.indexes[index] = make(map[string]string)
	return nil
}

func (s *fakeSearch) DeleteIndex(ctx context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[index]; !ok {
		return fmt.Errorf("no such index %q", index)
	}
	delete(s.indexes, index)
	return nil
}

func (s *fakeSearch) AddDocument(ctx context.Context, index, doc, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.indexes[index]
	if !ok {
		return fmt.Errorf("no such index %q", index)
	}
	docs[doc] = text
	return nil
}

func (s *fakeSearch) RemoveDocument(ctx context.Context, index, doc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.indexes[index]
	if !ok {
		return fmt.Errorf("no such index %q", index)
	}
	delete(docs, doc)
	return nil
}

func (s *fakeSearch) Query(ctx context.Context, index, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.indexes[index]
	if !ok {
		return "", fmt.Errorf("no such index %q", index)
	}
	return fmt.Sprintf("%d result(s) for %q in %s", len(docs), query, index), nil
}
