package compass

import (
	"context"
	"sync"
)

// scriptedLLM returns queued completions in order, then an optional error.
// It records every request for assertions.
type scriptedLLM struct {
	mu       sync.Mutex
	queue    []Completion
	err      error
	requests []CompletionRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req CompletionRequest) (Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.queue) == 0 {
		if s.err != nil {
			return Completion{}, s.err
		}
		return Completion{Content: "ok"}, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, nil
}

// memStore is an in-memory StateStore for tests.
type memStore struct {
	mu     sync.Mutex
	states map[string]State
	fail   error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]State)}
}

func (m *memStore) Load(_ context.Context, userID, conversationID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return State{}, m.fail
	}
	s, ok := m.states[userID+":"+conversationID]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.states[s.SessionID()] = s.Clone()
	return nil
}

func (m *memStore) get(sessionID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[sessionID]
	return s, ok
}

// fakeResources returns a fixed string for every query.
type fakeResources struct {
	result string
	err    error
}

func (f *fakeResources) Search(_ context.Context, query, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.result != "" {
		return f.result, nil
	}
	return "resource for " + query, nil
}

// seedState persists a state directly into the store.
func seedState(store *memStore, s State) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.states[s.SessionID()] = s
}
