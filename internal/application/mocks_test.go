package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/konnexhq/identity-service/internal/domain"
)

// nopLogger satisfies domain.Logger without output.
type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) Fatal(context.Context, string, ...any) {}
func (l nopLogger) With(...any) domain.Logger           { return l }

// mockCacheStore is a map-backed IdentityCacheStore with failure injection.
type mockCacheStore struct {
	mu      sync.Mutex
	entries map[string]json.RawMessage
	failAll bool

	setCalls   int
	clearCalls int
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{entries: make(map[string]json.RawMessage)}
}

func (m *mockCacheStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, fmt.Errorf("%w: injected failure", domain.ErrCacheUnavailable)
	}
	raw, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return raw, nil
}

func (m *mockCacheStore) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.failAll {
		return fmt.Errorf("%w: injected failure", domain.ErrCacheUnavailable)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	m.entries[key] = raw
	return nil
}

func (m *mockCacheStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return fmt.Errorf("%w: injected failure", domain.ErrCacheUnavailable)
	}
	delete(m.entries, key)
	return nil
}

func (m *mockCacheStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.failAll {
		return fmt.Errorf("%w: injected failure", domain.ErrCacheUnavailable)
	}
	m.entries = make(map[string]json.RawMessage)
	return nil
}

func (m *mockCacheStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func (m *mockCacheStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// mockDocStore is a map-backed ProfileDocumentStore. Reads for gated uids
// block until the gate channel is closed, which lets tests hold a
// resolution in flight deterministically.
type mockDocStore struct {
	mu          sync.Mutex
	collections map[string]map[string]json.RawMessage
	readErr     error
	gates       map[string]chan struct{}
}

func newMockDocStore() *mockDocStore {
	return &mockDocStore{
		collections: map[string]map[string]json.RawMessage{
			domain.CollectionJobSeekerProfiles: {},
			domain.CollectionEmployerProfiles:  {},
		},
		gates: make(map[string]chan struct{}),
	}
}

func (m *mockDocStore) put(collection, uid string, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection][uid] = json.RawMessage(data)
}

func (m *mockDocStore) gate(uid string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.gates[uid] = ch
	return ch
}

func (m *mockDocStore) GetDocument(_ context.Context, collection, id string) (domain.Document, error) {
	m.mu.Lock()
	gate := m.gates[id]
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return domain.Document{}, m.readErr
	}
	docs, ok := m.collections[collection]
	if !ok {
		return domain.Document{}, fmt.Errorf("unknown collection %q", collection)
	}
	data, ok := docs[id]
	if !ok {
		return domain.Document{Exists: false}, nil
	}
	return domain.Document{Exists: true, Data: data}, nil
}

func (m *mockDocStore) MergeDocument(_ context.Context, collection, id string, patch json.RawMessage) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		return domain.Document{}, fmt.Errorf("unknown collection %q", collection)
	}

	merged := map[string]any{}
	if existing, ok := docs[id]; ok {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return domain.Document{}, err
		}
	}
	var patchFields map[string]any
	if err := json.Unmarshal(patch, &patchFields); err != nil {
		return domain.Document{}, err
	}
	for k, v := range patchFields {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return domain.Document{}, err
	}
	docs[id] = raw
	return domain.Document{Exists: true, Data: raw}, nil
}

func (m *mockDocStore) DeleteDocument(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	delete(docs, id)
	return nil
}

// stubAuthStream delivers events pushed by the test.
type stubAuthStream struct {
	mu      sync.Mutex
	handler domain.AuthEventHandler
}

func (s *stubAuthStream) Subscribe(_ context.Context, handler domain.AuthEventHandler) (func(), error) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
	}, nil
}

func (s *stubAuthStream) emit(ctx context.Context, event domain.AuthEvent) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(ctx, event)
	}
}
