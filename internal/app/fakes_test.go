package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hylla/gudang/internal/domain"
)

// memStore provides an in-memory Store with injectable failures.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	loadErr error
	saveErr error
	saves   map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		data:  map[string][]byte{},
		saves: map[string]int{},
	}
}

// Load returns a copy of the stored bytes.
func (s *memStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	raw, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(raw), nil
}

// Save stores a copy of data unless a save failure is configured.
func (s *memStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = slices.Clone(data)
	s.saves[key]++
	return nil
}

// Delete drops key.
func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrKeyNotFound
	}
	delete(s.data, key)
	return nil
}

func (s *memStore) put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = []byte(value)
}

func (s *memStore) saveCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[key]
}

// fakeActivity collects change events in memory.
type fakeActivity struct {
	events []domain.ChangeEvent
	err    error
}

// AppendChangeEvent records one event.
func (f *fakeActivity) AppendChangeEvent(_ context.Context, event domain.ChangeEvent) error {
	if f.err != nil {
		return f.err
	}
	event.ID = int64(len(f.events) + 1)
	f.events = append(f.events, event)
	return nil
}

// ListChangeEvents returns the newest events first.
func (f *fakeActivity) ListChangeEvents(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	out := slices.Clone(f.events)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeActivity) operations() []domain.ChangeOperation {
	out := make([]domain.ChangeOperation, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.Operation)
	}
	return out
}

// fakeMetrics counts metric calls.
type fakeMetrics struct {
	mutations       map[string]int
	txCount         int
	persistFailures int
	reseeds         int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{mutations: map[string]int{}}
}

func (m *fakeMetrics) ObserveMutation(operation, outcome string) {
	m.mutations[operation+"/"+outcome]++
}
func (m *fakeMetrics) SetTransactionCount(n int) { m.txCount = n }
func (m *fakeMetrics) IncPersistFailure(string)  { m.persistFailures++ }
func (m *fakeMetrics) IncReseed(string)          { m.reseeds++ }

// fixedClock returns a deterministic clock for tests.
func fixedClock() Clock {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func ids(txs []domain.Transaction) []string {
	return transactionIDs(txs)
}
