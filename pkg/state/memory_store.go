package state

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store intended for tests, examples and
// single-process deployments. It uses Key.Identifier() as its deterministic
// key.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, now: time.Now}
}

func (s *MemoryStore) Filter(_ context.Context, cohortID, location string) ([]Record, error) {
	prefix := Prefix(cohortID, location)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for id, record := range s.records {
		if strings.HasPrefix(id, prefix) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

func (s *MemoryStore) GetOrCreate(_ context.Context, key Key) (Record, bool, error) {
	id, err := key.Identifier()
	if err != nil {
		return Record{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[id]; ok {
		return record, false, nil
	}
	record := Record{Key: key, UpdatedAt: s.now()}
	s.records[id] = record
	return record, true, nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Record, error) {
	id, err := key.Identifier()
	if err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) Save(_ context.Context, record Record) error {
	id, err := record.Key.Identifier()
	if err != nil {
		return err
	}
	record.UpdatedAt = s.now()

	s.mu.Lock()
	s.records[id] = record
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	id, err := key.Identifier()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
