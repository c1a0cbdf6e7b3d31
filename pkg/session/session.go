// Package session abstracts the per-user session store that remembers which
// cohort a learner is viewing.
package session

import (
	"context"
	"sync"
)

// Session is a string key/value bag scoped to one user session.
type Session interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Pop removes key and returns the value it held.
	Pop(ctx context.Context, key string) (string, bool, error)
}

// MapSession is an in-memory Session.
type MapSession struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMapSession returns a session seeded with a copy of values.
func NewMapSession(values map[string]string) *MapSession {
	copied := make(map[string]string, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return &MapSession{values: copied}
}

func (s *MapSession) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MapSession) Pop(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	delete(s.values, key)
	return value, ok, nil
}

// Set stores value under key.
func (s *MapSession) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return nil
}
