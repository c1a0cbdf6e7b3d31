// Package membership answers whether a user is an active member of a cohort.
package membership

import (
	"context"
	"errors"
	"strings"
	"sync"

	ccx "github.com/goliatone/go-ccx"
)

// ErrNotFound is returned when the user has no active membership in the
// cohort.
var ErrNotFound = errors.New("membership: active membership not found")

// Membership links a user to a cohort.
type Membership struct {
	UserID string
	Cohort ccx.Cohort
	Active bool
}

// Lookup resolves active memberships.
type Lookup interface {
	Active(ctx context.Context, userID, cohortID string) (Membership, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, userID, cohortID string) (Membership, error)

// Active implements Lookup.
func (f LookupFunc) Active(ctx context.Context, userID, cohortID string) (Membership, error) {
	if f == nil {
		return Membership{}, ErrNotFound
	}
	return f(ctx, userID, cohortID)
}

// MemoryLookup is an in-memory Lookup for tests and single-process hosts.
type MemoryLookup struct {
	mu          sync.RWMutex
	memberships map[string]Membership
}

func NewMemoryLookup() *MemoryLookup {
	return &MemoryLookup{memberships: map[string]Membership{}}
}

// Put records m, replacing any membership of the same user and cohort.
func (l *MemoryLookup) Put(m Membership) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.memberships[memberKey(m.UserID, m.Cohort.ID)] = m
}

// Remove deletes the membership of userID in cohortID.
func (l *MemoryLookup) Remove(userID, cohortID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.memberships, memberKey(userID, cohortID))
}

// Active implements Lookup. Inactive memberships are reported as ErrNotFound.
func (l *MemoryLookup) Active(_ context.Context, userID, cohortID string) (Membership, error) {
	l.mu.RLock()
	m, ok := l.memberships[memberKey(userID, cohortID)]
	l.mu.RUnlock()
	if !ok || !m.Active {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

func memberKey(userID, cohortID string) string {
	return strings.TrimSpace(userID) + "\x00" + strings.TrimSpace(cohortID)
}
