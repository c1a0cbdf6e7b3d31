package state

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned by Get and Delete when no record matches the key.
var ErrNotFound = errors.New("state: override not found")

// ErrInvalidKey indicates a key with a missing component.
var ErrInvalidKey = errors.New("state: invalid override key")

// Key identifies one override record.
type Key struct {
	CohortID string
	Location string
	Field    string
}

// Record is one persisted override. Value holds the JSON encoding of the
// field's JSON-compatible representation.
type Record struct {
	Key
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Store persists override records.
type Store interface {
	// Filter returns every record for the cohort/location pair. Order is not
	// significant.
	Filter(ctx context.Context, cohortID, location string) ([]Record, error)
	// GetOrCreate returns the record for key, creating an empty one when
	// absent. created reports whether a new record was inserted.
	GetOrCreate(ctx context.Context, key Key) (record Record, created bool, err error)
	// Get returns the record for key or ErrNotFound.
	Get(ctx context.Context, key Key) (Record, error)
	// Save persists record.Value for record.Key.
	Save(ctx context.Context, record Record) error
	// Delete removes the record for key or returns ErrNotFound.
	Delete(ctx context.Context, key Key) error
}

// Validate reports ErrInvalidKey when a component is empty.
func (k Key) Validate() error {
	switch {
	case strings.TrimSpace(k.CohortID) == "":
		return fmt.Errorf("%w: cohort id is required", ErrInvalidKey)
	case strings.TrimSpace(k.Location) == "":
		return fmt.Errorf("%w: location is required", ErrInvalidKey)
	case strings.TrimSpace(k.Field) == "":
		return fmt.Errorf("%w: field is required", ErrInvalidKey)
	}
	return nil
}

// Identifier returns the canonical key used by key-value adapters. Each
// component is path-escaped, so slashes inside cohort ids, locations or field
// names never make two keys share an identifier.
func (k Key) Identifier() (string, error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	return Prefix(k.CohortID, k.Location) + url.PathEscape(k.Field), nil
}

// Prefix returns the identifier prefix shared by every field of a
// cohort/location pair and by no other pair.
func Prefix(cohortID, location string) string {
	return "cohort/" + url.PathEscape(cohortID) + "/" + url.PathEscape(location) + "/"
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.CohortID, k.Location, k.Field)
}
