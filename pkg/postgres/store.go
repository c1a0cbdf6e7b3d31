// Package postgres stores cohort field overrides, cohorts and memberships in
// PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	ccx "github.com/goliatone/go-ccx"
	"github.com/goliatone/go-ccx/pkg/membership"
	"github.com/goliatone/go-ccx/pkg/state"
)

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements state.Store and membership.Lookup.
type Store struct {
	db     DBTX
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ state.Store       = (*Store)(nil)
	_ membership.Lookup = (*Store)(nil)
)

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	store := New(pool, logger)
	store.pool = pool
	return store, nil
}

// New wraps db. The caller keeps ownership of db.
func New(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Close closes the pool opened by Connect.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const filterSQL = `
SELECT cohort_id, location, field, value, updated_at
FROM ccx_field_overrides
WHERE cohort_id = $1 AND location = $2
ORDER BY field`

func (s *Store) Filter(ctx context.Context, cohortID, location string) ([]state.Record, error) {
	rows, err := s.db.Query(ctx, filterSQL, cohortID, location)
	if err != nil {
		return nil, fmt.Errorf("postgres: filter overrides: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (state.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: filter overrides: %w", err)
	}
	return records, nil
}

const insertSQL = `
INSERT INTO ccx_field_overrides (cohort_id, location, field, value, updated_at)
VALUES ($1, $2, $3, '', $4)
ON CONFLICT (cohort_id, location, field) DO NOTHING
RETURNING cohort_id, location, field, value, updated_at`

func (s *Store) GetOrCreate(ctx context.Context, key state.Key) (state.Record, bool, error) {
	if err := key.Validate(); err != nil {
		return state.Record{}, false, err
	}
	record, err := scanRecord(s.db.QueryRow(ctx, insertSQL, key.CohortID, key.Location, key.Field, time.Now().UTC()))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return state.Record{}, false, fmt.Errorf("postgres: create override %s: %w", key, err)
	}
	record, err = s.Get(ctx, key)
	if err != nil {
		return state.Record{}, false, err
	}
	return record, false, nil
}

const getSQL = `
SELECT cohort_id, location, field, value, updated_at
FROM ccx_field_overrides
WHERE cohort_id = $1 AND location = $2 AND field = $3`

func (s *Store) Get(ctx context.Context, key state.Key) (state.Record, error) {
	if err := key.Validate(); err != nil {
		return state.Record{}, err
	}
	record, err := scanRecord(s.db.QueryRow(ctx, getSQL, key.CohortID, key.Location, key.Field))
	if errors.Is(err, pgx.ErrNoRows) {
		return state.Record{}, state.ErrNotFound
	}
	if err != nil {
		return state.Record{}, fmt.Errorf("postgres: get override %s: %w", key, err)
	}
	return record, nil
}

const saveSQL = `
INSERT INTO ccx_field_overrides (cohort_id, location, field, value, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (cohort_id, location, field)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

func (s *Store) Save(ctx context.Context, record state.Record) error {
	if err := record.Key.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, saveSQL, record.CohortID, record.Location, record.Field, record.Value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: save override %s: %w", record.Key, err)
	}
	return nil
}

const deleteSQL = `
DELETE FROM ccx_field_overrides
WHERE cohort_id = $1 AND location = $2 AND field = $3`

func (s *Store) Delete(ctx context.Context, key state.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, deleteSQL, key.CohortID, key.Location, key.Field)
	if err != nil {
		return fmt.Errorf("postgres: delete override %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return state.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (state.Record, error) {
	var record state.Record
	err := row.Scan(&record.CohortID, &record.Location, &record.Field, &record.Value, &record.UpdatedAt)
	return record, err
}

const activeSQL = `
SELECT m.user_id, m.active, c.id, c.course_id, c.display_name
FROM ccx_memberships m
JOIN ccx_cohorts c ON c.id = m.cohort_id
WHERE m.user_id = $1 AND m.cohort_id = $2 AND m.active`

// Active implements membership.Lookup.
func (s *Store) Active(ctx context.Context, userID, cohortID string) (membership.Membership, error) {
	var m membership.Membership
	err := s.db.QueryRow(ctx, activeSQL, userID, cohortID).Scan(
		&m.UserID, &m.Active, &m.Cohort.ID, &m.Cohort.CourseID, &m.Cohort.DisplayName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return membership.Membership{}, membership.ErrNotFound
	}
	if err != nil {
		return membership.Membership{}, fmt.Errorf("postgres: membership lookup: %w", err)
	}
	return m, nil
}

const putCohortSQL = `
INSERT INTO ccx_cohorts (id, course_id, display_name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET course_id = EXCLUDED.course_id, display_name = EXCLUDED.display_name`

// PutCohort creates or updates a cohort.
func (s *Store) PutCohort(ctx context.Context, cohort ccx.Cohort) error {
	if cohort.IsZero() {
		return ccx.ErrInvalidCohort
	}
	if _, err := s.db.Exec(ctx, putCohortSQL, cohort.ID, cohort.CourseID, cohort.DisplayName); err != nil {
		return fmt.Errorf("postgres: put cohort %s: %w", cohort.ID, err)
	}
	return nil
}

const getCohortSQL = `SELECT id, course_id, display_name FROM ccx_cohorts WHERE id = $1`

// Cohort loads a cohort by id. A missing cohort yields a cohort carrying only
// the id, so overrides can be managed before the cohort row exists.
func (s *Store) Cohort(ctx context.Context, id string) (ccx.Cohort, error) {
	var cohort ccx.Cohort
	err := s.db.QueryRow(ctx, getCohortSQL, id).Scan(&cohort.ID, &cohort.CourseID, &cohort.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("postgres: cohort row missing", "cohort_id", id)
		return ccx.Cohort{ID: id}, nil
	}
	if err != nil {
		return ccx.Cohort{}, fmt.Errorf("postgres: get cohort %s: %w", id, err)
	}
	return cohort, nil
}

const putMembershipSQL = `
INSERT INTO ccx_memberships (user_id, cohort_id, active)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, cohort_id) DO UPDATE SET active = EXCLUDED.active`

// PutMembership creates or updates a membership. The cohort must exist.
func (s *Store) PutMembership(ctx context.Context, m membership.Membership) error {
	if _, err := s.db.Exec(ctx, putMembershipSQL, m.UserID, m.Cohort.ID, m.Active); err != nil {
		return fmt.Errorf("postgres: put membership %s/%s: %w", m.UserID, m.Cohort.ID, err)
	}
	return nil
}
