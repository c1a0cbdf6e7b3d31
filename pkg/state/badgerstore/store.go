// Package badgerstore provides an embedded state.Store backed by BadgerDB.
//
// Records are stored as JSON under Key.Identifier(). Every field of a
// cohort/location pair shares state.Prefix, which no other pair can produce,
// so Filter is a single prefix scan.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/goliatone/go-ccx/pkg/state"
)

// Config holds configuration for the badger database.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory disables disk persistence.
	InMemory bool
	// SyncWrites enables synchronous writes.
	SyncWrites bool
	// Logger receives badger's internal log lines. Nil disables them.
	Logger *slog.Logger
}

// InMemoryConfig returns a configuration suited for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements state.Store on top of a *badger.DB.
type Store struct {
	db    *badger.DB
	owned bool
	now   func() time.Time
}

var _ state.Store = (*Store)(nil)

// Open opens a database using cfg. The returned store owns the database and
// closes it on Close.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	store := New(db)
	store.owned = true
	return store, nil
}

// New wraps an existing database. The caller keeps ownership of db.
func New(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the underlying database when the store opened it.
func (s *Store) Close() error {
	if s == nil || s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Filter(ctx context.Context, cohortID, location string) ([]state.Record, error) {
	prefix := []byte(state.Prefix(cohortID, location))
	var out []state.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: filter cohort %q location %q: %w", cohortID, location, err)
	}
	return out, nil
}

func (s *Store) GetOrCreate(_ context.Context, key state.Key) (state.Record, bool, error) {
	id, err := key.Identifier()
	if err != nil {
		return state.Record{}, false, err
	}

	var (
		record  state.Record
		created bool
	)
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err == nil {
			record, err = decodeItem(item)
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		record = state.Record{Key: key, UpdatedAt: s.now().UTC()}
		created = true
		return setRecord(txn, id, record)
	})
	if err != nil {
		return state.Record{}, false, fmt.Errorf("badgerstore: get or create %s: %w", key, err)
	}
	return record, created, nil
}

func (s *Store) Get(_ context.Context, key state.Key) (state.Record, error) {
	id, err := key.Identifier()
	if err != nil {
		return state.Record{}, err
	}

	var record state.Record
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return err
		}
		record, err = decodeItem(item)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return state.Record{}, state.ErrNotFound
	}
	if err != nil {
		return state.Record{}, fmt.Errorf("badgerstore: get %s: %w", key, err)
	}
	return record, nil
}

func (s *Store) Save(_ context.Context, record state.Record) error {
	id, err := record.Key.Identifier()
	if err != nil {
		return err
	}
	record.UpdatedAt = s.now().UTC()
	if err := s.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, id, record)
	}); err != nil {
		return fmt.Errorf("badgerstore: save %s: %w", record.Key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key state.Key) error {
	id, err := key.Identifier()
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(id)); err != nil {
			return err
		}
		return txn.Delete([]byte(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return state.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badgerstore: delete %s: %w", key, err)
	}
	return nil
}

type storedRecord struct {
	CohortID  string    `json:"cohort_id"`
	Location  string    `json:"location"`
	Field     string    `json:"field"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func setRecord(txn *badger.Txn, id string, record state.Record) error {
	payload, err := json.Marshal(storedRecord{
		CohortID:  record.CohortID,
		Location:  record.Location,
		Field:     record.Field,
		Value:     record.Value,
		UpdatedAt: record.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return txn.Set([]byte(id), payload)
}

func decodeItem(item *badger.Item) (state.Record, error) {
	var stored storedRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &stored)
	})
	if err != nil {
		return state.Record{}, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	return state.Record{
		Key: state.Key{
			CohortID: stored.CohortID,
			Location: stored.Location,
			Field:    stored.Field,
		},
		Value:     stored.Value,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
