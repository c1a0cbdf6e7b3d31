// Package statetest provides a reusable behavioural contract for
// state.Store implementations.
package statetest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/goliatone/go-ccx/pkg/state"
)

// Factory builds an empty store for a single sub-test.
type Factory func(t *testing.T) state.Store

// RunStoreContract exercises the behaviour every Store must provide.
func RunStoreContract(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("get_or_create_is_unique", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := state.Key{CohortID: "c1", Location: "loc1", Field: "due"}

		_, created, err := store.GetOrCreate(ctx, key)
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if !created {
			t.Fatalf("expected first call to create the record")
		}

		record, created, err := store.GetOrCreate(ctx, key)
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if created {
			t.Fatalf("expected second call to fetch the existing record")
		}
		if record.Key != key {
			t.Fatalf("unexpected key %+v", record.Key)
		}

		records, err := store.Filter(ctx, "c1", "loc1")
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected one record, got %d", len(records))
		}
	})

	t.Run("save_updates_in_place", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := state.Key{CohortID: "c1", Location: "loc1", Field: "due"}

		record, _, err := store.GetOrCreate(ctx, key)
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		record.Value = `"2024-01-01T00:00:00Z"`
		if err := store.Save(ctx, record); err != nil {
			t.Fatalf("save: %v", err)
		}
		record.Value = `"2024-02-01T00:00:00Z"`
		if err := store.Save(ctx, record); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Value != `"2024-02-01T00:00:00Z"` {
			t.Fatalf("expected latest value, got %q", got.Value)
		}
		records, err := store.Filter(ctx, "c1", "loc1")
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected one record after two saves, got %d", len(records))
		}
	})

	t.Run("filter_scopes_by_cohort_and_location", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		seed := []state.Record{
			{Key: state.Key{CohortID: "c1", Location: "loc1", Field: "due"}, Value: `"a"`},
			{Key: state.Key{CohortID: "c1", Location: "loc1", Field: "start"}, Value: `"b"`},
			{Key: state.Key{CohortID: "c1", Location: "loc1/child", Field: "due"}, Value: `"c"`},
			{Key: state.Key{CohortID: "c2", Location: "loc1", Field: "due"}, Value: `"d"`},
		}
		for _, record := range seed {
			if _, _, err := store.GetOrCreate(ctx, record.Key); err != nil {
				t.Fatalf("get or create: %v", err)
			}
			if err := store.Save(ctx, record); err != nil {
				t.Fatalf("save: %v", err)
			}
		}

		records, err := store.Filter(ctx, "c1", "loc1")
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		fields := make([]string, 0, len(records))
		for _, record := range records {
			if record.CohortID != "c1" || record.Location != "loc1" {
				t.Fatalf("filter leaked record %+v", record.Key)
			}
			fields = append(fields, record.Field+"="+record.Value)
		}
		sort.Strings(fields)
		if len(fields) != 2 || fields[0] != `due="a"` || fields[1] != `start="b"` {
			t.Fatalf("unexpected filter result %v", fields)
		}
	})

	t.Run("slashes_do_not_merge_keys", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		first := state.Key{CohortID: "a/b", Location: "c", Field: "f"}
		second := state.Key{CohortID: "a", Location: "b/c", Field: "f"}

		for _, record := range []state.Record{{Key: first, Value: `"x"`}, {Key: second, Value: `"y"`}} {
			_, created, err := store.GetOrCreate(ctx, record.Key)
			if err != nil {
				t.Fatalf("get or create %+v: %v", record.Key, err)
			}
			if !created {
				t.Fatalf("expected a new record for %+v", record.Key)
			}
			if err := store.Save(ctx, record); err != nil {
				t.Fatalf("save: %v", err)
			}
		}

		for key, want := range map[state.Key]string{first: `"x"`, second: `"y"`} {
			got, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("get %+v: %v", key, err)
			}
			if got.Value != want || got.Key != key {
				t.Fatalf("expected %+v=%s, got %+v=%s", key, want, got.Key, got.Value)
			}
			records, err := store.Filter(ctx, key.CohortID, key.Location)
			if err != nil {
				t.Fatalf("filter: %v", err)
			}
			if len(records) != 1 || records[0].Key != key {
				t.Fatalf("expected only %+v from filter, got %+v", key, records)
			}
		}
	})

	t.Run("get_and_delete_missing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := state.Key{CohortID: "c1", Location: "loc1", Field: "due"}

		if _, err := store.Get(ctx, key); !errors.Is(err, state.ErrNotFound) {
			t.Fatalf("expected ErrNotFound from Get, got %v", err)
		}
		if err := store.Delete(ctx, key); !errors.Is(err, state.ErrNotFound) {
			t.Fatalf("expected ErrNotFound from Delete, got %v", err)
		}
	})

	t.Run("delete_removes_record", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := state.Key{CohortID: "c1", Location: "loc1", Field: "due"}

		if _, _, err := store.GetOrCreate(ctx, key); err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if err := store.Delete(ctx, key); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := store.Get(ctx, key); !errors.Is(err, state.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		records, err := store.Filter(ctx, "c1", "loc1")
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		if len(records) != 0 {
			t.Fatalf("expected no records after delete, got %d", len(records))
		}
	})
}
