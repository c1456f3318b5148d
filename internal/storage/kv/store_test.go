package kv

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, Prefix+"missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%t err=%v", ok, err)
	}

	if err := store.Set(ctx, Prefix+"a", []byte(`[1]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, Prefix+"a", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}

	value, ok, err := store.Get(ctx, Prefix+"a")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%t err=%v", ok, err)
	}
	if string(value) != `[1,2]` {
		t.Fatalf("unexpected value %s", value)
	}

	if err := store.Delete(ctx, Prefix+"a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, Prefix+"a"); ok {
		t.Fatal("expected key to be deleted")
	}
	if err := store.Delete(ctx, Prefix+"a"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	exerciseStore(t, newTestStore(t))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStoreReopensFileWithoutRemigrating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Set(ctx, Prefix+"sessions_guest", []byte(`[]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	first.Close()

	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if _, ok, err := second.Get(ctx, Prefix+"sessions_guest"); err != nil || !ok {
		t.Fatalf("expected persisted key, ok=%t err=%v", ok, err)
	}
}
