package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "reorder/pkg/logx"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "recurring_orders_c1"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}
	if err := s.Put(ctx, "recurring_orders_c1", []byte(`[1]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "recurring_orders_c1", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	if err := s.Put(ctx, "recurring_orders_c2", []byte(`[]`)); err != nil {
		t.Fatalf("Put other key: %v", err)
	}

	v, ok, err := s.Get(ctx, "recurring_orders_c1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(v) != `[1,2]` {
		t.Fatalf("Get = %q, want [1,2]", v)
	}

	if err := s.Delete(ctx, "recurring_orders_c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "recurring_orders_c1"); err != nil {
		t.Fatalf("Delete absent key should be a no-op: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "recurring_orders_c1"); ok {
		t.Fatal("key should be gone after Delete")
	}
	if _, ok, _ := s.Get(ctx, "recurring_orders_c2"); !ok {
		t.Fatal("sibling key should survive Delete")
	}

	if err := s.Put(ctx, "  ", []byte("x")); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	exerciseStore(t, s)
	_ = s.Close()
	if err := s.Put(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(context.Background(), Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	if _, err := os.Stat(filepath.Join(dir, "recurring_orders_c2.json")); err != nil {
		t.Fatalf("expected per-key file: %v", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	s1, err := Open(ctx, Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Put(ctx, "client/../x", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = s1.Close()

	s2, err := Open(ctx, Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Get(ctx, "client/../x")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get after reopen = %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reorder.db")
	s, err := Open(context.Background(), Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("REORDER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("REORDER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: "postgres", DSN: dsn}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	_ = s.Delete(ctx, "recurring_orders_c1")
	_ = s.Delete(ctx, "recurring_orders_c2")
	exerciseStore(t, s)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for file driver without path")
	}
}
