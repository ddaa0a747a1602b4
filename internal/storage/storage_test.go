package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tiliavir/tally/internal/storage"
)

type doc struct {
	Name  string   `json:"name"`
	Hours float64  `json:"hours"`
	Tags  []string `json:"tags"`
}

func newSQLite(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewMemorySQLiteStore()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]storage.Store {
	return map[string]storage.Store{
		"file":   storage.NewFileStore(t.TempDir()),
		"sqlite": newSQLite(t),
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var d doc
			err := s.Get(context.Background(), "nope", &d)
			if !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("Get missing = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := doc{Name: "month-cache", Hours: 7.5, Tags: []string{"a"}}
			if err := s.Set(ctx, "month-cache", in); err != nil {
				t.Fatalf("Set: %v", err)
			}
			in.Hours = 8
			if err := s.Set(ctx, "month-cache", in); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}

			var out doc
			if err := s.Get(ctx, "month-cache", &out); err != nil {
				t.Fatalf("Get: %v", err)
			}
			if out.Name != in.Name || out.Hours != 8 || len(out.Tags) != 1 {
				t.Errorf("Get = %+v, want %+v", out, in)
			}

			if err := s.Delete(ctx, "month-cache"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Get(ctx, "month-cache", &out); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("Get after delete = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "month-cache"); err != nil {
				t.Errorf("Delete missing: %v", err)
			}
		})
	}
}

func TestFileStore_CorruptFileIsBackedUp(t *testing.T) {
	dir := t.TempDir()
	s := storage.NewFileStore(dir)
	path := filepath.Join(dir, "absences.json")
	if err := os.WriteFile(path, []byte("{bad json"), 0o600); err != nil {
		t.Fatal(err)
	}

	var d doc
	if err := s.Get(context.Background(), "absences", &d); err == nil {
		t.Fatal("expected error for corrupt JSON, got nil")
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("corrupt file still in place: %v", err)
	}
}

func TestFileStore_NoTempFileLeft(t *testing.T) {
	dir := t.TempDir()
	s := storage.NewFileStore(filepath.Join(dir, "nested"))
	if err := s.Set(context.Background(), "a/b", doc{Name: "x"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a_b.json" {
		t.Errorf("files = %v, want [a_b.json]", entries)
	}
}

func TestSQLiteStore_Migrates(t *testing.T) {
	s := newSQLite(t)
	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("SchemaVersion = %d, want 1", v)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tally.db")
	s, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), "k", doc{Name: "kept"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	var d doc
	if err := s.Get(context.Background(), "k", &d); err != nil || d.Name != "kept" {
		t.Errorf("Get after reopen = %+v, %v", d, err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.Open(storage.BackendFile, dir)
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if _, ok := s.(*storage.FileStore); !ok {
		t.Errorf("Open file = %T", s)
	}

	s, err = storage.Open(storage.BackendSQLite, filepath.Join(dir, "x.db"))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*storage.SQLiteStore); !ok {
		t.Errorf("Open sqlite = %T", s)
	}

	if _, err := storage.Open("redis", dir); err == nil {
		t.Error("Open unknown backend: expected error")
	}
}
