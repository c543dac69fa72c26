package store

import (
	"os"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	if _, ok, err := s.GetInt64(LastUpdateKey); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	if err := s.SetInt64(LastUpdateKey, 1700000000123); err != nil {
		t.Fatalf("SetInt64: %v", err)
	}
	v, ok, err := s.GetInt64(LastUpdateKey)
	if err != nil || !ok || v != 1700000000123 {
		t.Fatalf("GetInt64 = %d %v %v", v, ok, err)
	}

	if err := s.SetInt64(LastUpdateKey, 42); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _, _ := s.GetInt64(LastUpdateKey); v != 42 {
		t.Errorf("after overwrite = %d, want 42", v)
	}

	if err := s.SetInt64("other", -1); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := s.GetInt64(LastUpdateKey); v != 42 {
		t.Errorf("unrelated key changed value to %d", v)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	s := NewFileStore(WithPath(path))
	exerciseStore(t, s)

	reopened := NewFileStore(WithPath(path))
	if v, ok, err := reopened.GetInt64(LastUpdateKey); err != nil || !ok || v != 42 {
		t.Errorf("reopened = %d %v %v", v, ok, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("{not: [yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(WithPath(path))
	if _, _, err := s.GetInt64(LastUpdateKey); err == nil {
		t.Error("expected parse error")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	exerciseStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if v, ok, err := reopened.GetInt64(LastUpdateKey); err != nil || !ok || v != 42 {
		t.Errorf("reopened = %d %v %v", v, ok, err)
	}
}
