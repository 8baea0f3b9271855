package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestWriteFileAtomicMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	if err := WriteFileAtomic(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %o", info.Mode().Perm())
	}
}

func TestFirstExisting(t *testing.T) {
	dir := t.TempDir()
	mkv := filepath.Join(dir, "abc.mkv")
	if err := os.WriteFile(mkv, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "abc"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := FirstExisting(filepath.Join(dir, "abc"), filepath.Join(dir, "abc.mp4"), mkv)
	if !ok || got != mkv {
		t.Fatalf("expected %s, got %q (ok=%v)", mkv, got, ok)
	}
	if _, ok := FirstExisting(filepath.Join(dir, "missing")); ok {
		t.Fatal("expected no match")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !Exists(dir) {
		t.Fatal("expected temp dir to exist")
	}
	if Exists(filepath.Join(dir, "nope")) {
		t.Fatal("expected missing path to be absent")
	}
}
