package archive

import (
	"os"
	"path/filepath"
	"testing"

	cderrors "github.com/matzehuels/cargo-dl/pkg/errors"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out", "serde-1.0.0.crate")

	if err := WriteFile(path, []byte("bytes"), false); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "bytes" {
		t.Fatalf("ReadFile() = %q, %v", got, err)
	}
	assertNoStaging(t, filepath.Dir(path))
}

func TestWriteFileOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serde-1.0.0.crate")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFile(path, []byte("new"), false); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Errorf("content = %q, want new", got)
	}
}

func TestWriteFileNoClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serde-1.0.0.crate")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := WriteFile(path, []byte("new"), true)
	if !cderrors.Is(err, cderrors.ErrCodeIO) {
		t.Fatalf("WriteFile() error = %v, want IO_ERROR", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "old" {
		t.Errorf("content = %q, existing file must be untouched", got)
	}
}

func TestWriteFileOntoDirectory(t *testing.T) {
	dir := t.TempDir()
	err := WriteFile(dir, []byte("x"), false)
	if !cderrors.Is(err, cderrors.ErrCodeIO) {
		t.Fatalf("WriteFile() error = %v, want IO_ERROR", err)
	}
	assertNoStaging(t, filepath.Dir(dir))
}

func assertNoStaging(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if len(e.Name()) > 0 && e.Name()[0] == '.' {
			t.Errorf("staging leftover %s", e.Name())
		}
	}
}
