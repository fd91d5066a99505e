package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_CreateStatRemove(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "spool", "nested")
	if err := osfs.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	path := filepath.Join(dir, "upload.h5")
	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("hdf5")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := osfs.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Mode() = %v, want 0600", info.Mode().Perm())
	}

	if err := osfs.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if osfs.Exists(path) {
		t.Error("file still exists after Remove")
	}
}

func TestOSFileSystem_ReadFile(t *testing.T) {
	data, err := OSFileSystem{}.ReadFile("filesystem.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty file content")
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/spool/a.h5")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if data, _ := mfs.ReadFile("/spool/a.h5"); len(data) != 0 {
		t.Errorf("data visible before Close: %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/spool/../spool/a.h5")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("got %q, want %q", data, "abc")
	}
	if got := mfs.Files(); len(got) != 1 || got[0] != "/spool/a.h5" {
		t.Errorf("Files() = %v", got)
	}
}

func TestMemoryFileSystem_DirsAndRemove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/var/spool/aotrack", 0o700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, p := range []string{"/var", "/var/spool", "/var/spool/aotrack"} {
		if !mfs.Exists(p) {
			t.Errorf("expected %s to exist", p)
		}
	}
	info, err := mfs.Stat("/var/spool")
	if err != nil || !info.IsDir() {
		t.Errorf("Stat(/var/spool) = %v, %v; want directory", info, err)
	}

	mfs.WriteFile("/var/spool/aotrack/x.h5", []byte("x"))
	if err := mfs.Remove("/var/spool/aotrack/x.h5"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	err = mfs.Remove("/var/spool/aotrack/x.h5")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Remove = %v, want ErrNotExist", err)
	}
	if _, err := mfs.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat(/missing) = %v, want ErrNotExist", err)
	}
}
