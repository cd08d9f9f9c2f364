package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreSaveOpenRemove(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	path, err := fs.Save("user-1", KindImage, "sunset.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != KindImage {
		t.Fatalf("expected artifact under images dir, got %s", path)
	}
	r, err := fs.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	buf := make([]byte, 16)
	n, _ := r.Read(buf)
	if string(buf[:n]) != "png-bytes" {
		t.Fatalf("unexpected content %q", buf[:n])
	}
	if err := fs.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := fs.Remove(path); err != nil {
		t.Fatalf("remove should ignore missing files: %v", err)
	}
}

func TestFileStoreSanitizesFilename(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	path, err := fs.Save("user-1", KindDocument, "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "passwd" {
		t.Fatalf("expected sanitized base name, got %s", path)
	}
	if !strings.Contains(path, filepath.Join("user-1", KindDocument)) {
		t.Fatalf("artifact escaped user directory: %s", path)
	}
}

func TestFileStoreOpenRejectsOutsidePaths(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	outside := filepath.Join(t.TempDir(), "other.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	if _, err := fs.Open(outside); err == nil {
		t.Fatalf("expected open to reject paths outside the storage root")
	}
}

func TestFileStoreDeleteUser(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	path, err := fs.Save("user-1", KindImage, "a.png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := fs.DeleteUser("user-1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected artifact to be gone, stat err=%v", err)
	}
	if err := fs.DeleteUser("user-1"); err != nil {
		t.Fatalf("delete of absent user should be a no-op: %v", err)
	}
}
