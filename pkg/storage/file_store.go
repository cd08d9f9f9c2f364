// Package storage keeps binary artifacts: generated images and uploaded
// documents on the local disk, with optional mirroring to S3-compatible
// object storage.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Artifact kinds. Each kind gets its own folder under the user directory.
const (
	KindImage    = "images"
	KindDocument = "documents"
)

// FileStore saves artifacts to disk under basePath/<userID>/<kind>/.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Save writes an artifact and returns its absolute path.
func (f *FileStore) Save(userID, kind, filename string, r io.Reader) (string, error) {
	targetDir := filepath.Join(f.basePath, userID, kind)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	target := filepath.Join(targetDir, safeFilename(filename))

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return target, nil
}

// Open returns a reader for a previously saved artifact path. The path must
// resolve inside the store's base directory.
func (f *FileStore) Open(path string) (io.ReadCloser, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(f.basePath)
	if err != nil {
		return nil, err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return nil, fmt.Errorf("path escapes storage root: %s", path)
	}
	return os.Open(abs)
}

// Remove deletes one artifact file. Missing files are not an error.
func (f *FileStore) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeleteUser removes every artifact belonging to a user.
func (f *FileStore) DeleteUser(userID string) error {
	targetDir := filepath.Join(f.basePath, userID)
	if _, err := os.Stat(targetDir); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(targetDir)
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "artifact"
	}
	return name
}
