package core

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// CreateFile creates a file at the specified relative path, & returns a file handle.
// Missing parent directories are created.
func CreateFile(relPath string) (*os.File, error) {
	absPath, err := filepath.Abs(relPath)
	if err != nil {
		return nil, err
	}

	absDir := filepath.Dir(absPath)
	err = os.MkdirAll(absDir, 0o755)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(absPath)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// WriteFile writes data to a file at relPath, creating parent directories as needed,
// and syncs it to disk before returning.
func WriteFile(relPath string, data []byte) error {
	f, err := CreateFile(relPath)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReplaceFile atomically replaces the file at relPath with data: the bytes are written to a
// temporary file in the same directory, synced, and then renamed over the destination.
// Readers observe either the previous contents or the new contents, never a partial write.
func ReplaceFile(relPath string, data []byte) error {
	absPath, err := filepath.Abs(relPath)
	if err != nil {
		return err
	}
	absDir := filepath.Dir(absPath)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(absPath, data, 0o644, renameio.WithTempDir(absDir))
}
