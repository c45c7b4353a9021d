// Package storage persists the original bytes of uploaded documents.
//
// Only the source file is stored on disk; chunks, vectors, and indices live in
// process memory. Files are written as {collection-id}_{sanitized-name} so a
// collection's backing file can be removed when the collection is deleted.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFileName is returned when an upload's file name cannot be made
// filesystem-safe.
var ErrInvalidFileName = errors.New("invalid file name")

// Store saves and removes uploaded files under a single directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("uploads directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating uploads directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the uploads directory.
func (s *Store) Dir() string { return s.dir }

// Save writes the reader's contents to {id}_{sanitized fileName} and returns
// the full path. An existing file at that path is overwritten; ids are UUIDs,
// so in practice every save gets a fresh path.
func (s *Store) Save(id, fileName string, r io.Reader) (string, error) {
	name, err := sanitizeFileName(fileName)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, id+"_"+name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing upload file: %w", err)
	}
	return path, nil
}

// Delete removes the file at path. Deleting a file that is already gone is not
// an error.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing upload file: %w", err)
	}
	return nil
}

// Exists reports whether a file exists at path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sanitizeFileName strips any directory components and rejects names that
// would escape the uploads directory.
func sanitizeFileName(name string) (string, error) {
	// Take the final path element regardless of the client's separator.
	name = name[strings.LastIndexByte(name, '/')+1:]
	name = name[strings.LastIndexByte(name, '\\')+1:]

	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidFileName
	}
	if strings.ContainsRune(name, '\x00') {
		return "", ErrInvalidFileName
	}
	if filepath.Clean(name) != name {
		return "", ErrInvalidFileName
	}
	return name, nil
}
