package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// LocalStorage keeps objects as files below a root directory.
// Locations are absolute file paths.
type LocalStorage struct {
	root string
}

// Dir is one top-level directory below the storage root.
type Dir struct {
	Name    string
	ModTime time.Time
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	err = os.MkdirAll(abs, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Root returns the absolute storage directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Save writes r to root/key through a temp file and rename.
func (s *LocalStorage) Save(key string, r io.Reader) (string, error) {
	path, err := s.resolve(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	err = atomic.WriteFile(path, r)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}

	return path, nil
}

func (s *LocalStorage) Open(location string) (io.ReadCloser, error) {
	path, err := s.resolve(location)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}

	return f, nil
}

func (s *LocalStorage) Delete(location string) error {
	path, err := s.resolve(location)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	// Drop the per-image directory once it is empty
	dir := filepath.Dir(path)
	if dir != s.root {
		_ = os.Remove(dir)
	}
	return nil
}

// Dirs lists the directories directly below the root.
func (s *LocalStorage) Dirs() ([]Dir, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var dirs []Dir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, Dir{Name: e.Name(), ModTime: info.ModTime()})
	}
	return dirs, nil
}

// RemoveDir deletes a top-level directory and everything in it.
func (s *LocalStorage) RemoveDir(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, name)
	}
	return os.RemoveAll(filepath.Join(s.root, name))
}

// resolve cleans path and ensures it stays inside the root.
func (s *LocalStorage) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, path)
	}
	return clean, nil
}
