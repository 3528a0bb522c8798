// Package photostore keeps the reference photos of registered persons on disk.
package photostore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/constants"
)

// Store saves photos under a single directory with generated names.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// AllowedFile reports whether filename has an accepted photo extension.
func AllowedFile(filename string) bool {
	return constants.AllowedPhotoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Save writes data under a fresh uuid-based name that keeps the original extension
// and returns that name.
func (s *Store) Save(data []byte, originalName string) (string, error) {
	if !AllowedFile(originalName) {
		return "", apperr.New(apperr.ErrInvalidImage, "invalid file type, allowed: png, jpg, jpeg, gif, webp",
			apperr.Field("filename", originalName))
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o640); err != nil {
		return "", apperr.Wrap(err, apperr.ErrStorage, "write photo")
	}
	return name, nil
}

// Path resolves a stored name to its file path. Names that would escape the
// directory are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", apperr.New(apperr.ErrNotFound, "photo not found", apperr.Field("name", name))
	}
	return filepath.Join(s.dir, name), nil
}

// Read returns the content of a stored photo.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // name is validated by Path
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.ErrNotFound, "photo not found", apperr.Field("name", name))
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "read photo")
	}
	return data, nil
}

// Remove deletes a stored photo. Missing files are ignored.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(err, apperr.ErrStorage, "remove photo")
	}
	return nil
}
