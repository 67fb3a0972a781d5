// Package imagestore keeps product images as content-addressed files.
package imagestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/kozaktomas/shop-kiosk/internal/imaging"
)

// ErrInvalidName is returned for names that were not produced by Put.
var ErrInvalidName = errors.New("invalid image name")

var namePattern = regexp.MustCompile(`^[0-9a-f]{64}\.(jpg|png|bmp|webp)$`)

var extensions = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"bmp":  "bmp",
	"webp": "webp",
}

// Store writes images to Dir as <sha256>.<ext>.
type Store struct {
	Dir string
}

// New creates the directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("image directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Name returns the content address of data without writing it.
func Name(data []byte) (string, error) {
	format, err := imaging.Format(data)
	if err != nil {
		return "", err
	}
	ext, ok := extensions[format]
	if !ok {
		return "", fmt.Errorf("unsupported image format %q", format)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + "." + ext, nil
}

// Put stores data and returns its name. Storing the same bytes twice is a no-op.
func (s *Store) Put(data []byte) (string, error) {
	name, err := Name(data)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err == nil {
		return name, nil
	}

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("store image: %w", err)
	}
	return name, nil
}

// Get reads a stored image.
func (s *Store) Get(name string) ([]byte, error) {
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidName
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name)) //nolint:gosec // name is validated above
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether an image with this name is stored.
func (s *Store) Exists(name string) bool {
	if !namePattern.MatchString(name) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.Dir, name))
	return err == nil
}
