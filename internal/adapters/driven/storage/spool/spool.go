// Package spool keeps live session audio in temporary files.
package spool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure Spool implements the interface.
var _ driven.AudioSpool = (*Spool)(nil)

// Spool creates minutes-<session>-*.<format> files under a directory.
type Spool struct {
	dir string
}

// New creates a spool rooted at dir. An empty dir means os.TempDir().
func New(dir string) (*Spool, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Create allocates an empty file for a session.
func (s *Spool) Create(sessionID, format string) (string, error) {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" || strings.ContainsAny(format, `/\*`) {
		return "", fmt.Errorf("audio format %q: %w", format, domain.ErrUnsupportedFormat)
	}
	if strings.ContainsAny(sessionID, `/\*`) {
		return "", fmt.Errorf("session id %q: %w", sessionID, domain.ErrInvalidInput)
	}

	f, err := os.CreateTemp(s.dir, "minutes-"+sessionID+"-*."+format)
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("create spool file: %w", err)
	}
	return f.Name(), nil
}

// Append writes data to the end of the file. The file must already exist.
func (s *Spool) Append(path string, data []byte) error {
	if err := s.owns(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("open spool file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append audio: %w", err)
	}
	return f.Close()
}

// Remove deletes the file. A missing file is not an error.
func (s *Spool) Remove(path string) error {
	if err := s.owns(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove spool file: %w", err)
	}
	return nil
}

// owns rejects paths outside the spool directory.
func (s *Spool) owns(path string) error {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(s.dir) {
		return fmt.Errorf("path %s is outside the spool: %w", path, domain.ErrInvalidInput)
	}
	return nil
}
