// Package history stores one JSON document per meeting analysis.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driven"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.HistoryStore = (*Store)(nil)

const ext = ".json"

// cacheEntry is the listing projection of one file at a given mtime.
type cacheEntry struct {
	file    string
	modTime time.Time
	size    int64
	compact domain.CompactAnalysis
}

// Store keeps <dir>/<id>.json files.
//
// Listings go through a cache keyed by file name. Every listing rescans the
// directory, drops entries whose file is gone and reloads files whose mtime
// or size changed, so after a successful List the cache mirrors the disk.
type Store struct {
	dir string

	// saveMu serialises the exists-check and rename in Save.
	saveMu sync.Mutex

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New opens the store at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("history directory: %w", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &Store{dir: dir, cache: make(map[string]cacheEntry)}, nil
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string {
	return s.dir
}

func validID(id string) bool {
	return id != "" && !strings.HasPrefix(id, ".") && !strings.ContainsAny(id, `/\`)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+ext)
}

// Save writes the analysis to a temp file and renames it into place,
// so readers never see a partial record.
func (s *Store) Save(a *domain.MeetingAnalysis) error {
	if a == nil || !validID(a.ID) {
		return fmt.Errorf("analysis id: %w", domain.ErrInvalidInput)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis %s: %w", a.ID, err)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	final := s.path(a.ID)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("analysis %s: %w", a.ID, domain.ErrAlreadyExists)
	}

	tmp, err := os.CreateTemp(s.dir, "."+a.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", a.ID, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save analysis %s: %w", a.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save analysis %s: %w", a.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save analysis %s: %w", a.ID, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("save analysis %s: %w", a.ID, err)
	}
	return nil
}

// Load reads one analysis.
func (s *Store) Load(id string) (*domain.MeetingAnalysis, error) {
	if !validID(id) {
		return nil, fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
	}
	return s.read(s.path(id))
}

func (s *Store) read(path string) (*domain.MeetingAnalysis, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("analysis %s: %w", idOf(path), domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var a domain.MeetingAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	// The file name is the record key. An embedded id that disagrees, as in
	// a copied or renamed file, is replaced.
	a.ID = idOf(path)
	return &a, nil
}

func idOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ext)
}

// IDs returns the IDs of all record files, sorted.
func (s *Store) IDs() ([]string, error) {
	entries, err := s.recordFiles()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, idOf(e.Name()))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) recordFiles() ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ext {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// refresh brings the listing cache in line with the directory and returns a
// snapshot of it. Unreadable files are logged and left out.
func (s *Store) refresh() ([]cacheEntry, error) {
	entries, err := s.recordFiles()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := e.Name()
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		seen[name] = struct{}{}

		if c, ok := s.cache[name]; ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
			continue
		}
		a, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			logger.Warn("Skipping history file %s: %v", name, err)
			delete(s.cache, name)
			continue
		}
		s.cache[name] = cacheEntry{file: name, modTime: info.ModTime(), size: info.Size(), compact: a.Compact()}
	}
	for name := range s.cache {
		if _, ok := seen[name]; !ok {
			delete(s.cache, name)
		}
	}

	snapshot := make([]cacheEntry, 0, len(s.cache))
	for _, c := range s.cache {
		snapshot = append(snapshot, c)
	}
	return snapshot, nil
}

// List returns compact projections filtered and ordered by opts.
// Records sort by timestamp unless opts.SortBy says otherwise; ties break on ID.
func (s *Store) List(opts domain.ListOptions) ([]domain.CompactAnalysis, error) {
	entries, err := s.refresh()
	if err != nil {
		return nil, err
	}

	out := make([]domain.CompactAnalysis, 0, len(entries))
	for _, e := range entries {
		if opts.MeetingType != "" && !strings.EqualFold(e.compact.MeetingType, opts.MeetingType) {
			continue
		}
		out = append(out, e.compact)
	}

	less := func(a, b domain.CompactAnalysis) bool {
		if opts.SortBy == domain.SortByOriginalFile {
			if x, y := strings.ToLower(a.OriginalFile), strings.ToLower(b.OriginalFile); x != y {
				return x < y
			}
		} else if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// FindByFilename returns the most recently modified analysis whose original
// file stem contains the stem of name, ignoring case.
func (s *Store) FindByFilename(name string) (*domain.MeetingAnalysis, error) {
	needle := strings.TrimSpace(name)
	if needle != "" {
		needle = strings.ToLower(stem(needle))
	}
	if needle == "" {
		return nil, fmt.Errorf("filename: %w", domain.ErrInvalidInput)
	}

	entries, err := s.refresh()
	if err != nil {
		return nil, err
	}

	var best *cacheEntry
	for i := range entries {
		e := &entries[i]
		if !strings.Contains(strings.ToLower(stem(e.compact.OriginalFile)), needle) {
			continue
		}
		if best == nil || e.modTime.After(best.modTime) ||
			(e.modTime.Equal(best.modTime) && e.compact.ID > best.compact.ID) {
			best = e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("analysis for %q: %w", name, domain.ErrNotFound)
	}
	return s.read(filepath.Join(s.dir, best.file))
}

func stem(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
