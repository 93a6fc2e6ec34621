// CLAUDE:SUMMARY Atomic JSON-array persistence of product records: tolerant load, pretty temp-file-then-rename save, load-merge-save flush.
// CLAUDE:EXPORTS Store, New, ErrWrite
// Package jsonindex persists the product collection as a single JSON array
// file and accumulates one run's fragments in an explicit in-memory index.
//
// A save is always preceded by a load: Flush merges every code found on disk
// with every code in the run index, so a flush never overwrites records the
// current run did not touch. Writes go to a sibling temp file that is synced
// and renamed over the target; a reader never sees a half-written file.
package jsonindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hazyhaar/surfacekeeper/record"
)

// ErrWrite wraps every failure to persist the collection.
var ErrWrite = errors.New("jsonindex: write failed")

// Store reads and writes one JSON index file. It holds no lock; callers
// funnel flushes through a single goroutine.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a Store bound to path. A nil logger falls back to slog.Default().
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the index file path.
func (s *Store) Path() string { return s.path }

// Load reads every record from the file. A missing, unreadable, corrupt or
// non-array file yields an empty collection and a warning, never an error.
// Array elements that are not objects are skipped with a warning and the rest
// are kept. Records come back in canonical shape, so array facets are sets at
// rest, and records whose codes normalize to the same value are merged in
// file order.
func (s *Store) Load() []record.Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("jsonindex: file missing, starting empty", "path", s.path)
		} else {
			s.logger.Warn("jsonindex: read failed, starting empty", "path", s.path, "error", err)
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("jsonindex: corrupt file, starting empty", "path", s.path, "error", err)
		return nil
	}

	out := make([]record.Record, 0, len(raw))
	pos := make(map[string]int, len(raw))
	dups := 0
	for i, elem := range raw {
		var m map[string]any
		if err := json.Unmarshal(elem, &m); err != nil {
			s.logger.Warn("jsonindex: skipped bad element", "path", s.path, "index", i, "error", err)
			continue
		}
		if m == nil {
			s.logger.Warn("jsonindex: skipped bad element", "path", s.path, "index", i)
			continue
		}
		r := record.Canonical(record.Record(m))
		code := r.Code()
		if code == "" {
			out = append(out, r)
			continue
		}
		if j, ok := pos[code]; ok {
			out[j] = record.Merge(out[j], r)
			dups++
			continue
		}
		pos[code] = len(out)
		out = append(out, r)
	}
	if dups > 0 {
		s.logger.Warn("jsonindex: merged duplicate codes on load", "path", s.path, "duplicates", dups)
	}
	return out
}

// Save writes records as a pretty-printed JSON array sorted by code. The
// previous file is left intact when any step fails.
func (s *Store) Save(records []record.Record) error {
	sorted := make([]record.Record, len(records))
	copy(sorted, records)
	sortByCode(sorted)

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrWrite, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrWrite, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrWrite, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp: %v", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync temp: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp: %v", ErrWrite, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod temp: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename: %v", ErrWrite, err)
	}
	return nil
}

// Flush loads the file, merges every index record into the record stored
// under the same code (file record as old), and saves the union. A flushed
// record still missing a surface group gets the index default. It returns
// the number of records written.
func (s *Store) Flush(idx *Index) (int, error) {
	current := s.Load()
	pos := make(map[string]int, len(current))
	for i, r := range current {
		if code := r.Code(); code != "" {
			pos[code] = i
		}
	}

	if idx != nil {
		for _, r := range idx.Records() {
			code := r.Code()
			i, ok := pos[code]
			if !ok {
				i = len(current)
				pos[code] = i
				current = append(current, nil)
			}
			merged, coerced := record.MergeReport(current[i], r)
			for _, field := range coerced {
				s.logger.Warn("jsonindex: type mismatch coerced", "path", s.path, "code", code, "field", field)
			}
			idx.settleGroup(r, merged)
			current[i] = merged
		}
	}

	if err := s.Save(current); err != nil {
		return 0, err
	}
	s.logger.Debug("jsonindex: flushed", "path", s.path, "records", len(current))
	return len(current), nil
}

func sortByCode(records []record.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Code() < records[j].Code()
	})
}
