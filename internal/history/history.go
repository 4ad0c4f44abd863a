// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package history tracks when each identity was last recommended so the same
// item is not re-surfaced before its cooldown expires. State lives in a small
// JSON file; all timestamps are day-granular dates.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DateFormat is the on-disk date layout
const DateFormat = "2006-01-02"

// Entry records the last recommendation of one identity
type Entry struct {
	Name          string `json:"name"`
	RecommendedAt string `json:"recommended_at"`
	Stars         int    `json:"stars"`
}

type fileFormat struct {
	Projects []Entry `json:"projects"`
}

// Store is a file-backed recommendation history. A corrupt or missing file is
// never fatal: the store reinitializes empty and logs a warning, trading old
// cooldown state for availability.
type Store struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	logger  *slog.Logger
	entries map[string]Entry
}

// NewStore loads the history file at path, creating state in memory if the
// file is absent or unreadable. The clock is injectable for tests; nil means
// time.Now. A nil logger falls back to slog.Default.
func NewStore(path string, now func() time.Time, logger *slog.Logger) (*Store, error) {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:    path,
		now:     now,
		logger:  logger,
		entries: make(map[string]Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history file %s: %w", s.path, err)
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("history file corrupt, reinitializing empty",
			"path", s.path, "error", err)
		return nil
	}

	for _, e := range doc.Projects {
		if _, err := time.Parse(DateFormat, e.RecommendedAt); err != nil {
			s.logger.Warn("dropping history entry with bad date",
				"name", e.Name, "recommended_at", e.RecommendedAt)
			continue
		}
		s.entries[e.Name] = e
	}

	s.logger.Info("loaded recommendation history",
		"path", s.path, "entries", len(s.entries))
	return nil
}

// save writes the file atomically via rename so a crash mid-write never
// leaves a truncated file behind
func (s *Store) save() error {
	doc := fileFormat{Projects: make([]Entry, 0, len(s.entries))}
	for _, e := range s.entries {
		doc.Projects = append(doc.Projects, e)
	}
	// Stable order keeps the file diff-friendly across rewrites
	sort.Slice(doc.Projects, func(i, j int) bool {
		return doc.Projects[i].Name < doc.Projects[j].Name
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// today truncates the clock to a date
func (s *Store) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MarkRecommended upserts the identity with today's date and the given score.
// Re-marking an identity updates its entry, never duplicates it.
func (s *Store) MarkRecommended(identity string, stars int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[identity] = Entry{
		Name:          identity,
		RecommendedAt: s.today().Format(DateFormat),
		Stars:         stars,
	}
	return s.save()
}

// IsEligible reports whether the identity is outside its cooldown window.
// Unknown identities are eligible. An identity marked on day D with a 30-day
// cooldown is ineligible through D+29 and eligible again exactly on D+30.
// Read-only: eligibility is a pure function of stored state and the date.
func (s *Store) IsEligible(identity string, cooldownDays int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identity]
	if !ok {
		return true
	}
	last, err := time.Parse(DateFormat, entry.RecommendedAt)
	if err != nil {
		return true
	}

	cutoff := s.today().AddDate(0, 0, -cooldownDays)
	return !last.After(cutoff)
}

// Last returns the entry for an identity, or false if it has never been
// recommended
func (s *Store) Last(identity string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[identity]
	return entry, ok
}

// Prune removes entries strictly older than the retention horizon and
// returns how many were dropped. Retention must be at least as long as any
// cooldown in use, so pruning can never make an identity eligible early.
func (s *Store) Prune(retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.today().AddDate(0, 0, -retentionDays)

	removed := 0
	for name, entry := range s.entries {
		last, err := time.Parse(DateFormat, entry.RecommendedAt)
		if err != nil || last.Before(cutoff) {
			delete(s.entries, name)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.save(); err != nil {
		return removed, err
	}
	s.logger.Info("pruned recommendation history",
		"removed", removed, "remaining", len(s.entries))
	return removed, nil
}

// Len returns the number of tracked identities
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
