// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package record provides durable structured storage for observed items:
// primary records, their attributes and merge provenance. The store is the
// single source of truth; the similarity index is a rebuildable cache of it.
package record

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Store owns Record lifetime. All writes go through it.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a record store. The clock is injectable for tests;
// nil means time.Now.
func NewStore(db *gorm.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

// Get fetches a record by id, returning (nil, nil) when absent
func (s *Store) Get(id string) (*Record, error) {
	var rec Record
	err := s.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch record %s: %w", id, err)
	}
	return &rec, nil
}

// GetPrimary fetches a primary record by id, returning (nil, nil) when the
// id is unknown or points at a merged (non-primary) record.
func (s *Store) GetPrimary(id string) (*Record, error) {
	var rec Record
	err := s.db.Where("id = ? AND is_primary = ?", id, true).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch primary record %s: %w", id, err)
	}
	return &rec, nil
}

// Create inserts a new record, stamping timestamps and defaulting frequency
func (s *Store) Create(rec *Record) error {
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Frequency < 1 {
		rec.Frequency = 1
	}
	if rec.Tags == nil {
		rec.Tags = StringList{}
	}
	if rec.MergedFrom == nil {
		rec.MergedFrom = StringList{}
	}

	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create record %s: %w", rec.ID, err)
	}
	return nil
}

// Save persists updated attributes of an existing record
func (s *Store) Save(rec *Record) error {
	rec.UpdatedAt = s.now()
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.ID, err)
	}
	return nil
}

// SaveMerge persists a similarity merge atomically: the updated primary and
// the demoted duplicate commit together or not at all. A failed merge leaves
// the primary untouched on disk, so a retried submission cannot double-count
// frequency.
func (s *Store) SaveMerge(primary, dup *Record) error {
	now := s.now()
	primary.UpdatedAt = now
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = now
	}
	dup.UpdatedAt = now
	if dup.Frequency < 1 {
		dup.Frequency = 1
	}
	if dup.Tags == nil {
		dup.Tags = StringList{}
	}
	if dup.MergedFrom == nil {
		dup.MergedFrom = StringList{}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(primary).Error; err != nil {
			return err
		}
		return tx.Create(dup).Error
	})
	if err != nil {
		return fmt.Errorf("failed to merge %s into %s: %w", dup.ID, primary.ID, err)
	}
	return nil
}

// Touch applies an exact-match hit: frequency increments by exactly one and
// the new tags are unioned in. Frequency is monotonically non-decreasing.
func (s *Store) Touch(rec *Record, newTags []string) error {
	rec.Frequency++
	rec.Tags = UnionTags(rec.Tags, newTags)
	return s.Save(rec)
}

// UnionTags merges two tag sets, deduplicated and sorted for stable storage
func UnionTags(existing []string, incoming []string) StringList {
	set := make(map[string]bool, len(existing)+len(incoming))
	for _, tag := range existing {
		set[tag] = true
	}
	for _, tag := range incoming {
		set[tag] = true
	}

	out := make(StringList, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// UpdateAnalysis sets the analysis fields on a record. An empty solution
// leaves the existing one untouched.
func (s *Store) UpdateAnalysis(id, analysis, solution string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("record not found: %s", id)
	}

	rec.AIAnalysis = analysis
	if solution != "" {
		rec.AISolution = solution
	}
	return s.Save(rec)
}

// TopByFrequency returns primary records ordered by descending frequency
func (s *Store) TopByFrequency(limit int) ([]Record, error) {
	var recs []Record
	err := s.db.Where("is_primary = ?", true).
		Order("frequency DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list top records: %w", err)
	}
	return recs, nil
}

// ByPlatform returns primary records for a product, highest frequency first
func (s *Store) ByPlatform(platform string, limit int) ([]Record, error) {
	var recs []Record
	err := s.db.Where("platform = ? AND is_primary = ?", platform, true).
		Order("frequency DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records for platform %s: %w", platform, err)
	}
	return recs, nil
}

// ByCategory returns primary records for a category, highest frequency first
func (s *Store) ByCategory(category string, limit int) ([]Record, error) {
	var recs []Record
	err := s.db.Where("category = ? AND is_primary = ?", category, true).
		Order("frequency DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records for category %s: %w", category, err)
	}
	return recs, nil
}

// RecentSince returns primary records first observed within the given
// number of days, newest first
func (s *Store) RecentSince(days, limit int) ([]Record, error) {
	cutoff := s.now().AddDate(0, 0, -days)

	var recs []Record
	err := s.db.Where("created_at >= ? AND is_primary = ?", cutoff, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent records: %w", err)
	}
	return recs, nil
}

// AllPrimaries returns every primary record. Used for index rebuilds and
// exports; the similarity index is a disposable projection of this set.
func (s *Store) AllPrimaries() ([]Record, error) {
	var recs []Record
	if err := s.db.Where("is_primary = ?", true).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list primary records: %w", err)
	}
	return recs, nil
}

// CountPrimaries returns the number of primary records
func (s *Store) CountPrimaries() (int64, error) {
	var count int64
	err := s.db.Model(&Record{}).Where("is_primary = ?", true).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count primary records: %w", err)
	}
	return count, nil
}
