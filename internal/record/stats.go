// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package record

import (
	"fmt"
)

// GroupStats aggregates a group of primary records
type GroupStats struct {
	Count     int64 `json:"count"`
	Frequency int64 `json:"frequency"`
}

// Stats summarizes the primary records in the store
type Stats struct {
	TotalPrimary int64                 `json:"total_primary"`
	ByPlatform   map[string]GroupStats `json:"by_platform"`
	ByCategory   map[string]GroupStats `json:"by_category"`
	BySeverity   map[string]int64      `json:"by_severity"`
}

type groupRow struct {
	Key       string
	Count     int64
	Frequency int64
}

// Stats computes aggregate statistics over primary records
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{
		ByPlatform: make(map[string]GroupStats),
		ByCategory: make(map[string]GroupStats),
		BySeverity: make(map[string]int64),
	}

	err := s.db.Model(&Record{}).
		Where("is_primary = ?", true).
		Count(&stats.TotalPrimary).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	var platforms []groupRow
	err = s.db.Model(&Record{}).
		Select("platform AS key, COUNT(id) AS count, SUM(frequency) AS frequency").
		Where("is_primary = ? AND platform <> ''", true).
		Group("platform").
		Scan(&platforms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by platform: %w", err)
	}
	for _, row := range platforms {
		stats.ByPlatform[row.Key] = GroupStats{Count: row.Count, Frequency: row.Frequency}
	}

	var categories []groupRow
	err = s.db.Model(&Record{}).
		Select("category AS key, COUNT(id) AS count, SUM(frequency) AS frequency").
		Where("is_primary = ? AND category <> ''", true).
		Group("category").
		Scan(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by category: %w", err)
	}
	for _, row := range categories {
		stats.ByCategory[row.Key] = GroupStats{Count: row.Count, Frequency: row.Frequency}
	}

	var severities []groupRow
	err = s.db.Model(&Record{}).
		Select("severity AS key, COUNT(id) AS count").
		Where("is_primary = ? AND severity <> ''", true).
		Group("severity").
		Scan(&severities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by severity: %w", err)
	}
	for _, row := range severities {
		stats.BySeverity[row.Key] = row.Count
	}

	return stats, nil
}
