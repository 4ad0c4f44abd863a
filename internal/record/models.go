// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package record

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StringList stores a string slice as a JSON array column. Both sqlite and
// postgres keep it as text, which matches the original on-disk format.
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for string list: %T", value)
	}

	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// Contains reports whether the list holds the given value
func (l StringList) Contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

// Record is the persisted representative of an observed item. A primary
// record is the canonical head of a duplicate cluster; non-primary records
// point at their primary via MergedTo and exist only as provenance.
type Record struct {
	ID                string    `gorm:"primaryKey;size:64" json:"id"`
	Content           string    `gorm:"type:text;not null" json:"content"`
	ContentNormalized string    `gorm:"type:text" json:"content_normalized"`
	Source            string    `gorm:"size:32;not null;index" json:"source"`
	Platform          string    `gorm:"size:32;index" json:"platform"`
	Author            string    `gorm:"size:128" json:"author"`
	OriginalURL       string    `gorm:"size:512" json:"original_url"`
	Tags              StringList `gorm:"type:text" json:"tags"`
	Category          string    `gorm:"size:32;index" json:"category"`
	Severity          string    `gorm:"size:16" json:"severity"`
	AIAnalysis        string    `gorm:"type:text" json:"ai_analysis"`
	AISolution        string    `gorm:"type:text" json:"ai_solution"`
	Frequency         int       `gorm:"not null;default:1" json:"frequency"`
	SimilarityScore   float64   `json:"similarity_score"`
	MergedFrom        StringList `gorm:"type:text" json:"merged_from"`
	// No column default: false must round-trip for merged duplicates,
	// and GORM skips zero values on columns that declare a default.
	IsPrimary         bool      `gorm:"not null;index" json:"is_primary"`
	MergedTo          string    `gorm:"size:64;index" json:"merged_to"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for Record
func (Record) TableName() string {
	return "records"
}

// Migrate runs migrations for the records table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}
