// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package record

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Export is the JSON document produced by ExportJSON
type Export struct {
	ExportedAt time.Time `json:"exported_at"`
	Total      int       `json:"total"`
	Records    []Record  `json:"records"`
}

// ExportJSON writes all primary records as an indented JSON document and
// returns the number of records exported.
func (s *Store) ExportJSON(w io.Writer) (int, error) {
	recs, err := s.AllPrimaries()
	if err != nil {
		return 0, err
	}

	doc := Export{
		ExportedAt: s.now(),
		Total:      len(recs),
		Records:    recs,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("failed to encode export: %w", err)
	}
	return len(recs), nil
}
