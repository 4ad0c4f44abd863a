// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mergepolicy folds a near-duplicate record into its primary. The
// policy is pure: it mutates the in-memory records and leaves persistence to
// the caller, so a failed write never half-applies a merge.
package mergepolicy

import (
	"github.com/tejzpr/sieve/internal/record"
)

// DefaultMaxProvenance bounds the merged_from list on a primary record
const DefaultMaxProvenance = 50

// Policy controls how a duplicate is folded into its primary
type Policy struct {
	// MaxProvenance caps merged_from; zero means DefaultMaxProvenance.
	// Frequency keeps counting past the cap, provenance just stops growing.
	MaxProvenance int
}

// Apply merges dup into primary with the given similarity score. The primary
// absorbs frequency, tags, provenance and the better analysis; dup is
// demoted to a non-primary pointer at its primary.
func (p Policy) Apply(primary, dup *record.Record, similarity float64) {
	maxProv := p.MaxProvenance
	if maxProv <= 0 {
		maxProv = DefaultMaxProvenance
	}

	primary.Frequency += dup.Frequency
	primary.Tags = record.UnionTags(primary.Tags, dup.Tags)
	primary.SimilarityScore = similarity

	if !primary.MergedFrom.Contains(dup.ID) && len(primary.MergedFrom) < maxProv {
		primary.MergedFrom = append(primary.MergedFrom, dup.ID)
	}

	// Longest analysis wins; length is the only signal we have for depth
	if len(dup.AIAnalysis) > len(primary.AIAnalysis) {
		primary.AIAnalysis = dup.AIAnalysis
	}
	if len(dup.AISolution) > len(primary.AISolution) {
		primary.AISolution = dup.AISolution
	}

	dup.IsPrimary = false
	dup.MergedTo = primary.ID
	dup.SimilarityScore = similarity
}
