// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package gate converts raw index distances into merge decisions
package gate

import (
	"github.com/tejzpr/sieve/internal/simindex"
)

// Decision is the outcome of classifying a candidate against its neighbors
type Decision struct {
	// Duplicate reports whether the candidate should merge into PrimaryID
	Duplicate bool

	// PrimaryID is the record to merge into when Duplicate is true
	PrimaryID string

	// Similarity is the score of the winning neighbor, in [0, 1]
	Similarity float64
}

// Similarity converts an index distance to a score in (0, 1], where 1 means
// an identical vector. Monotonically decreasing in distance.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// Classify picks the closest neighbor and compares its similarity against the
// threshold. Matches at exactly the threshold are duplicates. Ties on
// distance resolve to the earliest neighbor, which KNN search returns first.
func Classify(matches []simindex.Match, threshold float64) Decision {
	if len(matches) == 0 {
		return Decision{}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Distance < best.Distance {
			best = m
		}
	}

	sim := Similarity(best.Distance)
	if sim < threshold {
		return Decision{Similarity: sim}
	}
	return Decision{
		Duplicate:  true,
		PrimaryID:  best.ID,
		Similarity: sim,
	}
}
