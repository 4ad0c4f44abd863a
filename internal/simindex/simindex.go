// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package simindex defines the pluggable similarity index used for
// near-duplicate detection. The index is advisory: it can be rebuilt from the
// record store at any time, and when it is unavailable the engine degrades to
// exact matching instead of failing.
package simindex

import (
	"context"
	"errors"
)

// ErrBackendUnavailable signals that the similarity backend cannot serve the
// request. Callers treat it as a degradation signal, not a hard failure.
var ErrBackendUnavailable = errors.New("similarity backend unavailable")

// Match is a neighbor returned by a similarity query. Distance is
// non-negative; zero means an exact vector match.
type Match struct {
	ID       string
	Distance float64
	Metadata map[string]string
}

// Index is a vector index keyed by record id
type Index interface {
	// Upsert inserts or replaces the vector for a record
	Upsert(ctx context.Context, id string, vector []float32, meta map[string]string) error

	// Remove deletes a record's vector. Removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error

	// Query returns up to k nearest neighbors, closest first
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Count returns the number of indexed records
	Count() int
}
