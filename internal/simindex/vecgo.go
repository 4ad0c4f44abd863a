// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package simindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/vecgo"
	"github.com/hupe1980/vecgo/metadata"
)

// VecgoIndex is an in-process similarity index backed by a vecgo flat index
// with squared L2 distance. Exact search keeps recall at 100%, which matters
// because a missed neighbor silently creates a duplicate record.
type VecgoIndex struct {
	mu   sync.RWMutex
	db   *vecgo.Vecgo[string]
	ids  map[string]uint64
	dims int
}

// NewVecgoIndex creates an empty index for vectors of the given dimensionality
func NewVecgoIndex(dims int) (*VecgoIndex, error) {
	db, err := vecgo.Flat[string](dims).SquaredL2().Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}
	return &VecgoIndex{
		db:   db,
		ids:  make(map[string]uint64),
		dims: dims,
	}, nil
}

// Upsert inserts or replaces the vector for a record
func (v *VecgoIndex) Upsert(ctx context.Context, id string, vector []float32, meta map[string]string) error {
	if len(vector) != v.dims {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vector), v.dims)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	item := vecgo.VectorWithData[string]{
		Vector:   vector,
		Data:     id,
		Metadata: toVecgoMetadata(meta),
	}

	if numID, ok := v.ids[id]; ok {
		if err := v.db.Update(ctx, numID, item); err != nil {
			return fmt.Errorf("%w: update failed for %s: %v", ErrBackendUnavailable, id, err)
		}
		return nil
	}

	numID, err := v.db.Insert(ctx, item)
	if err != nil {
		return fmt.Errorf("%w: insert failed for %s: %v", ErrBackendUnavailable, id, err)
	}
	v.ids[id] = numID
	return nil
}

// Remove deletes a record's vector. Removing an unknown id is a no-op.
func (v *VecgoIndex) Remove(ctx context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	numID, ok := v.ids[id]
	if !ok {
		return nil
	}
	if err := v.db.Delete(ctx, numID); err != nil {
		return fmt.Errorf("%w: delete failed for %s: %v", ErrBackendUnavailable, id, err)
	}
	delete(v.ids, id)
	return nil
}

// Query returns up to k nearest neighbors, closest first
func (v *VecgoIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != v.dims {
		return nil, fmt.Errorf("vector has %d dimensions, index expects %d", len(vector), v.dims)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.ids) == 0 {
		return nil, nil
	}
	if k > len(v.ids) {
		k = len(v.ids)
	}

	results, err := v.db.KNNSearch(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", ErrBackendUnavailable, err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		matches = append(matches, Match{
			ID:       res.Data,
			Distance: float64(res.Distance),
			Metadata: fromVecgoMetadata(res.Metadata),
		})
	}
	return matches, nil
}

// Count returns the number of indexed records
func (v *VecgoIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.ids)
}

func toVecgoMetadata(meta map[string]string) metadata.Metadata {
	if len(meta) == 0 {
		return nil
	}
	out := make(metadata.Metadata, len(meta))
	for k, val := range meta {
		out[k] = metadata.String(val)
	}
	return out
}

func fromVecgoMetadata(meta metadata.Metadata) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, val := range meta {
		out[k] = val.StringValue()
	}
	return out
}
