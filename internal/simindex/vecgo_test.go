// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package simindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecgoIndex_UpsertAndQuery(t *testing.T) {
	idx, err := NewVecgoIndex(3)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]string{"source": "twitter"}))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1, 0}, nil))
	assert.Equal(t, 2, idx.Count())

	matches, err := idx.Query(ctx, []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Less(t, matches[0].Distance, matches[1].Distance)
	assert.Equal(t, "twitter", matches[0].Metadata["source"])
}

func TestVecgoIndex_UpsertReplaces(t *testing.T) {
	idx, err := NewVecgoIndex(3)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, "a", []float32{0, 0, 1}, nil))
	assert.Equal(t, 1, idx.Count())

	matches, err := idx.Query(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)
}

func TestVecgoIndex_Remove(t *testing.T) {
	idx, err := NewVecgoIndex(3)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, nil))
	require.NoError(t, idx.Remove(ctx, "a"))
	assert.Equal(t, 0, idx.Count())

	// Unknown id is a no-op
	require.NoError(t, idx.Remove(ctx, "missing"))
}

func TestVecgoIndex_QueryEmpty(t *testing.T) {
	idx, err := NewVecgoIndex(3)
	require.NoError(t, err)

	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestVecgoIndex_DimensionMismatch(t *testing.T) {
	idx, err := NewVecgoIndex(3)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, idx.Upsert(ctx, "a", []float32{1, 0}, nil))
	_, err = idx.Query(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestRetryPolicy_EventualSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Multiplier: 2}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Multiplier: 2}

	calls := 0
	sentinel := errors.New("still down")
	err := policy.Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialBackoff: 50 * time.Millisecond, Multiplier: 2}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Do(ctx, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_ZeroValueRunsOnce(t *testing.T) {
	var policy RetryPolicy

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
