// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingClient_Deterministic(t *testing.T) {
	client := NewHashingClient(256)
	ctx := context.Background()

	a, err := client.Embed(ctx, "ChatGPT keeps timing out on long prompts")
	require.NoError(t, err)
	b, err := client.Embed(ctx, "ChatGPT keeps timing out on long prompts")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 256)
}

func TestHashingClient_DistinctTexts(t *testing.T) {
	client := NewHashingClient(256)
	ctx := context.Background()

	a, err := client.Embed(ctx, "the app crashes on startup")
	require.NoError(t, err)
	b, err := client.Embed(ctx, "billing page shows the wrong currency")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHashingClient_Normalized(t *testing.T) {
	client := NewHashingClient(64)

	vec, err := client.Embed(context.Background(), "some text to embed")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestHashingClient_EmptyText(t *testing.T) {
	client := NewHashingClient(64)

	vec, err := client.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
}

func TestHashingClient_MinDimensions(t *testing.T) {
	client := NewHashingClient(4)
	assert.Equal(t, 16, client.GetModelInfo().Dimensions)
}

func TestHashingClient_EmbedBatch(t *testing.T) {
	client := NewHashingClient(64)

	vectors, err := client.EmbedBatch(context.Background(), []string{"one", "two", "one"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])
}
