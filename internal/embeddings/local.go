// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingClient is a deterministic, fully local embedding provider built on
// token feature hashing. It needs no API key and no network, so deduplication
// keeps working offline; vectors are stable across runs for identical text.
// Quality is well below a learned model, which is why it is the fallback
// provider rather than the default for production.
type HashingClient struct {
	dimensions int
}

// NewHashingClient creates a local hashing embedder with the given
// dimensionality. Dimensions below 16 are clamped to 16.
func NewHashingClient(dimensions int) *HashingClient {
	if dimensions < 16 {
		dimensions = 16
	}
	return &HashingClient{dimensions: dimensions}
}

// Embed generates a deterministic embedding vector for the given text
func (c *HashingClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dimensions)

	tokens := tokenize(text)
	for i, tok := range tokens {
		addFeature(vec, tok)
		// Token bigrams preserve some word order
		if i+1 < len(tokens) {
			addFeature(vec, tok+" "+tokens[i+1])
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch generates embedding vectors for multiple texts
func (c *HashingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// GetModelInfo returns information about the embedding model
func (c *HashingClient) GetModelInfo() ModelInfo {
	return ModelInfo{
		Name:       "feature-hashing",
		Version:    "v1",
		Dimensions: c.dimensions,
		Provider:   "local",
	}
}

// addFeature hashes a feature into a bucket with a signed weight so that
// collisions cancel rather than accumulate
func addFeature(vec []float32, feature string) {
	h := fnv.New32a()
	h.Write([]byte(feature))
	sum := h.Sum32()

	bucket := int(sum % uint32(len(vec)))
	if sum&0x80000000 != 0 {
		vec[bucket] -= 1
	} else {
		vec[bucket] += 1
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
