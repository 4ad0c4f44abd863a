// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mergepolicy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tejzpr/sieve/internal/record"
)

func TestApply(t *testing.T) {
	primary := &record.Record{
		ID:         "p1",
		Frequency:  3,
		Tags:       record.StringList{"category:performance", "product:ChatGPT"},
		AIAnalysis: "short",
		IsPrimary:  true,
	}
	dup := &record.Record{
		ID:         "d1",
		Frequency:  1,
		Tags:       record.StringList{"product:ChatGPT", "severity:major"},
		AIAnalysis: "a much longer analysis of the issue",
		AISolution: "restart the session",
		IsPrimary:  true,
	}

	Policy{}.Apply(primary, dup, 0.87)

	assert.Equal(t, 4, primary.Frequency)
	assert.Equal(t, record.StringList{"category:performance", "product:ChatGPT", "severity:major"}, primary.Tags)
	assert.Equal(t, record.StringList{"d1"}, primary.MergedFrom)
	assert.Equal(t, "a much longer analysis of the issue", primary.AIAnalysis)
	assert.Equal(t, "restart the session", primary.AISolution)
	assert.InDelta(t, 0.87, primary.SimilarityScore, 1e-9)
	assert.True(t, primary.IsPrimary)

	assert.False(t, dup.IsPrimary)
	assert.Equal(t, "p1", dup.MergedTo)
	assert.InDelta(t, 0.87, dup.SimilarityScore, 1e-9)
}

func TestApply_LongestWinsKeepsPrimary(t *testing.T) {
	primary := &record.Record{ID: "p1", Frequency: 1, AIAnalysis: "a detailed existing analysis"}
	dup := &record.Record{ID: "d1", Frequency: 1, AIAnalysis: "terse"}

	Policy{}.Apply(primary, dup, 0.9)

	assert.Equal(t, "a detailed existing analysis", primary.AIAnalysis)
}

func TestApply_ProvenanceAppendIfAbsent(t *testing.T) {
	primary := &record.Record{ID: "p1", Frequency: 1, MergedFrom: record.StringList{"d1"}}
	dup := &record.Record{ID: "d1", Frequency: 1}

	Policy{}.Apply(primary, dup, 0.9)

	assert.Equal(t, record.StringList{"d1"}, primary.MergedFrom)
	assert.Equal(t, 2, primary.Frequency)
}

func TestApply_ProvenanceBounded(t *testing.T) {
	primary := &record.Record{ID: "p1", Frequency: 1}
	policy := Policy{MaxProvenance: 3}

	for i := 0; i < 5; i++ {
		dup := &record.Record{ID: fmt.Sprintf("d%d", i), Frequency: 1}
		policy.Apply(primary, dup, 0.9)
	}

	// Provenance stops at the cap, frequency keeps counting
	assert.Len(t, primary.MergedFrom, 3)
	assert.Equal(t, 6, primary.Frequency)
}

func TestApply_AbsorbsDupFrequency(t *testing.T) {
	primary := &record.Record{ID: "p1", Frequency: 2}
	dup := &record.Record{ID: "d1", Frequency: 4}

	Policy{}.Apply(primary, dup, 0.9)

	assert.Equal(t, 6, primary.Frequency)
}
