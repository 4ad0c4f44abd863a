// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(date string) func() time.Time {
	t, err := time.Parse(DateFormat, date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(13 * time.Hour) } // mid-day, date math must not care
}

func newTestStore(t *testing.T, date string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := NewStore(path, fixedClock(date), nil)
	require.NoError(t, err)
	return s, path
}

func TestMarkRecommended_Upserts(t *testing.T) {
	s, path := newTestStore(t, "2026-01-01")

	require.NoError(t, s.MarkRecommended("acme/widget", 500))
	require.NoError(t, s.MarkRecommended("acme/widget", 750))
	assert.Equal(t, 1, s.Len())

	entry, ok := s.Last("acme/widget")
	require.True(t, ok)
	assert.Equal(t, "2026-01-01", entry.RecommendedAt)
	assert.Equal(t, 750, entry.Stars)

	// On-disk format: {"projects":[{"name","recommended_at","stars"}]}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Projects []Entry `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Projects, 1)
	assert.Equal(t, "acme/widget", doc.Projects[0].Name)
	assert.Equal(t, 750, doc.Projects[0].Stars)
}

func TestSave_SortedByName(t *testing.T) {
	s, path := newTestStore(t, "2026-01-01")

	require.NoError(t, s.MarkRecommended("zeta/repo", 1))
	require.NoError(t, s.MarkRecommended("alpha/repo", 2))
	require.NoError(t, s.MarkRecommended("mid/repo", 3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Projects []Entry `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Projects, 3)
	assert.Equal(t, "alpha/repo", doc.Projects[0].Name)
	assert.Equal(t, "mid/repo", doc.Projects[1].Name)
	assert.Equal(t, "zeta/repo", doc.Projects[2].Name)

	// Rewriting without changes reproduces the same bytes
	require.NoError(t, s.MarkRecommended("mid/repo", 3))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestIsEligible_CooldownBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	s, err := NewStore(path, fixedClock("2026-01-01"), nil)
	require.NoError(t, err)
	require.NoError(t, s.MarkRecommended("acme/widget", 500))

	cases := []struct {
		date     string
		eligible bool
	}{
		{"2026-01-01", false},
		{"2026-01-20", false},
		{"2026-01-30", false},
		{"2026-01-31", true}, // exactly D+30
		{"2026-02-15", true},
	}
	for _, tc := range cases {
		s, err := NewStore(path, fixedClock(tc.date), nil)
		require.NoError(t, err)
		assert.Equal(t, tc.eligible, s.IsEligible("acme/widget", 30), "on %s", tc.date)
	}
}

func TestIsEligible_UnknownIdentity(t *testing.T) {
	s, _ := newTestStore(t, "2026-01-01")
	assert.True(t, s.IsEligible("never/seen", 30))
}

func TestPrune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	s, err := NewStore(path, fixedClock("2026-01-01"), nil)
	require.NoError(t, err)
	require.NoError(t, s.MarkRecommended("old/project", 100))

	s, err = NewStore(path, fixedClock("2026-03-01"), nil)
	require.NoError(t, err)
	require.NoError(t, s.MarkRecommended("fresh/project", 200))

	// 2026-04-02: old/project is 91 days stale, fresh/project 32
	s, err = NewStore(path, fixedClock("2026-04-02"), nil)
	require.NoError(t, err)

	removed, err := s.Prune(90)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Last("old/project")
	assert.False(t, ok)
	_, ok = s.Last("fresh/project")
	assert.True(t, ok)
}

func TestPrune_KeepsEntryAtHorizon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	s, err := NewStore(path, fixedClock("2026-01-01"), nil)
	require.NoError(t, err)
	require.NoError(t, s.MarkRecommended("edge/project", 10))

	// Exactly 90 days later: not strictly older, so kept
	s, err = NewStore(path, fixedClock("2026-04-01"), nil)
	require.NoError(t, err)

	removed, err := s.Prune(90)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, s.Len())
}

func TestNewStore_CorruptFileReinitializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := NewStore(path, fixedClock("2026-01-01"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	// Store stays usable after reinit
	require.NoError(t, s.MarkRecommended("acme/widget", 1))
	assert.True(t, s.IsEligible("other/project", 30))
}

func TestNewStore_MissingFile(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "nope", "history.json"), fixedClock("2026-01-01"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	// First save creates the directory
	require.NoError(t, s.MarkRecommended("acme/widget", 5))
}

func TestNewStore_DropsBadDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	doc := `{"projects":[{"name":"good","recommended_at":"2026-01-01","stars":1},{"name":"bad","recommended_at":"yesterday","stars":2}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	s, err := NewStore(path, fixedClock("2026-01-02"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Last("good")
	assert.True(t, ok)
}
