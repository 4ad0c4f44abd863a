// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package engine ties fingerprinting, the record store, the similarity index
// and the recommendation history into the deduplication core. The exact tier
// is authoritative; the fuzzy tier is best-effort and the engine degrades to
// exact-only when the index is down.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tejzpr/sieve/internal/embeddings"
	"github.com/tejzpr/sieve/internal/fingerprint"
	"github.com/tejzpr/sieve/internal/gate"
	"github.com/tejzpr/sieve/internal/history"
	"github.com/tejzpr/sieve/internal/mergepolicy"
	"github.com/tejzpr/sieve/internal/record"
	"github.com/tejzpr/sieve/internal/simindex"
	"github.com/tejzpr/sieve/internal/tagging"
)

// Candidate is one observed item submitted for deduplication. It is never
// persisted itself; only the derived record is.
type Candidate struct {
	Source      string   `json:"source"`
	Author      string   `json:"author"`
	Text        string   `json:"text"`
	Identity    string   `json:"identity,omitempty"` // cooldown identity, e.g. project full name
	OriginalURL string   `json:"original_url,omitempty"`
	Tags        []string `json:"tags,omitempty"` // caller-supplied hints, unioned with inferred tags
	Analysis    string   `json:"analysis,omitempty"`
	Solution    string   `json:"solution,omitempty"`
}

// SubmitResult is the unambiguous outcome of one submission: exactly one of
// existing-exact, existing-similar or newly-created.
type SubmitResult struct {
	Record     *record.Record
	IsNew      bool
	MatchedID  string
	Similarity float64
}

// Options holds the tunables injected into the engine
type Options struct {
	// DefaultThreshold gates similarity merges; zero means 0.80
	DefaultThreshold float64

	// Thresholds overrides the default per source
	Thresholds map[string]float64

	// QueryK is the neighbor count per fuzzy query; zero means 3
	QueryK int

	// MaxProvenance bounds merged_from on primaries
	MaxProvenance int

	// Retry wraps similarity index calls
	Retry simindex.RetryPolicy

	// QueryTimeout bounds each index call; zero means no deadline
	QueryTimeout time.Duration
}

func (o Options) threshold(source string) float64 {
	if t, ok := o.Thresholds[source]; ok {
		return t
	}
	if o.DefaultThreshold > 0 {
		return o.DefaultThreshold
	}
	return 0.80
}

func (o Options) queryK() int {
	if o.QueryK > 0 {
		return o.QueryK
	}
	return 3
}

// Engine is the deduplication core. Writes are serialized by a single mutex;
// each submission commits independently, so an aborted batch leaves the store
// consistent.
type Engine struct {
	mu       sync.Mutex
	store    *record.Store
	index    simindex.Index
	embedder embeddings.Client
	tagger   *tagging.Tagger
	history  *history.Store
	policy   mergepolicy.Policy
	opts     Options
	logger   *slog.Logger
	metrics  *Metrics
}

// New creates the engine. Index and embedder may be nil, which disables the
// fuzzy tier entirely; a nil history store disables cooldown tracking (every
// identity eligible, marking fails); nil logger falls back to slog.Default
// and nil metrics to unregistered counters.
func New(store *record.Store, index simindex.Index, embedder embeddings.Client,
	tagger *tagging.Tagger, hist *history.Store, opts Options,
	logger *slog.Logger, metrics *Metrics) *Engine {

	if tagger == nil {
		tagger = tagging.NewTagger(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		store:    store,
		index:    index,
		embedder: embedder,
		tagger:   tagger,
		history:  hist,
		policy:   mergepolicy.Policy{MaxProvenance: opts.MaxProvenance},
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// SubmitCandidate runs one item through the dedup pipeline: exact fingerprint
// hit, then best-effort similarity merge, then creation of a new primary.
func (e *Engine) SubmitCandidate(ctx context.Context, cand Candidate) (*SubmitResult, error) {
	if err := validate(cand); err != nil {
		e.metrics.Rejected.Inc()
		return nil, err
	}
	e.metrics.Submissions.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()

	content := strings.TrimSpace(cand.Text)
	id := fingerprint.Sum(cand.Source, cand.Author, content)

	// Exact tier: authoritative, cheapest, checked first
	rec, err := e.store.Get(id)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	if rec != nil {
		primary, err := e.resolvePrimary(rec)
		if err != nil {
			return nil, err
		}
		if err := e.store.Touch(primary, e.inferTags(content, cand.Tags)); err != nil {
			return nil, &StorageError{Op: "touch", Err: err}
		}
		e.metrics.ExactHits.Inc()
		return &SubmitResult{Record: primary, MatchedID: primary.ID, Similarity: 1}, nil
	}

	// Fuzzy tier: best-effort, never fails the submission
	vector, matches := e.queryNeighbors(ctx, content)
	decision := gate.Classify(matches, e.opts.threshold(cand.Source))

	if decision.Duplicate {
		primary, err := e.store.GetPrimary(decision.PrimaryID)
		if err != nil {
			return nil, &StorageError{Op: "get", Err: err}
		}
		if primary != nil {
			dup := e.buildRecord(id, content, cand)
			e.policy.Apply(primary, dup, decision.Similarity)
			// Both rows commit in one transaction; a failed merge leaves
			// the primary's frequency untouched so a retry cannot
			// double-count.
			if err := e.store.SaveMerge(primary, dup); err != nil {
				return nil, &StorageError{Op: "merge", Err: err}
			}
			e.metrics.Merges.Inc()
			return &SubmitResult{Record: primary, MatchedID: primary.ID, Similarity: decision.Similarity}, nil
		}
		// The index pointed at a record the store no longer considers
		// primary; the store wins and the candidate becomes new.
		e.logger.Warn("similarity index returned stale primary",
			"matched_id", decision.PrimaryID)
	}

	newRec := e.buildRecord(id, content, cand)
	if err := e.store.Create(newRec); err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}
	e.upsertVector(ctx, newRec, vector)
	e.metrics.NewRecords.Inc()
	return &SubmitResult{Record: newRec, IsNew: true, Similarity: decision.Similarity}, nil
}

// SelectNovel submits the pool and returns up to n records that are both new
// and outside their cooldown. Fewer than n yields the partial selection plus
// an InsufficientNovelCandidatesError; the caller retries with a wider pool.
func (e *Engine) SelectNovel(ctx context.Context, pool []Candidate, n, cooldownDays int) ([]*record.Record, error) {
	selected := make([]*record.Record, 0, n)
	for _, cand := range pool {
		if len(selected) == n {
			break
		}

		res, err := e.SubmitCandidate(ctx, cand)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				e.logger.Warn("skipping invalid candidate",
					"source", cand.Source, "reason", verr.Reason)
				continue
			}
			return selected, err
		}
		if !res.IsNew {
			continue
		}
		if cand.Identity != "" && e.history != nil && !e.history.IsEligible(cand.Identity, cooldownDays) {
			continue
		}
		selected = append(selected, res.Record)
	}

	if len(selected) < n {
		return selected, &InsufficientNovelCandidatesError{Have: len(selected), Need: n}
	}
	return selected, nil
}

// MarkRecommended records that an identity was surfaced today. Fails when no
// history store is wired: a mark that cannot be persisted would silently
// break the cooldown guarantee.
func (e *Engine) MarkRecommended(identity string, score int) error {
	if e.history == nil {
		return fmt.Errorf("no history store configured")
	}
	return e.history.MarkRecommended(identity, score)
}

// IsEligible reports whether an identity is outside its cooldown window.
// Without a history store everything is eligible.
func (e *Engine) IsEligible(identity string, cooldownDays int) bool {
	if e.history == nil {
		return true
	}
	return e.history.IsEligible(identity, cooldownDays)
}

// PruneHistory drops history entries past the retention horizon
func (e *Engine) PruneHistory(retentionDays int) (int, error) {
	if e.history == nil {
		return 0, nil
	}
	removed, err := e.history.Prune(retentionDays)
	if removed > 0 {
		e.metrics.PrunedEntries.Add(float64(removed))
	}
	return removed, err
}

// RebuildIndex re-derives the similarity index from the record store. The
// index is a disposable cache; this is the recovery path after corruption or
// an embedder model change.
func (e *Engine) RebuildIndex(ctx context.Context) (int, error) {
	if e.index == nil || e.embedder == nil {
		return 0, simindex.ErrBackendUnavailable
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	recs, err := e.store.AllPrimaries()
	if err != nil {
		return 0, &StorageError{Op: "list", Err: err}
	}

	indexed := 0
	for i := range recs {
		rec := &recs[i]
		vector, err := e.embedder.Embed(ctx, rec.ContentNormalized)
		if err != nil {
			return indexed, fmt.Errorf("failed to embed record %s: %w", rec.ID, err)
		}
		if err := e.index.Upsert(ctx, rec.ID, vector, indexMeta(rec)); err != nil {
			return indexed, err
		}
		indexed++
	}
	e.logger.Info("similarity index rebuilt", "records", indexed)
	return indexed, nil
}

func validate(cand Candidate) error {
	if strings.TrimSpace(cand.Text) == "" {
		return &ValidationError{Field: "text", Reason: "is empty"}
	}
	if cand.Source == "" {
		return &ValidationError{Field: "source", Reason: "is empty"}
	}
	return nil
}

// resolvePrimary follows the merged_to chain to the primary record. The
// chain is expected to be one hop; the bound guards against a corrupt store.
func (e *Engine) resolvePrimary(rec *record.Record) (*record.Record, error) {
	for hops := 0; hops < 10 && !rec.IsPrimary && rec.MergedTo != ""; hops++ {
		next, err := e.store.Get(rec.MergedTo)
		if err != nil {
			return nil, &StorageError{Op: "get", Err: err}
		}
		if next == nil {
			break
		}
		rec = next
	}
	return rec, nil
}

// queryNeighbors embeds the content and queries the index. Any failure
// degrades to exact-only with a warning; it never propagates.
func (e *Engine) queryNeighbors(ctx context.Context, content string) ([]float32, []simindex.Match) {
	if e.index == nil || e.embedder == nil {
		return nil, nil
	}

	vector, err := e.embedder.Embed(ctx, tagging.Normalize(content))
	if err != nil {
		e.logger.Warn("embedding failed, degrading to exact-only", "error", err)
		e.metrics.DegradedQueries.Inc()
		return nil, nil
	}

	var matches []simindex.Match
	err = e.opts.Retry.Do(ctx, func() error {
		qctx := ctx
		if e.opts.QueryTimeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
			defer cancel()
		}
		var qerr error
		matches, qerr = e.index.Query(qctx, vector, e.opts.queryK())
		return qerr
	})
	if err != nil {
		e.logger.Warn("similarity query failed, degrading to exact-only", "error", err)
		e.metrics.DegradedQueries.Inc()
		return vector, nil
	}
	return vector, matches
}

// upsertVector indexes a new primary, best-effort. A nil vector means the
// fuzzy tier was down for this call; the record is picked up by the next
// rebuild.
func (e *Engine) upsertVector(ctx context.Context, rec *record.Record, vector []float32) {
	if e.index == nil || vector == nil {
		return
	}
	err := e.opts.Retry.Do(ctx, func() error {
		return e.index.Upsert(ctx, rec.ID, vector, indexMeta(rec))
	})
	if err != nil {
		e.logger.Warn("index upsert failed, record remains searchable by fingerprint only",
			"id", rec.ID, "error", err)
	}
}

func (e *Engine) buildRecord(id, content string, cand Candidate) *record.Record {
	platform := e.tagger.Platform(content)
	return &record.Record{
		ID:                id,
		Content:           content,
		ContentNormalized: tagging.Normalize(content),
		Source:            cand.Source,
		Platform:          platform,
		Author:            cand.Author,
		OriginalURL:       cand.OriginalURL,
		Tags:              e.inferTags(content, cand.Tags),
		Category:          e.tagger.Category(content),
		Severity:          e.tagger.Severity(content),
		AIAnalysis:        cand.Analysis,
		AISolution:        cand.Solution,
		Frequency:         1,
		IsPrimary:         true,
	}
}

func (e *Engine) inferTags(content string, hints []string) record.StringList {
	return record.UnionTags(e.tagger.Tags(content), hints)
}

func indexMeta(rec *record.Record) map[string]string {
	meta := map[string]string{"source": rec.Source}
	if rec.Platform != "" {
		meta["platform"] = rec.Platform
	}
	return meta
}
