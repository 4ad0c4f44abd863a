// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine counters. All counters carry the sieve namespace.
type Metrics struct {
	Submissions     prometheus.Counter
	ExactHits       prometheus.Counter
	Merges          prometheus.Counter
	NewRecords      prometheus.Counter
	DegradedQueries prometheus.Counter
	Rejected        prometheus.Counter
	PrunedEntries   prometheus.Counter
}

// NewMetrics registers engine counters with the given registerer. A nil
// registerer creates unregistered counters, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "submissions_total",
			Help:      "Candidates submitted for deduplication",
		}),
		ExactHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "exact_hits_total",
			Help:      "Submissions resolved by exact fingerprint match",
		}),
		Merges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "merges_total",
			Help:      "Submissions merged into an existing primary by similarity",
		}),
		NewRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "new_records_total",
			Help:      "Submissions that created a new primary record",
		}),
		DegradedQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "degraded_queries_total",
			Help:      "Submissions handled exact-only because the similarity backend was unavailable",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "rejected_total",
			Help:      "Candidates rejected by validation",
		}),
		PrunedEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "pruned_history_entries_total",
			Help:      "Recommendation history entries removed by pruning",
		}),
	}
}
