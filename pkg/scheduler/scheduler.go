// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package scheduler runs periodic maintenance jobs, currently history pruning
package scheduler

import (
	"log"
	"time"
)

// Pruner is the slice of the engine the scheduler needs
type Pruner interface {
	PruneHistory(retentionDays int) (int, error)
}

// Scheduler handles periodic history pruning
type Scheduler struct {
	pruner        Pruner
	interval      time.Duration
	retentionDays int
	stopChan      chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(pruner Pruner, intervalHours, retentionDays int) *Scheduler {
	return &Scheduler{
		pruner:        pruner,
		interval:      time.Duration(intervalHours) * time.Hour,
		retentionDays: retentionDays,
		stopChan:      make(chan bool),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.runPrune()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopChan <- true
}

// runPrune prunes the recommendation history once
func (s *Scheduler) runPrune() {
	removed, err := s.pruner.PruneHistory(s.retentionDays)
	if err != nil {
		log.Printf("Failed to prune history: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Pruned %d stale history entries", removed)
	}
}
