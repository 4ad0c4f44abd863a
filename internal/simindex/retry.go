// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package simindex

import (
	"context"
	"time"
)

// RetryPolicy retries transient backend failures with exponential backoff.
// The zero value retries nothing; DefaultRetryPolicy matches the configured
// defaults.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns the standard policy: 3 attempts starting at
// 200ms, doubling each time.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		Multiplier:     2,
	}
}

// Do runs fn, retrying with exponential backoff until it succeeds, attempts
// are exhausted, or the context is cancelled. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialBackoff
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * multiplier)
	}
	return err
}
