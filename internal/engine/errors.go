// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package engine

import "fmt"

// ValidationError rejects a malformed candidate before anything is stored
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid candidate: %s %s", e.Field, e.Reason)
}

// StorageError wraps a record-store failure. Record durability is a
// correctness requirement, so these fail the whole call; the caller must not
// treat the item as seen.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// InsufficientNovelCandidatesError signals that the pool produced fewer novel,
// eligible items than requested. It is a retry signal, not a failure: the
// partial selection is returned alongside it and the caller widens the pool.
type InsufficientNovelCandidatesError struct {
	Have int
	Need int
}

func (e *InsufficientNovelCandidatesError) Error() string {
	return fmt.Sprintf("insufficient novel candidates: have %d, need %d", e.Have, e.Need)
}
