// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fingerprint derives stable exact-match identities for observed
// content. Two calls with identical (source, author, text) always produce
// the same id; any single differing byte in the text produces a different
// id. This is the exact tier of dedup, distinct from the similarity tier.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
)

// IDLength is the number of hex characters in a fingerprint id
const IDLength = 32

// Sum computes the fingerprint id for an observed item. The hash covers the
// source platform, the author and the raw content bytes, separated by NUL so
// that field boundaries cannot be forged by concatenation. No randomness and
// no timestamps: ids are stable across process restarts.
func Sum(source, author, text string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(author))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))[:IDLength]
}
