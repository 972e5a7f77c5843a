// Package nonceset provides exact duplicate-suppression sets keyed by the
// 16-bit per-endpoint nonce defined in the wire format. The nonce space is
// small and bounded (65536 values), so an exact bitset membership test is
// both correct and cheap — unlike a probabilistic filter, it can never
// mistake an unseen nonce for a duplicate.
package nonceset

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// Set tracks which nonces have already been observed on one direction of
// a connection (sender's ack nonces, or receiver's data-frame nonces).
type Set struct {
	mu   sync.Mutex
	seen *bitset.BitSet
}

// New creates an empty nonce set sized for the full 16-bit nonce space.
func New() *Set {
	return &Set{seen: bitset.New(1 << 16)}
}

// CheckAndAdd reports whether nonce is new to the set. If it has not been seen,
// it is recorded and CheckAndAdd returns true (fresh); if it has, the set
// is left unchanged and CheckAndAdd returns false (duplicate).
func (s *Set) CheckAndAdd(nonce uint16) (fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := uint(nonce)
	if s.seen.Test(idx) {
		return false
	}
	s.seen.Set(idx)
	return true
}

// Contains reports whether nonce has already been recorded, without
// mutating the set.
func (s *Set) Contains(nonce uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.Test(uint(nonce))
}

// Len returns the number of distinct nonces recorded so far.
func (s *Set) Len() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.Count()
}
