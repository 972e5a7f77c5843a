// Package sendwindow tracks segments transmitted but not yet retired: the
// payload bytes needed for retransmission and the timestamps feeding the
// RTT estimator.
package sendwindow

import (
	"sync"
	"time"
)

// Window is the sender's in-flight segment map, keyed by sequence number.
// window[s] always holds the exact bytes last sent for s, and base/nextSeq
// together describe the range of sequence numbers currently outstanding.
type Window struct {
	mu sync.Mutex

	base    uint16
	nextSeq uint16

	payload map[uint16][]byte
	sentAt  map[uint16]time.Time
}

// New creates a window with base and nextSeq both starting at 1.
func New() *Window {
	return &Window{
		base:    1,
		nextSeq: 1,
		payload: make(map[uint16][]byte),
		sentAt:  make(map[uint16]time.Time),
	}
}

// Admit assigns the next sequence number to data, records it as sent at
// now, and returns that sequence number.
func (w *Window) Admit(data []byte, now time.Time) uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.nextSeq
	buf := make([]byte, len(data))
	copy(buf, data)
	w.payload[seq] = buf
	w.sentAt[seq] = now
	w.nextSeq++
	return seq
}

// Outstanding returns nextSeq - base: the number of segments admitted but
// not yet retired.
func (w *Window) Outstanding() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.nextSeq - w.base)
}

// Base returns the lowest unacknowledged sequence number.
func (w *Window) Base() uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.base
}

// NextSeq returns the next sequence number that will be assigned.
func (w *Window) NextSeq() uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextSeq
}

// Retire advances base to ack+1, deleting every entry with key <= ack. It
// returns the RTT sample for the exact segment named by ack if that
// segment has a recorded send time (Karn's rule: callers clear sentAt on
// retransmission, so a hit here always means an untainted sample), and
// whether the ack actually advanced anything.
func (w *Window) Retire(ack uint16, now time.Time) (advanced bool, sample time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ack < w.base || ack >= w.nextSeq {
		return false, 0
	}

	if t, ok := w.sentAt[ack]; ok {
		sample = now.Sub(t)
	}

	// Break on equality rather than "seq <= ack": if ack is the maximum
	// uint16, seq++ wraps to 0 after processing it, and a "seq <= ack"
	// loop condition would see 0 <= 65535 and spin forever.
	for seq := w.base; ; seq++ {
		delete(w.payload, seq)
		delete(w.sentAt, seq)
		if seq == ack {
			break
		}
	}
	w.base = ack + 1
	return true, sample
}

// Payload returns the exact bytes previously sent for seq, or nil if seq
// is outside [base, nextSeq).
func (w *Window) Payload(seq uint16) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payload[seq]
}

// ClearSentAt removes the send timestamp for seq, so a later ack for it
// will not be mistaken for an untainted RTT sample (Karn's algorithm).
func (w *Window) ClearSentAt(seq uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sentAt, seq)
}

// IsEmpty reports whether every admitted segment has been retired.
func (w *Window) IsEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.base == w.nextSeq
}

// Range calls fn for every sequence number currently outstanding, in
// ascending order, stopping early if fn returns false.
func (w *Window) Range(fn func(seq uint16, data []byte) bool) {
	w.mu.Lock()
	base, next := w.base, w.nextSeq
	// Copy payload references while holding the lock; fn runs without it
	// so it may safely call back into other Window methods.
	type entry struct {
		seq  uint16
		data []byte
	}
	entries := make([]entry, 0, int(next-base))
	for seq := base; seq != next; seq++ {
		if data, ok := w.payload[seq]; ok {
			entries = append(entries, entry{seq, data})
		}
	}
	w.mu.Unlock()

	for _, e := range entries {
		if !fn(e.seq, e.data) {
			return
		}
	}
}
