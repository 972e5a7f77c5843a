// Package recvbuffer implements the receiver-side out-of-order payload
// buffer and the cumulative-delivery bookkeeping (expected sequence
// number) needed to deliver bytes to the application in order.
package recvbuffer

import "sync"

// Buffer holds payloads received ahead of the next expected sequence
// number, keyed by sequence. Every key it holds is greater than
// Expected(); Accept drains it in order as gaps close.
type Buffer struct {
	mu       sync.Mutex
	expected uint16
	pending  map[uint16][]byte
}

// New creates a buffer expecting sequence 1 first.
func New() *Buffer {
	return &Buffer{
		expected: 1,
		pending:  make(map[uint16][]byte),
	}
}

// Expected returns the next in-order sequence number not yet delivered.
func (b *Buffer) Expected() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expected
}

// Accept processes one received (seq, payload) pair. If seq is the next
// expected sequence, it and any now-contiguous buffered payloads are
// returned in order for delivery and expected advances past them. If seq
// is ahead of expected, the payload is buffered and nothing is returned.
// If seq is behind expected, it has already been delivered and nothing is
// returned — the duplicate is silently absorbed.
func (b *Buffer) Accept(seq uint16, payload []byte) (deliverable [][]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case seq == b.expected:
		buf := make([]byte, len(payload))
		copy(buf, payload)
		deliverable = append(deliverable, buf)
		b.expected++
		for {
			next, ok := b.pending[b.expected]
			if !ok {
				break
			}
			delete(b.pending, b.expected)
			deliverable = append(deliverable, next)
			b.expected++
		}
	case seq > b.expected:
		buf := make([]byte, len(payload))
		copy(buf, payload)
		b.pending[seq] = buf
	default:
		// seq < expected: already delivered, no action.
	}
	return deliverable
}

// PendingLen returns the number of out-of-order payloads currently
// buffered, for stats/tests.
func (b *Buffer) PendingLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
