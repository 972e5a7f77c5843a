package nonceset

import "testing"

func TestCheckAndAddFirstSeenIsFresh(t *testing.T) {
	s := New()
	if !s.CheckAndAdd(100) {
		t.Error("first sighting of a nonce should be fresh")
	}
	if s.CheckAndAdd(100) {
		t.Error("second sighting of the same nonce should not be fresh")
	}
}

func TestContainsDoesNotMutate(t *testing.T) {
	s := New()
	if s.Contains(5) {
		t.Error("unseen nonce should not be contained")
	}
	if s.Contains(5) {
		t.Error("Contains must not record the nonce as seen")
	}
	if !s.CheckAndAdd(5) {
		t.Error("nonce should still be fresh after only calling Contains")
	}
}

func TestBoundaryNonceValues(t *testing.T) {
	s := New()
	for _, n := range []uint16{0, 1, 65535} {
		if !s.CheckAndAdd(n) {
			t.Errorf("nonce %d should be fresh on first sighting", n)
		}
		if !s.Contains(n) {
			t.Errorf("nonce %d should be recorded after CheckAndAdd", n)
		}
	}
}

func TestLenTracksDistinctNonces(t *testing.T) {
	s := New()
	s.CheckAndAdd(1)
	s.CheckAndAdd(2)
	s.CheckAndAdd(2)
	s.CheckAndAdd(3)

	if got := s.Len(); got != 3 {
		t.Errorf("Len: got %d, want 3", got)
	}
}
