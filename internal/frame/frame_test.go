package frame

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello, reliable udp")
	datagram, err := Encode(42, 7, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	nonce, seq, got, ok := Decode(datagram)
	if !ok {
		t.Fatal("Decode reported !ok for a frame it just encoded")
	}
	if nonce != 42 {
		t.Errorf("nonce mismatch: got %d, want 42", nonce)
	}
	if seq != 7 {
		t.Errorf("seq mismatch: got %d, want 7", seq)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: got %q, want %q", got, payload)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	datagram, err := Encode(1, 1, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	nonce, seq, payload, ok := Decode(datagram)
	if !ok {
		t.Fatal("Decode reported !ok")
	}
	if nonce != 1 || seq != 1 {
		t.Errorf("header mismatch: nonce=%d seq=%d", nonce, seq)
	}
	if len(payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(payload))
	}
}

func TestDecodeRejectsCorruptedTag(t *testing.T) {
	datagram, err := Encode(1, 2, []byte("payload"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	datagram[0] ^= 0xFF

	if _, _, _, ok := Decode(datagram); ok {
		t.Error("Decode accepted a frame with a corrupted tag")
	}
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	if _, _, _, ok := Decode([]byte{1, 2, 3}); ok {
		t.Error("Decode accepted a frame shorter than TagSize")
	}
}

func TestDecodeRejectsGarbageCompressedBody(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xAB}, TagSize+8)
	if _, _, _, ok := Decode(garbage); ok {
		t.Error("Decode accepted a frame whose body does not inflate")
	}
}

func TestEncodeCompressesRepetitivePayloadUnderFrameCap(t *testing.T) {
	payload := bytes.Repeat([]byte{0x41}, MaxPayloadSize)
	if _, err := Encode(1, 1, payload); err != nil {
		t.Fatalf("Encode of a max-size, highly compressible payload failed: %v", err)
	}
}

func TestEncodeRejectsPayloadThatDoesNotCompressUnderFrameCap(t *testing.T) {
	payload := make([]byte, MaxPayloadSize)
	state := uint32(0x2545F491)
	for i := range payload {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		payload[i] = byte(state)
	}

	if _, err := Encode(1, 1, payload); err != ErrOversizeFrame {
		t.Errorf("Encode of an incompressible max-size payload: got err=%v, want ErrOversizeFrame", err)
	}
}

func TestAckEncodeDecodeRoundTrip(t *testing.T) {
	ack := EncodeAck(9, 300)
	if len(ack) != AckSize {
		t.Fatalf("ack frame size mismatch: got %d, want %d", len(ack), AckSize)
	}

	nonce, low, ok := DecodeAck(ack)
	if !ok {
		t.Fatal("DecodeAck reported !ok for an ack it just encoded")
	}
	if nonce != 9 {
		t.Errorf("nonce mismatch: got %d, want 9", nonce)
	}
	if low != byte(300%256) {
		t.Errorf("low byte mismatch: got %d, want %d", low, byte(300%256))
	}
}

func TestDecodeAckRejectsBadChecksum(t *testing.T) {
	ack := EncodeAck(1, 10)
	ack[2] ^= 0x01

	if _, _, ok := DecodeAck(ack); ok {
		t.Error("DecodeAck accepted a frame with a mismatched checksum byte")
	}
}

func TestDecodeAckRejectsWrongSize(t *testing.T) {
	if _, _, ok := DecodeAck([]byte{1, 2, 3}); ok {
		t.Error("DecodeAck accepted a frame of the wrong length")
	}
}
