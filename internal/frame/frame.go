// Package frame implements the on-wire encoding for data and ack frames:
// integrity tagging, compression, and the small fixed ack layout.
package frame

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const (
	// TagSize is the length in bytes of the MD5-derived integrity tag
	// prepended to every data frame.
	TagSize = 10

	// HeaderSize is the size of the uncompressed body header: nonce(2) + seq(2).
	HeaderSize = 4

	// MaxPayloadSize is the largest payload chunk admitted to a single
	// segment, before compression.
	MaxPayloadSize = 2500

	// MaxFrameSize is the ceiling enforced on any single outgoing datagram,
	// data or ack.
	MaxFrameSize = 1500

	// AckSize is the fixed length of an ack frame.
	AckSize = 4
)

// ErrOversizeFrame is returned by Encode when compression could not bring
// the frame under MaxFrameSize. This is treated as a configuration error
// per the wire-format contract, not a transient condition.
var ErrOversizeFrame = fmt.Errorf("frame: compressed frame exceeds %d bytes", MaxFrameSize)

// Encode builds the on-wire bytes for a data frame carrying the given
// sender nonce, sequence number, and payload.
func Encode(nonce, seq uint16, payload []byte) ([]byte, error) {
	body := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(body[0:2], nonce)
	binary.BigEndian.PutUint16(body[2:4], seq)
	copy(body[HeaderSize:], payload)

	compressed, err := deflate(body)
	if err != nil {
		return nil, fmt.Errorf("frame: compress body: %w", err)
	}

	tag := md5.Sum(compressed)

	out := make([]byte, TagSize+len(compressed))
	copy(out[:TagSize], tag[:TagSize])
	copy(out[TagSize:], compressed)

	if len(out) > MaxFrameSize {
		return nil, ErrOversizeFrame
	}
	return out, nil
}

// Decode splits a received datagram into (nonce, seq, payload). It returns
// ok=false for any integrity failure, decompression failure, or malformed
// body — all of which are silently-discardable per the wire-error taxonomy;
// callers should not treat ok=false as fatal.
func Decode(datagram []byte) (nonce, seq uint16, payload []byte, ok bool) {
	if len(datagram) <= TagSize {
		return 0, 0, nil, false
	}

	tag := datagram[:TagSize]
	compressed := datagram[TagSize:]

	sum := md5.Sum(compressed)
	if !bytes.Equal(tag, sum[:TagSize]) {
		return 0, 0, nil, false
	}

	body, err := inflate(compressed)
	if err != nil {
		return 0, 0, nil, false
	}
	if len(body) < HeaderSize {
		return 0, 0, nil, false
	}

	nonce = binary.BigEndian.Uint16(body[0:2])
	seq = binary.BigEndian.Uint16(body[2:4])
	payload = body[HeaderSize:]
	return nonce, seq, payload, true
}

// EncodeAck builds the 4-byte cumulative ack frame naming the highest
// contiguous sequence delivered so far.
func EncodeAck(nonce uint16, cumulative uint16) []byte {
	out := make([]byte, AckSize)
	binary.BigEndian.PutUint16(out[0:2], nonce)
	out[2] = byte((cumulative + 1) % 256)
	out[3] = byte(cumulative % 256)
	return out
}

// DecodeAck extracts the nonce and low-8-bit cumulative sequence from an
// ack frame, validating the trivial checksum byte.
func DecodeAck(datagram []byte) (nonce uint16, cumulativeLow byte, ok bool) {
	if len(datagram) != AckSize {
		return 0, 0, false
	}
	nonce = binary.BigEndian.Uint16(datagram[0:2])
	checksum := datagram[2]
	low := datagram[3]
	if checksum != byte(low+1) {
		return 0, 0, false
	}
	return nonce, low, true
}

func deflate(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
