// Package receiver implements the receiver-side control loop: validating
// and decoding inbound data frames, buffering out-of-order payloads,
// emitting in-order bytes, and replying with cumulative acknowledgements.
package receiver

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/arqnet/reliudp/internal/frame"
	"github.com/arqnet/reliudp/internal/logging"
	"github.com/arqnet/reliudp/internal/nonceset"
	"github.com/arqnet/reliudp/internal/recvbuffer"
)

// Receiver drives the inbound flow: it owns the UDP socket, the reorder
// buffer, and the peer address latched from the first datagram received
// (before it is decoded or validated).
type Receiver struct {
	conn *net.UDPConn
	log  *logging.Logger

	peer     *net.UDPAddr
	buffer   *recvbuffer.Buffer
	rxNonces *nonceset.Set
	txNonce  uint16

	framesReceived   uint64
	framesDropped    uint64
	acksSent         uint64
	duplicatePayload uint64
}

// New constructs a Receiver bound to conn.
func New(conn *net.UDPConn, log *logging.Logger) *Receiver {
	return &Receiver{
		conn:     conn,
		log:      log,
		buffer:   recvbuffer.New(),
		rxNonces: nonceset.New(),
	}
}

// Run blocks, delivering in-order payload bytes to out, until ctx is
// canceled or the socket errors. It never returns voluntarily under
// normal operation; the receiver is terminated by its parent.
func (r *Receiver) Run(ctx context.Context, out io.Writer) error {
	buf := make([]byte, frame.MaxFrameSize)

	// Unblock a pending read once ctx is canceled so Run returns promptly.
	stop := context.AfterFunc(ctx, func() { r.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return fmt.Errorf("receiver: read socket: %w", err)
		}

		if r.peer == nil {
			r.peer = from
		} else if !addrEqual(from, r.peer) {
			r.log.Warn("receiver: dropping datagram from unexpected peer %s", from)
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		if err := r.handleDatagram(datagram, out); err != nil {
			return err
		}
	}
}

func (r *Receiver) handleDatagram(datagram []byte, out io.Writer) error {
	nonce, seq, payload, ok := frame.Decode(datagram)
	if !ok {
		r.framesDropped++
		return nil
	}
	if !r.rxNonces.CheckAndAdd(nonce) {
		r.framesDropped++
		return nil
	}
	r.framesReceived++

	deliverable := r.buffer.Accept(seq, payload)
	if len(deliverable) == 0 && seq < r.buffer.Expected() {
		r.duplicatePayload++
	}
	for _, chunk := range deliverable {
		if len(chunk) == 0 {
			continue
		}
		if _, err := out.Write(chunk); err != nil {
			return fmt.Errorf("receiver: write stdout: %w", err)
		}
	}

	return r.sendAck()
}

func (r *Receiver) sendAck() error {
	cumulative := r.buffer.Expected() - 1
	nonce := r.txNonce
	r.txNonce++

	ack := frame.EncodeAck(nonce, cumulative)
	if _, err := r.conn.WriteToUDP(ack, r.peer); err != nil {
		return fmt.Errorf("receiver: write ack to %s: %w", r.peer, err)
	}
	r.acksSent++
	return nil
}

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// Stats returns the receiver's protocol-state snapshot for diagnostics.
func (r *Receiver) Stats() map[string]float64 {
	return map[string]float64{
		"expected":          float64(r.buffer.Expected()),
		"pending_reorder":   float64(r.buffer.PendingLen()),
		"frames_received":   float64(r.framesReceived),
		"frames_dropped":    float64(r.framesDropped),
		"acks_sent":         float64(r.acksSent),
		"duplicate_payload": float64(r.duplicatePayload),
	}
}
