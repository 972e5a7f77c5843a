// Package sender implements the sender-side control loop: admitting new
// segments from stdin, processing inbound acks, and driving the
// retransmission timer, per the sliding-window protocol this module
// implements.
package sender

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/arqnet/reliudp/internal/congestion"
	"github.com/arqnet/reliudp/internal/frame"
	"github.com/arqnet/reliudp/internal/logging"
	"github.com/arqnet/reliudp/internal/nonceset"
	"github.com/arqnet/reliudp/internal/sendwindow"
)

// tickInterval bounds how long the loop can go without re-checking the
// retransmission timer when neither stdin nor the socket has anything
// ready, the Go equivalent of a zero-timeout poll.
const tickInterval = 10 * time.Millisecond

// Sender drives one outbound flow: it owns the UDP socket, the send
// window, and the congestion controller.
type Sender struct {
	conn *net.UDPConn
	peer *net.UDPAddr
	log  *logging.Logger

	window     *sendwindow.Window
	controller *congestion.Controller
	ackNonces  *nonceset.Set

	txNonce      uint16
	eof          bool
	lastTransmit time.Time

	framesSent        uint64
	retransmits       uint64
	fastRetransmits   uint64
	timeoutRecoveries uint64
}

// New constructs a Sender bound to conn, sending to peer. The input stream
// is supplied later, to Run.
func New(conn *net.UDPConn, peer *net.UDPAddr, log *logging.Logger) *Sender {
	return &Sender{
		conn:         conn,
		peer:         peer,
		log:          log,
		window:       sendwindow.New(),
		controller:   congestion.New(),
		ackNonces:    nonceset.New(),
		lastTransmit: time.Now(),
	}
}

type chunkResult struct {
	data []byte
	err  error
}

// Run reads input to exhaustion, reliably delivers it to the receiver, and
// returns nil once every admitted segment has been retired. It returns a
// non-nil error only for local I/O failures, never for wire-level issues,
// which are handled internally by retransmission.
func (s *Sender) Run(ctx context.Context, input io.Reader) error {
	chunkCh := make(chan chunkResult)
	go s.readStdin(input, chunkCh)

	ackCh := make(chan []byte, 32)
	ackErrCh := make(chan error, 1)
	go s.readSocket(ctx, ackCh, ackErrCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		if err := s.admit(chunkCh); err != nil {
			return err
		}

		if err := s.drainAcks(ackCh); err != nil {
			return err
		}

		s.checkTimeout()

		if s.eof && s.window.IsEmpty() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-ackErrCh:
			return err
		case <-ticker.C:
		default:
			// Nothing ready; avoid a hot spin but stay responsive.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-ackErrCh:
				return err
			case <-ticker.C:
			case <-time.After(time.Millisecond):
			}
		}
	}
}

// admit pulls chunks from stdin and transmits them while not eof and the
// window has room, recording each one's send time.
func (s *Sender) admit(chunkCh <-chan chunkResult) error {
	for !s.eof && s.window.Outstanding() < s.controller.Window() {
		var res chunkResult
		select {
		case res = <-chunkCh:
		default:
			return nil
		}

		if res.err != nil {
			if res.err == io.EOF {
				s.eof = true
				return nil
			}
			return fmt.Errorf("sender: read stdin: %w", res.err)
		}

		now := time.Now()
		seq := s.window.Admit(res.data, now)
		if err := s.transmit(seq, res.data); err != nil {
			return err
		}
		s.lastTransmit = now
	}
	return nil
}

// drainAcks non-blockingly consumes every currently-available ack and
// applies its effect.
func (s *Sender) drainAcks(ackCh <-chan []byte) error {
	for {
		select {
		case datagram := <-ackCh:
			s.handleAck(datagram)
		default:
			return nil
		}
	}
}

func (s *Sender) handleAck(datagram []byte) {
	nonce, cumLow, ok := frame.DecodeAck(datagram)
	if !ok {
		return
	}
	if !s.ackNonces.CheckAndAdd(nonce) {
		return
	}

	// Reconstruct the full sequence from the 8-bit wire value: cumulative
	// acks only ever advance within the active window, so the smallest
	// candidate at or above base carrying the right low byte is unambiguous
	// for any window under 256 outstanding segments.
	ack := reconstructSeq(s.window.Base(), cumLow)

	now := time.Now()
	advanced, sample := s.window.Retire(ack, now)
	if advanced {
		s.controller.OnAdvancingAck(sample)
		s.lastTransmit = now
		return
	}

	if s.controller.OnDuplicateAck() {
		s.fastRetransmit()
	}
}

// reconstructSeq recovers the full 16-bit sequence a cumulative ack refers
// to, given only its low 8 bits, by picking the smallest candidate at or
// above base (a stale ack for base-1 therefore maps to base+255).
func reconstructSeq(base uint16, low byte) uint16 {
	baseLow := byte(base)
	diff := low - baseLow
	return base + uint16(diff)
}

func (s *Sender) fastRetransmit() {
	base := s.window.Base()
	data := s.window.Payload(base)
	if data == nil {
		return
	}
	s.window.ClearSentAt(base)
	if err := s.transmit(base, data); err == nil {
		s.retransmits++
		s.fastRetransmits++
	}
}

// checkTimeout cuts the window and retransmits everything outstanding if
// it is non-empty and the retransmission timer has expired.
func (s *Sender) checkTimeout() {
	if s.window.IsEmpty() {
		return
	}
	now := time.Now()
	if now.Sub(s.lastTransmit) <= s.controller.TimeoutThreshold() {
		return
	}

	s.controller.OnTimeout()
	s.lastTransmit = now
	s.timeoutRecoveries++

	s.window.Range(func(seq uint16, data []byte) bool {
		s.window.ClearSentAt(seq)
		if err := s.transmit(seq, data); err == nil {
			s.retransmits++
		}
		return true
	})
}

func (s *Sender) transmit(seq uint16, data []byte) error {
	nonce := s.txNonce
	s.txNonce++

	datagram, err := frame.Encode(nonce, seq, data)
	if err != nil {
		return fmt.Errorf("sender: encode seq %d: %w", seq, err)
	}
	if _, err := s.conn.WriteToUDP(datagram, s.peer); err != nil {
		return fmt.Errorf("sender: write to %s: %w", s.peer, err)
	}
	s.framesSent++
	return nil
}

func (s *Sender) readStdin(input io.Reader, out chan<- chunkResult) {
	buf := make([]byte, frame.MaxPayloadSize)
	for {
		n, err := input.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunkResult{data: chunk}
		}
		if err != nil {
			out <- chunkResult{err: err}
			return
		}
	}
}

func (s *Sender) readSocket(ctx context.Context, out chan<- []byte, errCh chan<- error) {
	buf := make([]byte, frame.MaxFrameSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				errCh <- fmt.Errorf("sender: read socket: %w", err)
			}
			return
		}
		if !addrEqual(from, s.peer) {
			s.log.Warn("sender: dropping datagram from unexpected peer %s", from)
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		select {
		case out <- datagram:
		case <-ctx.Done():
			return
		}
	}
}

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// Stats returns the sender's protocol-state snapshot for diagnostics.
func (s *Sender) Stats() map[string]float64 {
	snap := s.controller.Snapshot()
	return map[string]float64{
		"cwnd":               float64(snap.Cwnd),
		"ssthresh":           float64(snap.Ssthresh),
		"dup_ack_count":      float64(snap.DupCount),
		"rto_seconds":        snap.RTO.Seconds(),
		"base":               float64(s.window.Base()),
		"next_seq":           float64(s.window.NextSeq()),
		"outstanding":        float64(s.window.Outstanding()),
		"frames_sent":        float64(s.framesSent),
		"retransmits":        float64(s.retransmits),
		"fast_retransmits":   float64(s.fastRetransmits),
		"timeout_recoveries": float64(s.timeoutRecoveries),
	}
}
