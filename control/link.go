//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package control implements the control messages between the prover
// and the notary, and the reasons for aborting a session. The control
// messages share the peer connection with the MPC protocols; the
// parties alternate between them in lockstep.
package control

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/markkurossi/mpc/p2p"
	"github.com/markkurossi/mpctls/transcript"
	"github.com/markkurossi/mpctls/wire"
	"go.uber.org/zap"
)

// MsgType defines the control message types.
type MsgType uint8

// Control messages.
const (
	MsgHello MsgType = iota + 1
	MsgAccept
	MsgHandshake
	MsgAck
	MsgEncrypt
	MsgCiphertext
	MsgDecrypt
	MsgTagShare
	MsgMask
	MsgFinalize
	MsgAttestation
	MsgClose
	MsgAbort
)

func (t MsgType) String() string {
	name, ok := msgTypes[t]
	if ok {
		return name
	}
	return fmt.Sprintf("{MsgType %d}", int(t))
}

var msgTypes = map[MsgType]string{
	MsgHello:       "hello",
	MsgAccept:      "accept",
	MsgHandshake:   "handshake",
	MsgAck:         "ack",
	MsgEncrypt:     "encrypt",
	MsgCiphertext:  "ciphertext",
	MsgDecrypt:     "decrypt",
	MsgTagShare:    "tag share",
	MsgMask:        "mask",
	MsgFinalize:    "finalize",
	MsgAttestation: "attestation",
	MsgClose:       "close",
	MsgAbort:       "abort",
}

// Limits define the maximum numbers of application data bytes the
// prover may send and receive.
type Limits struct {
	MaxSent uint32
	MaxRecv uint32
}

func (l Limits) String() string {
	return fmt.Sprintf("sent=%d, recv=%d", l.MaxSent, l.MaxRecv)
}

// Allows tests if the limits l are within the policy limits.
func (l Limits) Allows(policy Limits) bool {
	return l.MaxSent <= policy.MaxSent && l.MaxRecv <= policy.MaxRecv
}

// Hello implements the MsgHello message.
type Hello struct {
	Limits     Limits
	ServerName string `tls:"u16"`
}

// Accept implements the MsgAccept message.
type Accept struct {
	SessionID [16]byte
}

// Handshake implements the MsgHandshake message. It carries
// plaintext handshake messages in their wire format.
type Handshake struct {
	Messages [][]byte
}

// Ack implements the MsgAck message.
type Ack struct{}

// Encrypt implements the MsgEncrypt message.
type Encrypt struct {
	Type   uint8
	Length uint32
}

// Ciphertext implements the MsgCiphertext message.
type Ciphertext struct {
	Data []byte
}

// Decrypt implements the MsgDecrypt message. The payload is the
// received record payload: explicit nonce, ciphertext, and tag.
type Decrypt struct {
	Type    uint8
	Payload []byte
}

// TagShare implements the MsgTagShare message.
type TagShare struct {
	Tag [16]byte
}

// Mask implements the MsgMask message.
type Mask struct {
	Data []byte
}

// Finalize implements the MsgFinalize message.
type Finalize struct {
	Ranges []transcript.Range
}

// AbortMsg implements the MsgAbort message.
type AbortMsg struct {
	Reason  uint32
	Message string `tls:"u16"`
}

// NewConn creates a peer connection over the byte stream rw. Closing
// the peer connection waits for its pending writes but leaves rw
// open. A failed write is reported by the next read from the
// connection.
func NewConn(rw io.ReadWriter) *p2p.Conn {
	return p2p.NewConn(&stream{
		rw: rw,
	})
}

// stream holds the first write error of the byte stream and discards
// all later writes. This keeps the peer connection's writer draining
// so that closing the connection always stops it.
type stream struct {
	rw  io.ReadWriter
	mu  sync.Mutex
	err error
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.rw.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		_, s.err = s.rw.Write(p)
	}
	return len(p), nil
}

// Link implements the control message exchange over the peer
// connection.
type Link struct {
	conn      *p2p.Conn
	log       *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewLink creates a control link for the connection.
func NewLink(conn *p2p.Conn, log *zap.Logger) *Link {
	if log == nil {
		log = zap.NewNop()
	}
	return &Link{
		conn: conn,
		log:  log,
	}
}

// Send sends the message v with the type t.
func (l *Link) Send(t MsgType, v interface{}) error {
	data, err := wire.Marshal(v)
	if err != nil {
		return err
	}
	l.log.Debug(">> control", zap.Stringer("type", t),
		zap.Int("length", len(data)))

	if err := l.conn.SendByte(byte(t)); err != nil {
		return err
	}
	if err := l.conn.SendData(data); err != nil {
		return err
	}
	return l.conn.Flush()
}

// Receive receives the next message and returns its type and
// payload. An abort message from the peer is returned as an
// *AbortError.
func (l *Link) Receive() (MsgType, []byte, error) {
	b, err := l.conn.ReceiveByte()
	if err != nil {
		return 0, nil, err
	}
	t := MsgType(b)
	data, err := l.conn.ReceiveData()
	if err != nil {
		return 0, nil, err
	}
	l.log.Debug("<< control", zap.Stringer("type", t),
		zap.Int("length", len(data)))

	if t == MsgAbort {
		var msg AbortMsg
		if err := Decode(data, &msg); err != nil {
			return 0, nil, err
		}
		ae := &AbortError{
			Reason: AbortReason(msg.Reason),
			Peer:   true,
		}
		if ae.Reason == 0 {
			ae.Reason = PeerAbort
		}
		if len(msg.Message) > 0 {
			ae.Err = errors.New(msg.Message)
		}
		return 0, nil, ae
	}
	return t, data, nil
}

// Expect receives the next message and decodes it into v. The
// message type must be t.
func (l *Link) Expect(t MsgType, v interface{}) error {
	got, data, err := l.Receive()
	if err != nil {
		return err
	}
	if got != t {
		return Abortf(ProtocolViolation, "unexpected message %v, expected %v",
			got, t)
	}
	return Decode(data, v)
}

// Abort sends an abort message for err to the peer. Aborts received
// from the peer are not echoed back. The send is best-effort.
func (l *Link) Abort(err error) {
	if err == nil || isPeerAbort(err) {
		return
	}
	reason := Classify(err)
	l.log.Debug(">> abort", zap.Stringer("reason", reason), zap.Error(err))

	l.Send(MsgAbort, &AbortMsg{
		Reason:  uint32(reason),
		Message: truncate(err.Error(), 1024),
	})
}

// Close closes the peer connection after all pending messages,
// including an abort, have been written. It is safe to call Close
// more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

// Decode decodes the message payload into v. The payload must be
// consumed completely.
func Decode(data []byte, v interface{}) error {
	n, err := wire.UnmarshalFrom(data, v)
	if err != nil {
		return Abort(ProtocolViolation, err)
	}
	if n != len(data) {
		return Abortf(ProtocolViolation, "trailing data after %T", v)
	}
	return nil
}

func isPeerAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae) && ae.Peer
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
