//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package record implements the TLS 1.2 AES-128-GCM record layer
// where the record keys exist only as shares between the prover and
// the notary. Layer implements the prover's side: it reads and writes
// records on the server connection. NotaryLayer implements the
// notary's side of each record operation.
package record

import (
	"encoding/binary"
	"math"

	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/crypto/tls"
	"github.com/markkurossi/mpctls/transcript"
)

const (
	explicitNonceLen = 8
	tagLen           = 16
	overhead         = explicitNonceLen + tagLen
)

var bo = binary.BigEndian

// Recorder records the application data bytes of the session.
type Recorder interface {
	Record(dir transcript.Direction, data []byte) transcript.Range
}

// state holds the sequence numbers and application data counters
// shared by both sides of the record layer. The sequence numbers and
// counters are indexed with transcript.Direction: Sent for client
// records and Received for server records.
type state struct {
	seq    [2]uint64
	count  [2]uint64
	limits control.Limits
	app    bool
}

func (s *state) nextSeq(dir transcript.Direction) (uint64, error) {
	seq := s.seq[dir]
	if seq == math.MaxUint64 {
		return 0, control.Abortf(control.ProtocolViolation,
			"%v sequence number overflow", dir)
	}
	s.seq[dir]++
	return seq, nil
}

func (s *state) limit(dir transcript.Direction) uint64 {
	if dir == transcript.Sent {
		return uint64(s.limits.MaxSent)
	}
	return uint64(s.limits.MaxRecv)
}

// checkLimit verifies that n more application data bytes fit into
// the limits of the direction.
func (s *state) checkLimit(dir transcript.Direction, n int) error {
	if !s.app {
		return control.Abortf(control.ProtocolViolation,
			"application data before handshake completion")
	}
	if s.count[dir]+uint64(n) > s.limit(dir) {
		return control.Abortf(control.LimitsExceeded,
			"%v %d+%d bytes, limit %d", dir, s.count[dir], n, s.limit(dir))
	}
	return nil
}

// checkType verifies that a record of type ct is allowed in the
// current phase.
func (s *state) checkType(ct tls.ContentType) error {
	switch ct {
	case tls.CTHandshake:
		if !s.app {
			return nil
		}
	case tls.CTApplicationData:
		if s.app {
			return nil
		}
	case tls.CTAlert:
		return nil
	}
	return control.Abortf(control.ProtocolViolation,
		"unexpected %v record", ct)
}

// Counts returns the number of application data bytes sent and
// received.
func (s *state) Counts() (sent, received uint64) {
	return s.count[transcript.Sent], s.count[transcript.Received]
}

// additionalData creates the AEAD additional data:
// seq_num || type || version || length.
func additionalData(seq uint64, ct tls.ContentType, length int) []byte {
	var ad [13]byte
	bo.PutUint64(ad[0:], seq)
	ad[8] = byte(ct)
	bo.PutUint16(ad[9:], uint16(tls.VersionTLS12))
	bo.PutUint16(ad[11:], uint16(length))
	return ad[:]
}

func seqNonce(seq uint64) []byte {
	var nonce [explicitNonceLen]byte
	bo.PutUint64(nonce[:], seq)
	return nonce[:]
}
