//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package session implements the notarized TLS session between a
// prover and a notary. The prover opens the session with OpenSession,
// exchanges application data with the server, and finalizes the
// session into an Attestation signed by the notary. The notary side is
// served by Notary.
//
// Any failure aborts the session. An aborted session clears its key
// shares, notifies the peer, and never produces an attestation.
package session

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/handshake"
	"go.uber.org/zap"
)

// AbortReason defines the reasons for aborting a session.
type AbortReason = control.AbortReason

// AbortError is a session abort with its reason.
type AbortError = control.AbortError

// Limits define the maximum numbers of application data bytes the
// prover may send and receive in a session.
type Limits = control.Limits

// Abort reasons.
const (
	Transport              = control.Transport
	ProtocolViolation      = control.ProtocolViolation
	BadRecordMAC           = control.BadRecordMAC
	LimitsExceeded         = control.LimitsExceeded
	UnsupportedVersion     = control.UnsupportedVersion
	UnsupportedCipherSuite = control.UnsupportedCipherSuite
	CertificateMismatch    = control.CertificateMismatch
	CertificateInvalid     = control.CertificateInvalid
	MPCFailure             = control.MPCFailure
	Timeout                = control.Timeout
	PeerAbort              = control.PeerAbort
)

// Phase defines the session phases.
type Phase int

// Session phases.
const (
	AwaitConnection Phase = iota
	NegotiateLimits
	HandshakeInProgress
	Committing
	Finalizing
	Attested
	Aborted
)

func (p Phase) String() string {
	name, ok := phaseNames[p]
	if ok {
		return name
	}
	return fmt.Sprintf("{Phase %d}", int(p))
}

var phaseNames = map[Phase]string{
	AwaitConnection:     "AwaitConnection",
	NegotiateLimits:     "NegotiateLimits",
	HandshakeInProgress: "HandshakeInProgress",
	Committing:          "Committing",
	Finalizing:          "Finalizing",
	Attested:            "Attested",
	Aborted:             "Aborted",
}

// ErrClosed is returned for operations on a closed session.
var ErrClosed = errors.New("session: closed")

// Config defines the session parameters for the prover and the
// notary.
type Config struct {
	// Roots are the trusted root certificates for server
	// certificates. If nil, the system roots are used.
	Roots *x509.CertPool

	// Time returns the current time. If nil, time.Now is used.
	Time func() time.Time

	// Rand is the randomness source. If nil, crypto/rand is used.
	Rand io.Reader

	Log *zap.Logger

	// NotaryKey is the notary's public key. If set, the prover
	// verifies the attestation signature before accepting it.
	NotaryKey *ecdsa.PublicKey

	// Key is the notary's attestation signing key.
	Key *ecdsa.PrivateKey

	// MaxSent and MaxRecv are the notary's limit policy. The
	// prover's requested limits must not exceed them.
	MaxSent uint32
	MaxRecv uint32
}

func (cfg *Config) now() time.Time {
	if cfg.Time == nil {
		return time.Now()
	}
	return cfg.Time()
}

func (cfg *Config) rand() io.Reader {
	if cfg.Rand == nil {
		return rand.Reader
	}
	return cfg.Rand
}

func (cfg *Config) log() *zap.Logger {
	if cfg.Log == nil {
		return zap.NewNop()
	}
	return cfg.Log
}

// Policy returns the notary's limit policy.
func (cfg *Config) Policy() Limits {
	return Limits{
		MaxSent: cfg.MaxSent,
		MaxRecv: cfg.MaxRecv,
	}
}

func (cfg *Config) handshake(log *zap.Logger) *handshake.Config {
	return &handshake.Config{
		Roots: cfg.Roots,
		Time:  cfg.Time,
		Rand:  cfg.Rand,
		Log:   log,
	}
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// watch applies the context deadline to the connections and
// interrupts their pending I/O when the context is done. The returned
// function stops watching and clears the deadlines.
func watch(ctx context.Context, conns ...io.ReadWriter) func() {
	var ds []deadliner
	for _, conn := range conns {
		if d, ok := conn.(deadliner); ok {
			ds = append(ds, d)
		}
	}
	if len(ds) == 0 {
		return func() {}
	}
	if deadline, ok := ctx.Deadline(); ok {
		for _, d := range ds {
			d.SetDeadline(deadline)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		for _, d := range ds {
			d.SetDeadline(time.Unix(1, 0))
		}
	})
	return sync.OnceFunc(func() {
		if stop() {
			for _, d := range ds {
				d.SetDeadline(time.Time{})
			}
		}
	})
}

// abortError converts err into an abort error. Transport failures
// caused by the context are reported as timeouts or transport errors
// according to the context's state.
func abortError(ctx context.Context, err error) *AbortError {
	reason := control.Classify(err)
	if ctxErr := ctx.Err(); ctxErr != nil &&
		(reason == Transport || reason == Timeout) {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			reason = Timeout
		} else {
			reason = Transport
		}
	}
	var ae *AbortError
	if errors.As(err, &ae) && ae.Reason == reason {
		return ae
	}
	return control.Abort(reason, err)
}
