//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/markkurossi/mpc/p2p"
	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/handshake"
	"github.com/markkurossi/mpctls/mpc"
	"github.com/markkurossi/mpctls/pki"
	"github.com/markkurossi/mpctls/transcript"
	"go.uber.org/zap"
)

// Notary serves notarized sessions for provers.
type Notary struct {
	cfg   *Config
	keyID pki.KeyID
	log   *zap.Logger
}

// NewNotary creates a notary. The configuration must have the
// attestation signing key.
func NewNotary(cfg *Config) (*Notary, error) {
	if cfg == nil || cfg.Key == nil {
		return nil, errors.New("session: notary signing key not set")
	}
	id, err := pki.NewKeyID(&cfg.Key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Notary{
		cfg:   cfg,
		keyID: id,
		log:   cfg.log().With(zap.String("role", "notary")),
	}, nil
}

// KeyID returns the ID of the notary's signing key.
func (n *Notary) KeyID() pki.KeyID {
	return n.keyID
}

// PublicKey returns the notary's public key.
func (n *Notary) PublicKey() *ecdsa.PublicKey {
	return &n.cfg.Key.PublicKey
}

// Policy returns the notary's limit policy.
func (n *Notary) Policy() Limits {
	return n.cfg.Policy()
}

// Serve serves one session from the prover connection. The session's
// limits are bounded by the notary's policy. Serve returns the
// session's attestation, or nil if the prover closed the session
// without finalizing it.
func (n *Notary) Serve(ctx context.Context, conn io.ReadWriter) (
	*Attestation, error) {
	return n.ServeSession(ctx, conn, uuid.New(), n.cfg.Policy())
}

// ServeSession serves the session id from the prover connection. The
// prover's requested limits must not exceed limits or the notary's
// policy.
func (n *Notary) ServeSession(ctx context.Context, conn io.ReadWriter,
	id uuid.UUID, limits Limits) (*Attestation, error) {

	p2pConn := control.NewConn(conn)
	log := n.log.With(zap.Stringer("session_id", id))

	s := &notarySession{
		n:      n,
		ctx:    ctx,
		id:     id,
		policy: limits,
		log:    log,
		conn:   p2pConn,
		link:   control.NewLink(p2pConn, log),
	}
	stop := watch(ctx, conn)
	defer stop()
	defer s.link.Close()

	if err := s.serve(); err != nil {
		return nil, s.fail(err)
	}
	return s.attestation, nil
}

// notarySession holds the notary's state for one session.
type notarySession struct {
	n           *Notary
	ctx         context.Context
	id          uuid.UUID
	policy      Limits
	log         *zap.Logger
	conn        *p2p.Conn
	link        *control.Link
	phase       Phase
	hello       control.Hello
	tls         *handshake.NotarySession
	attestation *Attestation
}

func (s *notarySession) transition(phase Phase) {
	s.log.Debug("session", zap.Stringer("from", s.phase),
		zap.Stringer("to", phase))
	s.phase = phase
}

func (s *notarySession) fail(err error) error {
	ae := abortError(s.ctx, err)
	if s.tls != nil {
		s.tls.Keys.Zero()
	}
	s.link.Abort(ae)
	s.link.Close()
	phase := s.phase
	s.transition(Aborted)

	s.log.Warn("session aborted", zap.Stringer("phase", phase),
		zap.Stringer("reason", ae.Reason), zap.Error(err))
	return ae
}

func (s *notarySession) serve() error {
	cfg := s.n.cfg

	s.transition(NegotiateLimits)
	if err := s.link.Expect(control.MsgHello, &s.hello); err != nil {
		return err
	}
	if !s.hello.Limits.Allows(s.policy) || !s.hello.Limits.Allows(cfg.Policy()) {
		return control.Abortf(control.LimitsExceeded,
			"requested %v, allowed %v", s.hello.Limits, s.policy)
	}
	if len(s.hello.ServerName) == 0 {
		return control.Abortf(control.ProtocolViolation, "no server name")
	}
	err := s.link.Send(control.MsgAccept, &control.Accept{
		SessionID: [16]byte(s.id),
	})
	if err != nil {
		return err
	}
	s.transition(HandshakeInProgress)

	peer, err := mpc.NewPeer(mpc.Notary, s.conn, cfg.Rand, s.log)
	if err != nil {
		return err
	}
	verifier := handshake.NewVerifier(peer, s.link, cfg.handshake(s.log))
	s.tls, err = verifier.Verify(s.hello.ServerName)
	if err != nil {
		return err
	}
	s.tls.Layer.Commit(s.hello.Limits)
	s.transition(Committing)

	s.log.Info("session open", zap.String("server", s.hello.ServerName),
		zap.Stringer("limits", s.hello.Limits))

	for {
		t, data, err := s.link.Receive()
		if err != nil {
			return err
		}
		switch t {
		case control.MsgEncrypt:
			var req control.Encrypt
			if err := s.expectPhase(t, Committing); err != nil {
				return err
			}
			if err := control.Decode(data, &req); err != nil {
				return err
			}
			if err := s.tls.Layer.Encrypt(&req); err != nil {
				return err
			}

		case control.MsgDecrypt:
			var req control.Decrypt
			if err := s.expectPhase(t, Committing); err != nil {
				return err
			}
			if err := control.Decode(data, &req); err != nil {
				return err
			}
			if _, err := s.tls.Layer.Decrypt(&req); err != nil {
				return err
			}

		case control.MsgFinalize:
			var req control.Finalize
			if err := control.Decode(data, &req); err != nil {
				return err
			}
			if err := s.finalize(req.Ranges); err != nil {
				return err
			}

		case control.MsgClose:
			s.tls.Keys.Zero()
			s.log.Debug("session closed", zap.Stringer("phase", s.phase))
			return nil

		default:
			return control.Abortf(control.ProtocolViolation,
				"unexpected message %v", t)
		}
	}
}

func (s *notarySession) expectPhase(t control.MsgType, phase Phase) error {
	if s.phase != phase {
		return control.Abortf(control.ProtocolViolation,
			"unexpected message %v in phase %v", t, s.phase)
	}
	return nil
}

// finalize signs the attestation for the ranges. A repeated request
// for the same ranges returns the same attestation.
func (s *notarySession) finalize(ranges []transcript.Range) error {
	root := transcript.RootOf(ranges)

	if s.attestation != nil {
		if root != s.attestation.Root {
			return control.Abortf(control.ProtocolViolation,
				"session already finalized")
		}
		return s.link.Send(control.MsgAttestation, s.attestation)
	}
	s.transition(Finalizing)

	sent, received := s.tls.Layer.Counts()
	if err := transcript.CheckPartition(ranges, sent, received); err != nil {
		return control.Abort(control.ProtocolViolation, err)
	}
	cfg := s.n.cfg
	att, err := Sign(&Statement{
		SessionID:   s.id,
		Root:        root,
		Limits:      s.hello.Limits,
		Sent:        sent,
		Received:    received,
		ServerName:  s.hello.ServerName,
		Time:        uint64(cfg.now().Unix()),
		NotaryKeyID: s.n.keyID,
	}, cfg.Key, cfg.rand())
	if err != nil {
		return err
	}
	s.tls.Keys.Zero()
	s.attestation = att

	if err := s.link.Send(control.MsgAttestation, att); err != nil {
		return err
	}
	s.transition(Attested)

	s.log.Info("session attested", zap.Int("ranges", len(ranges)),
		zap.Uint64("sent", sent), zap.Uint64("received", received))
	return nil
}
