//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/markkurossi/mpc/p2p"
	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/handshake"
	"github.com/markkurossi/mpctls/mpc"
	"github.com/markkurossi/mpctls/transcript"
	"go.uber.org/zap"
)

// Session is the prover's notarized TLS session.
type Session struct {
	ID         uuid.UUID
	ServerName string
	Limits     Limits

	ctx         context.Context
	cfg         *Config
	log         *zap.Logger
	conn        *p2p.Conn
	link        *control.Link
	peer        *mpc.Peer
	tls         *handshake.Session
	builder     *transcript.Builder
	phase       Phase
	attestation *Attestation
	err         error
	closed      bool
	stop        func()
}

// OpenSession opens a notarized session to the server. The server and
// notary arguments are the byte streams to the TLS server and to the
// notary. The context bounds the whole session: its deadline applies
// to all exchanges with the server and the notary. On failure, the
// returned error is an *AbortError.
func OpenSession(ctx context.Context, server, notary io.ReadWriter,
	serverName string, limits Limits, cfg *Config) (*Session, error) {

	if cfg == nil {
		cfg = new(Config)
	}
	log := cfg.log().With(zap.String("role", "prover"))
	conn := control.NewConn(notary)

	s := &Session{
		ServerName: serverName,
		Limits:     limits,
		ctx:        ctx,
		cfg:        cfg,
		log:        log,
		conn:       conn,
		link:       control.NewLink(conn, log),
		stop:       watch(ctx, server, notary),
	}
	if err := s.open(server); err != nil {
		return nil, s.fail(err)
	}
	return s, nil
}

// Phase returns the session phase.
func (s *Session) Phase() Phase {
	return s.phase
}

func (s *Session) transition(phase Phase) {
	s.log.Debug("session", zap.Stringer("from", s.phase),
		zap.Stringer("to", phase))
	s.phase = phase
}

func (s *Session) open(server io.ReadWriter) error {
	s.transition(NegotiateLimits)
	err := s.link.Send(control.MsgHello, &control.Hello{
		Limits:     s.Limits,
		ServerName: s.ServerName,
	})
	if err != nil {
		return err
	}
	var accept control.Accept
	if err := s.link.Expect(control.MsgAccept, &accept); err != nil {
		return err
	}
	s.ID = uuid.UUID(accept.SessionID)
	s.log = s.log.With(zap.Stringer("session_id", s.ID))
	s.transition(HandshakeInProgress)

	s.peer, err = mpc.NewPeer(mpc.Prover, s.conn, s.cfg.Rand, s.log)
	if err != nil {
		return err
	}
	coordinator := handshake.NewCoordinator(s.peer, s.link,
		s.cfg.handshake(s.log))
	s.tls, err = coordinator.Handshake(server, s.ServerName)
	if err != nil {
		return err
	}
	s.builder, err = transcript.NewBuilder(s.cfg.rand())
	if err != nil {
		return err
	}
	s.tls.Layer.Commit(s.builder, s.Limits)
	s.transition(Committing)

	s.log.Info("session open", zap.String("server", s.ServerName),
		zap.Stringer("limits", s.Limits))
	return nil
}

// fail aborts the session. It clears the key shares, notifies the
// notary, and returns the abort error.
func (s *Session) fail(err error) error {
	if s.phase == Aborted {
		return s.err
	}
	ae := abortError(s.ctx, err)
	if s.tls != nil {
		s.tls.Keys.Zero()
	}
	s.link.Abort(ae)
	s.release()
	s.transition(Aborted)
	s.err = ae

	s.log.Warn("session aborted", zap.Stringer("reason", ae.Reason),
		zap.Error(err))
	return ae
}

func (s *Session) check(phase Phase) error {
	switch {
	case s.phase == Aborted:
		return s.err
	case s.closed:
		return ErrClosed
	case s.phase != phase:
		return fmt.Errorf("session: invalid phase %v", s.phase)
	default:
		return nil
	}
}

// Send sends the data to the server. The send fails with
// LimitsExceeded and aborts the session if the data does not fit into
// the session limits.
func (s *Session) Send(data []byte) error {
	if err := s.check(Committing); err != nil {
		return err
	}
	if err := s.tls.Layer.Write(data); err != nil {
		return s.fail(err)
	}
	return nil
}

// Recv receives the next application data from the server. It
// returns io.EOF when the server has closed the connection.
func (s *Session) Recv() ([]byte, error) {
	if err := s.check(Committing); err != nil {
		return nil, err
	}
	data, err := s.tls.Layer.Read()
	if err == io.EOF {
		return nil, err
	}
	if err != nil {
		return nil, s.fail(err)
	}
	return data, nil
}

// Finalize ends the data exchange and returns the notary's
// attestation over the transcript commitments. Finalize closes the
// session with the notary. Calling Finalize again returns the same
// attestation.
func (s *Session) Finalize() (*Attestation, error) {
	if s.attestation != nil {
		return s.attestation, nil
	}
	if err := s.check(Committing); err != nil {
		return nil, err
	}
	s.transition(Finalizing)

	att, err := s.finalize()
	if err != nil {
		return nil, s.fail(err)
	}
	s.tls.Keys.Zero()
	s.attestation = att
	s.transition(Attested)

	// The attestation ends the exchange with the notary.
	s.closed = true
	err = s.link.Send(control.MsgClose, &control.Ack{})
	s.release()
	if err != nil {
		s.log.Debug("session close", zap.Error(err))
	}

	s.log.Info("session attested", zap.Uint64("sent", att.Sent),
		zap.Uint64("received", att.Received))
	return att, nil
}

func (s *Session) finalize() (*Attestation, error) {
	err := s.link.Send(control.MsgFinalize, &control.Finalize{
		Ranges: s.builder.Ranges(),
	})
	if err != nil {
		return nil, err
	}
	att := new(Attestation)
	if err := s.link.Expect(control.MsgAttestation, att); err != nil {
		return nil, err
	}
	sent, received := s.builder.Totals()
	if att.SessionID != s.ID || att.Root != s.builder.Root() ||
		att.Limits != s.Limits || att.ServerName != s.ServerName ||
		att.Sent != sent || att.Received != received {
		return nil, control.Abortf(control.ProtocolViolation,
			"attestation does not match session")
	}
	if s.cfg.NotaryKey != nil {
		if err := att.Verify(s.cfg.NotaryKey); err != nil {
			return nil, control.Abort(control.ProtocolViolation, err)
		}
	}
	return att, nil
}

// Ranges returns the committed transcript ranges in chronological
// order.
func (s *Session) Ranges() []transcript.Range {
	if s.builder == nil {
		return nil
	}
	return s.builder.Ranges()
}

// Open creates an opening for the transcript range. The opening
// discloses the range's data and proves it against the attestation.
func (s *Session) Open(index int) (*transcript.Opening, error) {
	if s.builder == nil {
		return nil, fmt.Errorf("session: no transcript")
	}
	return s.builder.Open(index)
}

// Close closes the session with the notary. It does not close the
// byte streams. A finalized or aborted session is already closed.
func (s *Session) Close() error {
	if s.closed || s.phase == Aborted {
		s.release()
		return nil
	}
	s.closed = true
	if s.tls != nil {
		s.tls.Keys.Zero()
	}
	err := s.link.Send(control.MsgClose, &control.Ack{})
	if cerr := s.release(); err == nil {
		err = cerr
	}
	return err
}

// release waits for the pending messages to the notary and releases
// the peer connection and the stream deadlines.
func (s *Session) release() error {
	err := s.link.Close()
	s.stop()
	return err
}
