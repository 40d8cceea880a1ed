//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package handshake

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/crypto/tls"
	"github.com/markkurossi/mpctls/mpc"
	"github.com/markkurossi/mpctls/record"
	"go.uber.org/zap"
)

// Session is an established TLS session.
type Session struct {
	Layer       *record.Layer
	Keys        *mpc.KeyShares
	ServerName  string
	CipherSuite tls.CipherSuite
	Certificate *x509.Certificate
}

// Coordinator runs the prover's side of the handshake.
type Coordinator struct {
	cfg   *Config
	peer  *mpc.Peer
	link  *control.Link
	log   *zap.Logger
	state State
	hash  hash.Hash
	keys  *mpc.KeyShares
}

// NewCoordinator creates a handshake coordinator for the prover.
func NewCoordinator(peer *mpc.Peer, link *control.Link,
	cfg *Config) *Coordinator {

	if cfg == nil {
		cfg = new(Config)
	}
	return &Coordinator{
		cfg:  cfg,
		peer: peer,
		link: link,
		log:  cfg.log(),
		hash: sha256.New(),
	}
}

// State returns the coordinator state.
func (c *Coordinator) State() State {
	return c.state
}

func (c *Coordinator) transition(state State) {
	c.log.Debug("handshake", zap.Stringer("from", c.state),
		zap.Stringer("to", state))
	c.state = state
}

// Handshake runs the handshake with the server. On failure, the
// coordinator moves to the Aborted state, clears all key shares, and
// returns an error that control.Classify maps to the abort reason.
func (c *Coordinator) Handshake(server io.ReadWriter, serverName string) (
	*Session, error) {

	if c.state != Init {
		return nil, fmt.Errorf("handshake: invalid state %v", c.state)
	}
	session, err := c.handshake(server, serverName)
	if err != nil {
		c.keys.Zero()
		c.transition(Aborted)
		return nil, err
	}
	return session, nil
}

func (c *Coordinator) handshake(server io.ReadWriter, serverName string) (
	*Session, error) {

	r := c.cfg.Rand
	if r == nil {
		r = rand.Reader
	}
	conn := tls.NewConn(server, c.log)

	// ClientHello.
	var clientRandom [32]byte
	if _, err := io.ReadFull(r, clientRandom[:]); err != nil {
		return nil, err
	}
	hello, err := tls.NewClientHello(clientRandom, serverName)
	if err != nil {
		return nil, err
	}
	msg, err := hello.Marshal()
	if err != nil {
		return nil, err
	}
	err = c.link.Send(control.MsgHandshake, &control.Handshake{
		Messages: [][]byte{msg},
	})
	if err != nil {
		return nil, err
	}
	c.hash.Write(msg)
	if err := conn.WriteRecord(tls.CTHandshake, msg); err != nil {
		return nil, err
	}
	c.transition(ClientHelloSent)

	// Server flight.
	f := &flight{
		cfg:          c.cfg,
		serverName:   serverName,
		clientRandom: clientRandom[:],
	}
	var messages [][]byte
	for idx, expected := range serverFlight {
		ht, msg, err := conn.ReadHandshake()
		if err != nil {
			// The server rejects the hello without a common cipher
			// suite.
			if idx == 0 && errors.Is(err, tls.AlertHandshakeFailure) {
				return nil, control.Abort(control.UnsupportedCipherSuite, err)
			}
			return nil, err
		}
		if ht != expected {
			return nil, fmt.Errorf("%w: got %v, expected %v",
				tls.AlertUnexpectedMessage, ht, expected)
		}
		if err := f.process(idx, msg); err != nil {
			return nil, err
		}
		c.hash.Write(msg)
		messages = append(messages, msg)
	}
	if conn.Pending() {
		return nil, fmt.Errorf("%w: data after server_hello_done",
			tls.AlertUnexpectedMessage)
	}
	c.transition(ServerHelloReceived)

	err = c.link.Send(control.MsgHandshake, &control.Handshake{
		Messages: messages,
	})
	if err != nil {
		return nil, err
	}
	var ack control.Ack
	if err := c.link.Expect(control.MsgAck, &ack); err != nil {
		return nil, err
	}

	// Key exchange and key schedule.
	pub, err := c.peer.KeyExchange()
	if err != nil {
		return nil, err
	}
	pms, err := c.peer.PremasterShare(f.server)
	if err != nil {
		return nil, err
	}
	c.keys, err = c.peer.DeriveSessionKeys(pms, clientRandom[:],
		f.hello.Random[:])
	pms.Zero()
	if err != nil {
		return nil, err
	}
	c.transition(KeyShareDerived)

	kex := &tls.ClientKeyExchange{
		Public: pub.Bytes(),
	}
	msg, err = kex.Marshal()
	if err != nil {
		return nil, err
	}
	c.hash.Write(msg)
	if err := conn.WriteRecord(tls.CTHandshake, msg); err != nil {
		return nil, err
	}
	if err := conn.WriteRecord(tls.CTChangeCipherSpec, []byte{1}); err != nil {
		return nil, err
	}

	// Client finished.
	layer := record.NewLayer(conn, c.peer, c.link, c.keys, c.log)

	verifyData, err := c.peer.VerifyData(c.keys, tls.LabelClientFinished,
		c.hash.Sum(nil))
	if err != nil {
		return nil, err
	}
	msg = tls.MakeFinished(verifyData)
	if err := layer.Encrypt(tls.CTHandshake, msg); err != nil {
		return nil, err
	}
	c.hash.Write(msg)

	expected, err := c.peer.VerifyData(c.keys, tls.LabelServerFinished,
		c.hash.Sum(nil))
	if err != nil {
		return nil, err
	}

	// Server finished.
	ct, data, err := conn.ReadRecord()
	if err != nil {
		return nil, err
	}
	if err := expectChangeCipherSpec(ct, data); err != nil {
		return nil, err
	}
	ct, data, err = layer.Decrypt()
	if err != nil {
		return nil, err
	}
	switch ct {
	case tls.CTHandshake:
	case tls.CTAlert:
		alert, err := tls.ParseAlert(data)
		if err != nil {
			return nil, err
		}
		return nil, alert
	default:
		return nil, fmt.Errorf("%w: %v record", tls.AlertUnexpectedMessage, ct)
	}
	verifyData, err = tls.ParseFinished(data)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(verifyData, expected) != 1 {
		return nil, control.Abortf(control.ProtocolViolation,
			"server finished verify data mismatch")
	}
	c.transition(FinishedExchanged)

	if err := c.link.Send(control.MsgAck, &control.Ack{}); err != nil {
		return nil, err
	}
	c.transition(Established)

	c.log.Info("handshake established",
		zap.String("server", serverName),
		zap.Stringer("suite", f.hello.CipherSuite))

	return &Session{
		Layer:       layer,
		Keys:        c.keys,
		ServerName:  serverName,
		CipherSuite: f.hello.CipherSuite,
		Certificate: f.leaf,
	}, nil
}

func expectChangeCipherSpec(ct tls.ContentType, data []byte) error {
	switch ct {
	case tls.CTChangeCipherSpec:
		if len(data) != 1 || data[0] != 1 {
			return tls.AlertDecodeError
		}
		return nil

	case tls.CTAlert:
		alert, err := tls.ParseAlert(data)
		if err != nil {
			return err
		}
		return alert

	default:
		return fmt.Errorf("%w: %v record, expected %v",
			tls.AlertUnexpectedMessage, ct, tls.CTChangeCipherSpec)
	}
}
