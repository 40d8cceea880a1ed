//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package handshake

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"hash"

	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/crypto/tls"
	"github.com/markkurossi/mpctls/mpc"
	"github.com/markkurossi/mpctls/record"
	"go.uber.org/zap"
)

// NotarySession is the notary's view of an established TLS session.
type NotarySession struct {
	Layer       *record.NotaryLayer
	Keys        *mpc.KeyShares
	ServerName  string
	CipherSuite tls.CipherSuite
	Certificate *x509.Certificate
}

// Verifier runs the notary's side of the handshake. It receives the
// plaintext handshake messages from the prover and verifies the
// server's certificate and key exchange signature before the key
// exchange.
type Verifier struct {
	cfg   *Config
	peer  *mpc.Peer
	link  *control.Link
	log   *zap.Logger
	state State
	hash  hash.Hash
	keys  *mpc.KeyShares
}

// NewVerifier creates a handshake verifier for the notary.
func NewVerifier(peer *mpc.Peer, link *control.Link, cfg *Config) *Verifier {
	if cfg == nil {
		cfg = new(Config)
	}
	return &Verifier{
		cfg:  cfg,
		peer: peer,
		link: link,
		log:  cfg.log(),
		hash: sha256.New(),
	}
}

// State returns the verifier state.
func (v *Verifier) State() State {
	return v.state
}

func (v *Verifier) transition(state State) {
	v.log.Debug("handshake", zap.Stringer("from", v.state),
		zap.Stringer("to", state))
	v.state = state
}

// Verify runs the notary's side of the handshake for the server
// name.
func (v *Verifier) Verify(serverName string) (*NotarySession, error) {
	if v.state != Init {
		return nil, fmt.Errorf("handshake: invalid state %v", v.state)
	}
	session, err := v.verify(serverName)
	if err != nil {
		v.keys.Zero()
		v.transition(Aborted)
		return nil, err
	}
	return session, nil
}

func (v *Verifier) verify(serverName string) (*NotarySession, error) {
	// ClientHello.
	var hs control.Handshake
	if err := v.link.Expect(control.MsgHandshake, &hs); err != nil {
		return nil, err
	}
	if len(hs.Messages) != 1 {
		return nil, control.Abortf(control.ProtocolViolation,
			"expected client_hello")
	}
	msg := hs.Messages[0]
	clientRandom, err := helloRandom(msg)
	if err != nil {
		return nil, err
	}
	v.hash.Write(msg)
	v.transition(ClientHelloSent)

	// Server flight.
	if err := v.link.Expect(control.MsgHandshake, &hs); err != nil {
		return nil, err
	}
	if len(hs.Messages) != len(serverFlight) {
		return nil, control.Abortf(control.ProtocolViolation,
			"server flight has %d messages", len(hs.Messages))
	}
	f := &flight{
		cfg:          v.cfg,
		serverName:   serverName,
		clientRandom: clientRandom,
	}
	for idx, msg := range hs.Messages {
		if len(msg) < 4 || tls.HandshakeType(msg[0]) != serverFlight[idx] {
			return nil, control.Abortf(control.ProtocolViolation,
				"invalid server flight message %d", idx)
		}
		if err := f.process(idx, msg); err != nil {
			return nil, err
		}
		v.hash.Write(msg)
	}
	v.transition(ServerHelloReceived)

	if err := v.link.Send(control.MsgAck, &control.Ack{}); err != nil {
		return nil, err
	}

	// Key exchange and key schedule.
	pub, err := v.peer.KeyExchange()
	if err != nil {
		return nil, err
	}
	pms, err := v.peer.PremasterShare(f.server)
	if err != nil {
		return nil, err
	}
	v.keys, err = v.peer.DeriveSessionKeys(pms, clientRandom,
		f.hello.Random[:])
	pms.Zero()
	if err != nil {
		return nil, err
	}
	v.transition(KeyShareDerived)

	kex := &tls.ClientKeyExchange{
		Public: pub.Bytes(),
	}
	msg, err = kex.Marshal()
	if err != nil {
		return nil, err
	}
	v.hash.Write(msg)

	// Client finished.
	layer := record.NewNotaryLayer(v.peer, v.link, v.keys, v.log)

	verifyData, err := v.peer.VerifyData(v.keys, tls.LabelClientFinished,
		v.hash.Sum(nil))
	if err != nil {
		return nil, err
	}
	msg = tls.MakeFinished(verifyData)

	var enc control.Encrypt
	if err := v.link.Expect(control.MsgEncrypt, &enc); err != nil {
		return nil, err
	}
	if tls.ContentType(enc.Type) != tls.CTHandshake ||
		int(enc.Length) != len(msg) {
		return nil, control.Abortf(control.ProtocolViolation,
			"expected client finished")
	}
	if err := layer.Encrypt(&enc); err != nil {
		return nil, err
	}
	v.hash.Write(msg)

	_, err = v.peer.VerifyData(v.keys, tls.LabelServerFinished,
		v.hash.Sum(nil))
	if err != nil {
		return nil, err
	}

	// Server finished.
	var dec control.Decrypt
	if err := v.link.Expect(control.MsgDecrypt, &dec); err != nil {
		return nil, err
	}
	if _, err := layer.Decrypt(&dec); err != nil {
		return nil, err
	}
	v.transition(FinishedExchanged)

	var ack control.Ack
	if err := v.link.Expect(control.MsgAck, &ack); err != nil {
		return nil, err
	}
	v.transition(Established)

	return &NotarySession{
		Layer:       layer,
		Keys:        v.keys,
		ServerName:  serverName,
		CipherSuite: f.hello.CipherSuite,
		Certificate: f.leaf,
	}, nil
}

// helloRandom returns the random of the client_hello message.
func helloRandom(msg []byte) ([]byte, error) {
	if len(msg) < 4+2+32 || tls.HandshakeType(msg[0]) != tls.HTClientHello {
		return nil, control.Abortf(control.ProtocolViolation,
			"invalid client_hello")
	}
	return append([]byte(nil), msg[6:38]...), nil
}
