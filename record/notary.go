//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package record

import (
	"crypto/subtle"

	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/crypto/share"
	"github.com/markkurossi/mpctls/crypto/tls"
	"github.com/markkurossi/mpctls/mpc"
	"github.com/markkurossi/mpctls/transcript"
	"go.uber.org/zap"
)

// NotaryLayer implements the notary's side of the record layer. The
// notary sees the ciphertexts and the record types but never the
// keystream of either direction.
type NotaryLayer struct {
	state
	peer *mpc.Peer
	link *control.Link
	keys *mpc.KeyShares
	log  *zap.Logger
}

// NewNotaryLayer creates the notary's record layer.
func NewNotaryLayer(peer *mpc.Peer, link *control.Link,
	keys *mpc.KeyShares, log *zap.Logger) *NotaryLayer {

	if log == nil {
		log = zap.NewNop()
	}
	return &NotaryLayer{
		peer: peer,
		link: link,
		keys: keys,
		log:  log,
	}
}

// Commit enables application data within the limits.
func (l *NotaryLayer) Commit(limits control.Limits) {
	l.limits = limits
	l.app = true
}

// Encrypt serves the prover's MsgEncrypt request.
func (l *NotaryLayer) Encrypt(req *control.Encrypt) error {
	ct := tls.ContentType(req.Type)
	if req.Length > tls.MaxPlaintext {
		return tls.AlertRecordOverflow
	}
	if err := l.checkType(ct); err != nil {
		return err
	}
	n := int(req.Length)
	if ct == tls.CTApplicationData {
		if err := l.checkLimit(transcript.Sent, n); err != nil {
			return err
		}
	}
	seq, err := l.nextSeq(transcript.Sent)
	if err != nil {
		return err
	}
	if err := l.link.Send(control.MsgAck, &control.Ack{}); err != nil {
		return err
	}
	_, ej0, err := l.peer.Keystream(&l.keys.Client, seqNonce(seq),
		mpc.Blocks(n), false)
	if err != nil {
		return err
	}
	var msg control.Ciphertext
	if err := l.link.Expect(control.MsgCiphertext, &msg); err != nil {
		return err
	}
	if len(msg.Data) != n {
		return control.Abortf(control.ProtocolViolation,
			"ciphertext length %d, expected %d", len(msg.Data), n)
	}
	s, err := l.peer.TagShare(&l.keys.Client, additionalData(seq, ct, n),
		msg.Data, ej0)
	if err != nil {
		return err
	}
	if _, err := l.peer.ExchangeTag(s); err != nil {
		return err
	}
	if ct == tls.CTApplicationData {
		l.count[transcript.Sent] += uint64(n)
	}
	l.log.Debug(">> encrypted", zap.Stringer("type", ct),
		zap.Uint64("seq", seq), zap.Int("length", n))

	return nil
}

// Decrypt serves the prover's MsgDecrypt request. The notary reveals
// its keystream mask only after the record's tag verifies.
func (l *NotaryLayer) Decrypt(req *control.Decrypt) (tls.ContentType, error) {
	ct := tls.ContentType(req.Type)
	if err := l.checkType(ct); err != nil {
		return ct, err
	}
	if len(req.Payload) < overhead {
		return ct, control.Abort(control.BadRecordMAC, tls.AlertBadRecordMAC)
	}
	n := len(req.Payload) - overhead
	if n > tls.MaxPlaintext {
		return ct, tls.AlertRecordOverflow
	}
	if ct == tls.CTApplicationData {
		if err := l.checkLimit(transcript.Received, n); err != nil {
			return ct, err
		}
	}
	explicitNonce := req.Payload[:explicitNonceLen]
	ciphertext := req.Payload[explicitNonceLen : explicitNonceLen+n]
	tag := req.Payload[explicitNonceLen+n:]

	seq, err := l.nextSeq(transcript.Received)
	if err != nil {
		return ct, err
	}
	if err := l.link.Send(control.MsgAck, &control.Ack{}); err != nil {
		return ct, err
	}
	mask, ej0, err := l.peer.Keystream(&l.keys.Server, explicitNonce,
		mpc.Blocks(n), true)
	if err != nil {
		return ct, err
	}
	defer share.Zero(mask)

	s, err := l.peer.TagShare(&l.keys.Server, additionalData(seq, ct, n),
		ciphertext, ej0)
	if err != nil {
		return ct, err
	}
	var peerShare control.TagShare
	if err := l.link.Expect(control.MsgTagShare, &peerShare); err != nil {
		return ct, err
	}
	computed := s.Xor(share.Block(peerShare.Tag))
	if subtle.ConstantTimeCompare(computed[:], tag) != 1 {
		return ct, control.Abort(control.BadRecordMAC, tls.AlertBadRecordMAC)
	}
	err = l.link.Send(control.MsgMask, &control.Mask{
		Data: mask[:n],
	})
	if err != nil {
		return ct, err
	}
	if ct == tls.CTApplicationData {
		l.count[transcript.Received] += uint64(n)
	}
	l.log.Debug("<< decrypted", zap.Stringer("type", ct),
		zap.Uint64("seq", seq), zap.Int("length", n))

	return ct, nil
}
