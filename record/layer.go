//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package record

import (
	"fmt"
	"io"

	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/crypto/share"
	"github.com/markkurossi/mpctls/crypto/tls"
	"github.com/markkurossi/mpctls/mpc"
	"github.com/markkurossi/mpctls/transcript"
	"go.uber.org/zap"
)

// Layer implements the prover's record layer.
type Layer struct {
	state
	conn *tls.Conn
	peer *mpc.Peer
	link *control.Link
	keys *mpc.KeyShares
	rec  Recorder
	log  *zap.Logger
	eof  bool
}

// NewLayer creates a record layer for the server connection. The
// layer encrypts and decrypts handshake and alert records until
// Commit enables application data.
func NewLayer(conn *tls.Conn, peer *mpc.Peer, link *control.Link,
	keys *mpc.KeyShares, log *zap.Logger) *Layer {

	if log == nil {
		log = zap.NewNop()
	}
	return &Layer{
		conn: conn,
		peer: peer,
		link: link,
		keys: keys,
		log:  log,
	}
}

// Commit enables application data. All application data is recorded
// with rec and limited with limits.
func (l *Layer) Commit(rec Recorder, limits control.Limits) {
	l.rec = rec
	l.limits = limits
	l.app = true
}

// Encrypt encrypts the plaintext and writes it as one record of type
// ct to the server.
func (l *Layer) Encrypt(ct tls.ContentType, plaintext []byte) error {
	if len(plaintext) > tls.MaxPlaintext {
		return tls.AlertRecordOverflow
	}
	if err := l.checkType(ct); err != nil {
		return err
	}
	seq, err := l.nextSeq(transcript.Sent)
	if err != nil {
		return err
	}
	nonce := seqNonce(seq)

	err = l.link.Send(control.MsgEncrypt, &control.Encrypt{
		Type:   uint8(ct),
		Length: uint32(len(plaintext)),
	})
	if err != nil {
		return err
	}
	var ack control.Ack
	if err := l.link.Expect(control.MsgAck, &ack); err != nil {
		return err
	}

	ks, ej0, err := l.peer.Keystream(&l.keys.Client, nonce,
		mpc.Blocks(len(plaintext)), false)
	if err != nil {
		return err
	}
	ciphertext := make([]byte, len(plaintext))
	share.Xor(ciphertext, plaintext, ks[:len(plaintext)])
	share.Zero(ks)

	err = l.link.Send(control.MsgCiphertext, &control.Ciphertext{
		Data: ciphertext,
	})
	if err != nil {
		return err
	}
	s, err := l.peer.TagShare(&l.keys.Client,
		additionalData(seq, ct, len(plaintext)), ciphertext, ej0)
	if err != nil {
		return err
	}
	tag, err := l.peer.ExchangeTag(s)
	if err != nil {
		return err
	}

	payload := make([]byte, 0, overhead+len(ciphertext))
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)
	payload = append(payload, tag[:]...)

	l.log.Debug(">> encrypted", zap.Stringer("type", ct),
		zap.Uint64("seq", seq), zap.Int("length", len(plaintext)))

	return l.conn.WriteRecord(ct, payload)
}

// Decrypt reads the next record from the server and decrypts it.
func (l *Layer) Decrypt() (tls.ContentType, []byte, error) {
	ct, data, err := l.conn.ReadRecord()
	if err != nil {
		return tls.CTInvalid, nil, err
	}
	if err := l.checkType(ct); err != nil {
		return tls.CTInvalid, nil, err
	}
	if len(data) < overhead {
		return tls.CTInvalid, nil, control.Abort(control.BadRecordMAC,
			tls.AlertBadRecordMAC)
	}
	n := len(data) - overhead
	if n > tls.MaxPlaintext {
		return tls.CTInvalid, nil, tls.AlertRecordOverflow
	}
	if ct == tls.CTApplicationData {
		if err := l.checkLimit(transcript.Received, n); err != nil {
			return tls.CTInvalid, nil, err
		}
	}
	payload := append([]byte(nil), data...)
	explicitNonce := payload[:explicitNonceLen]
	ciphertext := payload[explicitNonceLen : explicitNonceLen+n]

	seq, err := l.nextSeq(transcript.Received)
	if err != nil {
		return tls.CTInvalid, nil, err
	}
	err = l.link.Send(control.MsgDecrypt, &control.Decrypt{
		Type:    uint8(ct),
		Payload: payload,
	})
	if err != nil {
		return tls.CTInvalid, nil, err
	}
	var ack control.Ack
	if err := l.link.Expect(control.MsgAck, &ack); err != nil {
		return tls.CTInvalid, nil, err
	}

	ks, ej0, err := l.peer.Keystream(&l.keys.Server, explicitNonce,
		mpc.Blocks(n), true)
	if err != nil {
		return tls.CTInvalid, nil, err
	}
	defer share.Zero(ks)

	s, err := l.peer.TagShare(&l.keys.Server, additionalData(seq, ct, n),
		ciphertext, ej0)
	if err != nil {
		return tls.CTInvalid, nil, err
	}
	err = l.link.Send(control.MsgTagShare, &control.TagShare{
		Tag: s,
	})
	if err != nil {
		return tls.CTInvalid, nil, err
	}
	var mask control.Mask
	if err := l.link.Expect(control.MsgMask, &mask); err != nil {
		return tls.CTInvalid, nil, err
	}
	if len(mask.Data) != n {
		return tls.CTInvalid, nil, control.Abortf(control.ProtocolViolation,
			"mask length %d, expected %d", len(mask.Data), n)
	}
	plaintext := make([]byte, n)
	share.Xor(plaintext, ciphertext, ks[:n])
	share.Xor(plaintext, plaintext, mask.Data)

	l.log.Debug("<< decrypted", zap.Stringer("type", ct),
		zap.Uint64("seq", seq), zap.Int("length", n))

	return ct, plaintext, nil
}

// Write sends the application data. The data is split into records
// of at most tls.MaxPlaintext bytes. If the data does not fit into
// the send limit, Write fails without sending anything.
func (l *Layer) Write(data []byte) error {
	if err := l.checkLimit(transcript.Sent, len(data)); err != nil {
		return err
	}
	for len(data) > 0 {
		n := min(len(data), tls.MaxPlaintext)
		if err := l.Encrypt(tls.CTApplicationData, data[:n]); err != nil {
			return err
		}
		l.count[transcript.Sent] += uint64(n)
		l.rec.Record(transcript.Sent, data[:n])
		data = data[n:]
	}
	return nil
}

// Read returns the next non-empty application data record from the
// server. The server's close_notify alert is returned as io.EOF.
func (l *Layer) Read() ([]byte, error) {
	if l.eof {
		return nil, io.EOF
	}
	for {
		ct, data, err := l.Decrypt()
		if err != nil {
			return nil, err
		}
		switch ct {
		case tls.CTApplicationData:
			if len(data) == 0 {
				continue
			}
			l.count[transcript.Received] += uint64(len(data))
			l.rec.Record(transcript.Received, data)
			return data, nil

		case tls.CTAlert:
			alert, err := tls.ParseAlert(data)
			if err != nil {
				return nil, err
			}
			if alert.Alert == tls.AlertCloseNotify {
				l.eof = true
				return nil, io.EOF
			}
			return nil, alert

		default:
			return nil, fmt.Errorf("%w: %v record", tls.AlertUnexpectedMessage,
				ct)
		}
	}
}

// CloseNotify sends the close_notify alert to the server.
func (l *Layer) CloseNotify() error {
	alert := &tls.PeerAlert{
		Level: tls.AlertLevelWarning,
		Alert: tls.AlertCloseNotify,
	}
	return l.Encrypt(tls.CTAlert, alert.Bytes())
}
