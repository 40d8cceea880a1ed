//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

const (
	// RecordHeaderLen is the record layer header length.
	RecordHeaderLen = 5

	// MaxPlaintext is the maximum record plaintext length.
	MaxPlaintext = 16384

	// MaxCiphertext is the maximum record payload length.
	MaxCiphertext = MaxPlaintext + 2048
)

// Conn implements record framing over a byte stream. It does not
// encrypt or decrypt records.
type Conn struct {
	conn io.ReadWriter
	log  *zap.Logger
	rbuf []byte
	hbuf []byte
}

// NewConn creates a record layer connection for the argument
// stream.
func NewConn(conn io.ReadWriter, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conn{
		conn: conn,
		log:  log,
		rbuf: make([]byte, RecordHeaderLen+MaxCiphertext),
	}
}

// ReadRecord reads a record layer record. The returned data is valid
// until the next call to ReadRecord.
func (conn *Conn) ReadRecord() (ContentType, []byte, error) {
	_, err := io.ReadFull(conn.conn, conn.rbuf[:RecordHeaderLen])
	if err != nil {
		return CTInvalid, nil, err
	}
	ct := ContentType(conn.rbuf[0])
	legacyVersion := ProtocolVersion(bo.Uint16(conn.rbuf[1:3]))
	length := int(bo.Uint16(conn.rbuf[3:5]))

	conn.log.Debug("<< record",
		zap.Stringer("version", legacyVersion),
		zap.Stringer("type", ct),
		zap.Int("length", length))

	if legacyVersion>>8 != 0x03 {
		return CTInvalid, nil, AlertProtocolVersion
	}
	if length > MaxCiphertext {
		return CTInvalid, nil, AlertRecordOverflow
	}
	_, err = io.ReadFull(conn.conn, conn.rbuf[:length])
	if err != nil {
		return CTInvalid, nil, err
	}
	return ct, conn.rbuf[:length], nil
}

// WriteRecord writes a record layer record.
func (conn *Conn) WriteRecord(ct ContentType, data []byte) error {
	if len(data) > MaxCiphertext {
		return AlertRecordOverflow
	}
	buf := make([]byte, RecordHeaderLen+len(data))

	buf[0] = byte(ct)
	bo.PutUint16(buf[1:3], uint16(VersionTLS12))
	bo.PutUint16(buf[3:5], uint16(len(data)))
	copy(buf[RecordHeaderLen:], data)

	conn.log.Debug(">> record", zap.Stringer("type", ct),
		zap.Int("length", len(data)))

	_, err := conn.conn.Write(buf)
	return err
}

// ReadHandshake reads the next plaintext handshake message. It
// returns the message type and the full message including its 4-byte
// header. Handshake messages may span or share records.
func (conn *Conn) ReadHandshake() (HandshakeType, []byte, error) {
	for {
		if len(conn.hbuf) >= 4 {
			typeLen := bo.Uint32(conn.hbuf)
			ht := HandshakeType(typeLen >> 24)
			length := int(typeLen & 0xffffff)
			if length > 1<<16 {
				return 0, nil, AlertDecodeError
			}
			if len(conn.hbuf) >= 4+length {
				msg := make([]byte, 4+length)
				copy(msg, conn.hbuf)
				conn.hbuf = conn.hbuf[4+length:]
				conn.log.Debug("<< handshake", zap.Stringer("type", ht),
					zap.Int("length", length))
				return ht, msg, nil
			}
		}
		ct, data, err := conn.ReadRecord()
		if err != nil {
			return 0, nil, err
		}
		switch ct {
		case CTHandshake:
			conn.hbuf = append(conn.hbuf, data...)
		case CTAlert:
			alert, err := ParseAlert(data)
			if err != nil {
				return 0, nil, err
			}
			return 0, nil, alert
		default:
			return 0, nil, fmt.Errorf("%w: %v during handshake",
				AlertUnexpectedMessage, ct)
		}
	}
}

// Pending tests if the connection has buffered handshake data.
func (conn *Conn) Pending() bool {
	return len(conn.hbuf) > 0
}

// MakeHandshake prefixes the handshake body with the message type
// and length.
func MakeHandshake(ht HandshakeType, body []byte) []byte {
	msg := make([]byte, 4+len(body))
	bo.PutUint32(msg, uint32(ht)<<24|uint32(len(body)))
	copy(msg[4:], body)
	return msg
}
