//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"fmt"

	"github.com/markkurossi/mpctls/wire"
	"golang.org/x/crypto/cryptobyte"
)

// VerifyDataLen is the length of the Finished verify_data.
const VerifyDataLen = 12

// ClientHello implements the client_hello message.
type ClientHello struct {
	HandshakeTypeLen   uint32
	Version            ProtocolVersion
	Random             [32]byte
	SessionID          []byte        `tls:"u8"`
	CipherSuites       []CipherSuite `tls:"u16"`
	CompressionMethods []byte        `tls:"u8"`
	Extensions         []Extension   `tls:"u16"`
}

// NewClientHello creates the client_hello for the MPC client.
func NewClientHello(random [32]byte, serverName string) (*ClientHello, error) {
	var b cryptobyte.Builder

	// server_name
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(0) // host_name
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(serverName))
		})
	})
	sni, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	// supported_groups
	b = cryptobyte.Builder{}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint16(uint16(GroupSecp256r1))
	})
	groups, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	// signature_algorithms
	b = cryptobyte.Builder{}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, scheme := range SupportedSignatureSchemes {
			b.AddUint16(uint16(scheme))
		}
	})
	sigAlgs, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	hello := &ClientHello{
		Version:            VersionTLS12,
		Random:             random,
		CipherSuites:       SupportedCipherSuites,
		CompressionMethods: []byte{0},
		Extensions: []Extension{
			{
				Type: ETSupportedGroups,
				Data: groups,
			},
			{
				Type: ETECPointFormats,
				Data: []byte{1, 0}, // uncompressed
			},
			{
				Type: ETSignatureAlgorithms,
				Data: sigAlgs,
			},
			{
				Type: ETRenegotiationInfo,
				Data: []byte{0},
			},
		},
	}
	if len(serverName) > 0 {
		hello.Extensions = append([]Extension{{
			Type: ETServerName,
			Data: sni,
		}}, hello.Extensions...)
	}
	return hello, nil
}

// Marshal encodes the client_hello as a handshake message.
func (hello *ClientHello) Marshal() ([]byte, error) {
	data, err := wire.Marshal(hello)
	if err != nil {
		return nil, err
	}
	typeLen := uint32(HTClientHello)<<24 | uint32(len(data)-4)
	bo.PutUint32(data[0:4], typeLen)
	return data, nil
}

// ClientKeyExchange implements the ECDHE client_key_exchange message.
type ClientKeyExchange struct {
	HandshakeTypeLen uint32
	Public           []byte `tls:"u8"`
}

// Marshal encodes the client_key_exchange as a handshake message.
func (kex *ClientKeyExchange) Marshal() ([]byte, error) {
	data, err := wire.Marshal(kex)
	if err != nil {
		return nil, err
	}
	typeLen := uint32(HTClientKeyExchange)<<24 | uint32(len(data)-4)
	bo.PutUint32(data[0:4], typeLen)
	return data, nil
}

// ParseClientKeyExchange parses the client_key_exchange message.
func ParseClientKeyExchange(msg []byte) (*ClientKeyExchange, error) {
	var kex ClientKeyExchange
	n, err := wire.UnmarshalFrom(msg, &kex)
	if err != nil || n != len(msg) {
		return nil, AlertDecodeError
	}
	if HandshakeType(kex.HandshakeTypeLen>>24) != HTClientKeyExchange {
		return nil, AlertUnexpectedMessage
	}
	return &kex, nil
}

// MakeFinished creates the finished handshake message.
func MakeFinished(verifyData []byte) []byte {
	return MakeHandshake(HTFinished, verifyData)
}

// ServerHello implements the server_hello message.
type ServerHello struct {
	Version           ProtocolVersion
	Random            [32]byte
	SessionID         []byte
	CipherSuite       CipherSuite
	CompressionMethod uint8
	Extensions        []Extension
}

func body(msg []byte, ht HandshakeType) (cryptobyte.String, error) {
	s := cryptobyte.String(msg)
	var t uint8
	var b cryptobyte.String
	if !s.ReadUint8(&t) || !s.ReadUint24LengthPrefixed(&b) || !s.Empty() {
		return nil, AlertDecodeError
	}
	if HandshakeType(t) != ht {
		return nil, fmt.Errorf("%w: got %v, expected %v",
			AlertUnexpectedMessage, HandshakeType(t), ht)
	}
	return b, nil
}

// ParseServerHello parses the server_hello handshake message.
func ParseServerHello(msg []byte) (*ServerHello, error) {
	s, err := body(msg, HTServerHello)
	if err != nil {
		return nil, err
	}
	var hello ServerHello
	var version, suite uint16
	var random []byte
	var sessionID cryptobyte.String

	if !s.ReadUint16(&version) ||
		!s.ReadBytes(&random, 32) ||
		!s.ReadUint8LengthPrefixed(&sessionID) ||
		!s.ReadUint16(&suite) ||
		!s.ReadUint8(&hello.CompressionMethod) {
		return nil, AlertDecodeError
	}
	hello.Version = ProtocolVersion(version)
	copy(hello.Random[:], random)
	hello.SessionID = append([]byte(nil), sessionID...)
	hello.CipherSuite = CipherSuite(suite)

	if s.Empty() {
		return &hello, nil
	}
	var exts cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&exts) || !s.Empty() {
		return nil, AlertDecodeError
	}
	for !exts.Empty() {
		var et uint16
		var data cryptobyte.String
		if !exts.ReadUint16(&et) || !exts.ReadUint16LengthPrefixed(&data) {
			return nil, AlertDecodeError
		}
		hello.Extensions = append(hello.Extensions, Extension{
			Type: ExtensionType(et),
			Data: append([]byte(nil), data...),
		})
	}
	return &hello, nil
}

// ParseCertificate parses the certificate handshake message and
// returns the DER encoded certificate chain.
func ParseCertificate(msg []byte) ([][]byte, error) {
	s, err := body(msg, HTCertificate)
	if err != nil {
		return nil, err
	}
	var list cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&list) || !s.Empty() {
		return nil, AlertDecodeError
	}
	var chain [][]byte
	for !list.Empty() {
		var cert cryptobyte.String
		if !list.ReadUint24LengthPrefixed(&cert) || len(cert) == 0 {
			return nil, AlertDecodeError
		}
		chain = append(chain, append([]byte(nil), cert...))
	}
	if len(chain) == 0 {
		return nil, AlertBadCertificate
	}
	return chain, nil
}

// ServerKeyExchange implements the ECDHE server_key_exchange message.
type ServerKeyExchange struct {
	Group     NamedGroup
	Public    []byte
	Params    []byte
	Scheme    SignatureScheme
	Signature []byte
}

// ParseServerKeyExchange parses the server_key_exchange handshake
// message.
func ParseServerKeyExchange(msg []byte) (*ServerKeyExchange, error) {
	s, err := body(msg, HTServerKeyExchange)
	if err != nil {
		return nil, err
	}
	start := s
	var curveType uint8
	var group uint16
	var public cryptobyte.String
	if !s.ReadUint8(&curveType) || !s.ReadUint16(&group) ||
		!s.ReadUint8LengthPrefixed(&public) {
		return nil, AlertDecodeError
	}
	if ECCurveType(curveType) != CurveNamedCurve {
		return nil, AlertHandshakeFailure
	}
	paramsLen := len(start) - len(s)

	var scheme uint16
	var sig cryptobyte.String
	if !s.ReadUint16(&scheme) || !s.ReadUint16LengthPrefixed(&sig) ||
		!s.Empty() {
		return nil, AlertDecodeError
	}
	return &ServerKeyExchange{
		Group:     NamedGroup(group),
		Public:    append([]byte(nil), public...),
		Params:    append([]byte(nil), start[:paramsLen]...),
		Scheme:    SignatureScheme(scheme),
		Signature: append([]byte(nil), sig...),
	}, nil
}

// ParseServerHelloDone validates the server_hello_done message.
func ParseServerHelloDone(msg []byte) error {
	s, err := body(msg, HTServerHelloDone)
	if err != nil {
		return err
	}
	if !s.Empty() {
		return AlertDecodeError
	}
	return nil
}

// ParseFinished parses the finished message and returns its
// verify_data.
func ParseFinished(msg []byte) ([]byte, error) {
	s, err := body(msg, HTFinished)
	if err != nil {
		return nil, err
	}
	if len(s) != VerifyDataLen {
		return nil, AlertDecodeError
	}
	return []byte(s), nil
}
