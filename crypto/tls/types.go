//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package tls implements the TLS 1.2 wire types, record framing, and
// handshake message encoding used by the MPC client.
package tls

import (
	"encoding/binary"
	"fmt"
)

var bo = binary.BigEndian

// ContentType specifies record layer record types.
type ContentType uint8

// Record layer record types.
const (
	CTInvalid          ContentType = 0
	CTChangeCipherSpec ContentType = 20
	CTAlert            ContentType = 21
	CTHandshake        ContentType = 22
	CTApplicationData  ContentType = 23
)

func (ct ContentType) String() string {
	name, ok := contentTypes[ct]
	if ok {
		return name
	}
	return fmt.Sprintf("{ContentType %d}", ct)
}

var contentTypes = map[ContentType]string{
	CTInvalid:          "invalid",
	CTChangeCipherSpec: "change_cipher_spec",
	CTAlert:            "alert",
	CTHandshake:        "handshake",
	CTApplicationData:  "application_data",
}

// ProtocolVersion defines TLS protocol version.
type ProtocolVersion uint16

// Protocol versions.
const (
	VersionTLS10 ProtocolVersion = 0x0301
	VersionTLS11 ProtocolVersion = 0x0302
	VersionTLS12 ProtocolVersion = 0x0303
	VersionTLS13 ProtocolVersion = 0x0304
)

func (v ProtocolVersion) String() string {
	name, ok := protocolVersions[v]
	if ok {
		return name
	}
	return fmt.Sprintf("%04x", uint(v))
}

var protocolVersions = map[ProtocolVersion]string{
	0x0300:       "SSL 3.0",
	VersionTLS10: "TLS 1.0",
	VersionTLS11: "TLS 1.1",
	VersionTLS12: "TLS 1.2",
	VersionTLS13: "TLS 1.3",
}

// HandshakeType defines handshake message types.
type HandshakeType uint8

// Handshake message types.
const (
	HTHelloRequest       HandshakeType = 0
	HTClientHello        HandshakeType = 1
	HTServerHello        HandshakeType = 2
	HTNewSessionTicket   HandshakeType = 4
	HTCertificate        HandshakeType = 11
	HTServerKeyExchange  HandshakeType = 12
	HTCertificateRequest HandshakeType = 13
	HTServerHelloDone    HandshakeType = 14
	HTCertificateVerify  HandshakeType = 15
	HTClientKeyExchange  HandshakeType = 16
	HTFinished           HandshakeType = 20
	HTCertificateStatus  HandshakeType = 22
)

func (ht HandshakeType) String() string {
	name, ok := handshakeTypes[ht]
	if ok {
		return name
	}
	return fmt.Sprintf("{HandshakeType %d}", ht)
}

var handshakeTypes = map[HandshakeType]string{
	HTHelloRequest:       "hello_request",
	HTClientHello:        "client_hello",
	HTServerHello:        "server_hello",
	HTNewSessionTicket:   "new_session_ticket",
	HTCertificate:        "certificate",
	HTServerKeyExchange:  "server_key_exchange",
	HTCertificateRequest: "certificate_request",
	HTServerHelloDone:    "server_hello_done",
	HTCertificateVerify:  "certificate_verify",
	HTClientKeyExchange:  "client_key_exchange",
	HTFinished:           "finished",
	HTCertificateStatus:  "certificate_status",
}

// CipherSuite defines cipher suites.
type CipherSuite uint16

// Cipher suites.
const (
	CipherECDHEECDSAAes128GcmSha256 CipherSuite = 0xc02b
	CipherECDHERSAAes128GcmSha256   CipherSuite = 0xc02f
	CipherECDHEECDSAAes256GcmSha384 CipherSuite = 0xc02c
	CipherECDHERSAAes256GcmSha384   CipherSuite = 0xc030
)

func (cs CipherSuite) String() string {
	name, ok := cipherSuites[cs]
	if ok {
		return name
	}
	return fmt.Sprintf("{CipherSuite 0x%02x,0x%02x}", int(cs>>8), int(cs&0xff))
}

var cipherSuites = map[CipherSuite]string{
	CipherECDHEECDSAAes128GcmSha256: "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	CipherECDHERSAAes128GcmSha256:   "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	CipherECDHEECDSAAes256GcmSha384: "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	CipherECDHERSAAes256GcmSha384:   "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
}

// SupportedCipherSuites lists the cipher suites the MPC client
// offers, in preference order.
var SupportedCipherSuites = []CipherSuite{
	CipherECDHEECDSAAes128GcmSha256,
	CipherECDHERSAAes128GcmSha256,
}

// Supported tests if the cipher suite is supported.
func (cs CipherSuite) Supported() bool {
	for _, s := range SupportedCipherSuites {
		if s == cs {
			return true
		}
	}
	return false
}

// NamedGroup defines named key exchange groups.
type NamedGroup uint16

// Named groups.
const (
	GroupSecp256r1 NamedGroup = 0x0017
	GroupSecp384r1 NamedGroup = 0x0018
	GroupSecp521r1 NamedGroup = 0x0019
	GroupX25519    NamedGroup = 0x001D
)

func (group NamedGroup) String() string {
	name, ok := namedGroups[group]
	if ok {
		return name
	}
	return fmt.Sprintf("%04x", int(group))
}

var namedGroups = map[NamedGroup]string{
	GroupSecp256r1: "secp256r1",
	GroupSecp384r1: "secp384r1",
	GroupSecp521r1: "secp521r1",
	GroupX25519:    "x25519",
}

// ECCurveType defines the ServerECDHParams curve types.
type ECCurveType uint8

// CurveNamedCurve specifies named curve parameters.
const CurveNamedCurve ECCurveType = 3

// SignatureScheme defines the signature algorithms for the
// signature_algorithms extension.
type SignatureScheme uint16

// Signature algorithms.
const (
	SigSchemeRsaPkcs1Sha256       SignatureScheme = 0x0401
	SigSchemeRsaPkcs1Sha384       SignatureScheme = 0x0501
	SigSchemeRsaPkcs1Sha512       SignatureScheme = 0x0601
	SigSchemeEcdsaSecp256r1Sha256 SignatureScheme = 0x0403
	SigSchemeEcdsaSecp384r1Sha384 SignatureScheme = 0x0503
	SigSchemeRsaPssRsaeSha256     SignatureScheme = 0x0804
	SigSchemeRsaPssRsaeSha384     SignatureScheme = 0x0805
)

func (scheme SignatureScheme) String() string {
	name, ok := signatureSchemes[scheme]
	if ok {
		return name
	}
	return fmt.Sprintf("%04x", int(scheme))
}

var signatureSchemes = map[SignatureScheme]string{
	SigSchemeRsaPkcs1Sha256:       "rsa_pkcs1_sha256",
	SigSchemeRsaPkcs1Sha384:       "rsa_pkcs1_sha384",
	SigSchemeRsaPkcs1Sha512:       "rsa_pkcs1_sha512",
	SigSchemeEcdsaSecp256r1Sha256: "ecdsa_secp256r1_sha256",
	SigSchemeEcdsaSecp384r1Sha384: "ecdsa_secp384r1_sha384",
	SigSchemeRsaPssRsaeSha256:     "rsa_pss_rsae_sha256",
	SigSchemeRsaPssRsaeSha384:     "rsa_pss_rsae_sha384",
}

// SupportedSignatureSchemes lists the signature schemes the client
// accepts for ServerKeyExchange signatures.
var SupportedSignatureSchemes = []SignatureScheme{
	SigSchemeEcdsaSecp256r1Sha256,
	SigSchemeRsaPssRsaeSha256,
	SigSchemeRsaPkcs1Sha256,
	SigSchemeEcdsaSecp384r1Sha384,
	SigSchemeRsaPssRsaeSha384,
	SigSchemeRsaPkcs1Sha384,
}

// Extension defines handshake extensions.
type Extension struct {
	Type ExtensionType
	Data []byte `tls:"u16"`
}

func (ext Extension) String() string {
	switch ext.Type {
	case ETSupportedGroups:
		arr, err := ext.Uint16List()
		if err != nil {
			return fmt.Sprintf("%v: ⚠ %x", ext.Type, ext.Data)
		}
		result := fmt.Sprintf("%v:", ext.Type)
		for _, v := range arr {
			result += fmt.Sprintf(" %v", NamedGroup(v))
		}
		return result

	case ETSignatureAlgorithms:
		arr, err := ext.Uint16List()
		if err != nil {
			return fmt.Sprintf("%v: ⚠ %x", ext.Type, ext.Data)
		}
		result := fmt.Sprintf("%v:", ext.Type)
		for _, v := range arr {
			result += fmt.Sprintf(" %v", SignatureScheme(v))
		}
		return result

	case ETServerName:
		if len(ext.Data) < 5 {
			return fmt.Sprintf("%v: ⚠ %x", ext.Type, ext.Data)
		}
		return fmt.Sprintf("%v: %s", ext.Type, ext.Data[5:])

	default:
		return fmt.Sprintf("%v[%d]", ext.Type, len(ext.Data))
	}
}

// Uint16List decodes the extension data as a u16 length-prefixed
// list of u16 values.
func (ext Extension) Uint16List() ([]uint16, error) {
	if len(ext.Data) < 2 {
		return nil, AlertDecodeError
	}
	ll := int(bo.Uint16(ext.Data))
	if 2+ll != len(ext.Data) || ll%2 != 0 {
		return nil, AlertDecodeError
	}
	var result []uint16
	for i := 2; i < 2+ll; i += 2 {
		result = append(result, bo.Uint16(ext.Data[i:]))
	}
	return result, nil
}

// ExtensionType defines the handshake protocol extensions.
type ExtensionType uint16

// ExtensionTypes.
const (
	ETServerName           ExtensionType = 0     // RFC 6066
	ETMaxFragmentLength    ExtensionType = 1     // RFC 6066
	ETStatusRequest        ExtensionType = 5     // RFC 6066
	ETSupportedGroups      ExtensionType = 10    // RFC 8422 7919
	ETECPointFormats       ExtensionType = 11    // RFC 8422
	ETSignatureAlgorithms  ExtensionType = 13    // RFC 8446
	ETALPN                 ExtensionType = 16    // RFC 7301
	ETSCT                  ExtensionType = 18    // RFC 6962
	ETExtendedMasterSecret ExtensionType = 23    // RFC 7627
	ETSessionTicket        ExtensionType = 35    // RFC 5077
	ETSupportedVersions    ExtensionType = 43    // RFC 8446
	ETRenegotiationInfo    ExtensionType = 65281 // RFC 5746
)

func (et ExtensionType) String() string {
	name, ok := extensionTypeNames[et]
	if ok {
		return name
	}
	return fmt.Sprintf("{ExtensionType %d}", et)
}

var extensionTypeNames = map[ExtensionType]string{
	ETServerName:           "server_name",
	ETMaxFragmentLength:    "max_fragment_length",
	ETStatusRequest:        "status_request",
	ETSupportedGroups:      "supported_groups",
	ETECPointFormats:       "ec_point_formats",
	ETSignatureAlgorithms:  "signature_algorithms",
	ETALPN:                 "application_layer_protocol_negotiation",
	ETSCT:                  "signed_certificate_timestamp",
	ETExtendedMasterSecret: "extended_master_secret",
	ETSessionTicket:        "session_ticket",
	ETSupportedVersions:    "supported_versions",
	ETRenegotiationInfo:    "renegotiation_info",
}
