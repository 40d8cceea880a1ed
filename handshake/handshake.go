//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package handshake implements the TLS 1.2 ECDHE handshake where the
// premaster secret and all keys derived from it exist only as shares
// between the prover and the notary. The prover's Coordinator talks to
// the server and the notary's Verifier checks the server's messages
// independently before contributing its key shares.
package handshake

import (
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/crypto/share"
	"github.com/markkurossi/mpctls/crypto/tls"
	"go.uber.org/zap"
)

// State defines the handshake states.
type State int

// Handshake states.
const (
	Init State = iota
	ClientHelloSent
	ServerHelloReceived
	KeyShareDerived
	FinishedExchanged
	Established
	Aborted
)

func (s State) String() string {
	name, ok := stateNames[s]
	if ok {
		return name
	}
	return fmt.Sprintf("{State %d}", int(s))
}

var stateNames = map[State]string{
	Init:                "Init",
	ClientHelloSent:     "ClientHelloSent",
	ServerHelloReceived: "ServerHelloReceived",
	KeyShareDerived:     "KeyShareDerived",
	FinishedExchanged:   "FinishedExchanged",
	Established:         "Established",
	Aborted:             "Aborted",
}

// Config defines the handshake parameters.
type Config struct {
	// Roots are the trusted root certificates. If nil, the system
	// roots are used.
	Roots *x509.CertPool

	// Time returns the certificate verification time. If nil,
	// time.Now is used.
	Time func() time.Time

	// Rand is the randomness source. If nil, crypto/rand is used.
	Rand io.Reader

	Log *zap.Logger
}

func (cfg *Config) now() time.Time {
	if cfg.Time == nil {
		return time.Now()
	}
	return cfg.Time()
}

func (cfg *Config) log() *zap.Logger {
	if cfg.Log == nil {
		return zap.NewNop()
	}
	return cfg.Log
}

// serverFlight lists the server's first flight in order.
var serverFlight = []tls.HandshakeType{
	tls.HTServerHello,
	tls.HTCertificate,
	tls.HTServerKeyExchange,
	tls.HTServerHelloDone,
}

// flight verifies the server's first flight. Both parties run the
// same checks.
type flight struct {
	cfg          *Config
	serverName   string
	clientRandom []byte
	hello        *tls.ServerHello
	leaf         *x509.Certificate
	server       *share.Point
}

func (f *flight) process(idx int, msg []byte) error {
	switch serverFlight[idx] {
	case tls.HTServerHello:
		hello, err := tls.ParseServerHello(msg)
		if err != nil {
			return err
		}
		if hello.Version != tls.VersionTLS12 {
			return control.Abortf(control.UnsupportedVersion,
				"server selected %v", hello.Version)
		}
		if !hello.CipherSuite.Supported() {
			return control.Abortf(control.UnsupportedCipherSuite,
				"server selected %v", hello.CipherSuite)
		}
		if hello.CompressionMethod != 0 {
			return control.Abortf(control.ProtocolViolation,
				"server selected compression %d", hello.CompressionMethod)
		}
		f.hello = hello

	case tls.HTCertificate:
		chain, err := tls.ParseCertificate(msg)
		if err != nil {
			return control.Abort(control.CertificateInvalid, err)
		}
		leaf, err := tls.VerifyCertificates(chain, f.serverName,
			f.cfg.Roots, f.cfg.now())
		if err != nil {
			if control.Classify(err) == control.CertificateMismatch {
				return control.Abort(control.CertificateMismatch, err)
			}
			return control.Abort(control.CertificateInvalid, err)
		}
		if !keyMatchesSuite(leaf, f.hello.CipherSuite) {
			return control.Abortf(control.CertificateInvalid,
				"%v key for %v", leaf.PublicKeyAlgorithm, f.hello.CipherSuite)
		}
		f.leaf = leaf

	case tls.HTServerKeyExchange:
		kex, err := tls.ParseServerKeyExchange(msg)
		if err != nil {
			return err
		}
		if kex.Group != tls.GroupSecp256r1 {
			return control.Abortf(control.ProtocolViolation,
				"server selected group %v", kex.Group)
		}
		err = tls.VerifyServerKeyExchange(f.leaf, f.clientRandom,
			f.hello.Random[:], kex)
		if err != nil {
			return control.Abort(control.CertificateInvalid, err)
		}
		f.server, err = share.DecodePublicKey(kex.Public)
		if err != nil {
			return control.Abort(control.ProtocolViolation, err)
		}

	case tls.HTServerHelloDone:
		return tls.ParseServerHelloDone(msg)
	}
	return nil
}

func keyMatchesSuite(cert *x509.Certificate, suite tls.CipherSuite) bool {
	switch suite {
	case tls.CipherECDHEECDSAAes128GcmSha256:
		return cert.PublicKeyAlgorithm == x509.ECDSA
	case tls.CipherECDHERSAAes128GcmSha256:
		return cert.PublicKeyAlgorithm == x509.RSA
	default:
		return false
	}
}
