//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package handshake

import (
	"bytes"
	"crypto/rand"
	stdtls "crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/markkurossi/mpc/p2p"
	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/crypto/tls"
	"github.com/markkurossi/mpctls/mpc"
	"github.com/markkurossi/mpctls/pki"
	"github.com/markkurossi/mpctls/record"
	"github.com/markkurossi/mpctls/transcript"
)

type env struct {
	cfg    *Config
	nPeer  *mpc.Peer
	pPeer  *mpc.Peer
	nLink  *control.Link
	pLink  *control.Link
	client net.Conn
}

// newEnv creates the MPC peers and starts a TLS 1.2 echo server for
// example.com.
func newEnv(t *testing.T) *env {
	ca, err := pki.NewCA("Test")
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := ca.Issue("example.com")
	if err != nil {
		t.Fatal(err)
	}

	cConn, sConn := net.Pipe()
	t.Cleanup(func() {
		cConn.Close()
		sConn.Close()
	})
	server := stdtls.Server(sConn, &stdtls.Config{
		Certificates: []stdtls.Certificate{{
			Certificate: leaf.Chain,
			PrivateKey:  leaf.Key,
		}},
		MinVersion: stdtls.VersionTLS12,
		MaxVersion: stdtls.VersionTLS12,
		CipherSuites: []uint16{
			stdtls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	})
	go func() {
		if server.Handshake() != nil {
			return
		}
		io.Copy(server, server)
	}()

	nConn, pConn := p2p.Pipe()
	e := &env{
		cfg: &Config{
			Roots: ca.Pool(),
		},
		nLink:  control.NewLink(nConn, nil),
		pLink:  control.NewLink(pConn, nil),
		client: cConn,
	}
	var wg sync.WaitGroup
	var pErr error
	wg.Go(func() {
		e.pPeer, pErr = mpc.NewPeer(mpc.Prover, pConn, rand.Reader, nil)
	})
	e.nPeer, err = mpc.NewPeer(mpc.Notary, nConn, rand.Reader, nil)
	wg.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if pErr != nil {
		t.Fatal(pErr)
	}
	return e
}

func serve(l *record.NotaryLayer, link *control.Link) error {
	for {
		t, data, err := link.Receive()
		if err != nil {
			return err
		}
		switch t {
		case control.MsgEncrypt:
			var req control.Encrypt
			if err = control.Decode(data, &req); err == nil {
				err = l.Encrypt(&req)
			}
		case control.MsgDecrypt:
			var req control.Decrypt
			if err = control.Decode(data, &req); err == nil {
				_, err = l.Decrypt(&req)
			}
		case control.MsgClose:
			return nil
		default:
			err = control.Abortf(control.ProtocolViolation, "unexpected %v", t)
		}
		if err != nil {
			return err
		}
	}
}

func TestHandshake(t *testing.T) {
	e := newEnv(t)

	limits := control.Limits{
		MaxSent: 4096,
		MaxRecv: 4096,
	}
	verifier := NewVerifier(e.nPeer, e.nLink, e.cfg)
	done := make(chan error, 1)
	go func() {
		ns, err := verifier.Verify("example.com")
		if err != nil {
			done <- err
			return
		}
		ns.Layer.Commit(limits)
		done <- serve(ns.Layer, e.nLink)
	}()

	coordinator := NewCoordinator(e.pPeer, e.pLink, e.cfg)
	session, err := coordinator.Handshake(e.client, "example.com")
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if coordinator.State() != Established {
		t.Errorf("state %v, expected %v", coordinator.State(), Established)
	}
	if session.CipherSuite != tls.CipherECDHEECDSAAes128GcmSha256 {
		t.Errorf("unexpected cipher suite %v", session.CipherSuite)
	}
	if session.Certificate.Subject.CommonName != "example.com" {
		t.Errorf("unexpected certificate %v", session.Certificate.Subject)
	}

	builder, err := transcript.NewBuilder(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	session.Layer.Commit(builder, limits)

	msg := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if err := session.Layer.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var echo []byte
	for len(echo) < len(msg) {
		data, err := session.Layer.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		echo = append(echo, data...)
	}
	if !bytes.Equal(echo, msg) {
		t.Errorf("echo mismatch: %q", echo)
	}
	if err := e.pLink.Send(control.MsgClose, &control.Ack{}); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Errorf("notary: %v", err)
	}
	if verifier.State() != Established {
		t.Errorf("verifier state %v", verifier.State())
	}
	if err := transcript.CheckPartition(builder.Ranges(),
		uint64(len(msg)), uint64(len(msg))); err != nil {
		t.Errorf("CheckPartition: %v", err)
	}
}

func TestCertificateMismatch(t *testing.T) {
	e := newEnv(t)

	verifier := NewVerifier(e.nPeer, e.nLink, e.cfg)
	done := make(chan error, 1)
	go func() {
		_, err := verifier.Verify("other.com")
		done <- err
	}()

	coordinator := NewCoordinator(e.pPeer, e.pLink, e.cfg)
	_, err := coordinator.Handshake(e.client, "other.com")
	if control.Classify(err) != control.CertificateMismatch {
		t.Fatalf("expected CertificateMismatch, got %v", err)
	}
	if coordinator.State() != Aborted {
		t.Errorf("state %v, expected %v", coordinator.State(), Aborted)
	}
	e.pLink.Abort(err)

	err = <-done
	if !errors.Is(err, control.PeerAbort) {
		t.Errorf("expected peer abort, got %v", err)
	}
	if control.Classify(err) != control.CertificateMismatch {
		t.Errorf("notary: expected CertificateMismatch, got %v", err)
	}
	if verifier.State() != Aborted {
		t.Errorf("verifier state %v", verifier.State())
	}
}

func TestHelloRandom(t *testing.T) {
	var random [32]byte
	rand.Read(random[:])
	hello, err := tls.NewClientHello(random, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := hello.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	r, err := helloRandom(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r, random[:]) {
		t.Errorf("helloRandom: got %x, expected %x", r, random)
	}
	if _, err := helloRandom(msg[:20]); err == nil {
		t.Errorf("short client_hello accepted")
	}
}
