//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package control

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/markkurossi/mpc/p2p"
	"github.com/markkurossi/mpctls/crypto/share"
	"github.com/markkurossi/mpctls/crypto/tls"
	"github.com/markkurossi/mpctls/transcript"
)

var classifyTests = []struct {
	err    error
	reason AbortReason
}{
	{
		err:    nil,
		reason: 0,
	},
	{
		err:    LimitsExceeded,
		reason: LimitsExceeded,
	},
	{
		err:    fmt.Errorf("record: %w", Abort(BadRecordMAC, nil)),
		reason: BadRecordMAC,
	},
	{
		err:    fmt.Errorf("mpc: keystream: %w", share.ErrProtocol),
		reason: MPCFailure,
	},
	{
		err:    fmt.Errorf("read: %w", io.ErrUnexpectedEOF),
		reason: Transport,
	},
	{
		err:    os.ErrDeadlineExceeded,
		reason: Timeout,
	},
	{
		err:    context.DeadlineExceeded,
		reason: Timeout,
	},
	{
		err:    x509.HostnameError{Host: "example.com"},
		reason: CertificateMismatch,
	},
	{
		err:    x509.UnknownAuthorityError{},
		reason: CertificateInvalid,
	},
	{
		err:    tls.ErrBadSignature,
		reason: CertificateInvalid,
	},
	{
		err:    tls.AlertProtocolVersion,
		reason: UnsupportedVersion,
	},
	{
		err:    &tls.PeerAlert{Level: tls.AlertLevelFatal, Alert: tls.AlertBadRecordMAC},
		reason: BadRecordMAC,
	},
	{
		err:    tls.AlertDecodeError,
		reason: ProtocolViolation,
	},
}

func TestClassify(t *testing.T) {
	for i, test := range classifyTests {
		reason := Classify(test.err)
		if reason != test.reason {
			t.Errorf("test-%v: Classify(%v)=%v, expected %v",
				i, test.err, reason, test.reason)
		}
	}
}

func TestAbortReason(t *testing.T) {
	if s := CertificateMismatch.String(); s != "CertificateMismatch" {
		t.Errorf("String: %s", s)
	}
	if s := AbortReason(99).String(); s != "{AbortReason 99}" {
		t.Errorf("String: %s", s)
	}
	err := Abortf(LimitsExceeded, "sent %d bytes", 4097)
	if !errors.Is(err, LimitsExceeded) {
		t.Errorf("errors.Is failed for reason")
	}
	if errors.Is(err, PeerAbort) {
		t.Errorf("local abort matches PeerAbort")
	}
}

func newLinks() (*Link, *Link) {
	c0, c1 := p2p.Pipe()
	return NewLink(c0, nil), NewLink(c1, nil)
}

func TestLink(t *testing.T) {
	prover, notary := newLinks()

	ranges := []transcript.Range{
		{
			Direction: transcript.Sent,
			Length:    200,
		},
		{
			Direction: transcript.Received,
			Length:    1500,
		},
	}
	done := make(chan error)
	go func() {
		err := prover.Send(MsgHello, &Hello{
			Limits: Limits{
				MaxSent: 4096,
				MaxRecv: 16384,
			},
			ServerName: "example.com",
		})
		if err == nil {
			err = prover.Send(MsgAck, &Ack{})
		}
		if err == nil {
			err = prover.Send(MsgFinalize, &Finalize{
				Ranges: ranges,
			})
		}
		done <- err
	}()

	var hello Hello
	if err := notary.Expect(MsgHello, &hello); err != nil {
		t.Fatal(err)
	}
	if hello.ServerName != "example.com" || hello.Limits.MaxRecv != 16384 {
		t.Errorf("unexpected hello: %+v", hello)
	}
	var ack Ack
	if err := notary.Expect(MsgAck, &ack); err != nil {
		t.Fatal(err)
	}
	var fin Finalize
	if err := notary.Expect(MsgFinalize, &fin); err != nil {
		t.Fatal(err)
	}
	if len(fin.Ranges) != 2 || fin.Ranges[1] != ranges[1] {
		t.Errorf("unexpected ranges: %v", fin.Ranges)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestLinkAbort(t *testing.T) {
	prover, notary := newLinks()

	go notary.Abort(Abortf(LimitsExceeded, "requested %d bytes", 1<<20))

	var accept Accept
	err := prover.Expect(MsgAccept, &accept)
	if !errors.Is(err, LimitsExceeded) || !errors.Is(err, PeerAbort) {
		t.Fatalf("expected peer LimitsExceeded, got %v", err)
	}
	if Classify(err) != LimitsExceeded {
		t.Errorf("Classify: %v", Classify(err))
	}
}

func TestLinkUnexpected(t *testing.T) {
	prover, notary := newLinks()

	go prover.Send(MsgClose, &Ack{})

	var hello Hello
	err := notary.Expect(MsgHello, &hello)
	if Classify(err) != ProtocolViolation {
		t.Errorf("expected protocol violation, got %v", err)
	}
}
