//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestHandshakeType(t *testing.T) {
	if HTNewSessionTicket != 4 {
		t.Errorf("HTNewSessionTicket=%v, expected 4\n", HTNewSessionTicket)
	}
	if HTServerHelloDone != 14 {
		t.Errorf("HTServerHelloDone=%v, expected 14\n", HTServerHelloDone)
	}
	if HTFinished != 20 {
		t.Errorf("HTFinished=%v, expected 20\n", HTFinished)
	}
	if HTClientKeyExchange.String() != "client_key_exchange" {
		t.Errorf("HTClientKeyExchange=%v", HTClientKeyExchange)
	}
}

func TestCipherSuites(t *testing.T) {
	tests := []struct {
		cs        CipherSuite
		supported bool
	}{
		{CipherECDHEECDSAAes128GcmSha256, true},
		{CipherECDHERSAAes128GcmSha256, true},
		{CipherECDHEECDSAAes256GcmSha384, false},
		{0x1301, false},
	}
	for _, test := range tests {
		if test.cs.Supported() != test.supported {
			t.Errorf("%v: supported=%v, expected %v", test.cs,
				test.cs.Supported(), test.supported)
		}
	}
}

func TestAlert(t *testing.T) {
	alert, err := ParseAlert([]byte{2, 20})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(alert, AlertBadRecordMAC) {
		t.Errorf("alert %v does not match %v", alert, AlertBadRecordMAC)
	}
	if !bytes.Equal(alert.Bytes(), []byte{2, 20}) {
		t.Errorf("Bytes: %x", alert.Bytes())
	}
	_, err = ParseAlert([]byte{1})
	if err != AlertDecodeError {
		t.Errorf("truncated alert: got %v", err)
	}
}

func TestPRF(t *testing.T) {
	secret := []byte("secret")
	seed := []byte("seed")

	labelSeed := append([]byte("test label"), seed...)
	mac := hmac.New(sha256.New, secret)
	mac.Write(labelSeed)
	a1 := mac.Sum(nil)

	mac.Reset()
	mac.Write(a1)
	mac.Write(labelSeed)
	expected := mac.Sum(nil)

	out := PRF(secret, "test label", seed, 100)
	if len(out) != 100 {
		t.Fatalf("PRF returned %v bytes", len(out))
	}
	if !bytes.Equal(out[:32], expected) {
		t.Errorf("PRF:\n got %x\nwant %x", out[:32], expected)
	}
	short := PRF(secret, "test label", seed, 12)
	if !bytes.Equal(short, out[:12]) {
		t.Errorf("PRF prefix mismatch")
	}
}
