//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/markkurossi/mpctls/pki"
	"github.com/markkurossi/mpctls/transcript"
	"github.com/markkurossi/mpctls/wire"
)

// ErrInvalidSignature is returned when the attestation signature does
// not verify.
var ErrInvalidSignature = errors.New("session: invalid attestation signature")

// Statement is the content the notary signs.
type Statement struct {
	SessionID   uuid.UUID
	Root        transcript.Digest
	Limits      Limits
	Sent        uint64
	Received    uint64
	ServerName  string `tls:"u16"`
	Time        uint64
	NotaryKeyID pki.KeyID
}

// Digest returns the SHA-256 digest of the statement's wire
// encoding.
func (st *Statement) Digest() ([]byte, error) {
	data, err := wire.Marshal(st)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Attestation is the notary's signed statement about a session. It
// can be verified offline with the notary's public key.
type Attestation struct {
	Statement
	Signature []byte `tls:"u16"`
}

// Sign signs the statement with the notary key.
func Sign(st *Statement, key *ecdsa.PrivateKey, r io.Reader) (
	*Attestation, error) {

	digest, err := st.Digest()
	if err != nil {
		return nil, err
	}
	sig, err := ecdsa.SignASN1(r, key, digest)
	if err != nil {
		return nil, err
	}
	return &Attestation{
		Statement: *st,
		Signature: sig,
	}, nil
}

// Verify verifies the attestation signature with the notary's public
// key.
func (att *Attestation) Verify(pub *ecdsa.PublicKey) error {
	id, err := pki.NewKeyID(pub)
	if err != nil {
		return err
	}
	if id != att.NotaryKeyID {
		return fmt.Errorf("%w: key %v, expected %v", ErrInvalidSignature,
			id, att.NotaryKeyID)
	}
	digest, err := att.Digest()
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(pub, digest, att.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyOpening verifies that the opening is committed to by the
// attestation.
func (att *Attestation) VerifyOpening(o *transcript.Opening) error {
	return transcript.VerifyOpening(att.Root, o)
}

// Marshal encodes the attestation.
func (att *Attestation) Marshal() ([]byte, error) {
	return wire.Marshal(att)
}

// ParseAttestation decodes an encoded attestation.
func ParseAttestation(data []byte) (*Attestation, error) {
	att := new(Attestation)
	n, err := wire.UnmarshalFrom(data, att)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("session: trailing data after attestation")
	}
	return att, nil
}

func (att *Attestation) String() string {
	return fmt.Sprintf("%v %s: sent=%d, recv=%d, root=%x, notary=%v, %v",
		att.SessionID, att.ServerName, att.Sent, att.Received, att.Root[:8],
		att.NotaryKeyID, time.Unix(int64(att.Time), 0).UTC().Format(time.RFC3339))
}
