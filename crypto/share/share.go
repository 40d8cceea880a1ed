//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package share implements two-party secret sharing primitives:
// XOR and additive shares, oblivious transfer, multiplicative to
// additive share conversion in the constant-time P-256 base field and
// in the GCM field, and the conversion of an elliptic curve point sum into
// additive shares of its x-coordinate.
package share

import (
	"crypto/elliptic"
	"crypto/subtle"
	"errors"
	"io"
	"math/big"
)

var (
	curve       = elliptic.P256()
	curveParams = curve.Params()
)

// ErrProtocol is returned when the peer's messages are malformed or
// inconsistent.
var ErrProtocol = errors.New("share: protocol violation")

// Split creates two XOR shares of value.
func Split(value []byte, r io.Reader) (a, b []byte, err error) {
	a = make([]byte, len(value))
	if _, err = io.ReadFull(r, a); err != nil {
		return nil, nil, err
	}
	b = make([]byte, len(value))
	subtle.XORBytes(b, value, a)
	return a, b, nil
}

// Xor sets dst = a ^ b. The arguments must have equal lengths.
func Xor(dst, a, b []byte) {
	if len(a) != len(b) || len(dst) < len(a) {
		panic("share: length mismatch")
	}
	subtle.XORBytes(dst, a, b)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
}

func zeroInt(v *big.Int) {
	if v == nil {
		return
	}
	clear(v.Bits())
	v.SetInt64(0)
}
