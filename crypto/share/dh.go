//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"crypto/elliptic"
	"fmt"
	"io"
	"math/big"
)

// DHPeer represents an MPC ECDHE peer with its share of the client
// private key.
type DHPeer struct {
	Name   string
	Curve  elliptic.Curve
	AlphaI []byte // Private key share: αᵢ, 32 bytes big-endian
	Pubkey *Point // Public key share: αᵢ·G
}

// NewDHPeer creates a new MPC DH peer with a random key share.
func NewDHPeer(name string, r io.Reader) (*DHPeer, error) {
	// Sample αᵢ ∈ [1, n)
	alphaI, err := randomScalar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate alphaI for %s: %w",
			name, err)
	}

	// Compute αᵢ·G
	pubX, pubY := curve.ScalarBaseMult(alphaI)

	return &DHPeer{
		Name:   name,
		Curve:  curve,
		AlphaI: alphaI,
		Pubkey: &Point{
			X: pubX,
			Y: pubY,
		},
	}, nil
}

// ComputePartialDH computes αᵢ·(β·G) - this peer's contribution to
// the DH result.
func (p *DHPeer) ComputePartialDH(peerPublicKey *Point) *Point {
	partialX, partialY := p.Curve.ScalarMult(peerPublicKey.X,
		peerPublicKey.Y, p.AlphaI)

	return &Point{
		X: partialX,
		Y: partialY,
	}
}

// Zero clears the private key share.
func (p *DHPeer) Zero() {
	Zero(p.AlphaI)
}

// DecodePublicKey decodes the serialized P-256 public key. The public
// key must be encoded in the SEC 1 uncompressed point format and it
// must be on the curve.
func DecodePublicKey(data []byte) (*Point, error) {
	if len(data) != 65 || data[0] != 0x04 {
		return nil, fmt.Errorf("%w: invalid public key encoding",
			ErrProtocol)
	}
	x := new(big.Int).SetBytes(data[1:33])
	y := new(big.Int).SetBytes(data[33:65])
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("%w: public key not on curve", ErrProtocol)
	}
	return &Point{
		X: x,
		Y: y,
	}, nil
}

// Point represents an elliptic curve point.
type Point struct {
	X, Y *big.Int
}

// Add returns p + o.
func (p *Point) Add(o *Point) *Point {
	x, y := curve.Add(p.X, p.Y, o.X, o.Y)
	return &Point{
		X: x,
		Y: y,
	}
}

// Bytes encodes the point in the SEC 1 uncompressed format.
func (p *Point) Bytes() []byte {
	pubkey := make([]byte, 65)
	pubkey[0] = 0x04
	p.X.FillBytes(pubkey[1:33])
	p.Y.FillBytes(pubkey[33:65])
	return pubkey
}

// Zero clears the point coordinates.
func (p *Point) Zero() {
	zeroInt(p.X)
	zeroInt(p.Y)
}
