//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"fmt"
	"io"
	"math/big"

	"filippo.io/bigmod"
)

var (
	fieldP  = mustModulus(curveParams.P)
	scalarN = mustModulus(curveParams.N)

	// p-2 for the Fermat inverse.
	pMinus2 = new(big.Int).Sub(curveParams.P, big.NewInt(2)).Bytes()
)

func mustModulus(v *big.Int) *bigmod.Modulus {
	m, err := bigmod.NewModulus(v.Bytes())
	if err != nil {
		panic(err)
	}
	return m
}

// Element is an element of the P-256 base field. The arithmetic runs
// in constant time. Elements are immutable; the operations return new
// elements.
type Element struct {
	n *bigmod.Nat
}

// NewElement returns the zero element.
func NewElement() *Element {
	return &Element{
		n: bigmod.NewNat().ExpandFor(fieldP),
	}
}

// ElementFromBytes decodes the 32 byte big-endian encoding of a field
// element. The value must be smaller than the field prime.
func ElementFromBytes(b []byte) (*Element, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: field element length %d", ErrProtocol,
			len(b))
	}
	n, err := bigmod.NewNat().SetBytes(b, fieldP)
	if err != nil {
		return nil, fmt.Errorf("%w: field element out of range", ErrProtocol)
	}
	return &Element{
		n: n,
	}, nil
}

// ElementFromInt converts the curve coordinate v into a field element.
func ElementFromInt(v *big.Int) *Element {
	var buf [32]byte
	v.FillBytes(buf[:])
	e, err := ElementFromBytes(buf[:])
	if err != nil {
		panic(err)
	}
	Zero(buf[:])
	return e
}

// RandomElement returns a uniformly random field element.
func RandomElement(r io.Reader) (*Element, error) {
	var buf [32]byte
	defer Zero(buf[:])
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		n, err := bigmod.NewNat().SetBytes(buf[:], fieldP)
		if err == nil {
			return &Element{
				n: n,
			}, nil
		}
	}
}

// SplitField creates two additive shares of v.
func SplitField(v *Element, r io.Reader) (a, b *Element, err error) {
	a, err = RandomElement(r)
	if err != nil {
		return nil, nil, err
	}
	return a, v.Sub(a), nil
}

func (e *Element) clone() *bigmod.Nat {
	return bigmod.NewNat().ExpandFor(fieldP).Add(e.n, fieldP)
}

// Add returns e + o.
func (e *Element) Add(o *Element) *Element {
	return &Element{
		n: e.clone().Add(o.n, fieldP),
	}
}

// Sub returns e - o.
func (e *Element) Sub(o *Element) *Element {
	return &Element{
		n: e.clone().Sub(o.n, fieldP),
	}
}

// Mul returns e · o.
func (e *Element) Mul(o *Element) *Element {
	return &Element{
		n: e.clone().Mul(o.n, fieldP),
	}
}

// Neg returns -e.
func (e *Element) Neg() *Element {
	return NewElement().Sub(e)
}

// Double returns 2·e.
func (e *Element) Double() *Element {
	return e.Add(e)
}

// Inverse returns 1/e. The inverse of zero is zero.
func (e *Element) Inverse() *Element {
	return &Element{
		n: bigmod.NewNat().Exp(e.n, pMinus2, fieldP),
	}
}

// IsZero tests if e is zero.
func (e *Element) IsZero() bool {
	return e.n.IsZero() == 1
}

// Equal tests if e and o are equal.
func (e *Element) Equal(o *Element) bool {
	return e.n.Equal(o.n) == 1
}

// Bytes encodes the element as 32 big-endian bytes.
func (e *Element) Bytes() []byte {
	return e.n.Bytes(fieldP)
}

// Zero overwrites the element with zero.
func (e *Element) Zero() {
	if e == nil || e.n == nil {
		return
	}
	clear(e.n.Bits())
}

func (e *Element) String() string {
	return fmt.Sprintf("%x", e.Bytes())
}

// bits returns the bits of e, least significant first.
func (e *Element) bits() []bool {
	b := e.Bytes()
	bits := make([]bool, 256)
	for i := 0; i < 256; i++ {
		bits[i] = (b[31-i/8]>>(i%8))&1 == 1
	}
	Zero(b)
	return bits
}

// randomScalar returns a uniformly random non-zero scalar modulo the
// P-256 group order as 32 big-endian bytes.
func randomScalar(r io.Reader) ([]byte, error) {
	buf := make([]byte, 32)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		n, err := bigmod.NewNat().SetBytes(buf, scalarN)
		if err == nil && n.IsZero() == 0 {
			return buf, nil
		}
	}
}
