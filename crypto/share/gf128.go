//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"encoding/binary"
)

// Block is an element of GF(2^128) in the GCM bit order: the first
// bit of the byte string is the coefficient of x^0.
type Block [16]byte

// Xor returns b ^ o.
func (b Block) Xor(o Block) Block {
	var r Block
	for i := range r {
		r[i] = b[i] ^ o[i]
	}
	return r
}

// Bit returns the coefficient of x^i.
func (b Block) Bit(i int) uint {
	return uint(b[i/8]>>(7-i%8)) & 1
}

type gfElem struct {
	hi, lo uint64
}

func toElem(b Block) gfElem {
	return gfElem{
		hi: binary.BigEndian.Uint64(b[0:8]),
		lo: binary.BigEndian.Uint64(b[8:16]),
	}
}

func (e gfElem) block() Block {
	var b Block
	binary.BigEndian.PutUint64(b[0:8], e.hi)
	binary.BigEndian.PutUint64(b[8:16], e.lo)
	return b
}

// mulX multiplies the element by x.
func (e gfElem) mulX() gfElem {
	mask := -(e.lo & 1)
	return gfElem{
		hi: (e.hi >> 1) ^ (0xe100000000000000 & mask),
		lo: (e.lo >> 1) | (e.hi << 63),
	}
}

// GFMul multiplies two GCM field elements. The multiplication runs in
// constant time.
func GFMul(x, y Block) Block {
	xe := toElem(x)
	v := toElem(y)
	var z gfElem

	for i := 0; i < 128; i++ {
		var bit uint64
		if i < 64 {
			bit = (xe.hi >> (63 - i)) & 1
		} else {
			bit = (xe.lo >> (127 - i)) & 1
		}
		mask := -bit
		z.hi ^= v.hi & mask
		z.lo ^= v.lo & mask
		v = v.mulX()
	}
	return z.block()
}

// GFSquare returns x^2.
func GFSquare(x Block) Block {
	return GFMul(x, x)
}

// basisProducts returns a·x^i for i = 0...127.
func basisProducts(a Block) [128]Block {
	var result [128]Block
	v := toElem(a)
	for i := 0; i < 128; i++ {
		result[i] = v.block()
		v = v.mulX()
	}
	return result
}
