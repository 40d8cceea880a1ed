//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"fmt"
)

// Powers holds this peer's XOR shares of the powers H^1, H^2, ... of
// the GHASH key H.
type Powers struct {
	peer *Peer
	h    []Block
}

// NewPowers creates the power shares from the peer's share of H.
func NewPowers(peer *Peer, h Block) *Powers {
	return &Powers{
		peer: peer,
		h:    []Block{h},
	}
}

// Len returns the number of computed powers.
func (p *Powers) Len() int {
	return len(p.h)
}

// Extend computes shares of the powers up to H^n. Both peers must
// call Extend with the same n. Even powers are local squares since
// squaring is linear in characteristic 2; each doubling round of odd
// powers takes one batched MulGF.
func (p *Powers) Extend(n int) error {
	if len(p.h) == 0 {
		return fmt.Errorf("GHASH powers: cleared")
	}
	for len(p.h) < n {
		k := len(p.h)
		max := 2 * k
		if max > n {
			max = n
		}
		next := make([]Block, max)
		copy(next, p.h)

		for i := k + 1; i <= max; i++ {
			if i%2 == 0 {
				next[i-1] = GFSquare(next[i/2-1])
			}
		}
		var values []Block
		var odd []int
		for i := k + 1; i <= max; i++ {
			if i%2 == 1 {
				odd = append(odd, i)
				// H^i = H^(i-1)·H
				if p.peer.Role == Sender {
					values = append(values, next[i-2], next[0])
				} else {
					values = append(values, next[0], next[i-2])
				}
			}
		}
		if len(odd) > 0 {
			cross, err := p.peer.MulGF(values)
			if err != nil {
				return fmt.Errorf("GHASH powers: %w", err)
			}
			for j, i := range odd {
				v := GFMul(next[i-2], next[0])
				next[i-1] = v.Xor(cross[2*j]).Xor(cross[2*j+1])
			}
		}
		p.h = next
	}
	return nil
}

// GHASH returns this peer's share of GHASH_H(blocks). The blocks are
// public. The function extends the powers as needed so both peers
// must call it with the same number of blocks.
func (p *Powers) GHASH(blocks []Block) (Block, error) {
	var result Block
	if err := p.Extend(len(blocks)); err != nil {
		return result, err
	}
	m := len(blocks)
	for i, x := range blocks {
		result = result.Xor(GFMul(x, p.h[m-1-i]))
	}
	return result, nil
}

// Zero clears the power shares.
func (p *Powers) Zero() {
	for i := range p.h {
		p.h[i] = Block{}
	}
	p.h = p.h[:0]
}

// GHASHBlocks formats the GCM authentication input: the additional
// data and the ciphertext, both zero padded to full blocks, followed
// by the block of their bit lengths.
func GHASHBlocks(aad, ciphertext []byte) []Block {
	var blocks []Block
	appendPadded := func(data []byte) {
		for len(data) > 0 {
			var b Block
			n := copy(b[:], data)
			data = data[n:]
			blocks = append(blocks, b)
		}
	}
	appendPadded(aad)
	appendPadded(ciphertext)

	var lengths Block
	putUint64(lengths[0:8], uint64(len(aad))*8)
	putUint64(lengths[8:16], uint64(len(ciphertext))*8)
	return append(blocks, lengths)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}
