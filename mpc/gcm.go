//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mpc

import (
	"encoding/binary"
	"fmt"

	"github.com/markkurossi/mpctls/crypto/circuits"
	"github.com/markkurossi/mpctls/crypto/share"
)

// BlockSize is the AES block size.
const BlockSize = circuits.BlockSize

// Blocks returns the number of keystream blocks for n bytes.
func Blocks(n int) int {
	return (n + BlockSize - 1) / BlockSize
}

// Keystream computes the AES-GCM counter blocks for one record with
// the explicit nonce. The first block is E(J0), the tag mask, and the
// following n blocks are the keystream for the record's payload.
//
// Both parties hold XOR shares of the blocks. If masked is false, the
// notary uses zero masks for the keystream blocks and the prover
// learns the keystream. E(J0) stays shared in both cases. The
// function returns this party's keystream share and E(J0) share.
func (p *Peer) Keystream(dk *DirectionKeys, explicitNonce []byte, n int,
	masked bool) ([]byte, share.Block, error) {

	var ej0 share.Block

	if len(explicitNonce) != 8 {
		return nil, ej0, fmt.Errorf("mpc: keystream: invalid nonce")
	}
	total := n + 1
	result := make([]byte, 0, total*BlockSize)

	for ofs := 0; ofs < total; ofs += circuits.MaxKeystreamBlocks {
		m := min(total-ofs, circuits.MaxKeystreamBlocks)
		c, err := circuits.Keystream(m)
		if err != nil {
			return nil, ej0, err
		}
		mask, err := p.mask(m * BlockSize)
		if err != nil {
			return nil, ej0, err
		}

		var out []byte
		if p.Role == Notary {
			counters := make([]byte, 0, m*circuits.CounterSize)
			for i := 0; i < m; i++ {
				var ctr [4]byte
				binary.BigEndian.PutUint32(ctr[:], uint32(ofs+i+1))
				counters = append(counters, explicitNonce...)
				counters = append(counters, ctr[:]...)
			}
			if !masked {
				for i := 0; i < m; i++ {
					if ofs+i > 0 {
						share.Zero(mask[i*BlockSize : (i+1)*BlockSize])
					}
				}
			}
			out, err = p.run("keystream", c, dk.key[:], dk.iv[:], counters,
				mask)
		} else {
			out, err = p.run("keystream", c, dk.key[:], dk.iv[:], mask)
		}
		if err != nil {
			return nil, ej0, err
		}
		result = append(result, p.unmask(out, mask)...)
	}
	copy(ej0[:], result[:BlockSize])
	return result[BlockSize:], ej0, nil
}

// TagShare computes this party's share of the GCM authentication tag
// over the additional data and the ciphertext. Both are public to
// both parties.
func (p *Peer) TagShare(dk *DirectionKeys, aad, ciphertext []byte,
	ej0 share.Block) (share.Block, error) {

	s, err := dk.powers.GHASH(share.GHASHBlocks(aad, ciphertext))
	if err != nil {
		return s, fmt.Errorf("mpc: tag: %w", err)
	}
	return s.Xor(ej0), nil
}

// ExchangeTag sends this party's tag share to the peer and returns
// the full tag.
func (p *Peer) ExchangeTag(tag share.Block) (share.Block, error) {
	var result share.Block
	data, err := p.exchange(tag[:])
	if err != nil {
		return result, err
	}
	if len(data) != len(result) {
		return result, fmt.Errorf("%w: tag share length %d",
			share.ErrProtocol, len(data))
	}
	copy(result[:], data)
	return result.Xor(tag), nil
}
