//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package transcript

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// The tree follows RFC 6962 section 2.1: leaf and node hashes are
// domain separated and the left subtree of n leaves holds the largest
// power of two smaller than n leaves.

// LeafHash returns the leaf hash of the range.
func LeafHash(r Range) Digest {
	var buf [1 + 1 + 8 + 8 + sha256.Size]byte
	buf[0] = 0x00
	buf[1] = byte(r.Direction)
	binary.BigEndian.PutUint64(buf[2:], r.Offset)
	binary.BigEndian.PutUint64(buf[10:], r.Length)
	copy(buf[18:], r.Commitment[:])
	return sha256.Sum256(buf[:])
}

func nodeHash(left, right Digest) Digest {
	var buf [1 + 2*sha256.Size]byte
	buf[0] = 0x01
	copy(buf[1:], left[:])
	copy(buf[1+sha256.Size:], right[:])
	return sha256.Sum256(buf[:])
}

func leafHashes(ranges []Range) []Digest {
	result := make([]Digest, len(ranges))
	for i, r := range ranges {
		result[i] = LeafHash(r)
	}
	return result
}

// split returns the largest power of two smaller than n.
func split(n int) int {
	k := 1
	for k<<1 < n {
		k <<= 1
	}
	return k
}

func treeHash(leaves []Digest) Digest {
	switch len(leaves) {
	case 0:
		return sha256.Sum256(nil)
	case 1:
		return leaves[0]
	}
	k := split(len(leaves))
	return nodeHash(treeHash(leaves[:k]), treeHash(leaves[k:]))
}

// RootOf returns the Merkle root over the ranges.
func RootOf(ranges []Range) Digest {
	return treeHash(leafHashes(ranges))
}

func auditPath(m int, leaves []Digest) []Digest {
	if len(leaves) <= 1 {
		return nil
	}
	k := split(len(leaves))
	if m < k {
		return append(auditPath(m, leaves[:k]), treeHash(leaves[k:]))
	}
	return append(auditPath(m-k, leaves[k:]), treeHash(leaves[:k]))
}

// VerifyOpening verifies the opened range data against its
// commitment and the inclusion of the range in the root.
func VerifyOpening(root Digest, o *Opening) error {
	if o.Index >= o.Count {
		return fmt.Errorf("%w: index %d of %d", ErrInvalidOpening, o.Index,
			o.Count)
	}
	if uint64(len(o.Data)) != o.Range.Length {
		return fmt.Errorf("%w: data length %d, range length %d",
			ErrInvalidOpening, len(o.Data), o.Range.Length)
	}
	c := Commit(o.Salt, o.Data)
	if subtle.ConstantTimeCompare(c[:], o.Range.Commitment[:]) != 1 {
		return fmt.Errorf("%w: commitment mismatch", ErrInvalidOpening)
	}

	fn := o.Index
	sn := o.Count - 1
	r := LeafHash(o.Range)

	for _, p := range o.Path {
		if sn == 0 {
			return fmt.Errorf("%w: path too long", ErrInvalidOpening)
		}
		if fn&1 == 1 || fn == sn {
			r = nodeHash(p, r)
			for fn&1 == 0 && fn != 0 {
				fn >>= 1
				sn >>= 1
			}
		} else {
			r = nodeHash(r, p)
		}
		fn >>= 1
		sn >>= 1
	}
	if sn != 0 {
		return fmt.Errorf("%w: path too short", ErrInvalidOpening)
	}
	if r != root {
		return fmt.Errorf("%w: root mismatch", ErrInvalidOpening)
	}
	return nil
}
