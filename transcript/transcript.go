//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package transcript implements salted commitments to the sent and
// received application data and a Merkle tree over them. A range can
// be opened to a verifier who checks it against the tree root; the
// other ranges stay hidden behind their salted commitments.
package transcript

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Direction defines the data direction from the prover's point of
// view.
type Direction uint8

// Data directions.
const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	default:
		return fmt.Sprintf("{Direction %d}", d)
	}
}

// Digest is a SHA-256 digest.
type Digest [sha256.Size]byte

// Range is a commitment to a contiguous byte range of one direction.
type Range struct {
	Direction  Direction
	Offset     uint64
	Length     uint64
	Commitment Digest
}

func (r Range) String() string {
	return fmt.Sprintf("%v[%d:%d]", r.Direction, r.Offset, r.Offset+r.Length)
}

// Errors.
var (
	ErrPartition      = errors.New("transcript: ranges do not partition data")
	ErrInvalidOpening = errors.New("transcript: invalid opening")
)

// SeedSize is the size of the commitment seed.
const SeedSize = 32

// Builder accumulates the transcript commitments. The ranges are
// append-only.
type Builder struct {
	seed   [SeedSize]byte
	ranges []Range
	data   [][]byte
	totals [2]uint64
}

// NewBuilder creates a builder with a random commitment seed.
func NewBuilder(r io.Reader) (*Builder, error) {
	b := new(Builder)
	if _, err := io.ReadFull(r, b.seed[:]); err != nil {
		return nil, err
	}
	return b, nil
}

// Record appends a range for data and returns it. Empty data creates
// no range.
func (b *Builder) Record(dir Direction, data []byte) Range {
	if len(data) == 0 {
		return Range{
			Direction: dir,
			Offset:    b.totals[dir&1],
		}
	}
	salt := b.salt(len(b.ranges))
	r := Range{
		Direction:  dir,
		Offset:     b.totals[dir&1],
		Length:     uint64(len(data)),
		Commitment: Commit(salt, data),
	}
	b.totals[dir&1] += r.Length
	b.ranges = append(b.ranges, r)
	b.data = append(b.data, append([]byte(nil), data...))

	return r
}

func (b *Builder) salt(index int) Digest {
	var info [5 + 8]byte
	copy(info[:], "range")
	binary.BigEndian.PutUint64(info[5:], uint64(index))

	var salt Digest
	kdf := hkdf.New(sha256.New, b.seed[:], nil, info[:])
	if _, err := io.ReadFull(kdf, salt[:]); err != nil {
		panic(err)
	}
	return salt
}

// Totals returns the number of sent and received bytes.
func (b *Builder) Totals() (sent, received uint64) {
	return b.totals[Sent], b.totals[Received]
}

// Ranges returns the recorded ranges in chronological order.
func (b *Builder) Ranges() []Range {
	return append([]Range(nil), b.ranges...)
}

// Root returns the Merkle root over the recorded ranges.
func (b *Builder) Root() Digest {
	return RootOf(b.ranges)
}

// Open creates the opening of the range index.
func (b *Builder) Open(index int) (*Opening, error) {
	if index < 0 || index >= len(b.ranges) {
		return nil, fmt.Errorf("transcript: range %d out of bounds", index)
	}
	leaves := leafHashes(b.ranges)
	return &Opening{
		Index: uint64(index),
		Count: uint64(len(b.ranges)),
		Range: b.ranges[index],
		Salt:  b.salt(index),
		Data:  append([]byte(nil), b.data[index]...),
		Path:  auditPath(index, leaves),
	}, nil
}

// Opening discloses one range and proves its inclusion in the root.
type Opening struct {
	Index uint64
	Count uint64
	Range Range
	Salt  Digest
	Data  []byte
	Path  []Digest
}

// Commit computes the salted commitment SHA-256(salt || data).
func Commit(salt Digest, data []byte) Digest {
	h := sha256.New()
	h.Write(salt[:])
	h.Write(data)
	var result Digest
	h.Sum(result[:0])
	return result
}

// CheckPartition verifies that the ranges, in chronological order,
// cover [0, sent) and [0, received) of their directions without gaps
// or overlaps.
func CheckPartition(ranges []Range, sent, received uint64) error {
	var next [2]uint64
	for i, r := range ranges {
		if r.Direction != Sent && r.Direction != Received {
			return fmt.Errorf("%w: range %d: invalid direction %v",
				ErrPartition, i, r.Direction)
		}
		if r.Length == 0 {
			return fmt.Errorf("%w: range %d: empty", ErrPartition, i)
		}
		if r.Offset != next[r.Direction] {
			return fmt.Errorf("%w: range %d: offset %d, expected %d",
				ErrPartition, i, r.Offset, next[r.Direction])
		}
		next[r.Direction] += r.Length
	}
	if next[Sent] != sent || next[Received] != received {
		return fmt.Errorf("%w: totals %d/%d, expected %d/%d", ErrPartition,
			next[Sent], next[Received], sent, received)
	}
	return nil
}
