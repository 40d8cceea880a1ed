//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mpc

import (
	"github.com/markkurossi/mpctls/crypto/circuits"
	"github.com/markkurossi/mpctls/crypto/share"
)

// DirectionKeys holds one party's XOR shares of the AES-GCM key
// material of one record direction.
type DirectionKeys struct {
	key    [16]byte
	iv     [4]byte
	powers *share.Powers
}

// Zero clears the key shares.
func (dk *DirectionKeys) Zero() {
	share.Zero(dk.key[:])
	share.Zero(dk.iv[:])
	if dk.powers != nil {
		dk.powers.Zero()
	}
}

// KeyShares holds one party's shares of the TLS session keys. The
// shares are meaningful only together with the peer's shares, which
// are never available to this party.
type KeyShares struct {
	Client DirectionKeys
	Server DirectionKeys
	ms     [circuits.MSSize]byte
}

func newKeyShares(sp *share.Peer, keys []byte) *KeyShares {
	ks := new(KeyShares)

	copy(ks.Client.key[:], keys[circuits.OfsClientKey:])
	copy(ks.Server.key[:], keys[circuits.OfsServerKey:])
	copy(ks.Client.iv[:], keys[circuits.OfsClientIV:])
	copy(ks.Server.iv[:], keys[circuits.OfsServerIV:])
	copy(ks.ms[:], keys[circuits.OfsMS:])

	var h share.Block
	copy(h[:], keys[circuits.OfsClientH:])
	ks.Client.powers = share.NewPowers(sp, h)
	copy(h[:], keys[circuits.OfsServerH:])
	ks.Server.powers = share.NewPowers(sp, h)

	return ks
}

// Zero clears all key shares.
func (ks *KeyShares) Zero() {
	if ks == nil {
		return
	}
	ks.Client.Zero()
	ks.Server.Zero()
	share.Zero(ks.ms[:])
}

func (ks *KeyShares) String() string {
	return "KeyShares{client:AES-128-GCM, server:AES-128-GCM}"
}

func (dk *DirectionKeys) String() string {
	return "DirectionKeys{AES-128-GCM}"
}
