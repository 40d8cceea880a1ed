//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"crypto/hmac"
	"crypto/sha256"
)

// PRF labels.
const (
	LabelMasterSecret   = "master secret"
	LabelKeyExpansion   = "key expansion"
	LabelClientFinished = "client finished"
	LabelServerFinished = "server finished"
)

// PRF computes the TLS 1.2 PRF with SHA-256 (RFC 5246 section 5). It
// is the plaintext reference for the MPC key schedule.
func PRF(secret []byte, label string, seed []byte, length int) []byte {
	labelSeed := make([]byte, 0, len(label)+len(seed))
	labelSeed = append(labelSeed, label...)
	labelSeed = append(labelSeed, seed...)

	mac := hmac.New(sha256.New, secret)
	mac.Write(labelSeed)
	a := mac.Sum(nil)

	result := make([]byte, 0, length+sha256.Size)
	for len(result) < length {
		mac.Reset()
		mac.Write(a)
		mac.Write(labelSeed)
		result = mac.Sum(result)

		mac.Reset()
		mac.Write(a)
		a = mac.Sum(a[:0])
	}
	return result[:length]
}

// KeyBlock holds the AES-128-GCM key material of a TLS 1.2 session.
type KeyBlock struct {
	ClientKey []byte
	ServerKey []byte
	ClientIV  []byte
	ServerIV  []byte
}

// KeyBlockLen is the length of the AES-128-GCM key block.
const KeyBlockLen = 2*16 + 2*4

// MasterSecret derives the master secret from the premaster secret.
func MasterSecret(pms, clientRandom, serverRandom []byte) []byte {
	seed := append(append([]byte(nil), clientRandom...), serverRandom...)
	return PRF(pms, LabelMasterSecret, seed, 48)
}

// Keys derives the AES-128-GCM key block from the master secret.
func Keys(ms, clientRandom, serverRandom []byte) *KeyBlock {
	seed := append(append([]byte(nil), serverRandom...), clientRandom...)
	block := PRF(ms, LabelKeyExpansion, seed, KeyBlockLen)
	return &KeyBlock{
		ClientKey: block[0:16],
		ServerKey: block[16:32],
		ClientIV:  block[32:36],
		ServerIV:  block[36:40],
	}
}

// VerifyData computes the Finished verify_data.
func VerifyData(ms []byte, label string, handshakeHash []byte) []byte {
	return PRF(ms, label, handshakeHash, VerifyDataLen)
}
