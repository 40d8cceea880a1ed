//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package circuits compiles the TLS 1.2 circuits that the prover and
// the notary evaluate with garbled circuits: the key schedule, the
// finished verify data, and the AES counter mode keystream. The
// circuits are MPCL programs compiled with the MPC compiler against
// its crypto packages.
//
// All circuits take a Garbler and an Evaluator struct argument. The
// secret outputs are masked with a random mask from each party so
// that neither party learns the output from the circuit result.
package circuits

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/big"
	"sync"
	"text/template"

	"github.com/markkurossi/mpc/circuit"
	"github.com/markkurossi/mpc/compiler"
	"github.com/markkurossi/mpc/compiler/utils"
)

// Session keys output layout.
const (
	OfsClientKey    = 0
	OfsServerKey    = 16
	OfsClientIV     = 32
	OfsServerIV     = 36
	OfsClientH      = 40
	OfsServerH      = 56
	OfsMS           = 72
	MSSize          = 48
	SessionKeysSize = OfsMS + MSSize
)

const (
	// RandomSize is the size of the client and server randoms.
	RandomSize = 32

	// FinishedSeedSize is the size of the finished label and the
	// handshake hash.
	FinishedSeedSize = 15 + 32

	// VerifyDataSize is the size of the finished verify data.
	VerifyDataSize = 12

	// CounterSize is the size of the per-block counter input: the 8
	// byte explicit nonce and the 32 bit block counter.
	CounterSize = 12

	// BlockSize is the AES block size.
	BlockSize = 16

	// MaxKeystreamBlocks is the maximum number of blocks in one
	// keystream circuit.
	MaxKeystreamBlocks = 16
)

var (
	//go:embed session_keys.mpcl
	sessionKeysSource string

	//go:embed finished.mpcl
	finishedSource string

	//go:embed keystream.mpcl.tmpl
	keystreamSource string

	keystreamTemplate = template.Must(
		template.New("keystream").Parse(keystreamSource))
)

var (
	sessionKeys = sync.OnceValues(func() (*circuit.Circuit, error) {
		return compile("session keys", sessionKeysSource)
	})
	finished = sync.OnceValues(func() (*circuit.Circuit, error) {
		return compile("finished", finishedSource)
	})
	keystream [MaxKeystreamBlocks]func() (*circuit.Circuit, error)
)

func init() {
	for i := range keystream {
		n := i + 1
		keystream[i] = sync.OnceValues(func() (*circuit.Circuit, error) {
			var src bytes.Buffer
			err := keystreamTemplate.Execute(&src, map[string]int{
				"Blocks":       n,
				"Size":         n * BlockSize,
				"CounterSize":  CounterSize,
				"CountersSize": n * CounterSize,
			})
			if err != nil {
				return nil, err
			}
			return compile(fmt.Sprintf("keystream(%d)", n), src.String())
		})
	}
}

func compile(name, source string) (*circuit.Circuit, error) {
	params := utils.NewParams()
	defer params.Close()
	params.MPCLCErrorLoc = true
	params.OptPruneGates = true
	params.Warn.Unreachable = false

	circ, _, err := compiler.New(params).Compile(source, nil)
	if err != nil {
		return nil, fmt.Errorf("circuits: %s: %w", name, err)
	}
	return circ, nil
}

// SessionKeys returns the TLS key schedule circuit.
//
//	Garbler:   pms[32], clientRandom[32], serverRandom[32], mask[120]
//	Evaluator: pms[32], mask[120]
//
// The pms inputs are additive shares modulo the P-256 prime. The
// output is the key block, the client and server GHASH keys, and the
// master secret, XOR both masks.
func SessionKeys() (*circuit.Circuit, error) {
	return sessionKeys()
}

// Finished returns the finished verify data circuit.
//
//	Garbler:   ms[48], seed[47]
//	Evaluator: ms[48]
//
// The ms inputs are XOR shares of the master secret and the seed is
// the finished label and the handshake hash. The output is the
// unmasked verify data.
func Finished() (*circuit.Circuit, error) {
	return finished()
}

// Keystream returns the AES counter mode circuit for n blocks.
//
//	Garbler:   key[16], iv[4], counters[n*12], mask[n*16]
//	Evaluator: key[16], iv[4], mask[n*16]
//
// The key and iv inputs are XOR shares. The output is the keystream
// XOR both masks.
func Keystream(n int) (*circuit.Circuit, error) {
	if n < 1 || n > MaxKeystreamBlocks {
		return nil, fmt.Errorf("circuits: invalid keystream blocks: %d", n)
	}
	return keystream[n-1]()
}

// Input encodes the field values of the compound argument arg. The
// fields are byte arrays and their values must have the field sizes.
func Input(arg circuit.IOArg, fields ...[]byte) (*big.Int, error) {
	if len(fields) != len(arg.Compound) {
		return nil, fmt.Errorf("circuits: %d values for %d fields",
			len(fields), len(arg.Compound))
	}
	values := make([]interface{}, len(fields))
	for i, field := range fields {
		size := int(arg.Compound[i].Type.Bits) / 8
		if len(field) != size {
			return nil, fmt.Errorf("circuits: %s: got %d bytes, expected %d",
				arg.Compound[i].Name, len(field), size)
		}
		values[i] = field
	}
	return arg.Set(nil, values)
}

// Bytes decodes the byte array output value v of n bytes.
func Bytes(v *big.Int, n int) []byte {
	result := make([]byte, n)
	for i := range result {
		for bit := 0; bit < 8; bit++ {
			result[i] |= byte(v.Bit(i*8+bit)) << bit
		}
	}
	return result
}
