//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuits

import (
	"bytes"
	"crypto/aes"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/markkurossi/mpc/circuit"
	"github.com/markkurossi/mpctls/crypto/tls"
)

func randomBytes(t *testing.T, n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

func xor(values ...[]byte) []byte {
	result := make([]byte, len(values[0]))
	for _, v := range values {
		for i := range result {
			result[i] ^= v[i]
		}
	}
	return result
}

// compute evaluates the circuit in the clear with the garbler's and
// evaluator's field values and returns the first output.
func compute(t *testing.T, circ *circuit.Circuit, g, e [][]byte) []byte {
	t.Helper()
	var inputs []*big.Int
	for i, fields := range [][][]byte{g, e} {
		arg := circ.Inputs[i]
		if len(fields) != len(arg.Compound) {
			t.Fatalf("input %d: got %d fields, expected %d", i, len(fields),
				len(arg.Compound))
		}
		for j, field := range fields {
			v, err := arg.Compound[j].Set(nil, []interface{}{field})
			if err != nil {
				t.Fatalf("%s: %v", arg.Compound[j].Name, err)
			}
			inputs = append(inputs, v)
		}
	}
	out, err := circ.Compute(inputs)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return Bytes(out[0], int(circ.Outputs[0].Type.Bits)/8)
}

func fieldBytes(v *big.Int) []byte {
	return v.FillBytes(make([]byte, 32))
}

func TestSessionKeys(t *testing.T) {
	circ, err := SessionKeys()
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("session keys: %v gates, %v non-XOR", circ.NumGates,
		circ.Stats.NumNonXOR())

	p := elliptic.P256().Params().P
	random, err := rand.Int(rand.Reader, p)
	if err != nil {
		t.Fatal(err)
	}
	share, err := rand.Int(rand.Reader, p)
	if err != nil {
		t.Fatal(err)
	}
	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))

	tests := []struct {
		name string
		a, b *big.Int
	}{
		{
			name: "random",
			a:    share,
			b:    new(big.Int).Mod(new(big.Int).Sub(random, share), p),
		},
		{
			name: "no wrap",
			a:    big.NewInt(0),
			b:    random,
		},
		{
			name: "wrap",
			a:    pMinus1,
			b:    big.NewInt(2),
		},
		{
			name: "sum p",
			a:    pMinus1,
			b:    big.NewInt(1),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pms := fieldBytes(new(big.Int).Mod(
				new(big.Int).Add(test.a, test.b), p))
			cr := randomBytes(t, RandomSize)
			sr := randomBytes(t, RandomSize)
			gMask := randomBytes(t, SessionKeysSize)
			eMask := randomBytes(t, SessionKeysSize)

			out := compute(t, circ,
				[][]byte{fieldBytes(test.a), cr, sr, gMask},
				[][]byte{fieldBytes(test.b), eMask})
			keys := xor(out, gMask, eMask)

			ms := tls.MasterSecret(pms, cr, sr)
			kb := tls.Keys(ms, cr, sr)

			var zero [16]byte
			hc := make([]byte, 16)
			hs := make([]byte, 16)
			block, err := aes.NewCipher(kb.ClientKey)
			if err != nil {
				t.Fatal(err)
			}
			block.Encrypt(hc, zero[:])
			block, err = aes.NewCipher(kb.ServerKey)
			if err != nil {
				t.Fatal(err)
			}
			block.Encrypt(hs, zero[:])

			expected := [][2][]byte{
				{keys[OfsClientKey:OfsServerKey], kb.ClientKey},
				{keys[OfsServerKey:OfsClientIV], kb.ServerKey},
				{keys[OfsClientIV:OfsServerIV], kb.ClientIV},
				{keys[OfsServerIV:OfsClientH], kb.ServerIV},
				{keys[OfsClientH:OfsServerH], hc},
				{keys[OfsServerH:OfsMS], hs},
				{keys[OfsMS:], ms},
			}
			for i, e := range expected {
				if !bytes.Equal(e[0], e[1]) {
					t.Errorf("output %d: got %x, expected %x", i, e[0], e[1])
				}
			}
			if bytes.Equal(out[OfsMS:], ms) {
				t.Errorf("master secret output is not masked")
			}
		})
	}
}

func TestFinished(t *testing.T) {
	circ, err := Finished()
	if err != nil {
		t.Fatal(err)
	}
	ms := randomBytes(t, MSSize)
	gms := randomBytes(t, MSSize)
	ems := xor(ms, gms)
	hash := randomBytes(t, 32)

	for _, label := range []string{
		tls.LabelClientFinished,
		tls.LabelServerFinished,
	} {
		seed := append([]byte(label), hash...)
		got := compute(t, circ, [][]byte{gms, seed}, [][]byte{ems})
		expected := tls.VerifyData(ms, label, hash)
		if !bytes.Equal(got, expected) {
			t.Errorf("%s: got %x, expected %x", label, got, expected)
		}
	}
}

func TestKeystream(t *testing.T) {
	key := randomBytes(t, 16)
	iv := randomBytes(t, 4)
	nonce := randomBytes(t, 8)
	gKey := randomBytes(t, 16)
	gIV := randomBytes(t, 4)

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{1, 3} {
		circ, err := Keystream(n)
		if err != nil {
			t.Fatal(err)
		}
		var counters, expected []byte
		for i := 0; i < n; i++ {
			var ctr [4]byte
			binary.BigEndian.PutUint32(ctr[:], uint32(i+7))
			counters = append(counters, nonce...)
			counters = append(counters, ctr[:]...)

			in := append(append(append([]byte(nil), iv...), nonce...),
				ctr[:]...)
			out := make([]byte, BlockSize)
			block.Encrypt(out, in)
			expected = append(expected, out...)
		}
		gMask := randomBytes(t, n*BlockSize)
		eMask := randomBytes(t, n*BlockSize)

		out := compute(t, circ,
			[][]byte{gKey, gIV, counters, gMask},
			[][]byte{xor(key, gKey), xor(iv, gIV), eMask})
		if got := xor(out, gMask, eMask); !bytes.Equal(got, expected) {
			t.Errorf("Keystream(%d): got %x, expected %x", n, got, expected)
		}
	}

	for _, n := range []int{0, MaxKeystreamBlocks + 1} {
		if _, err := Keystream(n); err == nil {
			t.Errorf("Keystream(%d) succeeded", n)
		}
	}
}

func TestInput(t *testing.T) {
	circ, err := Finished()
	if err != nil {
		t.Fatal(err)
	}
	ms := randomBytes(t, MSSize)
	v, err := Input(circ.Inputs[1], ms)
	if err != nil {
		t.Fatal(err)
	}
	if got := Bytes(v, MSSize); !bytes.Equal(got, ms) {
		t.Errorf("Input: got %x, expected %x", got, ms)
	}
	seed := randomBytes(t, FinishedSeedSize)
	v, err = Input(circ.Inputs[0], ms, seed)
	if err != nil {
		t.Fatal(err)
	}
	if got := Bytes(new(big.Int).Rsh(v, MSSize*8), FinishedSeedSize); !bytes.Equal(got, seed) {
		t.Errorf("Input: seed got %x, expected %x", got, seed)
	}

	if _, err := Input(circ.Inputs[0], ms); err == nil {
		t.Errorf("Input accepted missing field")
	}
	if _, err := Input(circ.Inputs[0], ms, seed[1:]); err == nil {
		t.Errorf("Input accepted short field")
	}
}
