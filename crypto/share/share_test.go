//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"math/big"
	"sync"
	"testing"

	"github.com/markkurossi/mpc/ot"
	"github.com/markkurossi/mpc/p2p"
)

func newPeers(t *testing.T) (*Peer, *Peer) {
	sConn, rConn := p2p.Pipe()
	var wg sync.WaitGroup

	var receiver *Peer
	var rErr error

	wg.Go(func() {
		receiver, rErr = NewPeer(Receiver, rConn, ot.NewCO(rand.Reader),
			rand.Reader)
	})
	sender, err := NewPeer(Sender, sConn, ot.NewCO(rand.Reader), rand.Reader)
	wg.Wait()

	if err != nil {
		t.Fatalf("NewPeer(sender): %v", err)
	}
	if rErr != nil {
		t.Fatalf("NewPeer(receiver): %v", rErr)
	}
	return sender, receiver
}

// run runs the sender and receiver functions concurrently.
func run(t *testing.T, sender, receiver *Peer, sf, rf func(p *Peer) error) {
	var wg sync.WaitGroup
	var rErr error

	wg.Go(func() {
		rErr = rf(receiver)
	})
	err := sf(sender)
	wg.Wait()

	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if rErr != nil {
		t.Fatalf("receiver: %v", rErr)
	}
}

func TestSplit(t *testing.T) {
	value := []byte("Hello, world!")
	a, b, err := Split(value, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	result := make([]byte, len(value))
	Xor(result, a, b)
	if !bytes.Equal(result, value) {
		t.Errorf("Split: got %x, expected %x", result, value)
	}

	v, err := RandomElement(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	fa, fb, err := SplitField(v, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if !fa.Add(fb).Equal(v) {
		t.Errorf("SplitField: shares do not sum to value")
	}
}

func toInt(e *Element) *big.Int {
	return new(big.Int).SetBytes(e.Bytes())
}

func TestField(t *testing.T) {
	p := curveParams.P
	for i := 0; i < 32; i++ {
		a, err := RandomElement(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		b, err := RandomElement(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		ai := toInt(a)
		bi := toInt(b)
		if ai.Cmp(p) >= 0 {
			t.Fatalf("RandomElement: %x out of range", ai)
		}

		check := func(name string, got *Element, expected *big.Int) {
			t.Helper()
			expected.Mod(expected, p)
			if toInt(got).Cmp(expected) != 0 {
				t.Errorf("%s: got %v, expected %x", name, got, expected)
			}
		}
		check("Add", a.Add(b), new(big.Int).Add(ai, bi))
		check("Sub", a.Sub(b), new(big.Int).Sub(ai, bi))
		check("Mul", a.Mul(b), new(big.Int).Mul(ai, bi))
		check("Neg", a.Neg(), new(big.Int).Neg(ai))
		check("Double", a.Double(), new(big.Int).Lsh(ai, 1))
		check("Inverse", a.Inverse(), new(big.Int).ModInverse(ai, p))

		// Operands are not modified.
		if toInt(a).Cmp(ai) != 0 || toInt(b).Cmp(bi) != 0 {
			t.Fatalf("operation modified its operands")
		}
	}

	if !NewElement().Inverse().IsZero() {
		t.Errorf("Inverse(0) != 0")
	}
	if _, err := ElementFromBytes(p.Bytes()); err == nil {
		t.Errorf("ElementFromBytes accepted p")
	}
	if _, err := ElementFromBytes(make([]byte, 31)); err == nil {
		t.Errorf("ElementFromBytes accepted a short value")
	}
	one := ElementFromInt(big.NewInt(1))
	if !one.Add(one.Neg()).IsZero() {
		t.Errorf("1 + -1 != 0")
	}
	one.Zero()
	if !one.IsZero() {
		t.Errorf("Zero did not clear element")
	}
}

func TestGFMul(t *testing.T) {
	var one Block
	one[0] = 0x80

	for i := 0; i < 16; i++ {
		var x, y Block
		rand.Read(x[:])
		rand.Read(y[:])

		if GFMul(x, one) != x {
			t.Errorf("x·1 != x")
		}
		if GFMul(x, y) != GFMul(y, x) {
			t.Errorf("multiplication not commutative")
		}
		products := basisProducts(x)
		var sum Block
		for j := 0; j < 128; j++ {
			if y.Bit(j) == 1 {
				sum = sum.Xor(products[j])
			}
		}
		if sum != GFMul(x, y) {
			t.Errorf("basis products do not match GFMul")
		}
	}
}

func TestMulFp(t *testing.T) {
	sender, receiver := newPeers(t)

	const n = 4
	as := make([]*Element, n)
	bs := make([]*Element, n)
	for i := 0; i < n; i++ {
		var err error
		if as[i], err = RandomElement(rand.Reader); err != nil {
			t.Fatal(err)
		}
		if bs[i], err = RandomElement(rand.Reader); err != nil {
			t.Fatal(err)
		}
	}
	bs[0] = NewElement()
	bs[1] = ElementFromInt(big.NewInt(1)).Neg()

	var sShares, rShares []*Element
	run(t, sender, receiver,
		func(p *Peer) (err error) {
			sShares, err = p.MulFp(as)
			return
		},
		func(p *Peer) (err error) {
			rShares, err = p.MulFp(bs)
			return
		})

	for i := 0; i < n; i++ {
		got := sShares[i].Add(rShares[i])
		expected := as[i].Mul(bs[i])
		if !got.Equal(expected) {
			t.Errorf("MulFp[%d]: got %x, expected %x", i, got, expected)
		}
	}
}

func TestMulGF(t *testing.T) {
	sender, receiver := newPeers(t)

	const n = 3
	as := make([]Block, n)
	bs := make([]Block, n)
	for i := 0; i < n; i++ {
		rand.Read(as[i][:])
		rand.Read(bs[i][:])
	}

	var sShares, rShares []Block
	run(t, sender, receiver,
		func(p *Peer) (err error) {
			sShares, err = p.MulGF(as)
			return
		},
		func(p *Peer) (err error) {
			rShares, err = p.MulGF(bs)
			return
		})

	for i := 0; i < n; i++ {
		got := sShares[i].Xor(rShares[i])
		expected := GFMul(as[i], bs[i])
		if got != expected {
			t.Errorf("MulGF[%d]: got %x, expected %x", i, got, expected)
		}
	}
}

func TestOpen(t *testing.T) {
	sender, receiver := newPeers(t)

	v := ElementFromInt(big.NewInt(4711))
	a, b, err := SplitField(v, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var sv, rv *Element
	run(t, sender, receiver,
		func(p *Peer) (err error) {
			sv, err = p.Open(a)
			return
		},
		func(p *Peer) (err error) {
			rv, err = p.Open(b)
			return
		})
	if !sv.Equal(v) || !rv.Equal(v) {
		t.Errorf("Open: got %v and %v, expected %v", sv, rv, v)
	}
}

func TestPointAddShares(t *testing.T) {
	sender, receiver := newPeers(t)

	sDH, err := NewDHPeer("notary", rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	rDH, err := NewDHPeer("prover", rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	// The server's public key and the peers' partial DH results.
	serverPriv, err := randomScalar(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	sx, sy := curve.ScalarBaseMult(serverPriv)
	server := &Point{X: sx, Y: sy}

	sPart := sDH.ComputePartialDH(server)
	rPart := rDH.ComputePartialDH(server)

	var sShare, rShare *Element
	run(t, sender, receiver,
		func(p *Peer) (err error) {
			sShare, err = p.PointAddShares(sPart)
			return
		},
		func(p *Peer) (err error) {
			rShare, err = p.PointAddShares(rPart)
			return
		})

	expected := sPart.Add(rPart)
	got := toInt(sShare.Add(rShare))
	if got.Cmp(expected.X) != 0 {
		t.Errorf("PointAddShares: got %x, expected %x", got, expected.X)
	}

	// The sum must match the server's view of the shared secret.
	client := sDH.Pubkey.Add(rDH.Pubkey)
	x, _ := curve.ScalarMult(client.X, client.Y, serverPriv)
	if got.Cmp(x) != 0 {
		t.Errorf("PointAddShares: x does not match server's DH result")
	}
}

func TestDecodePublicKey(t *testing.T) {
	dh, err := NewDHPeer("test", rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	data := dh.Pubkey.Bytes()
	pub, err := DecodePublicKey(data)
	if err != nil {
		t.Fatalf("DecodePublicKey: %v", err)
	}
	if pub.X.Cmp(dh.Pubkey.X) != 0 || pub.Y.Cmp(dh.Pubkey.Y) != 0 {
		t.Errorf("DecodePublicKey: point mismatch")
	}
	data[64] ^= 1
	if _, err := DecodePublicKey(data); err == nil {
		t.Errorf("DecodePublicKey accepted a point not on the curve")
	}
	if _, err := DecodePublicKey(data[:33]); err == nil {
		t.Errorf("DecodePublicKey accepted a compressed point")
	}
}

func TestGHASH(t *testing.T) {
	sender, receiver := newPeers(t)

	key := make([]byte, 16)
	nonce := make([]byte, 12)
	rand.Read(key)
	rand.Read(nonce)

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatal(err)
	}

	aad := []byte("additional data")
	plaintext := make([]byte, 100)
	rand.Read(plaintext)
	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	ciphertext := sealed[:len(plaintext)]
	tag := sealed[len(plaintext):]

	var h, j0, ej0 Block
	block.Encrypt(h[:], h[:])
	copy(j0[:], nonce)
	j0[15] = 1
	block.Encrypt(ej0[:], j0[:])

	var hs Block
	rand.Read(hs[:])
	hr := h.Xor(hs)

	blocks := GHASHBlocks(aad, ciphertext)

	var sTag, rTag Block
	run(t, sender, receiver,
		func(p *Peer) (err error) {
			sTag, err = NewPowers(p, hs).GHASH(blocks)
			return
		},
		func(p *Peer) (err error) {
			rTag, err = NewPowers(p, hr).GHASH(blocks)
			return
		})

	got := sTag.Xor(rTag).Xor(ej0)
	if !bytes.Equal(got[:], tag) {
		t.Errorf("GHASH: got tag %x, expected %x", got, tag)
	}
}

func TestPowersExtend(t *testing.T) {
	sender, receiver := newPeers(t)

	var h, hs Block
	rand.Read(h[:])
	rand.Read(hs[:])
	hr := h.Xor(hs)

	sp := NewPowers(sender, hs)
	rp := NewPowers(receiver, hr)

	// Extend in uneven steps.
	for _, n := range []int{3, 4, 11} {
		run(t, sender, receiver,
			func(p *Peer) error {
				return sp.Extend(n)
			},
			func(p *Peer) error {
				return rp.Extend(n)
			})
	}
	if sp.Len() != 11 || rp.Len() != 11 {
		t.Fatalf("Extend: got %d and %d powers", sp.Len(), rp.Len())
	}
	expected := h
	for i := 0; i < 11; i++ {
		got := sp.h[i].Xor(rp.h[i])
		if got != expected {
			t.Errorf("H^%d: got %x, expected %x", i+1, got, expected)
		}
		expected = GFMul(expected, h)
	}
	sp.Zero()
	if sp.Len() != 0 {
		t.Errorf("Zero did not clear powers")
	}
}

func TestLabelOT(t *testing.T) {
	sender, receiver := newPeers(t)

	const n = 100
	wires := make([]ot.Wire, n)
	flags := make([]bool, n)
	for i := range wires {
		var d0, d1 ot.LabelData
		rand.Read(d0[:])
		rand.Read(d1[:])
		wires[i].L0.SetData(&d0)
		wires[i].L1.SetData(&d1)
		flags[i] = d0[0]&1 == 1
	}
	result := make([]ot.Label, n)

	run(t, sender, receiver,
		func(p *Peer) error {
			lot := p.LabelOT()
			if err := lot.InitReceiver(p.Conn); err == nil {
				t.Errorf("sender accepted the receiver role")
			}
			if err := lot.InitSender(p.Conn); err != nil {
				return err
			}
			return lot.Send(wires)
		},
		func(p *Peer) error {
			lot := p.LabelOT()
			if err := lot.InitReceiver(p.Conn); err != nil {
				return err
			}
			return lot.Receive(flags, result)
		})

	for i, w := range wires {
		expected := w.L0
		if flags[i] {
			expected = w.L1
		}
		if !result[i].Equal(expected) {
			t.Errorf("label %d: got %v, expected %v", i, result[i], expected)
		}
	}
}
