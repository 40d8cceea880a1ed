//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/markkurossi/mpc/ot"
	"github.com/markkurossi/mpc/p2p"
)

// Role defines the peer's OT role.
type Role int

// Peer roles.
const (
	Sender Role = iota
	Receiver
)

func (r Role) String() string {
	switch r {
	case Sender:
		return "sender"
	case Receiver:
		return "receiver"
	default:
		return fmt.Sprintf("{Role %d}", int(r))
	}
}

// Peer implements one party of the two-party sharing protocols. The
// Sender peer is the OT sender for all transfers.
type Peer struct {
	Role     Role
	Conn     *p2p.Conn
	Rand     io.Reader
	sender   *OTSender
	receiver *OTReceiver
}

// NewPeer creates a peer and initializes its OT extension. The Sender
// and Receiver peers must call NewPeer concurrently over the same
// connection.
func NewPeer(role Role, conn *p2p.Conn, base ot.OT, r io.Reader) (
	*Peer, error) {

	if r == nil {
		r = rand.Reader
	}
	peer := &Peer{
		Role: role,
		Conn: conn,
		Rand: r,
	}
	var err error
	switch role {
	case Sender:
		peer.sender, err = NewOTSender(conn, base, r)
	case Receiver:
		peer.receiver, err = NewOTReceiver(conn, base, r)
	default:
		err = fmt.Errorf("invalid role: %v", role)
	}
	if err != nil {
		return nil, err
	}
	return peer, nil
}

// OTSender returns the peer's OT sender or nil if the peer is a
// receiver.
func (p *Peer) OTSender() *OTSender {
	return p.sender
}

// OTReceiver returns the peer's OT receiver or nil if the peer is a
// sender.
func (p *Peer) OTReceiver() *OTReceiver {
	return p.receiver
}

// MulFp computes additive shares of the products of the sender's and
// receiver's values. Both peers must call MulFp with the same number
// of values; the result[i] shares sum to senderValues[i] ·
// receiverValues[i] mod p.
func (p *Peer) MulFp(values []*Element) ([]*Element, error) {
	if p.Role == Sender {
		return p.mulFpSend(values)
	}
	return p.mulFpReceive(values)
}

func (p *Peer) mulFpSend(as []*Element) ([]*Element, error) {
	pairs := make([][2][]byte, 0, len(as)*256)
	result := make([]*Element, len(as))

	for idx, a := range as {
		t := a
		sum := NewElement()
		for i := 0; i < 256; i++ {
			r, err := RandomElement(p.Rand)
			if err != nil {
				return nil, err
			}
			sum = sum.Add(r)
			pairs = append(pairs, [2][]byte{
				r.Bytes(),
				r.Add(t).Bytes(),
			})
			t = t.Double()
		}
		result[idx] = sum.Neg()
	}
	err := p.sender.Send(pairs)
	for _, pair := range pairs {
		Zero(pair[0])
		Zero(pair[1])
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Peer) mulFpReceive(bs []*Element) ([]*Element, error) {
	flags := make([]bool, 0, len(bs)*256)
	for _, b := range bs {
		flags = append(flags, b.bits()...)
	}
	msgs, err := p.receiver.Receive(flags, 32)
	if err != nil {
		return nil, err
	}
	result := make([]*Element, len(bs))
	for idx := range bs {
		sum := NewElement()
		for i := 0; i < 256; i++ {
			v, err := ElementFromBytes(msgs[idx*256+i])
			if err != nil {
				return nil, err
			}
			sum = sum.Add(v)
		}
		result[idx] = sum
	}
	return result, nil
}

// MulGF computes XOR shares of the GCM field products of the
// sender's and receiver's values.
func (p *Peer) MulGF(values []Block) ([]Block, error) {
	if p.Role == Sender {
		return p.mulGFSend(values)
	}
	return p.mulGFReceive(values)
}

func (p *Peer) mulGFSend(as []Block) ([]Block, error) {
	pairs := make([][2][]byte, 0, len(as)*128)
	result := make([]Block, len(as))

	for idx, a := range as {
		products := basisProducts(a)
		var sum Block
		for i := 0; i < 128; i++ {
			var r Block
			if _, err := io.ReadFull(p.Rand, r[:]); err != nil {
				return nil, err
			}
			sum = sum.Xor(r)
			m1 := r.Xor(products[i])
			pairs = append(pairs, [2][]byte{
				append([]byte(nil), r[:]...),
				append([]byte(nil), m1[:]...),
			})
		}
		result[idx] = sum
	}
	if err := p.sender.Send(pairs); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Peer) mulGFReceive(bs []Block) ([]Block, error) {
	flags := make([]bool, 0, len(bs)*128)
	for _, b := range bs {
		for i := 0; i < 128; i++ {
			flags = append(flags, b.Bit(i) == 1)
		}
	}
	msgs, err := p.receiver.Receive(flags, 16)
	if err != nil {
		return nil, err
	}
	result := make([]Block, len(bs))
	for idx := range bs {
		var sum Block
		for i := 0; i < 128; i++ {
			subtle.XORBytes(sum[:], sum[:], msgs[idx*128+i])
		}
		result[idx] = sum
	}
	return result, nil
}

// Open reveals the sum of both peers' additive shares. The sender
// sends first and the receiver receives first so the exchange cannot
// deadlock on unbuffered links.
func (p *Peer) Open(v *Element) (*Element, error) {
	var peer *Element
	var err error

	if p.Role == Sender {
		if err = p.sendField(v); err != nil {
			return nil, err
		}
		if peer, err = p.recvField(); err != nil {
			return nil, err
		}
	} else {
		if peer, err = p.recvField(); err != nil {
			return nil, err
		}
		if err = p.sendField(v); err != nil {
			return nil, err
		}
	}
	return v.Add(peer), nil
}

func (p *Peer) sendField(v *Element) error {
	if err := p.Conn.SendData(v.Bytes()); err != nil {
		return err
	}
	return p.Conn.Flush()
}

func (p *Peer) recvField() (*Element, error) {
	b, err := p.Conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	return ElementFromBytes(b)
}
