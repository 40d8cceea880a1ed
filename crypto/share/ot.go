//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/markkurossi/mpc/ot"
	"github.com/markkurossi/mpc/p2p"
	"golang.org/x/crypto/blake2b"
)

// MaxMessageSize is the maximum OT message size.
const MaxMessageSize = 64

// OTSender implements the sender side of 1-out-of-2 chosen message
// OT. The transfers are built on IKNP correlated OT: each pair is
// masked with pads derived from the correlated labels b0 and b0^Δ.
type OTSender struct {
	conn  *p2p.Conn
	iknp  *ot.IKNPSender
	count uint64
}

// NewOTSender initializes the base OT and the IKNP extension in the
// sender role.
func NewOTSender(conn *p2p.Conn, base ot.OT, r io.Reader) (*OTSender, error) {
	if err := base.InitSender(conn); err != nil {
		return nil, fmt.Errorf("base OT: %w", err)
	}
	iknp, err := ot.NewIKNPSender(base, conn, r, nil)
	if err != nil {
		return nil, fmt.Errorf("IKNP sender: %w", err)
	}
	return &OTSender{
		conn: conn,
		iknp: iknp,
	}, nil
}

// Send transfers the message pairs. All messages must have the same
// length.
func (s *OTSender) Send(pairs [][2][]byte) error {
	if len(pairs) == 0 {
		return nil
	}
	size := len(pairs[0][0])
	if size == 0 || size > MaxMessageSize {
		return fmt.Errorf("share: invalid OT message size %d", size)
	}
	labels, err := s.iknp.Send(len(pairs))
	if err != nil {
		return err
	}
	buf := make([]byte, 2*size*len(pairs))
	pad := make([]byte, size)
	for i, pair := range pairs {
		if len(pair[0]) != size || len(pair[1]) != size {
			return fmt.Errorf("share: OT message size mismatch")
		}
		k0 := labels[i]
		k1 := labels[i]
		k1.Xor(s.iknp.Delta)

		ofs := 2 * size * i
		otPad(pad, s.count+uint64(i), k0)
		subtle.XORBytes(buf[ofs:], pair[0], pad)
		otPad(pad, s.count+uint64(i), k1)
		subtle.XORBytes(buf[ofs+size:], pair[1], pad)
	}
	s.count += uint64(len(pairs))

	if err := s.conn.SendData(buf); err != nil {
		return err
	}
	return s.conn.Flush()
}

// OTReceiver implements the receiver side of 1-out-of-2 chosen
// message OT.
type OTReceiver struct {
	conn  *p2p.Conn
	iknp  *ot.IKNPReceiver
	count uint64
}

// NewOTReceiver initializes the base OT and the IKNP extension in the
// receiver role.
func NewOTReceiver(conn *p2p.Conn, base ot.OT, r io.Reader) (
	*OTReceiver, error) {

	if err := base.InitReceiver(conn); err != nil {
		return nil, fmt.Errorf("base OT: %w", err)
	}
	iknp, err := ot.NewIKNPReceiver(base, conn, r)
	if err != nil {
		return nil, fmt.Errorf("IKNP receiver: %w", err)
	}
	return &OTReceiver{
		conn: conn,
		iknp: iknp,
	}, nil
}

// Receive receives the messages selected by flags. The size argument
// specifies the message length.
func (r *OTReceiver) Receive(flags []bool, size int) ([][]byte, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	if size <= 0 || size > MaxMessageSize {
		return nil, fmt.Errorf("share: invalid OT message size %d", size)
	}
	labels := make([]ot.Label, len(flags))
	if err := r.iknp.Receive(flags, labels); err != nil {
		return nil, err
	}
	data, err := r.conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	if len(data) != 2*size*len(flags) {
		return nil, fmt.Errorf("%w: OT payload %d bytes, expected %d",
			ErrProtocol, len(data), 2*size*len(flags))
	}
	result := make([][]byte, len(flags))
	pad := make([]byte, size)
	for i, flag := range flags {
		ofs := 2 * size * i
		msg := make([]byte, size)
		copy(msg, data[ofs:ofs+size])
		subtle.ConstantTimeCopy(boolInt(flag), msg, data[ofs+size:ofs+2*size])

		otPad(pad, r.count+uint64(i), labels[i])
		subtle.XORBytes(msg, msg, pad)
		result[i] = msg
	}
	r.count += uint64(len(flags))

	return result, nil
}

func otPad(pad []byte, index uint64, label ot.Label) {
	var ld ot.LabelData
	label.GetData(&ld)

	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)

	h, err := blake2b.New(len(pad), nil)
	if err != nil {
		panic(err)
	}
	h.Write(idx[:])
	h.Write(ld[:])
	h.Sum(pad[:0])
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// LabelOT transfers garbled circuit input wire labels over the peer's
// OT extension. It implements ot.OT for circuit.Garbler and
// circuit.Evaluator; the peer's extension is already initialized so
// the Init methods only check the role.
type LabelOT struct {
	peer *Peer
}

// LabelOT returns the wire label OT for the peer.
func (p *Peer) LabelOT() *LabelOT {
	return &LabelOT{
		peer: p,
	}
}

// InitSender implements ot.OT.InitSender.
func (l *LabelOT) InitSender(io ot.IO) error {
	if l.peer.sender == nil {
		return fmt.Errorf("share: label OT: peer is not an OT sender")
	}
	return io.Flush()
}

// InitReceiver implements ot.OT.InitReceiver.
func (l *LabelOT) InitReceiver(io ot.IO) error {
	if l.peer.receiver == nil {
		return fmt.Errorf("share: label OT: peer is not an OT receiver")
	}
	return nil
}

// Send implements ot.OT.Send.
func (l *LabelOT) Send(wires []ot.Wire) error {
	pairs := make([][2][]byte, len(wires))
	for i, w := range wires {
		var l0, l1 ot.LabelData
		w.L0.GetData(&l0)
		w.L1.GetData(&l1)
		pairs[i] = [2][]byte{l0[:], l1[:]}
	}
	return l.peer.sender.Send(pairs)
}

// Receive implements ot.OT.Receive.
func (l *LabelOT) Receive(flags []bool, result []ot.Label) error {
	if len(flags) != len(result) {
		return fmt.Errorf("share: label OT: %d flags for %d labels",
			len(flags), len(result))
	}
	msgs, err := l.peer.receiver.Receive(flags, len(ot.LabelData{}))
	if err != nil {
		return err
	}
	var data ot.LabelData
	for i, msg := range msgs {
		copy(data[:], msg)
		result[i].SetData(&data)
	}
	return nil
}
