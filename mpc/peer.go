//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package mpc implements the TLS 1.2 operations that the prover and
// the notary compute jointly: the ECDHE key exchange, the key
// schedule, the finished verify data, and the AES-GCM keystream and
// authentication tags. The notary garbles all circuits and the prover
// evaluates them.
package mpc

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/markkurossi/mpc/circuit"
	"github.com/markkurossi/mpc/env"
	"github.com/markkurossi/mpc/ot"
	"github.com/markkurossi/mpc/p2p"
	"github.com/markkurossi/mpctls/crypto/circuits"
	"github.com/markkurossi/mpctls/crypto/share"
	"go.uber.org/zap"
)

// Role defines the party's role.
type Role int

// Party roles.
const (
	Prover Role = iota
	Notary
)

func (r Role) String() string {
	switch r {
	case Prover:
		return "prover"
	case Notary:
		return "notary"
	default:
		return fmt.Sprintf("{Role %d}", int(r))
	}
}

// Peer implements one party of the MPC-TLS computation.
type Peer struct {
	Role Role
	conn *p2p.Conn
	sp   *share.Peer
	oti  *share.LabelOT
	dh   *share.DHPeer
	rand io.Reader
	log  *zap.Logger
}

// NewPeer creates a peer and initializes the oblivious transfer
// between the parties. The prover and the notary must call NewPeer
// concurrently over the same connection.
func NewPeer(role Role, conn *p2p.Conn, r io.Reader, log *zap.Logger) (
	*Peer, error) {

	if r == nil {
		r = rand.Reader
	}
	if log == nil {
		log = zap.NewNop()
	}
	var otRole share.Role
	switch role {
	case Notary:
		otRole = share.Sender
	case Prover:
		otRole = share.Receiver
	default:
		return nil, fmt.Errorf("mpc: invalid role %v", role)
	}
	sp, err := share.NewPeer(otRole, conn, ot.NewCO(r), r)
	if err != nil {
		return nil, fmt.Errorf("mpc: OT setup: %w", err)
	}
	return &Peer{
		Role: role,
		conn: conn,
		sp:   sp,
		oti:  sp.LabelOT(),
		rand: r,
		log:  log,
	}, nil
}

// run evaluates the circuit with this party's input fields. The
// notary garbles the circuit and the prover evaluates it. Both
// parties learn the output.
func (p *Peer) run(name string, c *circuit.Circuit, fields ...[]byte) (
	[]byte, error) {

	start := time.Now()

	arg := c.Inputs[1]
	if p.Role == Notary {
		arg = c.Inputs[0]
	}
	input, err := circuits.Input(arg, fields...)
	if err != nil {
		return nil, fmt.Errorf("mpc: %s: %w", name, err)
	}
	var out []*big.Int
	if p.Role == Notary {
		out, err = circuit.Garbler(&env.Config{Rand: p.rand}, p.conn, p.oti,
			c, input, false)
	} else {
		out, err = circuit.Evaluator(p.conn, p.oti, c, input, false)
	}
	clear(input.Bits())
	if err != nil {
		return nil, fmt.Errorf("mpc: %s: %w", name, err)
	}
	p.log.Debug("circuit",
		zap.String("name", name),
		zap.Int("gates", c.NumGates),
		zap.Uint64("non-xor", c.Stats.NumNonXOR()),
		zap.Duration("elapsed", time.Since(start)))

	return circuits.Bytes(out[0], int(c.Outputs[0].Type.Bits)/8), nil
}

// mask returns n random mask bytes.
func (p *Peer) mask(n int) ([]byte, error) {
	m := make([]byte, n)
	if _, err := io.ReadFull(p.rand, m); err != nil {
		return nil, err
	}
	return m, nil
}

// unmask converts the masked circuit output into this party's XOR
// share. The notary's share is its mask and the prover's share is the
// output XOR its mask.
func (p *Peer) unmask(out, mask []byte) []byte {
	if p.Role == Notary {
		return mask
	}
	share.Xor(mask, out, mask)
	return mask
}

// exchange sends data to the peer and returns the peer's data. The
// notary sends first.
func (p *Peer) exchange(data []byte) ([]byte, error) {
	send := func() error {
		if err := p.conn.SendData(data); err != nil {
			return err
		}
		return p.conn.Flush()
	}
	if p.Role == Notary {
		if err := send(); err != nil {
			return nil, err
		}
		return p.conn.ReceiveData()
	}
	peer, err := p.conn.ReceiveData()
	if err != nil {
		return nil, err
	}
	if err := send(); err != nil {
		return nil, err
	}
	return peer, nil
}

// KeyExchange creates this party's share of the client ECDHE key and
// returns the client public key: the sum of both parties' public key
// shares.
func (p *Peer) KeyExchange() (*share.Point, error) {
	dh, err := share.NewDHPeer(p.Role.String(), p.rand)
	if err != nil {
		return nil, err
	}
	p.dh = dh

	data, err := p.exchange(dh.Pubkey.Bytes())
	if err != nil {
		return nil, err
	}
	peer, err := share.DecodePublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("mpc: key exchange: %w", err)
	}
	return dh.Pubkey.Add(peer), nil
}

// PremasterShare computes this party's additive share of the
// premaster secret, the x-coordinate of the ECDHE shared point, from
// the server's public key. The client key share is cleared.
func (p *Peer) PremasterShare(server *share.Point) (*share.Element, error) {
	if p.dh == nil {
		return nil, fmt.Errorf("mpc: premaster: no key exchange")
	}
	partial := p.dh.ComputePartialDH(server)
	defer partial.Zero()

	p.dh.Zero()
	p.dh = nil

	pms, err := p.sp.PointAddShares(partial)
	if err != nil {
		return nil, fmt.Errorf("mpc: premaster: %w", err)
	}
	return pms, nil
}

// DeriveSessionKeys runs the TLS key schedule from the premaster
// secret shares and returns this party's shares of the session keys.
func (p *Peer) DeriveSessionKeys(pms *share.Element, clientRandom,
	serverRandom []byte) (*KeyShares, error) {

	if len(clientRandom) != circuits.RandomSize ||
		len(serverRandom) != circuits.RandomSize {
		return nil, fmt.Errorf("mpc: invalid randoms")
	}
	c, err := circuits.SessionKeys()
	if err != nil {
		return nil, err
	}
	pmsBytes := pms.Bytes()
	defer share.Zero(pmsBytes)

	mask, err := p.mask(circuits.SessionKeysSize)
	if err != nil {
		return nil, err
	}
	var out []byte
	if p.Role == Notary {
		out, err = p.run("session keys", c, pmsBytes, clientRandom,
			serverRandom, mask)
	} else {
		out, err = p.run("session keys", c, pmsBytes, mask)
	}
	if err != nil {
		share.Zero(mask)
		return nil, err
	}
	keys := p.unmask(out, mask)
	defer share.Zero(keys)

	return newKeyShares(p.sp, keys), nil
}

// VerifyData computes the finished verify data for the label and the
// handshake hash. Both parties learn the result.
func (p *Peer) VerifyData(keys *KeyShares, label string,
	handshakeHash []byte) ([]byte, error) {

	if len(label)+len(handshakeHash) != circuits.FinishedSeedSize {
		return nil, fmt.Errorf("mpc: verify data: invalid seed")
	}
	c, err := circuits.Finished()
	if err != nil {
		return nil, err
	}
	if p.Role == Notary {
		seed := make([]byte, 0, circuits.FinishedSeedSize)
		seed = append(seed, label...)
		seed = append(seed, handshakeHash...)
		return p.run("finished", c, keys.ms[:], seed)
	}
	return p.run("finished", c, keys.ms[:])
}
