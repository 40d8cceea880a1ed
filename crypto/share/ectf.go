//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package share

import (
	"fmt"
)

// PointAddShares converts the peers' points P_r (receiver) and P_s
// (sender) into additive shares of x(P_r + P_s) mod p. Neither peer
// learns the other's point. The points must not be equal or
// opposite.
//
// With d = x_s - x_r, a random mask ρ = ρ_r + ρ_s, and the opened
// value m = d·ρ, the peers hold shares of 1/d = ρ/m, compute shares
// of λ = (y_s - y_r)/d, and finally x = λ² - x_r - x_s.
func (p *Peer) PointAddShares(point *Point) (*Element, error) {
	px := ElementFromInt(point.X)
	py := ElementFromInt(point.Y)
	defer px.Zero()
	defer py.Zero()

	dShare, yShare := px, py
	if p.Role == Receiver {
		dShare = px.Neg()
		yShare = py.Neg()
	}

	rho, err := RandomElement(p.Rand)
	if err != nil {
		return nil, err
	}
	defer rho.Zero()

	// Shares of d·ρ.
	cross, err := p.MulFp(p.crossOrder(dShare, rho))
	if err != nil {
		return nil, err
	}
	local := dShare.Mul(rho).Add(cross[0].Add(cross[1]))
	defer local.Zero()
	m, err := p.Open(local)
	if err != nil {
		return nil, err
	}
	if m.IsZero() {
		return nil, fmt.Errorf("%w: degenerate point addition", ErrProtocol)
	}
	inv := rho.Mul(m.Inverse())
	defer inv.Zero()

	// Shares of λ = (y_s - y_r)·(1/d).
	cross, err = p.MulFp(p.crossOrder(yShare, inv))
	if err != nil {
		return nil, err
	}
	lambda := yShare.Mul(inv).Add(cross[0].Add(cross[1]))
	defer lambda.Zero()

	// Shares of λ² = λ_r² + 2·λ_r·λ_s + λ_s².
	cross, err = p.MulFp([]*Element{lambda})
	if err != nil {
		return nil, err
	}
	x := lambda.Mul(lambda).Add(cross[0].Double())

	return x.Sub(px), nil
}

// crossOrder orders the peer's two values so that one MulFp call
// computes both cross products a_s·b_r and b_s·a_r.
func (p *Peer) crossOrder(a, b *Element) []*Element {
	if p.Role == Sender {
		return []*Element{a, b}
	}
	return []*Element{b, a}
}
