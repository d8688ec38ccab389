package clause

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
)

// Roles of the signing clause.
const (
	RoleA      = "A"
	RoleTildeD = "tilde_d"
	RoleTildeA = "tilde_A"
	RoleHatD   = "hat_d"
)

// Signing proves that A = Q^d with d = 1/e mod the group order, i.e. that A was computed
// with the private key. Unlike the other clauses its response is reduced modulo the order.
type Signing struct {
	phase
	s  *Session
	sk *keys.PrivateKey

	q, a, e *big.Int
	d       *big.Int
}

// NewSigning creates the signing clause for A = Q^(1/e).
func NewSigning(s *Session, sk *keys.PrivateKey, q, a, e *big.Int) *Signing {
	return &Signing{
		phase: phase{kind: registry.KindSigning},
		s:     s,
		sk:    sk,
		q:     q,
		a:     a,
		e:     e,
	}
}

func (sg *Signing) Precompute() error {
	if err := sg.advance(Precomputed, Created); err != nil {
		return err
	}
	d, ok := common.ModInverse(new(big.Int).Mod(sg.e, sg.sk.Order), sg.sk.Order)
	if !ok {
		return sg.fail(errors.WrapPrefix(ErrPrecondition, "e has no inverse modulo the group order", 0))
	}
	sg.d = d
	if err := sg.s.put(sg.s.key(sg.kind, RoleA), sg.a); err != nil {
		return sg.fail(err)
	}
	return nil
}

func (sg *Signing) Public() []Response {
	return []Response{{Key: sg.s.key(sg.kind, RoleA), Value: sg.a}}
}

func (sg *Signing) Commit() (*big.Int, error) {
	if err := sg.beginCommit(sg.Precompute); err != nil {
		return nil, err
	}
	tildeD, err := common.RandomBigIntInRange(big.NewInt(2), new(big.Int).Sub(sg.sk.Order, big.NewInt(1)))
	if err != nil {
		return nil, sg.fail(err)
	}
	if err = sg.s.put(sg.s.key(sg.kind, RoleTildeD), tildeD); err != nil {
		return nil, sg.fail(err)
	}
	tildeA, err := sg.s.PK.Exp(sg.q, tildeD)
	if err != nil {
		return nil, sg.fail(err)
	}
	if err = sg.s.put(sg.s.key(sg.kind, RoleTildeA), tildeA); err != nil {
		return nil, sg.fail(err)
	}
	return tildeA, nil
}

// Respond computes hat_d = tilde_d - c*d mod order.
func (sg *Signing) Respond(c *big.Int) ([]Response, error) {
	if err := sg.beginRespond(c); err != nil {
		return nil, err
	}
	tildeD, err := sg.s.get(sg.s.key(sg.kind, RoleTildeD))
	if err != nil {
		return nil, sg.fail(err)
	}
	hatD := new(big.Int).Mul(c, sg.d)
	hatD.Sub(tildeD, hatD).Mod(hatD, sg.sk.Order)
	k := sg.s.key(sg.kind, RoleHatD)
	if err = sg.s.put(k, hatD); err != nil {
		return nil, sg.fail(err)
	}
	if err = sg.advance(Responded, Challenged); err != nil {
		return nil, err
	}
	return []Response{{Key: k, Value: hatD}}, nil
}

func (sg *Signing) Verify() bool {
	if sg.state == Verified {
		return true
	}
	if sg.state != Responded {
		return false
	}
	recomputed, err := reconstructSigning(sg.s, sg.s.Namespace, sg.challenge, sg.q)
	if err != nil {
		return sg.finish(false)
	}
	tildeA, err := sg.s.get(sg.s.key(sg.kind, RoleTildeA))
	if err != nil {
		return sg.finish(false)
	}
	return sg.finish(recomputed.Cmp(tildeA) == 0)
}

// reconstructSigning computes Q^hat_d * A^c from the values stored under namespace ns.
func reconstructSigning(s *Session, ns string, c, q *big.Int) (*big.Int, error) {
	a, err := s.get(registry.NewKey(ns, registry.KindSigning, RoleA))
	if err != nil {
		return nil, err
	}
	hatD, err := s.get(registry.NewKey(ns, registry.KindSigning, RoleHatD))
	if err != nil {
		return nil, err
	}
	return s.multiExp([]*big.Int{q, a}, []*big.Int{hatD, c})
}

// SigningChecker verifies a signing proof received under namespace source. Q is recomputed by
// the recipient and never taken from the signer.
type SigningChecker struct {
	s      *Session
	source string
	q      *big.Int
}

func NewSigningChecker(s *Session, source string, q *big.Int) *SigningChecker {
	return &SigningChecker{s: s, source: source, q: q}
}

func (sc *SigningChecker) Kind() string {
	return registry.KindSigning
}

// Reconstruct checks that hat_d is in [0, N) and recomputes tilde_A, storing it under the
// session namespace.
func (sc *SigningChecker) Reconstruct(c *big.Int) (*big.Int, error) {
	k := registry.NewKey(sc.source, registry.KindSigning, RoleHatD)
	hatD, err := sc.s.get(k)
	if err != nil {
		return nil, err
	}
	if hatD.Sign() < 0 || hatD.Cmp(sc.s.PK.N) >= 0 {
		return nil, errors.WrapPrefix(ErrResponseLength, k.String(), 0)
	}
	tildeA, err := reconstructSigning(sc.s, sc.source, c, sc.q)
	if err != nil {
		return nil, err
	}
	if err = sc.s.put(sc.s.key(registry.KindSigning, RoleTildeA), tildeA); err != nil {
		return nil, err
	}
	return tildeA, nil
}
