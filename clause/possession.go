package clause

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/registry"
)

// Roles of the possession clause.
const (
	RoleAPrime = "APrime"
	RoleTildeZ = "tilde_Z"
	RoleTildeE = "tilde_e"
	RoleTildeV = "tilde_v"
	RoleTildeM = "tilde_m"
	RoleHatE   = "hat_e"
	RoleHatV   = "hat_v"
	RoleHatM   = "hat_m"
)

// Possession proves knowledge of a blinded signature (A', e, v') and of the exponents of all
// bases it covers:
//
//	Z = A'^e * S^v' * prod R_i^m_i
//
// The response for the exponent of base R_i is stored under hat_m_i, so that commitments in
// equality mode can reuse it.
type Possession struct {
	phase
	s *Session

	aPrime, e, vPrime *big.Int
	ePrime            *big.Int // e - 2^(Le-1)
	bases             graph.BaseCollection
}

// NewPossession creates the possession clause for a blinded signature over the given bases.
func NewPossession(s *Session, aPrime, e, vPrime *big.Int, bases graph.BaseCollection) *Possession {
	return &Possession{
		phase:  phase{kind: registry.KindPossession},
		s:      s,
		aPrime: aPrime,
		e:      e,
		vPrime: vPrime,
		bases:  bases,
	}
}

func eOffset(le uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), le-1)
}

func (p *Possession) Precompute() error {
	if err := p.advance(Precomputed, Created); err != nil {
		return err
	}
	seen := map[int]bool{}
	for _, b := range p.bases {
		if b.Role == graph.BaseR {
			return p.fail(errors.WrapPrefix(ErrPrecondition, "possession cannot cover a commitment base", 0))
		}
		if seen[b.Index] {
			return p.fail(errors.WrapPrefix(ErrPrecondition, "base index occurs twice", 0))
		}
		if b.Exponent == nil {
			return p.fail(errors.WrapPrefix(ErrPrecondition, "exponent missing", 0))
		}
		seen[b.Index] = true
	}
	p.ePrime = new(big.Int).Sub(p.e, eOffset(p.s.params().Le))
	if p.ePrime.Sign() < 0 {
		return p.fail(errors.WrapPrefix(ErrPrecondition, "e below its interval", 0))
	}
	if err := p.s.put(p.s.key(p.kind, RoleAPrime), p.aPrime); err != nil {
		return p.fail(err)
	}
	return nil
}

func (p *Possession) Public() []Response {
	return []Response{{Key: p.s.key(p.kind, RoleAPrime), Value: p.aPrime}}
}

func (p *Possession) Commit() (*big.Int, error) {
	if err := p.beginCommit(p.Precompute); err != nil {
		return nil, err
	}
	params := p.s.params()

	tildeE, err := p.s.witness(p.s.key(p.kind, RoleTildeE), params.LeCommit)
	if err != nil {
		return nil, p.fail(err)
	}
	tildeV, err := p.s.witness(p.s.key(p.kind, RoleTildeV), params.LvCommit)
	if err != nil {
		return nil, p.fail(err)
	}

	bases := []*big.Int{p.aPrime, p.s.PK.S}
	exps := []*big.Int{tildeE, tildeV}
	for _, b := range p.bases {
		tildeM, err := p.s.witness(p.s.indexedKey(p.kind, RoleTildeM, b.Index), params.LmCommit)
		if err != nil {
			return nil, p.fail(err)
		}
		bases = append(bases, b.Base)
		exps = append(exps, tildeM)
	}

	tildeZ, err := p.s.multiExp(bases, exps)
	if err != nil {
		return nil, p.fail(err)
	}
	if err = p.s.put(p.s.key(p.kind, RoleTildeZ), tildeZ); err != nil {
		return nil, p.fail(err)
	}
	return tildeZ, nil
}

func (p *Possession) Respond(c *big.Int) ([]Response, error) {
	if err := p.beginRespond(c); err != nil {
		return nil, err
	}

	var responses []Response
	respond := func(tildeKey, hatKey registry.Key, secret *big.Int) error {
		tilde, err := p.s.get(tildeKey)
		if err != nil {
			return err
		}
		hat := response(tilde, c, secret)
		if err = p.s.put(hatKey, hat); err != nil {
			return err
		}
		responses = append(responses, Response{Key: hatKey, Value: hat})
		return nil
	}

	if err := respond(p.s.key(p.kind, RoleTildeE), p.s.key(p.kind, RoleHatE), p.ePrime); err != nil {
		return nil, p.fail(err)
	}
	if err := respond(p.s.key(p.kind, RoleTildeV), p.s.key(p.kind, RoleHatV), p.vPrime); err != nil {
		return nil, p.fail(err)
	}
	for _, b := range p.bases {
		err := respond(p.s.indexedKey(p.kind, RoleTildeM, b.Index), p.s.indexedKey(p.kind, RoleHatM, b.Index), b.Exponent)
		if err != nil {
			return nil, p.fail(err)
		}
	}

	if err := p.advance(Responded, Challenged); err != nil {
		return nil, err
	}
	return responses, nil
}

func (p *Possession) Verify() bool {
	if p.state == Verified {
		return true
	}
	if p.state != Responded {
		return false
	}

	recomputed, err := reconstructPossession(p.s, p.s.Namespace, p.challenge, p.aPrime, p.bases.Bases(), p.bases.Indices())
	if err != nil {
		return p.finish(false)
	}
	tildeZ, err := p.s.get(p.s.key(p.kind, RoleTildeZ))
	if err != nil {
		return p.finish(false)
	}
	return p.finish(recomputed.Cmp(tildeZ) == 0)
}

// reconstructPossession computes Z^-c * A'^(offset*c) * A'^hat_e * S^hat_v * prod base^hat_m
// from the responses stored under namespace ns.
func reconstructPossession(s *Session, ns string, c, aPrime *big.Int, bases []*big.Int, indices []int) (*big.Int, error) {
	pk, params := s.PK, s.params()
	hatE, err := s.get(registry.NewKey(ns, registry.KindPossession, RoleHatE))
	if err != nil {
		return nil, err
	}
	hatV, err := s.get(registry.NewKey(ns, registry.KindPossession, RoleHatV))
	if err != nil {
		return nil, err
	}

	// A' is raised to hat_e + offset*c in a single exponentiation.
	eExp := new(big.Int).Mul(eOffset(params.Le), c)
	eExp.Add(eExp, hatE)

	allBases := []*big.Int{pk.Z, aPrime, pk.S}
	exps := []*big.Int{new(big.Int).Neg(c), eExp, hatV}
	for i, idx := range indices {
		hatM, err := s.get(registry.NewIndexedKey(ns, registry.KindPossession, RoleHatM, idx))
		if err != nil {
			return nil, err
		}
		allBases = append(allBases, bases[i])
		exps = append(exps, hatM)
	}
	return s.multiExp(allBases, exps)
}

// PossessionChecker verifies a possession proof received under registry.Proving.
type PossessionChecker struct {
	s       *Session
	indices []int
}

// NewPossessionChecker creates a checker for a possession proof covering the bases R_i for
// the given indices.
func NewPossessionChecker(s *Session, indices []int) *PossessionChecker {
	return &PossessionChecker{s: s, indices: indices}
}

func (pc *PossessionChecker) Kind() string {
	return registry.KindPossession
}

// Reconstruct checks the response lengths and recomputes tilde_Z, storing it under the
// session namespace.
func (pc *PossessionChecker) Reconstruct(c *big.Int) (*big.Int, error) {
	s, params := pc.s, pc.s.params()
	aPrime, err := s.get(registry.NewKey(registry.Proving, registry.KindPossession, RoleAPrime))
	if err != nil {
		return nil, err
	}

	hatEKey := registry.NewKey(registry.Proving, registry.KindPossession, RoleHatE)
	hatE, err := s.get(hatEKey)
	if err != nil {
		return nil, err
	}
	if err = checkLength(hatEKey, hatE, params.LeCommit); err != nil {
		return nil, err
	}
	hatVKey := registry.NewKey(registry.Proving, registry.KindPossession, RoleHatV)
	hatV, err := s.get(hatVKey)
	if err != nil {
		return nil, err
	}
	if err = checkLength(hatVKey, hatV, params.LvCommit); err != nil {
		return nil, err
	}

	bases := make([]*big.Int, len(pc.indices))
	for i, idx := range pc.indices {
		if idx < 0 || idx >= len(s.PK.R) {
			return nil, errors.WrapPrefix(ErrPrecondition, "base index out of range", 0)
		}
		bases[i] = s.PK.R[idx]
		hatMKey := registry.NewIndexedKey(registry.Proving, registry.KindPossession, RoleHatM, idx)
		hatM, err := s.get(hatMKey)
		if err != nil {
			return nil, err
		}
		if err = checkLength(hatMKey, hatM, params.LmCommit); err != nil {
			return nil, err
		}
	}

	tildeZ, err := reconstructPossession(s, registry.Proving, c, aPrime, bases, pc.indices)
	if err != nil {
		return nil, err
	}
	if err = s.put(s.key(registry.KindPossession, RoleTildeZ), tildeZ); err != nil {
		return nil, err
	}
	return tildeZ, nil
}
