package clause

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/registry"
)

// Roles of the pairwise coprimality clause.
const (
	RoleTildeCoefA  = "tilde_a"
	RoleTildeCoefB  = "tilde_b"
	RoleTildeRDiff  = "tilde_r"
	RoleTildeRValue = "tilde_R"
	RoleHatCoefA    = "hat_a"
	RoleHatCoefB    = "hat_b"
	RoleHatRDiff    = "hat_r"
)

// Pairwise proves that the exponents m_i and m_j behind two singleton commitments
// C_i = Z^m_i S^r_i and C_j = Z^m_j S^r_j are coprime, by proving knowledge of a, b and r_diff
// with
//
//	C_i^a * C_j^b * S^r_diff = Z
//
// which holds for the Bezout coefficients a*m_i + b*m_j = 1 and r_diff = -(a*r_i + b*r_j).
// All registry values are indexed by the pair number.
type Pairwise struct {
	phase
	s      *Session
	number int
	ci, cj *Commitment

	a, b, rDiff *big.Int
}

// NewPairwise creates the coprimality clause for pair number k over two singleton commitments.
// Both commitments must be precomputed before this clause is.
func NewPairwise(s *Session, k int, ci, cj *Commitment) *Pairwise {
	return &Pairwise{
		phase:  phase{kind: registry.KindPairwise},
		s:      s,
		number: k,
		ci:     ci,
		cj:     cj,
	}
}

func (pw *Pairwise) key(role string) registry.Key {
	return pw.s.indexedKey(pw.kind, role, pw.number)
}

// Precompute derives the Bezout coefficients. Exponents that are not coprime are a
// precondition error.
func (pw *Pairwise) Precompute() error {
	if err := pw.advance(Precomputed, Created); err != nil {
		return err
	}
	for _, cm := range []*Commitment{pw.ci, pw.cj} {
		if !cm.strategy.Singleton || cm.Value() == nil {
			return pw.fail(errors.WrapPrefix(ErrPrecondition, "pairwise clause needs precomputed singleton commitments", 0))
		}
	}
	mi, mj := pw.ci.bases[0].Exponent, pw.cj.bases[0].Exponent

	a, b, err := common.Bezout(mi, mj)
	if err != nil {
		return pw.fail(errors.WrapPrefix(ErrPrecondition, err.Error(), 0))
	}
	pw.a, pw.b = a, b

	// r_diff = -(a*r_i + b*r_j)
	rDiff := new(big.Int).Mul(a, pw.ci.Randomness())
	rDiff.Add(rDiff, new(big.Int).Mul(b, pw.cj.Randomness()))
	pw.rDiff = rDiff.Neg(rDiff)
	return nil
}

func (pw *Pairwise) Public() []Response {
	return nil
}

func (pw *Pairwise) Commit() (*big.Int, error) {
	if err := pw.beginCommit(pw.Precompute); err != nil {
		return nil, err
	}
	params := pw.s.params()

	tildeA, err := pw.s.witness(pw.key(RoleTildeCoefA), params.LmCommit)
	if err != nil {
		return nil, pw.fail(err)
	}
	tildeB, err := pw.s.witness(pw.key(RoleTildeCoefB), params.LmCommit)
	if err != nil {
		return nil, pw.fail(err)
	}
	tildeR, err := pw.s.witness(pw.key(RoleTildeRDiff), params.LpairCommit)
	if err != nil {
		return nil, pw.fail(err)
	}

	tildeValue, err := pw.s.multiExp(
		[]*big.Int{pw.ci.Value(), pw.cj.Value(), pw.s.PK.S},
		[]*big.Int{tildeA, tildeB, tildeR},
	)
	if err != nil {
		return nil, pw.fail(err)
	}
	if err = pw.s.put(pw.key(RoleTildeRValue), tildeValue); err != nil {
		return nil, pw.fail(err)
	}
	return tildeValue, nil
}

func (pw *Pairwise) Respond(c *big.Int) ([]Response, error) {
	if err := pw.beginRespond(c); err != nil {
		return nil, err
	}

	secrets := []struct {
		tilde, hat string
		x          *big.Int
	}{
		{RoleTildeCoefA, RoleHatCoefA, pw.a},
		{RoleTildeCoefB, RoleHatCoefB, pw.b},
		{RoleTildeRDiff, RoleHatRDiff, pw.rDiff},
	}
	responses := make([]Response, 0, len(secrets))
	for _, sec := range secrets {
		tilde, err := pw.s.get(pw.key(sec.tilde))
		if err != nil {
			return nil, pw.fail(err)
		}
		hat := response(tilde, c, sec.x)
		if err = pw.s.put(pw.key(sec.hat), hat); err != nil {
			return nil, pw.fail(err)
		}
		responses = append(responses, Response{Key: pw.key(sec.hat), Value: hat})
	}

	if err := pw.advance(Responded, Challenged); err != nil {
		return nil, err
	}
	return responses, nil
}

func (pw *Pairwise) Verify() bool {
	if pw.state == Verified {
		return true
	}
	if pw.state != Responded {
		return false
	}
	recomputed, err := reconstructPairwise(pw.s, pw.s.Namespace, pw.number, pw.challenge, pw.ci.Value(), pw.cj.Value())
	if err != nil {
		return pw.finish(false)
	}
	tildeValue, err := pw.s.get(pw.key(RoleTildeRValue))
	if err != nil {
		return pw.finish(false)
	}
	return pw.finish(recomputed.Cmp(tildeValue) == 0)
}

// reconstructPairwise computes Z^-c * C_i^hat_a * C_j^hat_b * S^hat_r from the responses of pair
// number k stored under namespace ns.
func reconstructPairwise(s *Session, ns string, k int, c, ci, cj *big.Int) (*big.Int, error) {
	exps := make([]*big.Int, 0, 4)
	exps = append(exps, new(big.Int).Neg(c))
	for _, role := range []string{RoleHatCoefA, RoleHatCoefB, RoleHatRDiff} {
		v, err := s.get(registry.NewIndexedKey(ns, registry.KindPairwise, role, k))
		if err != nil {
			return nil, err
		}
		exps = append(exps, v)
	}
	return s.multiExp([]*big.Int{s.PK.Z, ci, cj, s.PK.S}, exps)
}

// PairwiseChecker verifies the coprimality proof for pair number k over the vertex commitments
// linked to base indices i and j, as received under registry.Proving.
type PairwiseChecker struct {
	s             *Session
	number        int
	first, second int
}

func NewPairwiseChecker(s *Session, k, i, j int) *PairwiseChecker {
	return &PairwiseChecker{s: s, number: k, first: i, second: j}
}

func (pc *PairwiseChecker) Kind() string {
	return registry.KindPairwise
}

// Reconstruct checks the response lengths and recomputes tilde_R, storing it under the session
// namespace.
func (pc *PairwiseChecker) Reconstruct(c *big.Int) (*big.Int, error) {
	s, params := pc.s, pc.s.params()
	ci, err := s.get(registry.NewIndexedKey(registry.Proving, registry.KindCommitment, RoleC, pc.first))
	if err != nil {
		return nil, err
	}
	cj, err := s.get(registry.NewIndexedKey(registry.Proving, registry.KindCommitment, RoleC, pc.second))
	if err != nil {
		return nil, err
	}

	lengths := map[string]uint{
		RoleHatCoefA: params.LmCommit,
		RoleHatCoefB: params.LmCommit,
		RoleHatRDiff: params.LpairCommit,
	}
	for role, bits := range lengths {
		k := registry.NewIndexedKey(registry.Proving, registry.KindPairwise, role, pc.number)
		v, err := s.get(k)
		if err != nil {
			return nil, err
		}
		if err = checkLength(k, v, bits); err != nil {
			return nil, err
		}
	}

	tildeValue, err := reconstructPairwise(s, registry.Proving, pc.number, c, ci, cj)
	if err != nil {
		return nil, err
	}
	if err = s.put(s.indexedKey(registry.KindPairwise, RoleTildeRValue, pc.number), tildeValue); err != nil {
		return nil, err
	}
	return tildeValue, nil
}
