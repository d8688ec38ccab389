package clause

import (
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/internal/testkeys"
	"github.com/privacybydesign/graphsig/registry"
)

func TestPairwiseCompleteness(t *testing.T) {
	p, s, bases := setupPossession(t)
	pk := s.PK
	vertices := bases.WithRole(graph.Vertex)

	var commitments []*Commitment
	for _, v := range vertices {
		commitments = append(commitments, NewCommitment(s, VertexCommitment(pk.Params), vertexCommitment(pk, v), nil))
	}
	var pairs []*Pairwise
	for i := range commitments {
		for j := i + 1; j < len(commitments); j++ {
			pairs = append(pairs, NewPairwise(s, len(pairs), commitments[i], commitments[j]))
		}
	}
	require.Len(t, pairs, 3)

	var provers []Prover
	provers = append(provers, p)
	for _, cm := range commitments {
		provers = append(provers, cm)
	}
	for _, pw := range pairs {
		provers = append(provers, pw)
	}

	for _, pr := range provers {
		require.NoError(t, pr.Precompute())
	}
	var witnesses []*big.Int
	for _, pr := range provers {
		w, err := pr.Commit()
		require.NoError(t, err)
		witnesses = append(witnesses, w)
	}
	c := challenge(pk, witnesses...)

	vs := NewSession(pk, registry.Verifying)
	for _, pr := range provers {
		responses, err := pr.Respond(c)
		require.NoError(t, err)
		transfer(t, vs, pr.Public(), responses)
	}
	for _, pr := range provers {
		require.True(t, pr.Verify(), pr.Kind())
	}

	// Bezout coefficients and the differential blinding satisfy C_i^a C_j^b S^r_diff = Z.
	for _, pw := range pairs {
		lhs, err := pk.MultiExp([]*big.Int{pw.ci.Value(), pw.cj.Value(), pk.S}, []*big.Int{pw.a, pw.b, pw.rDiff})
		require.NoError(t, err)
		assert.Zero(t, lhs.Cmp(pk.Z))
	}

	k := 0
	for i := range vertices {
		for j := i + 1; j < len(vertices); j++ {
			checker := NewPairwiseChecker(vs, k, vertices[i].Index, vertices[j].Index)
			reconstructed, err := checker.Reconstruct(c)
			require.NoError(t, err)
			assert.Zero(t, reconstructed.Cmp(witnesses[1+len(commitments)+k]))
			k++
		}
	}
}

func TestPairwiseNotCoprime(t *testing.T) {
	_, pk := testkeys.KeyPair()
	s := NewSession(pk, registry.Proving)
	strategy := VertexCommitment(pk.Params)
	strategy.Mode = Standalone

	ci := NewCommitment(s, strategy, graph.BaseCollection{{Base: pk.Z, Exponent: big.NewInt(6), Role: graph.BaseR, Index: 1}}, nil)
	cj := NewCommitment(s, strategy, graph.BaseCollection{{Base: pk.Z, Exponent: big.NewInt(9), Role: graph.BaseR, Index: 2}}, nil)
	pw := NewPairwise(s, 0, ci, cj)

	// Commitments must be precomputed first.
	require.True(t, errors.Is(pw.Precompute(), ErrPrecondition))

	require.NoError(t, ci.Precompute())
	require.NoError(t, cj.Precompute())
	pw = NewPairwise(s, 0, ci, cj)
	require.True(t, errors.Is(pw.Precompute(), ErrPrecondition))
	require.Equal(t, Rejected, pw.State())
	_, err := pw.Commit()
	require.True(t, errors.Is(err, ErrPhaseOrder))
}

func TestPairwiseStandaloneTamper(t *testing.T) {
	_, pk := testkeys.KeyPair()
	s := NewSession(pk, registry.Proving)
	strategy := VertexCommitment(pk.Params)
	strategy.Mode = Standalone

	ci := NewCommitment(s, strategy, graph.BaseCollection{{Base: pk.Z, Exponent: big.NewInt(1000003), Role: graph.BaseR, Index: 1}}, nil)
	cj := NewCommitment(s, strategy, graph.BaseCollection{{Base: pk.Z, Exponent: big.NewInt(1000033 * 4), Role: graph.BaseR, Index: 2}}, nil)
	require.NoError(t, ci.Precompute())
	require.NoError(t, cj.Precompute())
	pw := NewPairwise(s, 0, ci, cj)
	tildeR, err := pw.Commit()
	require.NoError(t, err)
	c := challenge(pk, tildeR)
	responses, err := pw.Respond(c)
	require.NoError(t, err)
	require.Len(t, responses, 3)

	vs := NewSession(pk, registry.Verifying)
	transfer(t, vs, ci.Public(), cj.Public(), responses)

	reconstructed, err := NewPairwiseChecker(vs, 0, 1, 2).Reconstruct(c)
	require.NoError(t, err)
	require.Zero(t, reconstructed.Cmp(tildeR))

	for i := range responses {
		vs = NewSession(pk, registry.Verifying)
		transfer(t, vs, ci.Public(), cj.Public(), flipped(responses, i))
		reconstructed, err = NewPairwiseChecker(vs, 0, 1, 2).Reconstruct(c)
		require.NoError(t, err)
		require.NotZero(t, reconstructed.Cmp(tildeR), responses[i].Key.String())
	}

	responses[1].Value.Neg(responses[1].Value)
	require.True(t, pw.Verify())

	_, err = NewPairwiseChecker(NewSession(pk, registry.Verifying), 0, 1, 2).Reconstruct(c)
	require.True(t, errors.Is(err, registry.ErrReadMiss))
}
