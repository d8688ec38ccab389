package graphsig

import (
	"sort"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/clause"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
	"github.com/privacybydesign/graphsig/transcript"
)

// ProofResult is what a verified proof shows about the credential.
type ProofResult struct {
	// Commitments maps the positions of the committed vertices to their commitments.
	Commitments map[int]*big.Int `json:"commitments"`
	// Coprime is set if the committed vertex exponents were proven pairwise coprime.
	Coprime bool `json:"coprime"`
}

// proofLayout lists what a proof transcript contains, derived from the structure of its keys.
type proofLayout struct {
	possession []int // base indices covered by the possession proof
	vertices   []int // base indices of the committed vertices, ascending
	pairs      map[int]bool
}

// expected transcript roles per clause kind; elements are checked to be group elements.
var proofRoles = map[string]map[string]transcript.Kind{
	registry.KindPossession: {
		clause.RoleAPrime: transcript.KindElement,
		clause.RoleHatE:   transcript.KindInt,
		clause.RoleHatV:   transcript.KindInt,
		clause.RoleHatM:   transcript.KindInt,
	},
	registry.KindCommitment: {
		clause.RoleC:    transcript.KindElement,
		clause.RoleHatR: transcript.KindInt,
	},
	registry.KindPairwise: {
		clause.RoleHatCoefA: transcript.KindInt,
		clause.RoleHatCoefB: transcript.KindInt,
		clause.RoleHatRDiff: transcript.KindInt,
	},
}

// load copies the proof values of t into the registry of session s and derives the layout of
// the proof.
func load(s *clause.Session, t *transcript.Transcript) (*proofLayout, error) {
	layout := &proofLayout{pairs: map[int]bool{}}
	for _, e := range t.Entries() {
		k := e.Key
		if k == ChallengeKey {
			continue
		}
		roles, ok := proofRoles[k.Kind]
		if k.Namespace != registry.Proving || !ok {
			return nil, errors.WrapPrefix(ErrProtocol, "unexpected key "+k.String(), 0)
		}
		kind, ok := roles[k.Role]
		if !ok || e.Value.Kind != kind {
			return nil, errors.WrapPrefix(ErrProtocol, "unexpected value under "+k.String(), 0)
		}

		var v *big.Int
		var err error
		if kind == transcript.KindElement {
			v, err = t.Element(k, s.PK.N)
		} else {
			v, err = t.Int(k)
		}
		if err != nil {
			return nil, err
		}
		if err = s.Registry.Put(k, v); err != nil {
			return nil, err
		}

		switch {
		case k.Kind == registry.KindPossession && k.Role == clause.RoleHatM && k.Indexed:
			layout.possession = append(layout.possession, k.Index)
		case k.Kind == registry.KindCommitment && k.Role == clause.RoleC && k.Indexed:
			layout.vertices = append(layout.vertices, k.Index)
		case k.Kind == registry.KindPairwise && k.Indexed:
			layout.pairs[k.Index] = true
		}
	}
	sort.Ints(layout.possession)
	sort.Ints(layout.vertices)
	return layout, nil
}

// check validates the layout against the encoding of pk.
func (l *proofLayout) check(pk *keys.PublicKey) error {
	covered := map[int]bool{}
	for _, idx := range l.possession {
		covered[idx] = true
	}
	if !covered[0] {
		return errors.WrapPrefix(ErrProtocol, "possession proof does not cover the secret", 0)
	}
	enc := pk.Encoding
	for _, idx := range l.vertices {
		if idx < enc.VertexBaseIndex(0) || idx >= enc.VertexBaseIndex(enc.MaxVertices) || !covered[idx] {
			return errors.WrapPrefix(ErrProtocol, "commitment to a base that is no proven vertex", 0)
		}
	}
	n := len(l.vertices)
	if len(l.pairs) == 0 {
		return nil
	}
	if len(l.pairs) != n*(n-1)/2 {
		return errors.WrapPrefix(ErrProtocol, "coprimality proofs do not cover all pairs", 0)
	}
	for k := range l.pairs {
		if k < 0 || k >= len(l.pairs) {
			return errors.WrapPrefix(ErrProtocol, "unexpected pair number", 0)
		}
	}
	return nil
}

// VerifyProof verifies a proof transcript against pk and the nonce the verifier chose. It
// recomputes every clause witness from the responses, derives the challenge from them and
// accepts iff that challenge equals the one in the transcript. A rejected proof yields an
// ErrVerification, a malformed one an ErrProtocol.
func VerifyProof(pk *keys.PublicKey, t *transcript.Transcript, nonce *big.Int) (*ProofResult, error) {
	result, err := verifyProof(pk, t, nonce)
	if err != nil {
		Logger.Debugf("proof rejected: %v", err)
		return nil, classify(err)
	}
	return result, nil
}

func verifyProof(pk *keys.PublicKey, t *transcript.Transcript, nonce *big.Int) (*ProofResult, error) {
	if t == nil {
		return nil, errors.WrapPrefix(ErrProtocol, "no transcript", 0)
	}
	c, err := t.Int(ChallengeKey)
	if err != nil {
		return nil, err
	}

	s := clause.NewSession(pk, registry.Verifying)
	layout, err := load(s, t)
	if err != nil {
		return nil, err
	}
	if err = layout.check(pk); err != nil {
		return nil, err
	}

	aPrime, err := s.Registry.Get(registry.NewKey(registry.Proving, registry.KindPossession, clause.RoleAPrime))
	if err != nil {
		return nil, err
	}
	tildeZ, err := clause.NewPossessionChecker(s, layout.possession).Reconstruct(c)
	if err != nil {
		return nil, err
	}
	contributions := []*big.Int{aPrime, tildeZ}

	result := &ProofResult{Commitments: map[int]*big.Int{}, Coprime: len(layout.pairs) > 0}
	strategy := clause.VertexCommitment(pk.Params)
	for _, idx := range layout.vertices {
		bases := graph.BaseCollection{{Base: pk.Z, Role: graph.BaseR, Index: idx}}
		tildeC, err := clause.NewCommitmentChecker(s, strategy, registry.Proving, bases).Reconstruct(c)
		if err != nil {
			return nil, err
		}
		value, err := s.Registry.Get(registry.NewIndexedKey(registry.Proving, registry.KindCommitment, clause.RoleC, idx))
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, value, tildeC)
		result.Commitments[idx-pk.Encoding.VertexBaseIndex(0)] = value
	}

	if result.Coprime {
		k := 0
		for i := range layout.vertices {
			for j := i + 1; j < len(layout.vertices); j++ {
				tildeR, err := clause.NewPairwiseChecker(s, k, layout.vertices[i], layout.vertices[j]).Reconstruct(c)
				if err != nil {
					return nil, err
				}
				contributions = append(contributions, tildeR)
				k++
			}
		}
	}

	if createChallenge(pk, nonce, contributions).Cmp(c) != 0 {
		return nil, errors.WrapPrefix(ErrVerification, "challenge mismatch", 0)
	}
	return result, nil
}
