package graphsig

import (
	"sort"
	"strconv"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/clause"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/registry"
	"github.com/privacybydesign/graphsig/transcript"
)

// ChallengeKey is the transcript key of the challenge of a proof.
var ChallengeKey = registry.NewKey(registry.Proving, registry.KindContext, "challenge")

// ProofRequest selects what a proof shows besides possession of the credential.
type ProofRequest struct {
	// Vertices lists positions of vertices in the encoded graph whose exponents are committed to.
	Vertices []int `cbor:"vertices" json:"vertices" mapstructure:"vertices"`
	// Coprime requests a proof that the committed exponents are pairwise coprime, i.e. that
	// the committed vertices share no labels.
	Coprime bool `cbor:"coprime" json:"coprime" mapstructure:"coprime"`
}

// ProofBuilder holds the state of one proving session. It must not be reused: every proof
// needs fresh witness randomness and a freshly randomized signature.
type ProofBuilder struct {
	cred    *Credential
	session *clause.Session

	possession  *clause.Possession
	commitments []*clause.Commitment
	pairs       []*clause.Pairwise
	provers     []clause.Prover

	committed bool
}

// CreateProofBuilder sets up the clauses of a proof: possession of a randomized signature,
// one commitment per requested vertex in ascending order and, if requested, one coprimality
// proof per pair of committed vertices.
func (ic *Credential) CreateProofBuilder(req ProofRequest) (*ProofBuilder, error) {
	pk := ic.Pk
	randomized, err := ic.Signature.Randomize(pk)
	if err != nil {
		return nil, err
	}

	b := &ProofBuilder{cred: ic, session: clause.NewSession(pk, registry.Proving)}
	b.possession = clause.NewPossession(b.session, randomized.A, randomized.E, randomized.V, ic.Bases)
	b.provers = append(b.provers, b.possession)

	positions := append([]int(nil), req.Vertices...)
	sort.Ints(positions)
	for i, pos := range positions {
		if i > 0 && positions[i-1] == pos {
			return nil, errors.WrapPrefix(clause.ErrPrecondition, "vertex "+strconv.Itoa(pos)+" requested twice", 0)
		}
		var m *big.Int
		ok := pos >= 0 && pos < pk.Encoding.MaxVertices
		if ok {
			m, ok = ic.Vertex(pos)
		}
		if !ok {
			return nil, errors.WrapPrefix(clause.ErrPrecondition, "credential has no vertex "+strconv.Itoa(pos), 0)
		}
		cm := clause.NewCommitment(b.session, clause.VertexCommitment(pk.Params), graph.BaseCollection{{
			Base:     pk.Z,
			Exponent: m,
			Role:     graph.BaseR,
			Index:    pk.Encoding.VertexBaseIndex(pos),
		}}, nil)
		b.commitments = append(b.commitments, cm)
		b.provers = append(b.provers, cm)
	}

	if req.Coprime {
		if len(b.commitments) < 2 {
			return nil, errors.WrapPrefix(clause.ErrPrecondition, "coprimality needs at least two vertices", 0)
		}
		for i := range b.commitments {
			for j := i + 1; j < len(b.commitments); j++ {
				pw := clause.NewPairwise(b.session, len(b.pairs), b.commitments[i], b.commitments[j])
				b.pairs = append(b.pairs, pw)
				b.provers = append(b.provers, pw)
			}
		}
	}

	Logger.Debugf("proof builder: %d commitments, %d pairs", len(b.commitments), len(b.pairs))
	return b, nil
}

// Commit runs the precompute and commit phases of all clauses and returns the challenge
// contributions: A', tilde_Z, then C_i and tilde_C_i per commitment, then tilde_R_k per pair.
func (b *ProofBuilder) Commit() ([]*big.Int, error) {
	if b.committed {
		return nil, errors.WrapPrefix(clause.ErrPhaseOrder, "proof builder committed twice", 0)
	}
	b.committed = true

	for _, p := range b.provers {
		if err := p.Precompute(); err != nil {
			return nil, err
		}
	}

	tildeZ, err := b.possession.Commit()
	if err != nil {
		return nil, err
	}
	contributions := []*big.Int{b.possession.Public()[0].Value, tildeZ}
	for _, cm := range b.commitments {
		tildeC, err := cm.Commit()
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, cm.Value(), tildeC)
	}
	for _, pw := range b.pairs {
		tildeR, err := pw.Commit()
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, tildeR)
	}
	return contributions, nil
}

// CreateProof runs the response phase of all clauses, checks every clause against its own
// responses and assembles the transcript.
func (b *ProofBuilder) CreateProof(challenge *big.Int) (*transcript.Transcript, error) {
	tb := transcript.NewBuilder().Int(ChallengeKey, challenge)
	for _, p := range b.provers {
		responses, err := p.Respond(challenge)
		if err != nil {
			return nil, err
		}
		for _, v := range p.Public() {
			tb.Element(v.Key, v.Value)
		}
		for _, r := range responses {
			tb.Int(r.Key, r.Value)
		}
	}
	for _, p := range b.provers {
		if !p.Verify() {
			return nil, errors.WrapPrefix(ErrVerification, p.Kind()+" clause rejected its own proof", 0)
		}
	}
	return tb.Build()
}

// CreateProof creates a non-interactive proof about the credential, bound to nonce.
func (ic *Credential) CreateProof(req ProofRequest, nonce *big.Int) (*transcript.Transcript, error) {
	b, err := ic.CreateProofBuilder(req)
	if err != nil {
		return nil, err
	}
	contributions, err := b.Commit()
	if err != nil {
		return nil, err
	}
	return b.CreateProof(createChallenge(ic.Pk, nonce, contributions))
}
