package graphsig

import (
	"strconv"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/clause"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
	"github.com/privacybydesign/graphsig/transcript"
)

// IssuingState is the state of one party in the issuing protocol. The signer moves through
// Init, NonceSent and PartiallySigned, the recipient through Init, CommittedAndProved and
// Completed. Aborted is terminal.
type IssuingState int

const (
	StateInit IssuingState = iota
	StateNonceSent
	StateCommittedAndProved
	StatePartiallySigned
	StateCompleted
	StateAborted
)

func (s IssuingState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateNonceSent:
		return "nonce sent"
	case StateCommittedAndProved:
		return "committed and proved"
	case StatePartiallySigned:
		return "partially signed"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Keys of the round messages.
var (
	nonce1Key           = registry.NewKey(registry.Issuing, registry.KindContext, "n1")
	nonce2Key           = registry.NewKey(registry.Issuing, registry.KindContext, "n2")
	issuingChallengeKey = registry.NewKey(registry.Issuing, registry.KindContext, "challenge")
	commitmentKey       = registry.NewKey(registry.Issuing, registry.KindCommitment, clause.RoleC)
	commitmentHatRKey   = registry.NewKey(registry.Issuing, registry.KindCommitment, clause.RoleHatR)
	commitmentHatSecret = registry.NewIndexedKey(registry.Issuing, registry.KindCommitment, clause.RoleHatM, 0)
	signatureAKey       = registry.NewKey(registry.Issuing, registry.KindSigning, clause.RoleA)
	signatureHatDKey    = registry.NewKey(registry.Issuing, registry.KindSigning, clause.RoleHatD)
	signatureEKey       = registry.NewKey(registry.Issuing, registry.KindContext, "e")
	signatureVKey       = registry.NewKey(registry.Issuing, registry.KindContext, "v")
	signatureBasesKey   = registry.NewKey(registry.Issuing, registry.KindContext, "bases")
)

// secretBase is the base carrying the master secret; exponent may be nil.
func secretBase(pk *keys.PublicKey, secret *big.Int) graph.BaseCollection {
	return graph.BaseCollection{{Base: pk.R[0], Exponent: secret, Role: graph.BaseZero, Index: 0}}
}

// AbortMessage returns the error message to send to the peer when err aborted an exchange.
func AbortMessage(err error) *transcript.Transcript {
	return transcript.NewErrorMessage(errorCode(err))
}

// encodeBases puts the exponents of the vertex and edge bases in a nested transcript, keyed
// by role and base index.
func encodeBases(bases graph.BaseCollection) (*transcript.Transcript, error) {
	b := transcript.NewBuilder()
	for _, base := range bases {
		b.Int(registry.NewIndexedKey(registry.Issuing, registry.KindContext, base.Role.String(), base.Index), base.Exponent)
	}
	return b.Build()
}

// decodeBases is the inverse of encodeBases. Every index must lie in the range the encoding
// of pk reserves for its role.
func decodeBases(pk *keys.PublicKey, t *transcript.Transcript) (graph.BaseCollection, error) {
	enc := pk.Encoding
	var bases graph.BaseCollection
	seen := map[int]bool{}
	for _, k := range t.Keys() {
		var role graph.BaseRole
		var low, high int
		switch k.Role {
		case graph.Vertex.String():
			role, low, high = graph.Vertex, enc.VertexBaseIndex(0), enc.VertexBaseIndex(enc.MaxVertices)
		case graph.Edge.String():
			role, low, high = graph.Edge, enc.EdgeBaseIndex(0), enc.EdgeBaseIndex(enc.MaxEdges)
		default:
			return nil, errors.WrapPrefix(ErrProtocol, "unexpected base "+k.String(), 0)
		}
		if k.Namespace != registry.Issuing || k.Kind != registry.KindContext || !k.Indexed ||
			k.Index < low || k.Index >= high || seen[k.Index] {
			return nil, errors.WrapPrefix(ErrProtocol, "unexpected base "+k.String(), 0)
		}
		seen[k.Index] = true
		m, err := t.Int(k)
		if err != nil {
			return nil, err
		}
		if m.Sign() <= 0 || uint(m.BitLen()) > pk.Params.Lm {
			return nil, errors.WrapPrefix(ErrProtocol, "exponent out of range for base "+strconv.Itoa(k.Index), 0)
		}
		bases = append(bases, &graph.BaseRepresentation{Base: pk.R[k.Index], Exponent: m, Role: role, Index: k.Index})
	}
	return bases, nil
}
