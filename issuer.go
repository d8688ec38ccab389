package graphsig

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/clause"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
	"github.com/privacybydesign/graphsig/transcript"
)

// Signer is the issuer side of one run of the issuing protocol.
type Signer struct {
	sk    *keys.PrivateKey
	pk    *keys.PublicKey
	bases graph.BaseCollection

	state  IssuingState
	nonce1 *big.Int
}

// NewSigner creates a signer that will sign the given encoded graph, which must consist of
// vertex and edge bases only.
func NewSigner(sk *keys.PrivateKey, pk *keys.PublicKey, bases graph.BaseCollection) (*Signer, error) {
	for _, b := range bases {
		if (b.Role != graph.Vertex && b.Role != graph.Edge) || b.Exponent == nil {
			return nil, errors.WrapPrefix(clause.ErrPrecondition, "signer only signs vertex and edge exponents", 0)
		}
	}
	return &Signer{sk: sk, pk: pk, bases: bases}, nil
}

func (s *Signer) State() IssuingState {
	return s.state
}

func (s *Signer) abort(err error) error {
	Logger.Debugf("signer aborts in state %s: %v", s.state, err)
	s.state = StateAborted
	return err
}

// StartIssuance produces the first round message, carrying nonce n1.
func (s *Signer) StartIssuance() (*transcript.Transcript, error) {
	if s.state != StateInit {
		return nil, &stateError{s.state}
	}
	n1, err := GenerateNonce(s.pk)
	if err != nil {
		return nil, s.abort(err)
	}
	msg, err := transcript.NewBuilder().Int(nonce1Key, n1).Build()
	if err != nil {
		return nil, s.abort(err)
	}
	s.nonce1 = n1
	s.state = StateNonceSent
	return msg, nil
}

// IssueSignature verifies the commitment proof of the recipient and answers with the
// signature, the proof that it was computed with the private key and the signed exponents.
// On error the signer is aborted and the caller should send AbortMessage(err).
func (s *Signer) IssueSignature(msg *transcript.Transcript) (*transcript.Transcript, error) {
	if s.state != StateNonceSent {
		return nil, s.abort(&stateError{s.state})
	}
	if err := checkErrorMessage(msg); err != nil {
		return nil, s.abort(err)
	}
	u, n2, err := s.verifyCommitment(msg)
	if err != nil {
		return nil, s.abort(classify(err))
	}

	sig, q, err := signBasesAndCommitment(s.sk, s.pk, u, s.bases)
	if err != nil {
		return nil, s.abort(err)
	}
	proof, err := s.proveSignature(sig, q, n2)
	if err != nil {
		return nil, s.abort(err)
	}
	bases, err := encodeBases(s.bases)
	if err != nil {
		return nil, s.abort(err)
	}

	out, err := transcript.NewBuilder().
		Element(signatureAKey, sig.A).
		Int(signatureEKey, sig.E).
		Int(signatureVKey, sig.V).
		Int(issuingChallengeKey, proof.c).
		Int(signatureHatDKey, proof.hatD).
		Nested(signatureBasesKey, bases).
		Build()
	if err != nil {
		return nil, s.abort(err)
	}
	s.state = StatePartiallySigned
	return out, nil
}

// verifyCommitment checks the proof of knowledge of the opening of U and returns U and n2.
func (s *Signer) verifyCommitment(msg *transcript.Transcript) (u, n2 *big.Int, err error) {
	c, err := msg.Int(issuingChallengeKey)
	if err != nil {
		return nil, nil, err
	}
	if n2, err = msg.Int(nonce2Key); err != nil {
		return nil, nil, err
	}
	if u, err = msg.Element(commitmentKey, s.pk.N); err != nil {
		return nil, nil, err
	}

	vs := clause.NewSession(s.pk, registry.Verifying)
	if err = vs.Registry.Put(commitmentKey, u); err != nil {
		return nil, nil, err
	}
	for _, k := range []registry.Key{commitmentHatRKey, commitmentHatSecret} {
		v, err := msg.Int(k)
		if err != nil {
			return nil, nil, err
		}
		if err = vs.Registry.Put(k, v); err != nil {
			return nil, nil, err
		}
	}

	checker := clause.NewCommitmentChecker(vs, clause.IssuingCommitment(s.pk.Params), registry.Issuing, secretBase(s.pk, nil))
	tildeU, err := checker.Reconstruct(c)
	if err != nil {
		return nil, nil, err
	}
	if createChallenge(s.pk, s.nonce1, []*big.Int{u, tildeU}).Cmp(c) != 0 {
		return nil, nil, errors.WrapPrefix(ErrVerification, "commitment proof does not verify", 0)
	}
	return u, n2, nil
}

type signingProof struct {
	c, hatD *big.Int
}

// proveSignature proves that A = Q^(1/e), binding the proof to n2.
func (s *Signer) proveSignature(sig *CLSignature, q, n2 *big.Int) (*signingProof, error) {
	session := clause.NewSession(s.pk, registry.Issuing)
	sg := clause.NewSigning(session, s.sk, q, sig.A, sig.E)
	tildeA, err := sg.Commit()
	if err != nil {
		return nil, err
	}
	c := createChallenge(s.pk, n2, []*big.Int{q, sig.A, tildeA})
	responses, err := sg.Respond(c)
	if err != nil {
		return nil, err
	}
	if !sg.Verify() {
		return nil, errors.WrapPrefix(ErrVerification, "signing proof does not verify", 0)
	}
	return &signingProof{c: c, hatD: responses[0].Value}, nil
}
