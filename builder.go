// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graphsig

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/clause"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
	"github.com/privacybydesign/graphsig/transcript"
)

// Recipient is the receiving side of one run of the issuing protocol. It commits to its
// secret in U = S^v' * R_0^secret, so the signer never learns the secret.
type Recipient struct {
	pk     *keys.PublicKey
	secret *big.Int

	state  IssuingState
	vPrime *big.Int
	u      *big.Int
	nonce2 *big.Int
}

// NewRecipient creates a recipient for a credential bound to secret.
func NewRecipient(pk *keys.PublicKey, secret *big.Int) *Recipient {
	return &Recipient{pk: pk, secret: secret}
}

func (r *Recipient) State() IssuingState {
	return r.state
}

func (r *Recipient) abort(err error) error {
	Logger.Debugf("recipient aborts in state %s: %v", r.state, err)
	r.state = StateAborted
	return err
}

// CommitToSecretAndProve creates the response to the nonce message of the signer: the
// commitment U, a proof of knowledge of its opening bound to n1, and a fresh nonce n2.
func (r *Recipient) CommitToSecretAndProve(msg *transcript.Transcript) (*transcript.Transcript, error) {
	if r.state != StateInit {
		return nil, r.abort(&stateError{r.state})
	}
	if err := checkErrorMessage(msg); err != nil {
		return nil, r.abort(err)
	}
	n1, err := msg.Int(nonce1Key)
	if err != nil {
		return nil, r.abort(classify(err))
	}

	session := clause.NewSession(r.pk, registry.Issuing)
	cm := clause.NewCommitment(session, clause.IssuingCommitment(r.pk.Params), secretBase(r.pk, r.secret), nil)
	tildeU, err := cm.Commit()
	if err != nil {
		return nil, r.abort(err)
	}
	u := cm.Value()
	c := createChallenge(r.pk, n1, []*big.Int{u, tildeU})
	responses, err := cm.Respond(c)
	if err != nil {
		return nil, r.abort(err)
	}
	if !cm.Verify() {
		return nil, r.abort(errors.WrapPrefix(ErrVerification, "commitment proof does not verify", 0))
	}

	n2, err := GenerateNonce(r.pk)
	if err != nil {
		return nil, r.abort(err)
	}
	b := transcript.NewBuilder().Element(commitmentKey, u)
	for _, resp := range responses {
		b.Int(resp.Key, resp.Value)
	}
	out, err := b.Int(issuingChallengeKey, c).Int(nonce2Key, n2).Build()
	if err != nil {
		return nil, r.abort(err)
	}

	r.vPrime, r.u, r.nonce2 = cm.Randomness(), u, n2
	r.state = StateCommittedAndProved
	return out, nil
}

// ConstructCredential adds the blinding randomness of the recipient to the v share of the
// signer, checks the completed signature against the public key and verifies the proof that
// it was computed with the private key.
func (r *Recipient) ConstructCredential(msg *transcript.Transcript) (*Credential, error) {
	if r.state != StateCommittedAndProved {
		return nil, r.abort(&stateError{r.state})
	}
	if err := checkErrorMessage(msg); err != nil {
		return nil, r.abort(err)
	}
	cred, err := r.constructCredential(msg)
	if err != nil {
		return nil, r.abort(classify(err))
	}
	r.state = StateCompleted
	return cred, nil
}

func (r *Recipient) constructCredential(msg *transcript.Transcript) (*Credential, error) {
	pk := r.pk
	a, err := msg.Element(signatureAKey, pk.N)
	if err != nil {
		return nil, err
	}
	e, err := msg.Int(signatureEKey)
	if err != nil {
		return nil, err
	}
	vpp, err := msg.Int(signatureVKey)
	if err != nil {
		return nil, err
	}
	c, err := msg.Int(issuingChallengeKey)
	if err != nil {
		return nil, err
	}
	hatD, err := msg.Int(signatureHatDKey)
	if err != nil {
		return nil, err
	}
	nested, err := msg.Nested(signatureBasesKey)
	if err != nil {
		return nil, err
	}
	signed, err := decodeBases(pk, nested)
	if err != nil {
		return nil, err
	}

	bases := append(secretBase(pk, r.secret), signed...)
	signature := &CLSignature{A: a, E: e, V: new(big.Int).Add(vpp, r.vPrime)}
	if !signature.Verify(pk, bases) {
		return nil, errors.WrapPrefix(ErrVerification, "signature on the graph is not correct", 0)
	}

	// Q = Z / (U * S^v'' * prod R_i^m_i), computed independently of the signer.
	denom, err := representToBases(pk, signed)
	if err != nil {
		return nil, err
	}
	sv, err := pk.Exp(pk.S, vpp)
	if err != nil {
		return nil, err
	}
	denom.Mul(denom, sv).Mul(denom, r.u).Mod(denom, pk.N)
	inv, ok := common.ModInverse(denom, pk.N)
	if !ok {
		return nil, errors.WrapPrefix(ErrVerification, "cannot derive Q", 0)
	}
	q := inv.Mul(inv, pk.Z)
	q.Mod(q, pk.N)

	vs := clause.NewSession(pk, registry.Verifying)
	if err = vs.Registry.Put(signatureAKey, a); err != nil {
		return nil, err
	}
	if err = vs.Registry.Put(signatureHatDKey, hatD); err != nil {
		return nil, err
	}
	tildeA, err := clause.NewSigningChecker(vs, registry.Issuing, q).Reconstruct(c)
	if err != nil {
		return nil, err
	}
	if createChallenge(pk, r.nonce2, []*big.Int{q, a, tildeA}).Cmp(c) != 0 {
		return nil, errors.WrapPrefix(ErrVerification, "proof of correctness on signature does not verify", 0)
	}

	return &Credential{Pk: pk, Signature: signature, Bases: bases}, nil
}
