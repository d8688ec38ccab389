// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graphsig

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/clause"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/internal/testkeys"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/registry"
	"github.com/privacybydesign/graphsig/signed"
	"github.com/privacybydesign/graphsig/transcript"
)

var testAlphabet = []string{"admin", "guest", "internal", "public"}

// testGraph has three vertices with distinct labels and two edges.
func testGraph() *graph.Graph {
	return &graph.Graph{
		Vertices: []graph.VertexData{
			{ID: "alice", Labels: []string{"admin"}},
			{ID: "bob", Labels: []string{"guest"}},
			{ID: "carol", Labels: []string{"public"}},
		},
		Edges: []graph.EdgeData{
			{From: "alice", To: "bob", Labels: []string{"internal"}},
			{From: "bob", To: "carol"},
		},
	}
}

func encode(t *testing.T, pk *keys.PublicKey, g *graph.Graph) graph.BaseCollection {
	enc, err := graph.NewEncoder(pk, testAlphabet)
	require.NoError(t, err)
	bases, err := enc.Encode(g)
	require.NoError(t, err)
	return bases
}

// issue runs the issuing protocol for g.
func issue(t *testing.T, g *graph.Graph) *Credential {
	sk, pk := testkeys.KeyPair()
	signer, err := NewSigner(sk, pk, encode(t, pk, g))
	require.NoError(t, err)
	secret, err := GenerateSecret(pk)
	require.NoError(t, err)
	recipient := NewRecipient(pk, secret)

	msg1, err := signer.StartIssuance()
	require.NoError(t, err)
	require.Equal(t, StateNonceSent, signer.State())

	msg2, err := recipient.CommitToSecretAndProve(msg1)
	require.NoError(t, err)
	require.Equal(t, StateCommittedAndProved, recipient.State())

	msg3, err := signer.IssueSignature(msg2)
	require.NoError(t, err)
	require.Equal(t, StatePartiallySigned, signer.State())

	cred, err := recipient.ConstructCredential(msg3)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, recipient.State())
	require.Zero(t, cred.Secret().Cmp(secret))
	return cred
}

// copyEntries adds the entries of tr except skip to b, passing every integer through change.
func copyEntries(b *transcript.Builder, tr *transcript.Transcript, skip registry.Key, change func(k registry.Key, v *big.Int) *big.Int) *transcript.Builder {
	for _, e := range tr.Entries() {
		if e.Key == skip {
			continue
		}
		switch e.Value.Kind {
		case transcript.KindInt:
			b.Int(e.Key, change(e.Key, e.Value.Int.Clone()))
		case transcript.KindElement:
			b.Element(e.Key, change(e.Key, e.Value.Int.Clone()))
		case transcript.KindNested:
			b.Nested(e.Key, e.Value.Nested)
		}
	}
	return b
}

func unchanged(_ registry.Key, v *big.Int) *big.Int {
	return v
}

// rebuild copies a transcript, passing every value through change.
func rebuild(t *testing.T, tr *transcript.Transcript, change func(k registry.Key, v *big.Int) *big.Int) *transcript.Transcript {
	out, err := copyEntries(transcript.NewBuilder(), tr, registry.Key{}, change).Build()
	require.NoError(t, err)
	return out
}

func without(t *testing.T, tr *transcript.Transcript, drop registry.Key) *transcript.Transcript {
	out, err := copyEntries(transcript.NewBuilder(), tr, drop, unchanged).Build()
	require.NoError(t, err)
	return out
}

func TestCLSignature(t *testing.T) {
	sk, pk := testkeys.KeyPair()
	bases := encode(t, pk, testGraph())
	sig, err := SignGraph(sk, pk, bases)
	require.NoError(t, err)
	assert.True(t, sig.Verify(pk, bases), "CLSignature did not verify, whereas it should.")

	bases[0].Exponent = big.NewInt(1337)
	assert.False(t, sig.Verify(pk, bases), "CLSignature verifies, whereas it should not.")
}

func TestCLSignatureRandomize(t *testing.T) {
	sk, pk := testkeys.KeyPair()
	bases := encode(t, pk, testGraph())
	sig, err := SignGraph(sk, pk, bases)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		randomized, err := sig.Randomize(pk)
		require.NoError(t, err)
		assert.True(t, randomized.Verify(pk, bases), "Randomized CLSignature did not verify, whereas it should.")
		assert.NotZero(t, randomized.A.Cmp(sig.A))
	}
}

func TestFullIssuance(t *testing.T) {
	cred := issue(t, testGraph())
	pk := cred.Pk
	assert.True(t, cred.Signature.Verify(pk, cred.Bases))
	assert.Len(t, cred.Bases, 1+3+2)
	require.NoError(t, cred.Validate())

	m, ok := cred.Vertex(1)
	require.True(t, ok)
	enc, err := graph.NewEncoder(pk, testAlphabet)
	require.NoError(t, err)
	assert.True(t, enc.HasLabel(m, "guest"))
}

func TestShowingProof(t *testing.T) {
	cred := issue(t, testGraph())
	pk := cred.Pk
	nonce, err := GenerateNonce(pk)
	require.NoError(t, err)

	proof, err := cred.CreateProof(ProofRequest{}, nonce)
	require.NoError(t, err)
	result, err := VerifyProof(pk, proof, nonce)
	require.NoError(t, err)
	assert.Empty(t, result.Commitments)
	assert.False(t, result.Coprime)

	// The challenge is exactly Lh bits long.
	c, err := proof.Int(ChallengeKey)
	require.NoError(t, err)
	assert.Equal(t, int(pk.Params.Lh), c.BitLen())

	_, err = VerifyProof(pk, proof, big.NewInt(10))
	require.True(t, errors.Is(err, ErrVerification))
}

func TestCoprimeProof(t *testing.T) {
	cred := issue(t, testGraph())
	pk := cred.Pk
	nonce, err := GenerateNonce(pk)
	require.NoError(t, err)

	proof, err := cred.CreateProof(ProofRequest{Vertices: []int{2, 0, 1}, Coprime: true}, nonce)
	require.NoError(t, err)
	for k := 0; k < 3; k++ {
		require.True(t, proof.Has(registry.NewIndexedKey(registry.Proving, registry.KindPairwise, clause.RoleHatCoefA, k)))
	}

	result, err := VerifyProof(pk, proof, nonce)
	require.NoError(t, err)
	assert.True(t, result.Coprime)
	assert.Len(t, result.Commitments, 3)
	for pos := 0; pos < 3; pos++ {
		assert.NotNil(t, result.Commitments[pos])
	}

	// Commitments without the coprimality proof
	proof, err = cred.CreateProof(ProofRequest{Vertices: []int{1}}, nonce)
	require.NoError(t, err)
	result, err = VerifyProof(pk, proof, nonce)
	require.NoError(t, err)
	assert.False(t, result.Coprime)
	assert.Len(t, result.Commitments, 1)
}

func TestCoprimeSharedLabel(t *testing.T) {
	g := testGraph()
	g.Vertices[1].Labels = []string{"admin"}
	cred := issue(t, g)

	_, err := cred.CreateProof(ProofRequest{Vertices: []int{0, 1}, Coprime: true}, big.NewInt(1))
	require.True(t, errors.Is(err, clause.ErrPrecondition))

	_, err = cred.CreateProof(ProofRequest{Vertices: []int{0}, Coprime: true}, big.NewInt(1))
	require.True(t, errors.Is(err, clause.ErrPrecondition))
	_, err = cred.CreateProof(ProofRequest{Vertices: []int{4}}, big.NewInt(1))
	require.True(t, errors.Is(err, clause.ErrPrecondition))
	_, err = cred.CreateProof(ProofRequest{Vertices: []int{1, 1}}, big.NewInt(1))
	require.True(t, errors.Is(err, clause.ErrPrecondition))
}

func TestCorruptedResponse(t *testing.T) {
	cred := issue(t, testGraph())
	pk := cred.Pk
	nonce, err := GenerateNonce(pk)
	require.NoError(t, err)
	proof, err := cred.CreateProof(ProofRequest{Vertices: []int{0, 2}, Coprime: true}, nonce)
	require.NoError(t, err)

	for _, k := range proof.Keys() {
		if k == ChallengeKey {
			continue
		}
		tampered := rebuild(t, proof, func(key registry.Key, v *big.Int) *big.Int {
			if key == k {
				return v.Xor(v, big.NewInt(2))
			}
			return v
		})
		_, err := VerifyProof(pk, tampered, nonce)
		require.Error(t, err, k.String())
		assert.True(t, errors.Is(err, ErrVerification) || errors.Is(err, ErrProtocol), k.String())
	}

	hatE := registry.NewKey(registry.Proving, registry.KindPossession, clause.RoleHatE)
	tampered := rebuild(t, proof, func(key registry.Key, v *big.Int) *big.Int {
		if key == hatE {
			return v.Add(v, big.NewInt(1))
		}
		return v
	})
	_, err = VerifyProof(pk, tampered, nonce)
	require.True(t, errors.Is(err, ErrVerification))
}

func TestMalformedProof(t *testing.T) {
	cred := issue(t, testGraph())
	pk := cred.Pk
	nonce := big.NewInt(42)
	proof, err := cred.CreateProof(ProofRequest{Vertices: []int{0, 1}, Coprime: true}, nonce)
	require.NoError(t, err)

	// Missing response
	k := registry.NewIndexedKey(registry.Proving, registry.KindPairwise, clause.RoleHatRDiff, 0)
	_, err = VerifyProof(pk, without(t, proof, k), nonce)
	require.True(t, errors.Is(err, ErrProtocol))

	// Missing coprimality proof
	k = registry.NewIndexedKey(registry.Proving, registry.KindPairwise, clause.RoleHatCoefA, 0)
	_, err = VerifyProof(pk, without(t, proof, k), nonce)
	require.True(t, errors.Is(err, ErrProtocol))

	// Missing secret
	k = registry.NewIndexedKey(registry.Proving, registry.KindPossession, clause.RoleHatM, 0)
	_, err = VerifyProof(pk, without(t, proof, k), nonce)
	require.True(t, errors.Is(err, ErrProtocol))

	// Foreign key
	extra, err := transcript.NewBuilder().
		Int(registry.NewKey(registry.Proving, registry.KindSigning, clause.RoleHatD), big.NewInt(1)).
		Build()
	require.NoError(t, err)
	extended, err := copyEntries(transcript.NewBuilder(), proof, registry.Key{}, unchanged).
		Nested(registry.NewKey(registry.Proving, registry.KindContext, "extra"), extra).
		Build()
	require.NoError(t, err)
	_, err = VerifyProof(pk, extended, nonce)
	require.True(t, errors.Is(err, ErrProtocol))

	// Element sent as plain integer
	aPrime := registry.NewKey(registry.Proving, registry.KindPossession, clause.RoleAPrime)
	value, err := proof.Element(aPrime, pk.N)
	require.NoError(t, err)
	retyped, err := copyEntries(transcript.NewBuilder(), proof, aPrime, unchanged).Int(aPrime, value).Build()
	require.NoError(t, err)
	_, err = VerifyProof(pk, retyped, nonce)
	require.True(t, errors.Is(err, ErrProtocol))

	_, err = VerifyProof(pk, nil, nonce)
	require.True(t, errors.Is(err, ErrProtocol))
}

func TestProofTranscriptEncoding(t *testing.T) {
	cred := issue(t, testGraph())
	nonce := big.NewInt(7)
	proof, err := cred.CreateProof(ProofRequest{Vertices: []int{0, 1}, Coprime: true}, nonce)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, proof.Encode(&buf))
	decoded, err := transcript.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, proof.Keys(), decoded.Keys())

	_, err = VerifyProof(cred.Pk, decoded, nonce)
	require.NoError(t, err)
}

func TestChallengeDeterminism(t *testing.T) {
	_, pk := testkeys.KeyPair()
	contributions := []*big.Int{big.NewInt(3), big.NewInt(5), big.NewInt(8)}
	c1 := createChallenge(pk, big.NewInt(13), contributions)
	c2 := createChallenge(pk, big.NewInt(13), contributions)
	require.Zero(t, c1.Cmp(c2))
	require.Equal(t, int(pk.Params.Lh), c1.BitLen())

	reordered := []*big.Int{big.NewInt(5), big.NewInt(3), big.NewInt(8)}
	require.NotZero(t, c1.Cmp(createChallenge(pk, big.NewInt(13), reordered)))
	require.NotZero(t, c1.Cmp(createChallenge(pk, big.NewInt(14), contributions)))
}

func TestIssuanceAborts(t *testing.T) {
	sk, pk := testkeys.KeyPair()
	bases := encode(t, pk, testGraph())
	secret, err := GenerateSecret(pk)
	require.NoError(t, err)

	// The recipient stops at an error message.
	recipient := NewRecipient(pk, secret)
	_, err = recipient.CommitToSecretAndProve(transcript.NewErrorMessage(transcript.CodeUnspecified))
	require.True(t, errors.Is(err, ErrProtocol))
	require.Equal(t, StateAborted, recipient.State())

	// A tampered commitment proof is rejected by the signer.
	signer, err := NewSigner(sk, pk, bases)
	require.NoError(t, err)
	msg1, err := signer.StartIssuance()
	require.NoError(t, err)
	_, err = signer.StartIssuance()
	require.True(t, errors.Is(err, ErrProtocol))
	recipient = NewRecipient(pk, secret)
	msg2, err := recipient.CommitToSecretAndProve(msg1)
	require.NoError(t, err)
	tampered := rebuild(t, msg2, func(k registry.Key, v *big.Int) *big.Int {
		if k == commitmentHatSecret {
			return v.Add(v, big.NewInt(1))
		}
		return v
	})
	_, err = signer.IssueSignature(tampered)
	require.True(t, errors.Is(err, ErrVerification))
	require.Equal(t, StateAborted, signer.State())
	code, ok := AbortMessage(err).ErrorCode()
	require.True(t, ok)
	require.Equal(t, transcript.CodeVerificationFailed, code)

	// The recipient rejects a signature over other values.
	signer, err = NewSigner(sk, pk, bases)
	require.NoError(t, err)
	msg1, err = signer.StartIssuance()
	require.NoError(t, err)
	recipient = NewRecipient(pk, secret)
	msg2, err = recipient.CommitToSecretAndProve(msg1)
	require.NoError(t, err)
	msg3, err := signer.IssueSignature(msg2)
	require.NoError(t, err)
	forged := rebuild(t, msg3, func(k registry.Key, v *big.Int) *big.Int {
		if k == signatureVKey {
			return v.Add(v, big.NewInt(1))
		}
		return v
	})
	_, err = recipient.ConstructCredential(forged)
	require.True(t, errors.Is(err, ErrVerification))
	require.Equal(t, StateAborted, recipient.State())

	// Messages out of order
	_, err = recipient.ConstructCredential(msg3)
	require.True(t, errors.Is(err, ErrProtocol))
	code, ok = AbortMessage(err).ErrorCode()
	require.True(t, ok)
	require.Equal(t, transcript.CodeWrongState, code)
	_, err = signer.IssueSignature(msg2)
	require.True(t, errors.Is(err, ErrProtocol))
}

func TestSigningProofBinding(t *testing.T) {
	sk, pk := testkeys.KeyPair()
	signer, err := NewSigner(sk, pk, encode(t, pk, testGraph()))
	require.NoError(t, err)
	secret, err := GenerateSecret(pk)
	require.NoError(t, err)
	recipient := NewRecipient(pk, secret)

	msg1, err := signer.StartIssuance()
	require.NoError(t, err)
	msg2, err := recipient.CommitToSecretAndProve(msg1)
	require.NoError(t, err)
	msg3, err := signer.IssueSignature(msg2)
	require.NoError(t, err)

	forged := rebuild(t, msg3, func(k registry.Key, v *big.Int) *big.Int {
		if k == signatureHatDKey {
			return v.Add(v, big.NewInt(1))
		}
		return v
	})
	_, err = recipient.ConstructCredential(forged)
	require.True(t, errors.Is(err, ErrVerification))
}

func TestCredentialEncoding(t *testing.T) {
	cred := issue(t, testGraph())
	bts, err := cred.MarshalBinary()
	require.NoError(t, err)

	decoded, err := NewCredentialFromBytes(cred.Pk, bts)
	require.NoError(t, err)
	require.Zero(t, decoded.Secret().Cmp(cred.Secret()))
	require.Len(t, decoded.Bases, len(cred.Bases))

	nonce := big.NewInt(99)
	proof, err := decoded.CreateProof(ProofRequest{Vertices: []int{0}}, nonce)
	require.NoError(t, err)
	_, err = VerifyProof(cred.Pk, proof, nonce)
	require.NoError(t, err)

	decoded.Bases[1].Exponent = big.NewInt(5)
	require.True(t, errors.Is(decoded.Validate(), ErrInvalidCredential))
}

func TestMalformedCredential(t *testing.T) {
	cred := issue(t, testGraph())
	bts, err := cred.MarshalBinary()
	require.NoError(t, err)

	for name, change := range map[string]func(c *Credential){
		"missing base":      func(c *Credential) { c.Bases[1].Base = nil },
		"missing exponent":  func(c *Credential) { c.Bases[2].Exponent = nil },
		"null entry":        func(c *Credential) { c.Bases[0] = nil },
		"missing signature": func(c *Credential) { c.Signature = nil },
	} {
		c, err := NewCredentialFromBytes(cred.Pk, bts)
		require.NoError(t, err)
		change(c)
		malformed, err := c.MarshalBinary()
		require.NoError(t, err)
		_, err = NewCredentialFromBytes(cred.Pk, malformed)
		require.True(t, errors.Is(err, ErrInvalidCredential), name)
	}
}

func TestProveBatch(t *testing.T) {
	cred1 := issue(t, testGraph())
	cred2 := issue(t, testGraph())
	tasks := []ProofTask{
		{Credential: cred1, Request: ProofRequest{Vertices: []int{0, 1}, Coprime: true}, Nonce: big.NewInt(1)},
		{Credential: cred2, Request: ProofRequest{}, Nonce: big.NewInt(2)},
		{Credential: cred1, Request: ProofRequest{Vertices: []int{2}}, Nonce: big.NewInt(3)},
	}
	proofs, err := ProveBatch(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, proofs, len(tasks))
	for i, proof := range proofs {
		_, err := VerifyProof(tasks[i].Credential.Pk, proof, tasks[i].Nonce)
		require.NoError(t, err)
	}

	tasks[1].Request = ProofRequest{Vertices: []int{7}}
	_, err = ProveBatch(context.Background(), tasks)
	require.True(t, errors.Is(err, clause.ErrPrecondition))
}

func TestSignedSessionRequest(t *testing.T) {
	cred := issue(t, testGraph())
	pk := cred.Pk
	verifierKey, err := signed.GenerateKey()
	require.NoError(t, err)

	req, err := NewSessionRequest(pk, ProofRequest{Vertices: []int{0, 2}, Coprime: true})
	require.NoError(t, err)
	msg, err := req.Sign(verifierKey)
	require.NoError(t, err)

	received, err := ParseSignedSessionRequest(&verifierKey.PublicKey, msg)
	require.NoError(t, err)
	require.Zero(t, received.Nonce.Cmp(req.Nonce))
	require.Equal(t, req.Request, received.Request)

	proof, err := received.Prove(cred)
	require.NoError(t, err)
	result, err := req.Verify(pk, proof)
	require.NoError(t, err)
	require.True(t, result.Coprime)

	other, err := signed.GenerateKey()
	require.NoError(t, err)
	_, err = ParseSignedSessionRequest(&other.PublicKey, msg)
	require.True(t, errors.Is(err, signed.ErrInvalidSignature))
}

func TestSessionRequestBinding(t *testing.T) {
	cred := issue(t, testGraph())
	pk := cred.Pk
	req, err := NewSessionRequest(pk, ProofRequest{Vertices: []int{0, 2}, Coprime: true})
	require.NoError(t, err)

	for _, answer := range []ProofRequest{
		{},
		{Vertices: []int{0}},
		{Vertices: []int{0, 2}},
		{Vertices: []int{0, 1}, Coprime: true},
		{Vertices: []int{0, 1, 2}, Coprime: true},
	} {
		proof, err := cred.CreateProof(answer, req.Nonce)
		require.NoError(t, err)
		_, err = VerifyProof(pk, proof, req.Nonce)
		require.NoError(t, err)
		_, err = req.Verify(pk, proof)
		require.True(t, errors.Is(err, ErrVerification), "%+v", answer)
	}
}
