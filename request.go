package graphsig

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/signed"
	"github.com/privacybydesign/graphsig/transcript"
)

// SessionRequest is what a verifier hands to a prover: the statement to prove and the nonce
// the proof must be bound to.
type SessionRequest struct {
	Nonce   *big.Int     `cbor:"nonce" json:"nonce"`
	Request ProofRequest `cbor:"request" json:"request"`
}

// NewSessionRequest creates a request with a fresh nonce.
func NewSessionRequest(pk *keys.PublicKey, req ProofRequest) (*SessionRequest, error) {
	nonce, err := GenerateNonce(pk)
	if err != nil {
		return nil, err
	}
	return &SessionRequest{Nonce: nonce, Request: req}, nil
}

// Sign returns the request signed with the key of the verifier.
func (r *SessionRequest) Sign(sk *ecdsa.PrivateKey) (signed.Message, error) {
	return signed.MarshalSign(sk, r)
}

// ParseSignedSessionRequest verifies that msg was signed by the verifier owning pk and
// returns the request it carries.
func ParseSignedSessionRequest(pk *ecdsa.PublicKey, msg signed.Message) (*SessionRequest, error) {
	r := &SessionRequest{}
	if err := signed.UnmarshalVerify(pk, msg, r); err != nil {
		return nil, err
	}
	if r.Nonce == nil {
		return nil, errors.WrapPrefix(ErrProtocol, "session request without nonce", 0)
	}
	return r, nil
}

// Prove answers the request with a proof about cred.
func (r *SessionRequest) Prove(cred *Credential) (*transcript.Transcript, error) {
	return cred.CreateProof(r.Request, r.Nonce)
}

// Verify checks a proof answering the request. The proof must commit to exactly the
// requested vertices and carry a coprimality proof iff one was requested.
func (r *SessionRequest) Verify(pk *keys.PublicKey, proof *transcript.Transcript) (*ProofResult, error) {
	result, err := VerifyProof(pk, proof, r.Nonce)
	if err != nil {
		return nil, err
	}
	if result.Coprime != r.Request.Coprime {
		return nil, errors.WrapPrefix(ErrVerification, "coprimality proof does not match the request", 0)
	}
	requested := make(map[int]bool, len(r.Request.Vertices))
	for _, v := range r.Request.Vertices {
		requested[v] = true
	}
	if len(requested) != len(result.Commitments) {
		return nil, errors.WrapPrefix(ErrVerification, "committed vertices do not match the request", 0)
	}
	for v := range result.Commitments {
		if !requested[v] {
			return nil, errors.WrapPrefix(ErrVerification, fmt.Sprintf("vertex %d was not requested", v), 0)
		}
	}
	return result, nil
}
