// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graphsig

import (
	"os"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/keys"
	"github.com/privacybydesign/graphsig/transcript"
)

// Credential represents a signed graph together with the master secret of its holder.
type Credential struct {
	Pk        *keys.PublicKey      `cbor:"-" json:"-"`
	Signature *CLSignature         `cbor:"signature" json:"signature"`
	Bases     graph.BaseCollection `cbor:"bases" json:"bases"`
}

var ErrInvalidCredential = errors.New("credential does not match its public key")

// NewCredential creates a credential and checks the signature.
func NewCredential(pk *keys.PublicKey, sig *CLSignature, bases graph.BaseCollection) (*Credential, error) {
	cred := &Credential{Pk: pk, Signature: sig, Bases: bases}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

// Validate checks that every base is the generator of the key at its index and that the
// signature verifies.
func (ic *Credential) Validate() error {
	for _, b := range ic.Bases {
		if b == nil || b.Base == nil || b.Exponent == nil {
			return errors.WrapPrefix(ErrInvalidCredential, "incomplete base", 0)
		}
	}
	if ic.Bases.Count(graph.BaseZero) != 1 {
		return errors.WrapPrefix(ErrInvalidCredential, "credential needs exactly one secret", 0)
	}
	for _, b := range ic.Bases {
		if b.Role == graph.BaseR || b.Index < 0 || b.Index >= len(ic.Pk.R) || b.Base.Cmp(ic.Pk.R[b.Index]) != 0 {
			return errors.WrapPrefix(ErrInvalidCredential, "unexpected base", 0)
		}
	}
	if !ic.Signature.Verify(ic.Pk, ic.Bases) {
		return errors.WrapPrefix(ErrInvalidCredential, "signature does not verify", 0)
	}
	return nil
}

// Secret returns the master secret.
func (ic *Credential) Secret() *big.Int {
	b := ic.Bases.WithRole(graph.BaseZero)
	if len(b) == 0 {
		return nil
	}
	return b[0].Exponent
}

// Vertex returns the exponent of the vertex at position i.
func (ic *Credential) Vertex(i int) (*big.Int, bool) {
	b, ok := ic.Bases.ByIndex(ic.Pk.Encoding.VertexBaseIndex(i))
	if !ok || b.Role != graph.Vertex {
		return nil, false
	}
	return b.Exponent, true
}

// MarshalBinary encodes the credential without its public key.
func (ic *Credential) MarshalBinary() ([]byte, error) {
	type plain Credential
	return transcript.Marshal((*plain)(ic))
}

// NewCredentialFromBytes decodes a credential issued under pk and validates it.
func NewCredentialFromBytes(pk *keys.PublicKey, data []byte) (*Credential, error) {
	type plain Credential
	cred := &Credential{}
	if err := transcript.Unmarshal(data, (*plain)(cred)); err != nil {
		return nil, err
	}
	if cred.Signature == nil {
		return nil, errors.WrapPrefix(ErrInvalidCredential, "no signature", 0)
	}
	cred.Pk = pk
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

// NewCredentialFromFile reads a credential from a file.
func NewCredentialFromFile(pk *keys.PublicKey, filename string) (*Credential, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewCredentialFromBytes(pk, b)
}

// WriteToFile writes the credential to a file that only its owner can read.
func (ic *Credential) WriteToFile(filename string) error {
	b, err := ic.MarshalBinary()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0600)
}
