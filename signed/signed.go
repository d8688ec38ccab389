// Package signed authenticates verifier messages with ECDSA over P-256. Keys travel as PEM
// files; messages are encoded with the transcript codec and wrapped together with their
// signature in a Message.
package signed

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/transcript"
)

const (
	pemPublicKey  = "PUBLIC KEY"
	pemPrivateKey = "EC PRIVATE KEY"
)

// Message holds an encoded payload and the signature over it.
type Message []byte

type envelope struct {
	Payload   []byte `cbor:"payload"`
	Signature []byte `cbor:"sig"`
}

var (
	ErrInvalidSignature = errors.New("ecdsa signature was invalid")
	ErrInvalidKey       = errors.New("invalid ecdsa key")
)

func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

func decodePem(bts []byte, typ string) ([]byte, error) {
	block, _ := pem.Decode(bts)
	if block == nil {
		return nil, errors.WrapPrefix(ErrInvalidKey, "no PEM block", 0)
	}
	if block.Type != typ {
		return nil, errors.WrapPrefix(ErrInvalidKey, "expected "+typ+", got "+block.Type, 0)
	}
	return block.Bytes, nil
}

func MarshalPemPublicKey(pk *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pk)
	if err != nil {
		return nil, errors.WrapPrefix(err, "cannot encode verifier public key", 0)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der}), nil
}

func UnmarshalPemPublicKey(bts []byte) (*ecdsa.PublicKey, error) {
	der, err := decodePem(bts, pemPublicKey)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.WrapPrefix(ErrInvalidKey, err.Error(), 0)
	}
	pk, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.WrapPrefix(ErrInvalidKey, "not an ecdsa public key", 0)
	}
	return pk, nil
}

func MarshalPemPrivateKey(sk *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(sk)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}

func UnmarshalPemPrivateKey(bts []byte) (*ecdsa.PrivateKey, error) {
	der, err := decodePem(bts, pemPrivateKey)
	if err != nil {
		return nil, err
	}
	sk, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, errors.WrapPrefix(ErrInvalidKey, err.Error(), 0)
	}
	return sk, nil
}

// Sign returns an ASN.1 encoded signature over the SHA-256 hash of bts.
func Sign(sk *ecdsa.PrivateKey, bts []byte) ([]byte, error) {
	hash := sha256.Sum256(bts)
	return ecdsa.SignASN1(rand.Reader, sk, hash[:])
}

func Verify(pk *ecdsa.PublicKey, bts, signature []byte) error {
	hash := sha256.Sum256(bts)
	if !ecdsa.VerifyASN1(pk, hash[:], signature) {
		return ErrInvalidSignature
	}
	return nil
}

// MarshalSign encodes v and signs the encoding.
func MarshalSign(sk *ecdsa.PrivateKey, v interface{}) (Message, error) {
	payload, err := transcript.Marshal(v)
	if err != nil {
		return nil, err
	}
	sig, err := Sign(sk, payload)
	if err != nil {
		return nil, err
	}
	return transcript.Marshal(&envelope{Payload: payload, Signature: sig})
}

// UnmarshalVerify checks the signature on msg and only then decodes its payload into dst.
func UnmarshalVerify(pk *ecdsa.PublicKey, msg Message, dst interface{}) error {
	var env envelope
	if err := transcript.Unmarshal(msg, &env); err != nil {
		return err
	}
	if err := Verify(pk, env.Payload, env.Signature); err != nil {
		return err
	}
	return transcript.Unmarshal(env.Payload, dst)
}
