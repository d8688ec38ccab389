package graphsig

import (
	"crypto/rand"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/graph"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/keys"
)

var bigONE = big.NewInt(1)

// CLSignature is a data structure for holding a Camenisch-Lysyanskaya signature.
type CLSignature struct {
	A *big.Int `cbor:"A" json:"A"`
	E *big.Int `cbor:"e" json:"e"`
	V *big.Int `cbor:"v" json:"v"`
}

// representToBases computes prod base_i^m_i over all bases with an exponent.
func representToBases(pk *keys.PublicKey, bases graph.BaseCollection) (*big.Int, error) {
	var bs, ms []*big.Int
	for _, b := range bases {
		if b.Exponent == nil {
			return nil, errors.Errorf("base %d has no exponent", b.Index)
		}
		bs = append(bs, b.Base)
		ms = append(ms, b.Exponent)
	}
	return pk.MultiExp(bs, ms)
}

// signBasesAndCommitment signs the exponents of bases together with a commitment U:
//
//	A = (Z / (U * S^v * prod R_i^m_i))^(1/e)
//
// It also returns Q, the value raised to 1/e.
func signBasesAndCommitment(sk *keys.PrivateKey, pk *keys.PublicKey, u *big.Int, bases graph.BaseCollection) (*CLSignature, *big.Int, error) {
	r, err := representToBases(pk, bases)
	if err != nil {
		return nil, nil, err
	}

	vTilde, err := common.RandomBigInt(pk.Params.Lv - 1)
	if err != nil {
		return nil, nil, err
	}
	twoLv := new(big.Int).Lsh(bigONE, pk.Params.Lv-1)
	v := new(big.Int).Add(twoLv, vTilde)

	// Q = inv(S^v * R * U) * Z
	numerator, err := pk.Exp(pk.S, v)
	if err != nil {
		return nil, nil, err
	}
	numerator.Mul(numerator, r).Mul(numerator, u).Mod(numerator, pk.N)
	invNumerator, ok := common.ModInverse(numerator, pk.N)
	if !ok {
		return nil, nil, common.ErrNoModInverse
	}
	q := new(big.Int).Mul(pk.Z, invNumerator)
	q.Mod(q, pk.N)

	e, err := common.RandomPrimeInRange(rand.Reader, pk.Params.Le-1, pk.Params.LePrime-1)
	if err != nil {
		return nil, nil, err
	}
	d, ok := common.ModInverse(new(big.Int).Mod(e, sk.Order), sk.Order)
	if !ok {
		return nil, nil, common.ErrNoModInverse
	}
	a := new(big.Int).Exp(q, d, pk.N)

	return &CLSignature{A: a, E: e, V: v}, q, nil
}

// SignGraph signs an encoded graph directly, without the issuing protocol. The bases must
// include base zero if the credential is to be bound to a secret.
func SignGraph(sk *keys.PrivateKey, pk *keys.PublicKey, bases graph.BaseCollection) (*CLSignature, error) {
	sig, _, err := signBasesAndCommitment(sk, pk, big.NewInt(1), bases)
	return sig, err
}

// eInterval reports whether e lies in [2^(Le-1), 2^(Le-1) + 2^(LePrime-1)].
func eInterval(pk *keys.PublicKey, e *big.Int) bool {
	start := new(big.Int).Lsh(bigONE, pk.Params.Le-1)
	end := new(big.Int).Lsh(bigONE, pk.Params.LePrime-1)
	end.Add(end, start)
	return e.Cmp(start) >= 0 && e.Cmp(end) <= 0
}

// Verify checks whether the signature is correct while being given a public key
// and the bases with their exponents.
func (s *CLSignature) Verify(pk *keys.PublicKey, bases graph.BaseCollection) bool {
	if s == nil || s.A == nil || s.E == nil || s.V == nil || !eInterval(pk, s.E) {
		return false
	}

	// Z = A^e * R * S^v
	ae, err := common.ModPow(s.A, s.E, pk.N)
	if err != nil {
		return false
	}
	r, err := representToBases(pk, bases)
	if err != nil {
		return false
	}
	sv, err := pk.Exp(pk.S, s.V)
	if err != nil {
		return false
	}
	z := ae.Mul(ae, r)
	z.Mul(z, sv).Mod(z, pk.N)
	return pk.Z.Cmp(z) == 0
}

// Randomize returns a randomized copy of the signature: A' = A*S^r and v' = v - e*r for a
// random r of LRA bits.
func (s *CLSignature) Randomize(pk *keys.PublicKey) (*CLSignature, error) {
	r, err := common.RandomBigInt(pk.Params.LRA)
	if err != nil {
		return nil, err
	}
	sr, err := pk.Exp(pk.S, r)
	if err != nil {
		return nil, err
	}
	aPrime := new(big.Int).Mul(s.A, sr)
	aPrime.Mod(aPrime, pk.N)
	t := new(big.Int).Mul(s.E, r)
	vPrime := new(big.Int).Sub(s.V, t)
	return &CLSignature{A: aPrime, E: new(big.Int).Set(s.E), V: vPrime}, nil
}
