// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"crypto/rand"

	"github.com/go-errors/errors"
	"github.com/privacybydesign/graphsig/big"
)

// Some utility code (mostly math stuff) useful in various places in this
// module.

// Often we need to refer to the same small constant big numbers, no point in
// creating them again and again.
var (
	bigONE = big.NewInt(1)
	bigTWO = big.NewInt(2)
)

var (
	ErrNoModInverse = errors.New("modular inverse does not exist")
	ErrNotCoprime   = errors.New("values are not coprime")
)

// ModInverse returns ia, the inverse of a in the multiplicative group of
// order n. It requires that a be a member of the group (i.e. less than n).
func ModInverse(a, n *big.Int) (ia *big.Int, ok bool) {
	g := new(big.Int)
	x := new(big.Int)
	y := new(big.Int)
	g.GCD(x, y, a, n)
	if g.Cmp(bigONE) != 0 {
		// a and n share a factor, which happens for a modulus that is the
		// product of two primes rather than a prime itself.
		return
	}

	if x.Cmp(bigONE) < 0 {
		// 0 is not the multiplicative inverse of any element so, if x
		// < 1, then x is negative.
		x.Add(x, n)
	}

	return x, true
}

// ModPow computes x^y mod m. The exponent (y) can be negative, in which case it
// uses the modular inverse to compute the result (in contrast to Go's Exp
// function).
func ModPow(x, y, m *big.Int) (*big.Int, error) {
	if y.Sign() == -1 {
		t := new(big.Int).ModInverse(x, m)
		if t == nil {
			return nil, ErrNoModInverse
		}
		return t.Exp(t, new(big.Int).Neg(y), m), nil
	}
	return new(big.Int).Exp(x, y, m), nil
}

// RandomBigInt returns a random big integer value in the range
// [0,(2^numBits)-1], inclusive.
func RandomBigInt(numBits uint) (*big.Int, error) {
	t := new(big.Int).Lsh(bigONE, numBits)
	return big.RandInt(rand.Reader, t)
}

// RandomSignedBigInt returns a uniformly random integer in the symmetric range
// [-2^numBits, 2^numBits], inclusive.
func RandomSignedBigInt(numBits uint) (*big.Int, error) {
	bound := new(big.Int).Lsh(bigONE, numBits)
	width := new(big.Int).Lsh(bound, 1)
	width.Add(width, bigONE)
	r, err := big.RandInt(rand.Reader, width)
	if err != nil {
		return nil, err
	}
	return r.Sub(r, bound), nil
}

// RandomBigIntInRange returns a uniformly random integer in the open interval (low, high).
func RandomBigIntInRange(low, high *big.Int) (*big.Int, error) {
	width := new(big.Int).Sub(high, low)
	width.Sub(width, bigONE)
	if width.Sign() <= 0 {
		return nil, errors.Errorf("empty range (%s, %s)", low, high)
	}
	r, err := big.RandInt(rand.Reader, width)
	if err != nil {
		return nil, err
	}
	return r.Add(r, low).Add(r, bigONE), nil
}

// InSignedRange reports whether -2^numBits <= x <= 2^numBits.
func InSignedRange(x *big.Int, numBits uint) bool {
	bound := new(big.Int).Lsh(bigONE, numBits)
	return x.CmpAbs(bound) <= 0
}

// Bezout runs the extended Euclidean algorithm on x and y and returns a and b such that
// a*x + b*y = 1. It fails with ErrNotCoprime if gcd(x, y) != 1.
func Bezout(x, y *big.Int) (a, b *big.Int, err error) {
	if x.Sign() <= 0 || y.Sign() <= 0 {
		return nil, nil, errors.Errorf("Bezout coefficients require positive inputs")
	}

	// Invariant: r0 = s0*x + t0*y and r1 = s1*x + t1*y.
	r0, r1 := new(big.Int).Set(x), new(big.Int).Set(y)
	s0, s1 := big.NewInt(1), big.NewInt(0)
	t0, t1 := big.NewInt(0), big.NewInt(1)
	q, tmp := new(big.Int), new(big.Int)
	for r1.Sign() != 0 {
		q.Quo(r0, r1)

		tmp.Mul(q, r1)
		r0, r1 = r1, new(big.Int).Sub(r0, tmp)

		tmp.Mul(q, s1)
		s0, s1 = s1, new(big.Int).Sub(s0, tmp)

		tmp.Mul(q, t1)
		t0, t1 = t1, new(big.Int).Sub(t0, tmp)
	}

	if r0.Cmp(bigONE) != 0 {
		return nil, nil, errors.WrapPrefix(ErrNotCoprime, "gcd is "+r0.String(), 0)
	}
	return s0, t0, nil
}

// RandomQR returns a random quadratic residue modulo n, i.e. the square of a random
// element of (Z/nZ)*.
func RandomQR(n *big.Int) (*big.Int, error) {
	var tmp big.Int
	for {
		r, err := big.RandInt(rand.Reader, n)
		if err != nil {
			return nil, err
		}
		if r.Sign() > 0 && tmp.GCD(nil, nil, r, n).Cmp(bigONE) == 0 {
			return r.Mul(r, r).Mod(r, n), nil
		}
	}
}
