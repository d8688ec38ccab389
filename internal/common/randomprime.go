// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"io"

	"github.com/go-errors/errors"
	"github.com/privacybydesign/graphsig/big"
)

// smallPrimes lets us cheaply discard most composite candidates before running
// ProbablyPrime. It stops where the product would overflow a uint64 and omits two
// since candidates are odd by construction.
var smallPrimes = []uint8{
	3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53,
}

var smallPrimesProduct = new(big.Int).SetUint64(16294579238595022365)

const primalityRounds = 40

// RandomPrimeInRange returns a random probable prime in the range [2^start, 2^start + 2^length].
func RandomPrimeInRange(rand io.Reader, start, length uint) (p *big.Int, err error) {
	if start < 2 {
		return nil, errors.New("RandomPrimeInRange: prime size must be at least 2-bit")
	}

	b := length % 8
	if b == 0 {
		b = 8
	}

	startVal := new(big.Int).Lsh(bigONE, start)
	bytes := make([]byte, (length+7)/8)
	offset := new(big.Int)
	p = new(big.Int)

	for {
		if _, err = io.ReadFull(rand, bytes); err != nil {
			return nil, err
		}

		// Keep the offset below 2^length and odd.
		bytes[0] &= uint8(int(1<<b) - 1)
		bytes[len(bytes)-1] |= 1

		offset.SetBytes(bytes)
		p.Add(startVal, offset)

		if !passesSieve(p, start <= 6) {
			continue
		}
		if p.ProbablyPrime(primalityRounds) {
			return p, nil
		}
	}
}

// passesSieve reports whether p has no factor in smallPrimes. When small is set, p itself
// may be one of those primes.
func passesSieve(p *big.Int, small bool) bool {
	mod := new(big.Int).Mod(p, smallPrimesProduct).Uint64()
	for _, prime := range smallPrimes {
		if mod%uint64(prime) == 0 && (!small || mod != uint64(prime)) {
			return false
		}
	}
	return true
}

// NextPrime returns the smallest probable prime strictly greater than x.
func NextPrime(x *big.Int) *big.Int {
	p := new(big.Int).Add(x, bigONE)
	if p.Cmp(bigTWO) <= 0 {
		return big.NewInt(2)
	}
	if p.Bit(0) == 0 {
		p.Add(p, bigONE)
	}
	for !p.ProbablyPrime(primalityRounds) {
		p.Add(p, bigTWO)
	}
	return p
}

// ConsecutivePrimes returns the first count primes strictly greater than 2^(bits-1).
func ConsecutivePrimes(bits uint, count int) []*big.Int {
	primes := make([]*big.Int, 0, count)
	cur := new(big.Int).Lsh(bigONE, bits-1)
	for len(primes) < count {
		cur = NextPrime(cur)
		primes = append(primes, cur)
	}
	return primes
}
