// Package safeprime computes safe primes, i.e. primes of the form 2p+1 where p is also prime.
package safeprime

import (
	"context"
	"crypto/rand"
	"runtime"

	"github.com/go-errors/errors"
	"github.com/privacybydesign/graphsig/big"
	"golang.org/x/sync/errgroup"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// GenerateConcurrent generates safe primes of the given size on all CPU cores and passes each
// one to accept until accept returns true, the context is cancelled or an error occurs.
func GenerateConcurrent(ctx context.Context, bitsize int, accept func(*big.Int) bool) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan *big.Int)
	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		g.Go(func() error {
			for {
				x, err := Generate(ctx, bitsize)
				if err != nil || x == nil {
					return err
				}
				select {
				case found <- x:
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	for {
		select {
		case x := <-found:
			if accept(x) {
				cancel()
				return <-done
			}
		case err := <-done:
			if err == nil {
				err = ctx.Err()
			}
			return err
		}
	}
}

// Generate a safe prime of the given size, using the fact that:
//
//	If q is prime and 2^(2q) = 1 mod (2q+1), then 2q+1 is a safe prime.
//
// We take a random bigint q; if the above formula holds and q is prime, then we return 2q+1.
// (See https://www.ijipbangalore.org/abstracts_2(1)/p5.pdf.)
//
// Generate returns nil, nil when ctx is cancelled.
func Generate(ctx context.Context, bitsize int) (*big.Int, error) {
	if bitsize < 3 {
		return nil, errors.Errorf("safe prime size must be at least 3 bits, got %d", bitsize)
	}
	var (
		max        = new(big.Int).Lsh(one, uint(bitsize)) // 2^bitsize, len bitsize+1
		twoq       = new(big.Int)
		twoqone    = new(big.Int)
		twoexptwoq = new(big.Int)
		q          *big.Int
		err        error
	)

	for i := 1; ; i++ {
		if i%100 == 0 {
			select {
			case <-ctx.Done():
				return nil, nil
			default:
			}
		}

		if q, err = big.RandInt(rand.Reader, max); err != nil {
			return nil, err
		}

		bitlen := q.BitLen()
		if q.Bit(0) != 1 || bitlen < bitsize-1 {
			continue
		}
		// Narrow q down to bitsize-1 bits so that 2q+1 has exactly bitsize bits.
		if bitlen == bitsize {
			q.Rsh(q, 1)
			if q.Bit(0) != 1 {
				continue
			}
		}

		twoq.Mul(two, q)
		twoqone.Add(twoq, one)
		twoexptwoq.Exp(two, twoq, twoqone)

		if twoexptwoq.Cmp(one) == 0 && q.ProbablyPrime(40) {
			break
		}
	}

	if !ProbablySafePrime(twoqone, 40) {
		return nil, errors.New("safe prime generation returned non-safeprime")
	}
	return twoqone, nil
}

// ProbablySafePrime reports whether x is probably safe prime, by calling big.Int.ProbablyPrime(n)
// on x as well as on (x-1)/2.
func ProbablySafePrime(x *big.Int, n int) bool {
	if x.Cmp(two) <= 0 {
		return false
	}
	if !x.ProbablyPrime(n) {
		return false
	}
	y := new(big.Int).Rsh(x, 1)
	return y.ProbablyPrime(n)
}
