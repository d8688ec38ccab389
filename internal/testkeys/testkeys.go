// Package testkeys provides a fixed 1024-bit issuer key pair for tests. Generating safe primes
// takes too long to do in every test run.
package testkeys

import (
	"sync"
	"time"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/keys"
)

var (
	P = s2big("12511561644521105216249960315425509848310543851123625148071038103672749250653050780946327920540373585150518830678888836864183842100121288018131086700947919")
	Q = s2big("13175754961224278923898419496296790582860213842149399404614891067426616055648139811854869087421318470521236911637912285993998784296429335994419545592486183")

	// Encoding fits small test graphs.
	Encoding = keys.EncodingParameters{
		MaxVertices:  5,
		MaxEdges:     6,
		LPrimeVertex: 24,
		LPrimeLabel:  16,
		MaxLabels:    8,
	}

	once sync.Once
	sk   *keys.PrivateKey
	pk   *keys.PublicKey
)

func s2big(s string) *big.Int {
	r, _ := new(big.Int).SetString(s, 10)
	return r
}

// KeyPair returns the test key pair. The generators are drawn once per test binary.
func KeyPair() (*keys.PrivateKey, *keys.PublicKey) {
	once.Do(func() {
		var err error
		sk, pk, err = keys.NewKeyPairFromPrimes(P, Q, Encoding, 1, time.Now().AddDate(1, 0, 0))
		if err != nil {
			panic(err)
		}
	})
	return sk, pk
}
