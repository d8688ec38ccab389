package common

import (
	"encoding/asn1"
	gobig "math/big"

	"github.com/privacybydesign/graphsig/big"
	"golang.org/x/crypto/sha3"
)

// EncodeList returns the asn1 encoding of a slice of big integers, prefixed by the number of
// elements. Nil entries are encoded as zero.
func EncodeList(values []*big.Int) []byte {
	tmp := make([]interface{}, len(values)+1)
	tmp[0] = gobig.NewInt(int64(len(values)))
	for i, v := range values {
		if v == nil {
			tmp[i+1] = gobig.NewInt(0)
			continue
		}
		tmp[i+1] = v.Go()
	}
	r, err := asn1.Marshal(tmp)
	if err != nil {
		panic(err) // Marshal should never error, so panic if it does
	}
	return r
}

// HashCommit hashes the asn1 representation of values with SHAKE256 into a positive
// integer of exactly bitlen bits. The top bit is always set.
func HashCommit(values []*big.Int, bitlen uint) *big.Int {
	out := make([]byte, (bitlen+7)/8)
	sha3.ShakeSum256(out, EncodeList(values))
	if extra := uint(len(out))*8 - bitlen; extra > 0 {
		out[0] &= byte(0xff >> extra)
	}
	h := new(big.Int).SetBytes(out)
	return h.SetBit(h, int(bitlen-1), 1)
}
