package graphsig

import (
	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/keys"
)

// createChallenge creates a challenge of exactly Lh bits from the context fingerprint of pk,
// the contributions in the order given, and the nonce. The order is fixed by the caller and
// never sorted.
func createChallenge(pk *keys.PublicKey, nonce *big.Int, contributions []*big.Int) *big.Int {
	// Basically, sandwich the contributions between context and nonce
	input := make([]*big.Int, 2+len(contributions))
	input[0] = pk.Fingerprint()
	copy(input[1:1+len(contributions)], contributions)
	input[len(input)-1] = nonce
	return common.HashCommit(input, pk.Params.Lh)
}

// GenerateNonce returns a fresh nonce of Lstatzk bits.
func GenerateNonce(pk *keys.PublicKey) (*big.Int, error) {
	return common.RandomBigInt(pk.Params.Lstatzk)
}

// GenerateSecret returns a fresh master secret of Lm-1 bits.
func GenerateSecret(pk *keys.PublicKey) (*big.Int, error) {
	return common.RandomBigInt(pk.Params.Lm - 1)
}
