package keys

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/common"
)

var (
	testP = s2big("12511561644521105216249960315425509848310543851123625148071038103672749250653050780946327920540373585150518830678888836864183842100121288018131086700947919")
	testQ = s2big("13175754961224278923898419496296790582860213842149399404614891067426616055648139811854869087421318470521236911637912285993998784296429335994419545592486183")

	testEncoding = EncodingParameters{
		MaxVertices:  4,
		MaxEdges:     3,
		LPrimeVertex: 24,
		LPrimeLabel:  16,
		MaxLabels:    8,
	}
)

func s2big(s string) *big.Int {
	r, _ := new(big.Int).SetString(s, 10)
	return r
}

func testKeyPair(t *testing.T) (*PrivateKey, *PublicKey) {
	sk, pk, err := NewKeyPairFromPrimes(testP, testQ, testEncoding, 1, time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	return sk, pk
}

func TestDerivedParameters(t *testing.T) {
	p := DefaultSystemParameters[1024]
	assert.Equal(t, uint(597), p.Le)
	assert.Equal(t, uint(456), p.LeCommit)
	assert.Equal(t, uint(592), p.LmCommit)
	assert.Equal(t, uint(1104), p.LRA)
	assert.Equal(t, uint(1700), p.Lv)
	assert.Equal(t, uint(1360), p.LrCommit)
	assert.Equal(t, uint(1617), p.LpairCommit)
	assert.Equal(t, []int{1024, 2048, 4096}, DefaultKeyLengths)
}

func TestEncodingLayout(t *testing.T) {
	assert.Equal(t, 8, testEncoding.NumBases())
	assert.Equal(t, 1, testEncoding.VertexBaseIndex(0))
	assert.Equal(t, 4, testEncoding.VertexBaseIndex(3))
	assert.Equal(t, 5, testEncoding.EdgeBaseIndex(0))
	assert.Equal(t, 7, testEncoding.EdgeBaseIndex(2))
}

func TestEncodingValidate(t *testing.T) {
	params := DefaultSystemParameters[1024]
	require.NoError(t, DefaultEncodingParameters.Validate(params))
	require.NoError(t, testEncoding.Validate(params))

	// 2*120 + 16 bits exactly fill Lm.
	edge := testEncoding
	edge.LPrimeVertex = 120
	require.NoError(t, edge.Validate(params))

	bad := testEncoding
	bad.LPrimeVertex = 121
	require.True(t, errors.Is(bad.Validate(params), ErrInvalidEncoding))

	bad = testEncoding
	bad.LPrimeLabel = bad.LPrimeVertex
	require.True(t, errors.Is(bad.Validate(params), ErrInvalidEncoding))

	bad = testEncoding
	bad.MaxVertices = 0
	require.True(t, errors.Is(bad.Validate(params), ErrInvalidEncoding))
}

func TestNewKeyPairFromPrimes(t *testing.T) {
	sk, pk := testKeyPair(t)
	require.Equal(t, 1024, pk.N.BitLen())
	require.Zero(t, pk.N.Cmp(sk.N))
	require.Len(t, pk.R, testEncoding.NumBases())
	require.Same(t, DefaultSystemParameters[1024], pk.Params)

	// Every generator is a quadratic residue, so its order divides p'q'.
	one := big.NewInt(1)
	for _, g := range append([]*big.Int{pk.S, pk.Z}, pk.R...) {
		require.Zero(t, new(big.Int).Exp(g, sk.Order, pk.N).Cmp(one))
	}
	require.Zero(t, new(big.Int).GCD(nil, nil, new(big.Int).Sub(pk.S, one), pk.N).Cmp(one))
}

func TestPrivateKeyValidate(t *testing.T) {
	sk, _ := testKeyPair(t)
	require.NoError(t, sk.Validate())

	broken := *sk
	broken.PPrime = new(big.Int).Add(sk.PPrime, big.NewInt(2))
	require.True(t, errors.Is(broken.Validate(), ErrInvalidKey))

	_, err := NewPrivateKey(big.NewInt(29), testQ, 0, time.Now())
	require.True(t, errors.Is(err, ErrInvalidKey))
}

func TestKeyXMLRoundTrip(t *testing.T) {
	sk, pk := testKeyPair(t)

	var buf bytes.Buffer
	_, err := pk.WriteTo(&buf)
	require.NoError(t, err)
	pk2, err := NewPublicKeyFromBytes(buf.Bytes())
	require.NoError(t, err)
	require.Zero(t, pk.N.Cmp(pk2.N))
	require.Zero(t, pk.Z.Cmp(pk2.Z))
	require.Zero(t, pk.S.Cmp(pk2.S))
	require.Equal(t, len(pk.R), len(pk2.R))
	for i := range pk.R {
		require.Zero(t, pk.R[i].Cmp(pk2.R[i]))
	}
	require.Equal(t, pk.Encoding, pk2.Encoding)
	require.Zero(t, pk.Fingerprint().Cmp(pk2.Fingerprint()))

	buf.Reset()
	_, err = sk.WriteTo(&buf)
	require.NoError(t, err)
	sk2, err := NewPrivateKeyFromXML(buf.String(), false)
	require.NoError(t, err)
	require.Zero(t, sk.Order.Cmp(sk2.Order))
}

func TestKeyFiles(t *testing.T) {
	sk, pk := testKeyPair(t)
	dir := t.TempDir()
	pkFile, skFile := filepath.Join(dir, "pk.xml"), filepath.Join(dir, "sk.xml")

	_, err := pk.WriteToFile(pkFile, false)
	require.NoError(t, err)
	_, err = pk.WriteToFile(pkFile, false)
	require.Error(t, err, "existing file must not be overwritten")
	_, err = pk.WriteToFile(pkFile, true)
	require.NoError(t, err)
	_, err = sk.WriteToFile(skFile, false)
	require.NoError(t, err)

	pk2, err := NewPublicKeyFromFile(pkFile)
	require.NoError(t, err)
	require.Zero(t, pk.Z.Cmp(pk2.Z))
	sk2, err := NewPrivateKeyFromFile(skFile, false)
	require.NoError(t, err)
	require.Zero(t, sk.N.Cmp(sk2.N))
}

func TestPublicKeyTooFewBases(t *testing.T) {
	_, pk := testKeyPair(t)
	enc := testEncoding
	enc.MaxEdges = 10
	_, err := NewPublicKey(pk.N, pk.Z, pk.S, pk.R, enc, 0, time.Now())
	require.True(t, errors.Is(err, ErrInvalidKey))

	_, err = NewPublicKey(big.NewInt(77), pk.Z, pk.S, pk.R, testEncoding, 0, time.Now())
	require.True(t, errors.Is(err, ErrUnknownKeyLength))
}

func TestExp(t *testing.T) {
	_, pk := testKeyPair(t)
	exps := []*big.Int{
		big.NewInt(0),
		big.NewInt(12345),
		new(big.Int).Lsh(big.NewInt(1), 1000),
		new(big.Int).Lsh(big.NewInt(1), 1500), // longer than N, no table
		big.NewInt(-77),
	}
	other := big.NewInt(65537) // not a generator
	for _, base := range []*big.Int{pk.S, pk.Z, pk.R[3], other} {
		for _, exp := range exps {
			expected, err := common.ModPow(base, exp, pk.N)
			require.NoError(t, err)
			got, err := pk.Exp(base, exp)
			require.NoError(t, err)
			require.Zero(t, expected.Cmp(got), "base %s exp %s", base, exp)
		}
	}
}

func TestMultiExp(t *testing.T) {
	_, pk := testKeyPair(t)
	a, b := big.NewInt(3), big.NewInt(-5)
	got, err := pk.MultiExp([]*big.Int{pk.S, pk.R[0]}, []*big.Int{a, b})
	require.NoError(t, err)

	x, _ := common.ModPow(pk.S, a, pk.N)
	y, _ := common.ModPow(pk.R[0], b, pk.N)
	want := new(big.Int).Mul(x, y)
	require.Zero(t, got.Cmp(want.Mod(want, pk.N)))

	_, err = pk.MultiExp([]*big.Int{pk.S}, nil)
	require.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	_, pk1 := testKeyPair(t)
	_, pk2 := testKeyPair(t)
	require.Zero(t, pk1.Fingerprint().Cmp(pk1.Fingerprint()))
	require.NotZero(t, pk1.Fingerprint().Cmp(pk2.Fingerprint()))

	// The multihash prefix of SHA2-256 is 0x12 0x20, followed by 32 bytes of digest.
	bts := pk1.Fingerprint().Bytes()
	require.Len(t, bts, 34)
	require.Equal(t, byte(0x12), bts[0])
	require.Equal(t, byte(0x20), bts[1])
}
