// Package keys contains the issuer key pair, the parameters that fix all bit lengths, and the
// layout of an encoded graph over the bases of the public key.
package keys

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bwesterb/go-exptable"
	"github.com/go-errors/errors"
	"github.com/multiformats/go-multihash"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/internal/common"
	"github.com/privacybydesign/graphsig/safeprime"
)

type (
	// PublicKey represents an issuer's public key.
	PublicKey struct {
		XMLName    xml.Name           `xml:"GraphIssuerPublicKey"`
		Counter    uint               `xml:"Counter"`
		ExpiryDate int64              `xml:"ExpiryDate"`
		N          *big.Int           `xml:"Elements>n"` // Modulus n
		Z          *big.Int           `xml:"Elements>Z"` // Generator Z
		S          *big.Int           `xml:"Elements>S"` // Generator S
		R          Bases              `xml:"Elements>Bases"`
		Encoding   EncodingParameters `xml:"Encoding"`

		Params *SystemParameters `xml:"-"`

		tablesLock  sync.Mutex
		tables      map[string]*exptable.Table
		fingerprint *big.Int
	}

	// PrivateKey represents an issuer's private key.
	PrivateKey struct {
		XMLName    xml.Name `xml:"GraphIssuerPrivateKey"`
		Counter    uint     `xml:"Counter"`
		ExpiryDate int64    `xml:"ExpiryDate"`
		P          *big.Int `xml:"Elements>p"`
		Q          *big.Int `xml:"Elements>q"`
		PPrime     *big.Int `xml:"Elements>pPrime"`
		QPrime     *big.Int `xml:"Elements>qPrime"`

		N     *big.Int `xml:"-"`
		Order *big.Int `xml:"-"`
	}
)

const (
	//XMLHeader can be a used as the XML header when writing keys in XML format.
	XMLHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"no\"?>\n"

	// tableWindow is the window size of the fixed-base exponentiation tables.
	tableWindow = 6
)

var (
	ErrUnknownKeyLength = errors.New("no system parameters for key length")
	ErrInvalidKey       = errors.New("invalid key")
)

// NewPrivateKey creates a new issuer private key from the two safe primes p and q.
func NewPrivateKey(p, q *big.Int, counter uint, expiryDate time.Time) (*PrivateKey, error) {
	sk := &PrivateKey{
		P:          p,
		Q:          q,
		PPrime:     new(big.Int).Rsh(p, 1),
		QPrime:     new(big.Int).Rsh(q, 1),
		Counter:    counter,
		ExpiryDate: expiryDate.Unix(),
	}
	if err := sk.Validate(); err != nil {
		return nil, err
	}
	sk.complete()
	return sk, nil
}

func (privk *PrivateKey) complete() {
	privk.N = new(big.Int).Mul(privk.P, privk.Q)
	privk.Order = new(big.Int).Mul(privk.PPrime, privk.QPrime)
}

// NewPrivateKeyFromXML creates a new issuer private key using the XML data
// provided. Unless demo is set the primes are checked to be safe primes.
func NewPrivateKeyFromXML(xmlInput string, demo bool) (*PrivateKey, error) {
	privk := &PrivateKey{}
	if err := xml.Unmarshal([]byte(xmlInput), privk); err != nil {
		return nil, err
	}
	if privk.P == nil || privk.Q == nil || privk.PPrime == nil || privk.QPrime == nil {
		return nil, errors.WrapPrefix(ErrInvalidKey, "private key misses a prime", 0)
	}

	if !demo {
		if err := privk.Validate(); err != nil {
			return nil, err
		}
	}

	privk.complete()
	return privk, nil
}

// NewPrivateKeyFromFile creates a new issuer private key from an XML file.
func NewPrivateKeyFromFile(filename string, demo bool) (*PrivateKey, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeyFromXML(string(b), demo)
}

// Validate checks that P and Q are safe primes matching P' and Q'.
func (privk *PrivateKey) Validate() error {
	if new(big.Int).Rsh(new(big.Int).Sub(privk.P, big.NewInt(1)), 1).Cmp(privk.PPrime) != 0 {
		return errors.WrapPrefix(ErrInvalidKey, "incompatible values for P and P'", 0)
	}
	if new(big.Int).Rsh(new(big.Int).Sub(privk.Q, big.NewInt(1)), 1).Cmp(privk.QPrime) != 0 {
		return errors.WrapPrefix(ErrInvalidKey, "incompatible values for Q and Q'", 0)
	}
	if !safeprime.ProbablySafePrime(privk.P, 40) {
		return errors.WrapPrefix(ErrInvalidKey, "P is not a safe prime", 0)
	}
	if !safeprime.ProbablySafePrime(privk.Q, 40) {
		return errors.WrapPrefix(ErrInvalidKey, "Q is not a safe prime", 0)
	}
	if privk.P.Cmp(privk.Q) == 0 {
		return errors.WrapPrefix(ErrInvalidKey, "P equals Q", 0)
	}
	return nil
}

// WriteTo writes the XML-serialized private key to the given writer.
func (privk *PrivateKey) WriteTo(writer io.Writer) (int64, error) {
	return writeXML(writer, privk)
}

// WriteToFile writes the private key to an XML file. If any existing file with
// the same filename should be overwritten, set forceOverwrite to true.
func (privk *PrivateKey) WriteToFile(filename string, forceOverwrite bool) (int64, error) {
	return writeXMLFile(filename, forceOverwrite, 0600, privk)
}

// NewPublicKey creates and returns a new public key based on the provided parameters.
func NewPublicKey(N, Z, S *big.Int, R []*big.Int, enc EncodingParameters, counter uint, expiryDate time.Time) (*PublicKey, error) {
	pk := &PublicKey{
		Counter:    counter,
		ExpiryDate: expiryDate.Unix(),
		N:          N,
		Z:          Z,
		S:          S,
		R:          R,
		Encoding:   enc,
	}
	if err := pk.complete(); err != nil {
		return nil, err
	}
	return pk, nil
}

func (pubk *PublicKey) complete() error {
	if pubk.N == nil || pubk.Z == nil || pubk.S == nil {
		return errors.WrapPrefix(ErrInvalidKey, "public key misses an element", 0)
	}
	keylength := pubk.N.BitLen()
	sysparam, ok := DefaultSystemParameters[keylength]
	if !ok {
		return errors.WrapPrefix(ErrUnknownKeyLength, strconv.Itoa(keylength), 0)
	}
	pubk.Params = sysparam
	if err := pubk.Encoding.Validate(sysparam); err != nil {
		return err
	}
	if len(pubk.R) < pubk.Encoding.NumBases() {
		return errors.WrapPrefix(ErrInvalidKey,
			fmt.Sprintf("encoding needs %d bases, key has %d", pubk.Encoding.NumBases(), len(pubk.R)), 0)
	}
	return nil
}

// NewPublicKeyFromBytes creates a new issuer public key using the XML data
// provided.
func NewPublicKeyFromBytes(bts []byte) (*PublicKey, error) {
	pubk := &PublicKey{}
	if err := xml.Unmarshal(bts, pubk); err != nil {
		return nil, err
	}
	if err := pubk.complete(); err != nil {
		return nil, err
	}
	return pubk, nil
}

func NewPublicKeyFromXML(xmlInput string) (*PublicKey, error) {
	return NewPublicKeyFromBytes([]byte(xmlInput))
}

// NewPublicKeyFromFile creates a new issuer public key from an XML file.
func NewPublicKeyFromFile(filename string) (*PublicKey, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewPublicKeyFromBytes(b)
}

// WriteTo writes the XML-serialized public key to the given writer.
func (pubk *PublicKey) WriteTo(writer io.Writer) (int64, error) {
	return writeXML(writer, pubk)
}

// WriteToFile writes the public key to an XML file. If any existing file with
// the same filename should be overwritten, set forceOverwrite to true.
func (pubk *PublicKey) WriteToFile(filename string, forceOverwrite bool) (int64, error) {
	return writeXMLFile(filename, forceOverwrite, 0644, pubk)
}

func writeXML(writer io.Writer, v interface{}) (int64, error) {
	// Write the standard XML header
	numHeaderBytes, err := writer.Write([]byte(XMLHeader))
	if err != nil {
		return 0, err
	}

	// And the actual XML body (with indentation)
	b, err := xml.MarshalIndent(v, "", "   ")
	if err != nil {
		return int64(numHeaderBytes), err
	}
	numBodyBytes, err := writer.Write(b)
	return int64(numHeaderBytes + numBodyBytes), err
}

func writeXMLFile(filename string, forceOverwrite bool, perm os.FileMode, v interface{}) (int64, error) {
	var f *os.File
	var err error
	if forceOverwrite {
		f, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	} else {
		// This should return an error if the file already exists
		f, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
	}
	if err != nil {
		return 0, err
	}
	defer common.Close(f)

	return writeXML(f, v)
}

// findMatch returns the first element of safeprimes that makes a suitable pair with p:
// p*q has the required bit length and p != q mod 8.
func findMatch(safeprimes []*big.Int, param *SystemParameters, p *big.Int) *big.Int {
	eight := big.NewInt(8)
	n, pMod8, qMod8 := new(big.Int), new(big.Int), new(big.Int)
	for _, q := range safeprimes {
		if uint(n.Mul(p, q).BitLen()) == param.Ln && pMod8.Mod(p, eight).Cmp(qMod8.Mod(q, eight)) != 0 {
			return q
		}
	}
	return nil
}

func generateSafePrimePair(ctx context.Context, param *SystemParameters) (p, q *big.Int, err error) {
	safeprimes := make([]*big.Int, 0, 10) // all safe primes seen so far, until a pair fits
	pPrimeMod8 := new(big.Int)

	err = safeprime.GenerateConcurrent(ctx, int(param.Ln/2), func(candidate *big.Int) bool {
		// Require p' mod 8 != 1
		if pPrimeMod8.Mod(new(big.Int).Rsh(candidate, 1), big.NewInt(8)).Int64() == 1 {
			return false
		}
		if match := findMatch(safeprimes, param, candidate); match != nil {
			p, q = candidate, match
			return true
		}
		safeprimes = append(safeprimes, candidate)
		return false
	})
	if err != nil {
		return nil, nil, err
	}
	return p, q, nil
}

// GenerateKeyPair generates a private/public keypair for an issuer whose public key has enough
// bases for the given graph encoding.
func GenerateKeyPair(ctx context.Context, param *SystemParameters, enc EncodingParameters, counter uint, expiryDate time.Time) (*PrivateKey, *PublicKey, error) {
	if err := enc.Validate(param); err != nil {
		return nil, nil, err
	}
	p, q, err := generateSafePrimePair(ctx, param)
	if err != nil {
		return nil, nil, err
	}
	return NewKeyPairFromPrimes(p, q, enc, counter, expiryDate)
}

// NewKeyPairFromPrimes builds a key pair on top of two existing safe primes, picking fresh
// random generators S, Z and R_i.
func NewKeyPairFromPrimes(p, q *big.Int, enc EncodingParameters, counter uint, expiryDate time.Time) (*PrivateKey, *PublicKey, error) {
	priv, err := NewPrivateKey(p, q, counter, expiryDate)
	if err != nil {
		return nil, nil, err
	}
	param, ok := DefaultSystemParameters[priv.N.BitLen()]
	if !ok {
		return nil, nil, errors.WrapPrefix(ErrUnknownKeyLength, strconv.Itoa(priv.N.BitLen()), 0)
	}

	// S is a random quadratic residue that is 1 modulo neither prime, so it generates QR_N.
	var s *big.Int
	one := big.NewInt(1)
	for {
		s, err = common.RandomQR(priv.N)
		if err != nil {
			return nil, nil, err
		}
		if new(big.Int).GCD(nil, nil, new(big.Int).Sub(s, one), priv.N).Cmp(one) == 0 {
			break
		}
	}

	// Z and all R_i are random powers of S.
	derive := func() (*big.Int, error) {
		for {
			x, err := common.RandomBigInt(param.Ln / 2)
			if err != nil {
				return nil, err
			}
			if x.Cmp(big.NewInt(2)) > 0 {
				return new(big.Int).Exp(s, x, priv.N), nil
			}
		}
	}

	z, err := derive()
	if err != nil {
		return nil, nil, err
	}
	r := make([]*big.Int, enc.NumBases())
	for i := range r {
		if r[i], err = derive(); err != nil {
			return nil, nil, err
		}
	}

	pub, err := NewPublicKey(priv.N, z, s, r, enc, counter, expiryDate)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// table returns the exponentiation table for base, computing it on first use. It returns nil
// if base is not one of the generators of this key.
func (pubk *PublicKey) table(base *big.Int) *exptable.Table {
	if !pubk.isGenerator(base) {
		return nil
	}
	pubk.tablesLock.Lock()
	defer pubk.tablesLock.Unlock()
	if pubk.tables == nil {
		pubk.tables = make(map[string]*exptable.Table)
	}
	k := base.String()
	t, ok := pubk.tables[k]
	if !ok {
		t = &exptable.Table{}
		t.Compute(base.Go(), pubk.N.Go(), tableWindow)
		pubk.tables[k] = t
	}
	return t
}

func (pubk *PublicKey) isGenerator(base *big.Int) bool {
	if base.Cmp(pubk.S) == 0 || base.Cmp(pubk.Z) == 0 {
		return true
	}
	for _, r := range pubk.R {
		if base.Cmp(r) == 0 {
			return true
		}
	}
	return false
}

// Exp computes base^exp mod N. Exponentiations of the key's generators with a non-negative
// exponent shorter than N use precomputed tables; negative exponents go through the modular
// inverse.
func (pubk *PublicKey) Exp(base, exp *big.Int) (*big.Int, error) {
	if exp.Sign() >= 0 && exp.BitLen() < pubk.N.BitLen() {
		if t := pubk.table(base); t != nil {
			ret := new(big.Int)
			t.Exp(ret.Go(), exp.Go())
			return ret, nil
		}
	}
	return common.ModPow(base, exp, pubk.N)
}

// MultiExp computes the product of bases[i]^exps[i] mod N.
func (pubk *PublicKey) MultiExp(bases, exps []*big.Int) (*big.Int, error) {
	if len(bases) != len(exps) {
		return nil, errors.Errorf("%d bases but %d exponents", len(bases), len(exps))
	}
	r := big.NewInt(1)
	for i := range bases {
		t, err := pubk.Exp(bases[i], exps[i])
		if err != nil {
			return nil, err
		}
		r.Mul(r, t).Mod(r, pubk.N)
	}
	return r, nil
}

// Fingerprint returns the context fingerprint that binds every challenge to the system
// parameters, the graph encoding and this public key: the integer value of a SHA2-256
// multihash over all of them.
func (pubk *PublicKey) Fingerprint() *big.Int {
	pubk.tablesLock.Lock()
	defer pubk.tablesLock.Unlock()
	if pubk.fingerprint != nil {
		return pubk.fingerprint
	}

	p, e := pubk.Params, pubk.Encoding
	values := []*big.Int{
		big.NewInt(int64(p.LePrime)), big.NewInt(int64(p.Lh)), big.NewInt(int64(p.Lm)),
		big.NewInt(int64(p.Ln)), big.NewInt(int64(p.Lstatzk)),
		big.NewInt(int64(e.MaxVertices)), big.NewInt(int64(e.MaxEdges)),
		big.NewInt(int64(e.LPrimeVertex)), big.NewInt(int64(e.LPrimeLabel)), big.NewInt(int64(e.MaxLabels)),
		pubk.N, pubk.Z, pubk.S,
	}
	values = append(values, pubk.R...)

	mh, err := multihash.Sum(common.EncodeList(values), multihash.SHA2_256, -1)
	if err != nil {
		panic(err) // SHA2_256 is always available
	}
	pubk.fingerprint = new(big.Int).SetBytes(mh)
	return pubk.fingerprint
}
