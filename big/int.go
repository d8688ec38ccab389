// Package big contains a mostly API-compatible "math/big".Int that marshals compactly to
// JSON, XML and CBOR. Unlike the integers in a signature or key, the responses of a
// zero-knowledge proof may be negative, so all encodings carry the sign.
package big

import (
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-errors/errors"
)

// Int is an API-compatible "math/big".Int.
type Int big.Int

const (
	signPositive byte = 0x00
	signNegative byte = 0x01
)

var ErrMalformed = errors.New("malformed integer encoding")

func (i *Int) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(i.String(), start)
}

// UnmarshalXML implements xml.Unmarshaler, attempting to parse the text of the specified element
// as a base 10 integer.
func (i *Int) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	tmp := struct {
		Str string `xml:",chardata"`
	}{}
	if err := d.DecodeElement(&tmp, &start); err != nil {
		return err
	}
	if _, ok := i.SetString(tmp.Str, 10); !ok {
		return errors.New("XML element was not a base 10 integer")
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler, returning the base64-encoding
// of the absolute value, prefixed with '-' for negative numbers.
func (i *Int) MarshalText() ([]byte, error) {
	bts := i.Go().Bytes()
	n := base64.StdEncoding.EncodedLen(len(bts))
	if i.Sign() < 0 {
		enc := make([]byte, n+1)
		enc[0] = '-'
		base64.StdEncoding.Encode(enc[1:], bts)
		return enc, nil
	}
	enc := make([]byte, n)
	base64.StdEncoding.Encode(enc, bts)
	return enc, nil
}

// UnmarshalText implements encoding.TextUnmarshaler, the inverse of MarshalText.
func (i *Int) UnmarshalText(text []byte) error {
	neg := len(text) > 0 && text[0] == '-'
	if neg {
		text = text[1:]
	}
	bts := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(bts, text)
	if err != nil {
		return errors.WrapPrefix(ErrMalformed, err.Error(), 0)
	}
	i.SetBytes(bts[:n])
	if neg {
		i.Neg(i)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. If the input is quoted it is decoded using
// UnmarshalText. Otherwise it attempts to unmarshal the input as a JSON base 10 big integer.
func (i *Int) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return ErrMalformed
	}
	if b[0] != '"' {
		return json.Unmarshal(b, i.Go())
	}
	if len(b) < 2 || b[len(b)-1] != '"' {
		return ErrMalformed
	}
	return i.UnmarshalText(b[1 : len(b)-1])
}

// MarshalCBOR encodes the integer as a CBOR byte string holding one sign byte followed by
// the big-endian absolute value.
func (i *Int) MarshalCBOR() ([]byte, error) {
	mag := i.Go().Bytes()
	bts := make([]byte, 1+len(mag))
	if i.Sign() < 0 {
		bts[0] = signNegative
	}
	copy(bts[1:], mag)
	return cbor.Marshal(bts)
}

// UnmarshalCBOR implements cbor.Unmarshaler, the inverse of MarshalCBOR.
func (i *Int) UnmarshalCBOR(data []byte) error {
	var bts []byte
	if err := cbor.Unmarshal(data, &bts); err != nil {
		return err
	}
	if len(bts) == 0 || bts[0] > signNegative {
		return ErrMalformed
	}
	i.SetBytes(bts[1:])
	if bts[0] == signNegative {
		if i.Sign() == 0 {
			return ErrMalformed
		}
		i.Neg(i)
	}
	return nil
}

// RandInt wraps "crypto/rand".Int:
// returns a uniform random value in [0, max). It panics if max <= 0.
func RandInt(rnd io.Reader, max *Int) (*Int, error) {
	i, err := cryptorand.Int(rnd, max.Go())
	return Convert(i), err
}

// Convert from a "math/big".Int
func Convert(x *big.Int) *Int {
	return (*Int)(x)
}

// Go converts to a "math/big".Int
func (i *Int) Go() *big.Int {
	return (*big.Int)(i)
}

// Clone returns a fresh copy of i; nil stays nil.
func (i *Int) Clone() *Int {
	if i == nil {
		return nil
	}
	return new(Int).Set(i)
}

// "math/big".Int API

func NewInt(x int64) *Int { return Convert(big.NewInt(x)) }

func (i *Int) Format(s fmt.State, ch rune)        { i.Go().Format(s, ch) }
func (i *Int) Bit(j int) uint                     { return i.Go().Bit(j) }
func (i *Int) Bytes() []byte                      { return i.Go().Bytes() }
func (i *Int) BitLen() int                        { return i.Go().BitLen() }
func (i *Int) Int64() int64                       { return i.Go().Int64() }
func (i *Int) Uint64() uint64                     { return i.Go().Uint64() }
func (i *Int) IsInt64() bool                      { return i.Go().IsInt64() }
func (i *Int) Sign() int                          { return i.Go().Sign() }
func (i *Int) Cmp(y *Int) int                     { return i.Go().Cmp(y.Go()) }
func (i *Int) CmpAbs(y *Int) int                  { return i.Go().CmpAbs(y.Go()) }
func (i *Int) ProbablyPrime(n int) bool           { return i.Go().ProbablyPrime(n) }
func (i *Int) String() string                     { return i.Go().String() }
func (i *Int) Append(buf []byte, base int) []byte { return i.Go().Append(buf, base) }
func (i *Int) Text(base int) string               { return i.Go().Text(base) }
func (i *Int) SetInt64(x int64) *Int              { return Convert(i.Go().SetInt64(x)) }
func (i *Int) SetUint64(x uint64) *Int            { return Convert(i.Go().SetUint64(x)) }
func (i *Int) Set(x *Int) *Int                    { return Convert(i.Go().Set(x.Go())) }
func (i *Int) Abs(x *Int) *Int                    { return Convert(i.Go().Abs(x.Go())) }
func (i *Int) Neg(x *Int) *Int                    { return Convert(i.Go().Neg(x.Go())) }
func (i *Int) Add(x, y *Int) *Int                 { return Convert(i.Go().Add(x.Go(), y.Go())) }
func (i *Int) Sub(x, y *Int) *Int                 { return Convert(i.Go().Sub(x.Go(), y.Go())) }
func (i *Int) Mul(x, y *Int) *Int                 { return Convert(i.Go().Mul(x.Go(), y.Go())) }
func (i *Int) Quo(x, y *Int) *Int                 { return Convert(i.Go().Quo(x.Go(), y.Go())) }
func (i *Int) Rem(x, y *Int) *Int                 { return Convert(i.Go().Rem(x.Go(), y.Go())) }
func (i *Int) Div(x, y *Int) *Int                 { return Convert(i.Go().Div(x.Go(), y.Go())) }
func (i *Int) Mod(x, y *Int) *Int                 { return Convert(i.Go().Mod(x.Go(), y.Go())) }
func (i *Int) SetBytes(buf []byte) *Int           { return Convert(i.Go().SetBytes(buf)) }
func (i *Int) Lsh(x *Int, n uint) *Int            { return Convert(i.Go().Lsh(x.Go(), n)) }
func (i *Int) Rsh(x *Int, n uint) *Int            { return Convert(i.Go().Rsh(x.Go(), n)) }
func (i *Int) Or(x, y *Int) *Int                  { return Convert(i.Go().Or(x.Go(), y.Go())) }
func (i *Int) Xor(x, y *Int) *Int                 { return Convert(i.Go().Xor(x.Go(), y.Go())) }
func (i *Int) And(x, y *Int) *Int                 { return Convert(i.Go().And(x.Go(), y.Go())) }
func (i *Int) Exp(x, y, m *Int) *Int {
	return Convert(i.Go().Exp(x.Go(), y.Go(), m.Go()))
}
func (i *Int) GCD(x, y, a, b *Int) *Int {
	return Convert(i.Go().GCD(x.Go(), y.Go(), a.Go(), b.Go()))
}
func (i *Int) ModInverse(g, n *Int) *Int {
	return Convert(i.Go().ModInverse(g.Go(), n.Go()))
}
func (i *Int) SetBit(x *Int, j int, b uint) *Int {
	return Convert(i.Go().SetBit(x.Go(), j, b))
}
func (i *Int) SetString(s string, base int) (*Int, bool) {
	z, b := i.Go().SetString(s, base)
	return Convert(z), b
}
func (i *Int) QuoRem(x, y, r *Int) (*Int, *Int) {
	z, w := i.Go().QuoRem(x.Go(), y.Go(), r.Go())
	return Convert(z), Convert(w)
}
