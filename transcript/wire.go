package transcript

import (
	"io"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/registry"
)

// wireEntry is the encoding of one entry: [key, kind, int, nested] where exactly one of int
// and nested is non-null.
type wireEntry struct {
	_      struct{} `cbor:",toarray"`
	Key    string
	Kind   Kind
	Int    *big.Int
	Nested *Transcript
}

// MarshalCBOR encodes the transcript as an array of entries in insertion order.
func (t *Transcript) MarshalCBOR() ([]byte, error) {
	wire := make([]wireEntry, len(t.entries))
	for i, e := range t.entries {
		wire[i] = wireEntry{Key: e.Key.String(), Kind: e.Value.Kind, Int: e.Value.Int, Nested: e.Value.Nested}
	}
	return Marshal(wire)
}

// UnmarshalCBOR decodes a transcript, checking every key and value.
func (t *Transcript) UnmarshalCBOR(data []byte) error {
	var wire []wireEntry
	if err := Unmarshal(data, &wire); err != nil {
		return errors.WrapPrefix(ErrMalformed, err.Error(), 0)
	}

	b := NewBuilder()
	for _, w := range wire {
		k, err := registry.ParseKey(w.Key)
		if err != nil {
			return errors.WrapPrefix(ErrMalformed, err.Error(), 0)
		}
		switch w.Kind {
		case KindInt, KindElement:
			if w.Nested != nil {
				return errors.WrapPrefix(ErrMalformed, "unexpected nested transcript under "+w.Key, 0)
			}
			b.add(k, Value{Kind: w.Kind, Int: w.Int})
		case KindNested:
			if w.Int != nil {
				return errors.WrapPrefix(ErrMalformed, "unexpected integer under "+w.Key, 0)
			}
			b.add(k, Value{Kind: w.Kind, Nested: w.Nested})
		default:
			return errors.WrapPrefix(ErrMalformed, "unknown kind for "+w.Key, 0)
		}
	}
	decoded, err := b.Build()
	if err != nil {
		if errors.Is(err, ErrDuplicateEntry) || errors.Is(err, ErrMalformed) {
			return err
		}
		return errors.WrapPrefix(ErrMalformed, err.Error(), 0)
	}
	*t = *decoded
	return nil
}

// Encode writes the CBOR encoding of t to w.
func (t *Transcript) Encode(w io.Writer) error {
	return NewEncoder(w).Encode(t)
}

// Decode reads one transcript from r.
func Decode(r io.Reader) (*Transcript, error) {
	t := &Transcript{}
	if err := NewDecoder(r).Decode(t); err != nil {
		return nil, err
	}
	return t, nil
}
