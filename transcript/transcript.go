// Package transcript contains the immutable key/value maps that cross the trust boundary: proof
// transcripts and the round messages of the issuing protocol.
package transcript

import (
	"fmt"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/registry"
)

// Kind distinguishes plain integers (responses, nonces, challenges) from group elements.
type Kind uint8

const (
	KindInt Kind = iota
	KindElement
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindElement:
		return "element"
	case KindNested:
		return "nested"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrMissingField   = errors.New("transcript field missing")
	ErrWrongKind      = errors.New("transcript field has the wrong kind")
	ErrDuplicateEntry = errors.New("transcript key occurs twice")
	ErrMalformed      = errors.New("malformed transcript")
)

// Value is one transcript value. Int is set for KindInt and KindElement, Nested for KindNested.
type Value struct {
	Kind   Kind
	Int    *big.Int
	Nested *Transcript
}

type Entry struct {
	Key   registry.Key
	Value Value
}

// Transcript is an ordered map from registry keys to values. It cannot be modified after it
// has been built.
type Transcript struct {
	entries []Entry
	index   map[string]int
}

func (t *Transcript) Len() int {
	return len(t.entries)
}

// Entries returns a copy of all entries in insertion order.
func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Keys returns all keys in insertion order.
func (t *Transcript) Keys() []registry.Key {
	keys := make([]registry.Key, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.Key
	}
	return keys
}

func (t *Transcript) Has(k registry.Key) bool {
	_, ok := t.index[k.String()]
	return ok
}

// Get returns the value under k.
func (t *Transcript) Get(k registry.Key) (Value, error) {
	i, ok := t.index[k.String()]
	if !ok {
		return Value{}, errors.WrapPrefix(ErrMissingField, k.String(), 0)
	}
	return t.entries[i].Value, nil
}

func (t *Transcript) get(k registry.Key, kind Kind) (Value, error) {
	v, err := t.Get(k)
	if err != nil {
		return v, err
	}
	if v.Kind != kind {
		return v, errors.WrapPrefix(ErrWrongKind, fmt.Sprintf("%s is %s, expected %s", k, v.Kind, kind), 0)
	}
	return v, nil
}

// Int returns a copy of the integer under k.
func (t *Transcript) Int(k registry.Key) (*big.Int, error) {
	v, err := t.get(k, KindInt)
	if err != nil {
		return nil, err
	}
	return v.Int.Clone(), nil
}

// Element returns a copy of the group element under k, which must lie in [1, n).
func (t *Transcript) Element(k registry.Key, n *big.Int) (*big.Int, error) {
	v, err := t.get(k, KindElement)
	if err != nil {
		return nil, err
	}
	if v.Int.Sign() <= 0 || v.Int.Cmp(n) >= 0 {
		return nil, errors.WrapPrefix(ErrMalformed, k.String()+" is not a group element", 0)
	}
	return v.Int.Clone(), nil
}

// Nested returns the transcript under k.
func (t *Transcript) Nested(k registry.Key) (*Transcript, error) {
	v, err := t.get(k, KindNested)
	if err != nil {
		return nil, err
	}
	return v.Nested, nil
}

// Builder assembles a transcript. The first error encountered is kept and returned by Build.
type Builder struct {
	t   *Transcript
	err error
}

func NewBuilder() *Builder {
	return &Builder{t: &Transcript{index: make(map[string]int)}}
}

func (b *Builder) add(k registry.Key, v Value) *Builder {
	if b.err != nil {
		return b
	}
	if b.t == nil {
		b.err = errors.New("transcript builder used after Build")
		return b
	}
	if err := k.Validate(); err != nil {
		b.err = err
		return b
	}
	if (v.Kind == KindNested) != (v.Nested != nil) || (v.Kind != KindNested) != (v.Int != nil) {
		b.err = errors.WrapPrefix(ErrMalformed, "empty value for "+k.String(), 0)
		return b
	}
	s := k.String()
	if _, ok := b.t.index[s]; ok {
		b.err = errors.WrapPrefix(ErrDuplicateEntry, s, 0)
		return b
	}
	b.t.index[s] = len(b.t.entries)
	b.t.entries = append(b.t.entries, Entry{Key: k, Value: v})
	return b
}

// Int adds an integer.
func (b *Builder) Int(k registry.Key, v *big.Int) *Builder {
	return b.add(k, Value{Kind: KindInt, Int: v.Clone()})
}

// Element adds a group element.
func (b *Builder) Element(k registry.Key, v *big.Int) *Builder {
	return b.add(k, Value{Kind: KindElement, Int: v.Clone()})
}

// Nested adds a nested transcript.
func (b *Builder) Nested(k registry.Key, t *Transcript) *Builder {
	return b.add(k, Value{Kind: KindNested, Nested: t})
}

// Build returns the transcript, or the first error encountered while adding entries. The
// builder must not be used afterwards.
func (b *Builder) Build() (*Transcript, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.t == nil {
		return nil, errors.New("transcript builder used after Build")
	}
	t := b.t
	b.t = nil
	return t, nil
}
