package registry

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/big"
)

var (
	ErrDuplicateWrite = errors.New("registry key written twice")
	ErrReadMiss       = errors.New("registry key read before it was written")
)

// Registry is a write-once store for the values of a single session. It is not safe for
// concurrent use.
type Registry struct {
	values map[string]*big.Int
	keys   []Key
}

func New() *Registry {
	return &Registry{values: make(map[string]*big.Int)}
}

// Put stores a copy of v under k. Writing a key that already holds a value fails with
// ErrDuplicateWrite.
func (r *Registry) Put(k Key, v *big.Int) error {
	if err := k.Validate(); err != nil {
		return err
	}
	if v == nil {
		return errors.WrapPrefix(ErrInvalidKey, "nil value for "+k.String(), 0)
	}
	s := k.String()
	if _, ok := r.values[s]; ok {
		return errors.WrapPrefix(ErrDuplicateWrite, s, 0)
	}
	r.values[s] = new(big.Int).Set(v)
	r.keys = append(r.keys, k)
	return nil
}

// Get returns a copy of the value stored under k, or ErrReadMiss if there is none.
func (r *Registry) Get(k Key) (*big.Int, error) {
	v, ok := r.values[k.String()]
	if !ok {
		return nil, errors.WrapPrefix(ErrReadMiss, k.String(), 0)
	}
	return new(big.Int).Set(v), nil
}

// Has reports whether k holds a value.
func (r *Registry) Has(k Key) bool {
	_, ok := r.values[k.String()]
	return ok
}

// Keys returns all written keys in write order.
func (r *Registry) Keys() []Key {
	return append([]Key(nil), r.keys...)
}

func (r *Registry) Len() int {
	return len(r.keys)
}
