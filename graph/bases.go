// Package graph encodes labelled graphs as exponents over the bases of an issuer public key.
package graph

import (
	"github.com/privacybydesign/graphsig/big"
)

// BaseRole tells what a base carries.
type BaseRole int

const (
	// BaseZero carries the master secret of the credential owner.
	BaseZero BaseRole = iota
	Vertex
	Edge
	// BaseR is the commitment base: it carries one exponent that is also carried by another
	// base, identified by the index of that base.
	BaseR
)

func (r BaseRole) String() string {
	switch r {
	case BaseZero:
		return "base_zero"
	case Vertex:
		return "vertex"
	case Edge:
		return "edge"
	case BaseR:
		return "base_r"
	default:
		return "unknown"
	}
}

// BaseRepresentation ties a generator to its secret exponent. Index is the position of the
// generator in the R bases of the public key, also for BaseR where it names the base whose
// exponent is committed to. Exponent is nil for parties that do not know it.
type BaseRepresentation struct {
	Base     *big.Int `cbor:"base" json:"base"`
	Exponent *big.Int `cbor:"exponent,omitempty" json:"exponent,omitempty"`
	Role     BaseRole `cbor:"role" json:"role"`
	Index    int      `cbor:"index" json:"index"`
}

// Public returns a copy without the exponent.
func (b *BaseRepresentation) Public() *BaseRepresentation {
	return &BaseRepresentation{Base: b.Base, Role: b.Role, Index: b.Index}
}

// BaseCollection is an ordered list of base representations.
type BaseCollection []*BaseRepresentation

// WithRole returns the representations of the given role, in collection order.
func (bc BaseCollection) WithRole(role BaseRole) BaseCollection {
	var r BaseCollection
	for _, b := range bc {
		if b.Role == role {
			r = append(r, b)
		}
	}
	return r
}

// Count returns the number of representations of the given role.
func (bc BaseCollection) Count(role BaseRole) int {
	n := 0
	for _, b := range bc {
		if b.Role == role {
			n++
		}
	}
	return n
}

// ByIndex returns the first representation of a non-BaseR role with the given index.
func (bc BaseCollection) ByIndex(index int) (*BaseRepresentation, bool) {
	for _, b := range bc {
		if b.Role != BaseR && b.Index == index {
			return b, true
		}
	}
	return nil, false
}

// Public returns the collection with all exponents stripped.
func (bc BaseCollection) Public() BaseCollection {
	r := make(BaseCollection, len(bc))
	for i, b := range bc {
		r[i] = b.Public()
	}
	return r
}

// Indices returns the indices of all representations, in collection order.
func (bc BaseCollection) Indices() []int {
	r := make([]int, len(bc))
	for i, b := range bc {
		r[i] = b.Index
	}
	return r
}

// Bases returns the generators, in collection order.
func (bc BaseCollection) Bases() []*big.Int {
	r := make([]*big.Int, len(bc))
	for i, b := range bc {
		r[i] = b.Base
	}
	return r
}

// Exponents returns the exponents, in collection order.
func (bc BaseCollection) Exponents() []*big.Int {
	r := make([]*big.Int, len(bc))
	for i, b := range bc {
		r[i] = b.Exponent
	}
	return r
}
