// Package registry holds the values of one proving or verifying session, addressed by
// structured keys of the form <namespace>.<kind>.<role>[_<index>].
package registry

import (
	"strconv"
	"strings"

	"github.com/go-errors/errors"
)

const (
	Proving   = "proving"
	Verifying = "verifying"
	Issuing   = "issuing"
)

// Clause kinds that own registry values.
const (
	KindPossession = "possession"
	KindCommitment = "commitment"
	KindPairwise   = "pairwise"
	KindSigning    = "signing"
	KindContext    = "context"
)

var ErrInvalidKey = errors.New("invalid registry key")

// Key addresses one value. Two keys are equal iff their rendered forms are equal; Validate
// guarantees that rendering is injective.
type Key struct {
	Namespace string
	Kind      string
	Role      string
	Index     int
	Indexed   bool
}

// NewKey returns an unindexed key.
func NewKey(namespace, kind, role string) Key {
	return Key{Namespace: namespace, Kind: kind, Role: role}
}

// NewIndexedKey returns a key for one member of an enumerable role.
func NewIndexedKey(namespace, kind, role string, index int) Key {
	return Key{Namespace: namespace, Kind: kind, Role: role, Index: index, Indexed: true}
}

func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(k.Namespace)
	sb.WriteByte('.')
	sb.WriteString(k.Kind)
	sb.WriteByte('.')
	sb.WriteString(k.Role)
	if k.Indexed {
		sb.WriteByte('_')
		sb.WriteString(strconv.Itoa(k.Index))
	}
	return sb.String()
}

// Validate checks that the key renders unambiguously: namespace and kind are non-empty
// lowercase words, the role is a non-empty identifier that does not itself end in _<digits>,
// and the index, if any, is not negative.
func (k Key) Validate() error {
	if !isWord(k.Namespace) {
		return errors.WrapPrefix(ErrInvalidKey, "namespace "+strconv.Quote(k.Namespace), 0)
	}
	if !isWord(k.Kind) {
		return errors.WrapPrefix(ErrInvalidKey, "kind "+strconv.Quote(k.Kind), 0)
	}
	if !isRole(k.Role) {
		return errors.WrapPrefix(ErrInvalidKey, "role "+strconv.Quote(k.Role), 0)
	}
	if k.Indexed && k.Index < 0 {
		return errors.WrapPrefix(ErrInvalidKey, "negative index "+strconv.Itoa(k.Index), 0)
	}
	return nil
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return Key{}, errors.WrapPrefix(ErrInvalidKey, strconv.Quote(s), 0)
	}
	k := Key{Namespace: parts[0], Kind: parts[1], Role: parts[2]}
	if i := strings.LastIndexByte(k.Role, '_'); i >= 0 && isDigits(k.Role[i+1:]) {
		idx, err := strconv.Atoi(k.Role[i+1:])
		if err != nil {
			return Key{}, errors.WrapPrefix(ErrInvalidKey, strconv.Quote(s), 0)
		}
		k.Role, k.Index, k.Indexed = k.Role[:i], idx, true
	}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	if k.String() != s {
		// e.g. leading zeros in the index
		return Key{}, errors.WrapPrefix(ErrInvalidKey, "non-canonical "+strconv.Quote(s), 0)
	}
	return k, nil
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func isRole(s string) bool {
	if s == "" || s[0] == '_' || s[len(s)-1] == '_' {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	if i := strings.LastIndexByte(s, '_'); i >= 0 && isDigits(s[i+1:]) {
		return false
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
