package transcript

import (
	"github.com/privacybydesign/graphsig/big"
	"github.com/privacybydesign/graphsig/registry"
)

// ErrorCode tells the peer why an exchange was aborted.
type ErrorCode int64

const (
	CodeUnspecified ErrorCode = iota
	CodeMalformedMessage
	CodeVerificationFailed
	CodeWrongState
)

func (c ErrorCode) String() string {
	switch c {
	case CodeMalformedMessage:
		return "malformed message"
	case CodeVerificationFailed:
		return "verification failed"
	case CodeWrongState:
		return "unexpected message for protocol state"
	default:
		return "unspecified error"
	}
}

// ErrorKey marks a round message as an error message.
var ErrorKey = registry.NewKey(registry.Issuing, registry.KindContext, "error")

// NewErrorMessage returns a round message carrying only an error code.
func NewErrorMessage(code ErrorCode) *Transcript {
	t, err := NewBuilder().Int(ErrorKey, big.NewInt(int64(code))).Build()
	if err != nil {
		panic(err) // ErrorKey is valid
	}
	return t
}

// ErrorCode returns the code of an error message. The second return value is false if t is
// not an error message.
func (t *Transcript) ErrorCode() (ErrorCode, bool) {
	v, err := t.Get(ErrorKey)
	if err != nil {
		return 0, false
	}
	if v.Kind != KindInt || !v.Int.IsInt64() {
		return CodeUnspecified, true
	}
	return ErrorCode(v.Int.Int64()), true
}
