package graphsig

import (
	"github.com/go-errors/errors"

	"github.com/privacybydesign/graphsig/clause"
	"github.com/privacybydesign/graphsig/registry"
	"github.com/privacybydesign/graphsig/transcript"
)

var (
	// ErrVerification is returned when a proof or signature does not verify: a challenge
	// mismatch, an out-of-range response or a false verification equation.
	ErrVerification = errors.New("verification failed")
	// ErrProtocol is returned for malformed messages, messages with missing fields, messages
	// flagged as error by the peer, and messages that do not fit the protocol state.
	ErrProtocol = errors.New("protocol error")
)

// stateError reports a message that does not fit the protocol state. It matches ErrProtocol.
type stateError struct {
	state IssuingState
}

func (e *stateError) Error() string {
	return "protocol error: unexpected message in state " + e.state.String()
}

func (e *stateError) Is(target error) bool {
	return target == ErrProtocol
}

// classify maps errors raised while checking received values onto the verification and
// protocol families.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrVerification), errors.Is(err, ErrProtocol):
		return err
	case errors.Is(err, clause.ErrResponseLength):
		return errors.WrapPrefix(ErrVerification, err.Error(), 0)
	case errors.Is(err, registry.ErrReadMiss),
		errors.Is(err, registry.ErrDuplicateWrite),
		errors.Is(err, registry.ErrInvalidKey),
		errors.Is(err, transcript.ErrMissingField),
		errors.Is(err, transcript.ErrWrongKind),
		errors.Is(err, transcript.ErrMalformed),
		errors.Is(err, transcript.ErrDuplicateEntry),
		errors.Is(err, clause.ErrPrecondition):
		return errors.WrapPrefix(ErrProtocol, err.Error(), 0)
	}
	return err
}

// errorCode is the code sent to the peer when err aborts an exchange.
func errorCode(err error) transcript.ErrorCode {
	var se *stateError
	switch {
	case errors.As(err, &se):
		return transcript.CodeWrongState
	case errors.Is(err, ErrVerification):
		return transcript.CodeVerificationFailed
	case errors.Is(err, ErrProtocol):
		return transcript.CodeMalformedMessage
	}
	return transcript.CodeUnspecified
}

// checkErrorMessage returns an ErrProtocol if msg is an error message.
func checkErrorMessage(msg *transcript.Transcript) error {
	if msg == nil {
		return errors.WrapPrefix(ErrProtocol, "no message", 0)
	}
	if code, ok := msg.ErrorCode(); ok {
		return errors.WrapPrefix(ErrProtocol, "peer aborted: "+code.String(), 0)
	}
	return nil
}
