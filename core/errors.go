package core

import "fmt"

// ErrorKind is the stable error taxonomy from spec §7.
type ErrorKind int

const (
	KindInvalidArgument ErrorKind = 1
	KindInvalidState    ErrorKind = 2
	KindNotFound        ErrorKind = 3
	KindRateLimit       ErrorKind = 4
	KindExternal        ErrorKind = 5
	KindInternal        ErrorKind = 6
)

// httpStatus maps an ErrorKind to the HTTP status the transport layer
// should use (spec §6/§7).
func (k ErrorKind) httpStatus() int {
	switch k {
	case KindInvalidArgument, KindInvalidState, KindRateLimit:
		return 400
	case KindNotFound:
		return 404
	default:
		return 500
	}
}

// reason is the SCREAMING_SNAKE_CASE wire reason for the error envelope.
func (k ErrorKind) reason() string {
	switch k {
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindRateLimit:
		return "RATE_LIMIT"
	case KindExternal:
		return "EXTERNAL"
	default:
		return "INTERNAL"
	}
}

// JudgeError is the error type returned by every validating operation in
// C1-C7. Verdict outcomes of judged programs are data, never a JudgeError.
type JudgeError struct {
	Kind    ErrorKind
	Message string
}

func (e *JudgeError) Error() string {
	return e.Message
}

func newErr(kind ErrorKind, format string, args ...any) *JudgeError {
	return &JudgeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *JudgeError {
	return newErr(KindNotFound, format, args...)
}

func invalidArgument(format string, args ...any) *JudgeError {
	return newErr(KindInvalidArgument, format, args...)
}

func invalidState(format string, args ...any) *JudgeError {
	return newErr(KindInvalidState, format, args...)
}

func rateLimit(format string, args ...any) *JudgeError {
	return newErr(KindRateLimit, format, args...)
}

func external(format string, args ...any) *JudgeError {
	return newErr(KindExternal, format, args...)
}
