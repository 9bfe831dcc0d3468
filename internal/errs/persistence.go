package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound marks a write that targeted a row which does not exist.
//
// Reads never return it: a read that finds nothing returns an absent result.
var ErrNotFound = errors.New("record not found")

// PersistenceError is the only error kind returned by the repositories.
//
// Fields:
//   - Op: the attempted operation, e.g. "create smile".
//   - Subject: the identifying argument of the operation (entity or id).
//   - Code: machine-friendly code, e.g. "SMILE_NOT_FOUND".
//   - Message: human-friendly description of what went wrong.
//   - Err: the underlying store failure.
type PersistenceError struct {
	Op      string
	Subject any
	Code    string
	Message string
	Err     error
}

// Error renders "couldn't <op> <subject>: <message>: <cause>".
func (e *PersistenceError) Error() string {
	var b strings.Builder
	b.WriteString("couldn't ")
	b.WriteString(e.Op)
	if e.Subject != nil {
		fmt.Fprintf(&b, " %v", e.Subject)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying store error to errors.Is / errors.As.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is also a *PersistenceError.
//
// Like the HTTP error it replaces, it only compares the type, so
//
//	errors.Is(err, &errs.PersistenceError{})
//
// is true for any persistence failure regardless of Code.
func (e *PersistenceError) Is(target error) bool {
	_, ok := target.(*PersistenceError)
	return ok
}

// New builds a PersistenceError with the generic internal code.
func New(op string, subject any, err error) *PersistenceError {
	return &PersistenceError{
		Op:      op,
		Subject: subject,
		Code:    CodeInternal,
		Message: "An error occurred while processing your request",
		Err:     err,
	}
}

// WithCode returns a copy of e with Code and Message replaced.
func (e *PersistenceError) WithCode(code, message string) *PersistenceError {
	return &PersistenceError{
		Op:      e.Op,
		Subject: e.Subject,
		Code:    code,
		Message: message,
		Err:     e.Err,
	}
}

// CodeInternal is used when a failure can't be attributed to a constraint.
const CodeInternal = "INTERNAL_ERROR"

// MakeUpperCaseWithUnderscores converts a string into an UPPER_CASE_WITH_UNDERSCORES format.
//
// Example:
//
//	"comment smile" -> "COMMENT_SMILE"
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}

// CodeOf returns the Code of the first PersistenceError in err's chain,
// or an empty string if there is none.
func CodeOf(err error) string {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
