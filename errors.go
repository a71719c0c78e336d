// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of a CLI failure.
type ErrorType int

const (
	// ErrInternal is a failure of the CLI itself or of local resource
	// acquisition. The handle it was raised on should be discarded.
	ErrInternal ErrorType = iota
	// ErrData is a failure while executing a statement or transferring data.
	ErrData
	// ErrIntegrity is a constraint violation reported by the server.
	ErrIntegrity
	// ErrInterface is a misuse of this package, such as an unsupported value.
	ErrInterface
	// ErrNotSupported is an operation this package does not provide.
	ErrNotSupported
)

func (t ErrorType) String() string {
	switch t {
	case ErrInternal:
		return "internal error"
	case ErrData:
		return "data error"
	case ErrIntegrity:
		return "integrity error"
	case ErrInterface:
		return "interface error"
	case ErrNotSupported:
		return "not supported"
	default:
		return fmt.Sprintf("error type %d", int(t))
	}
}

// Error is the error returned by every operation of this package.
type Error struct {
	Type     ErrorType
	Status   Status
	SQLState string
	Native   int32
	Message  string
	Query    string
}

// Error returns the error message.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("sqlcli: ")
	b.WriteString(e.Type.String())
	if e.SQLState != "" {
		b.WriteString(" [")
		b.WriteString(e.SQLState)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// NewError creates a new Error.
func NewError(typ ErrorType, message string) *Error {
	return &Error{
		Type:    typ,
		Message: message,
	}
}

func errorf(typ ErrorType, format string, args ...any) *Error {
	return NewError(typ, fmt.Sprintf(format, args...))
}

// IsError checks if an error is of a specific type. Integrity errors are
// also data errors.
func IsError(err error, typ ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Type == typ {
		return true
	}
	return typ == ErrData && e.Type == ErrIntegrity
}

// Warning is a diagnostic attached to a call that completed with
// SuccessWithInfo. Warnings never abort an operation.
type Warning struct {
	SQLState string
	Native   int32
	Message  string
}

func (w Warning) String() string {
	if w.SQLState == "" {
		return w.Message
	}
	return fmt.Sprintf("[%s] %s", w.SQLState, w.Message)
}

// DiagRecord is one diagnostic record reported by a driver for its most
// recent call.
type DiagRecord struct {
	SQLState string
	Native   int32
	Message  string
}

// integrityClass is the SQLSTATE class for constraint violations.
const integrityClass = "23"

// mapStatus converts a failed driver status and its diagnostics into an
// *Error. It returns nil for successful statuses.
func mapStatus(st Status, diags []DiagRecord, query string) error {
	if st.Succeeded() || st == NoData || st == NeedData {
		return nil
	}

	e := &Error{Status: st, Query: query}
	if len(diags) > 0 {
		d := diags[0]
		e.SQLState = d.SQLState
		e.Native = d.Native
		e.Message = d.Message
	}

	switch st {
	case InvalidHandle:
		e.Type = ErrInternal
		if e.Message == "" {
			e.Message = "invalid handle"
		}
	case Failed:
		e.Type = ErrData
		if strings.HasPrefix(e.SQLState, integrityClass) {
			e.Type = ErrIntegrity
		}
		if e.Message == "" {
			e.Message = "call failed"
		}
	default:
		e.Type = ErrInternal
		if e.Message == "" {
			e.Message = fmt.Sprintf("unexpected status %d", int(st))
		}
	}
	return e
}

func warningsFrom(diags []DiagRecord) []Warning {
	if len(diags) == 0 {
		return nil
	}
	ws := make([]Warning, len(diags))
	for i, d := range diags {
		ws[i] = Warning{SQLState: d.SQLState, Native: d.Native, Message: d.Message}
	}
	return ws
}
