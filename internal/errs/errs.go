// Package errs gives the CLI boundary a deterministic way to map a failure
// to an exit code, instead of string-sniffing fmt.Errorf messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// Unknown errors map to exit code 1, same as a bare error.
	Unknown Kind = iota
	InvalidArgument
	NotFound
	LockHeld
	NotAuthenticated
	Transient
	StorageCorruption
	ProtocolError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case LockHeld:
		return "LockHeld"
	case NotAuthenticated:
		return "NotAuthenticated"
	case Transient:
		return "Transient"
	case StorageCorruption:
		return "StorageCorruption"
	case ProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// ExitCode returns the CLI exit code for the kind, per the error-kind table:
// InvalidArgument -> 2, LockHeld -> 3, everything else -> 1.
func (k Kind) ExitCode() int {
	switch k {
	case InvalidArgument:
		return 2
	case LockHeld:
		return 3
	default:
		return 1
	}
}

// Error wraps an underlying error with a Kind, so the CLI layer can recover
// the kind via errors.As without changing the message text a caller sees.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a Kind-tagged error with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving its message and chain.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, walking the wrap chain. Returns Unknown
// if err (or nothing in its chain) was tagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// ExitCode maps any error, tagged or not, to a CLI exit code. A nil error
// exits 0; an untagged error exits 1 (runtime error).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
