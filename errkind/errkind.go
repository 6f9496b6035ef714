// Package errkind defines the error taxonomy shared by every layer of
// classgraph: the page/allocator layer, the type system, the class
// catalog, node storage and the pattern engine all report failures
// through one of the kinds declared here.
package errkind

import (
	"github.com/pkg/errors"
)

// Kind identifies the category of a classgraph error, independent of the
// message attached to it.
type Kind byte

// Kinds, per spec §7.
const (
	// IoError reports a failure of the backing store.
	IoError Kind = iota
	// StructureError reports a magic mismatch, a corrupt header, or a
	// non-conforming serialized class.
	StructureError
	// BadArgument reports an arity mismatch or an invalid identifier.
	BadArgument
	// TypeError reports a serialized class form that could not be parsed.
	TypeError
	// NotFound reports an absent class or catalog entry.
	NotFound
	// AlreadyExists reports a duplicate class registration.
	AlreadyExists
	// NotImplemented reports an object too large for a page in the val
	// storage path, or an unsupported deserialization target.
	NotImplemented
	// RuntimeError reports an invariant breach, such as a slot expected
	// free being found occupied.
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case StructureError:
		return "StructureError"
	case BadArgument:
		return "BadArgument"
	case TypeError:
		return "TypeError"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case NotImplemented:
		return "NotImplemented"
	case RuntimeError:
		return "RuntimeError"
	default:
		return "UnknownError"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Cause() error  { return e.err }
func (e *kindError) Unwrap() error { return e.err }

// New returns an error of the given kind with a stack trace attached.
func New(kind Kind, message string) error {
	return &kindError{kind: kind, err: errors.New(message)}
}

// Errorf returns a formatted error of the given kind with a stack trace
// attached.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap attaches kind and a stack trace to an existing error. Wrap returns
// nil if err is nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, message)}
}

// Wrapf is like Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// Of returns the Kind attached to err and true, or (0, false) if err was
// not produced by this package.
func Of(err error) (Kind, bool) {
	var ke *kindError
	for err != nil {
		if k, ok := err.(*kindError); ok {
			ke = k
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ke == nil {
		return 0, false
	}
	return ke.kind, true
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
