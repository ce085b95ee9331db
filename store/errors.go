package store

import (
	"errors"
	"fmt"
)

// Kind sentinels. Match them with errors.Is.
var (
	// ErrNotFound means a key or input could not be
	// resolved to bytes.
	ErrNotFound = errors.New("not found")
	// ErrIO covers every other read or write failure.
	ErrIO = errors.New("i/o error")
	// ErrMissingDir means the structure needed to hold an
	// entry could not be determined or created.
	ErrMissingDir = errors.New("missing directory")
	// ErrNotImplemented marks a capability a backend
	// variant deliberately does not provide.
	ErrNotImplemented = errors.New("not implemented")
)

// Error is a kinded storage failure for one key.
type Error struct {
	// Kind is one of the package sentinels.
	Kind error
	// Key is the offending key or path.
	Key string
	// Err is the underlying cause, possibly nil.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %q", e.Kind, e.Key)
	}

	return fmt.Sprintf("%v: %q: %v", e.Kind, e.Key, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func newError(kind error, key string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}

	return &Error{Kind: kind, Key: key, Err: err}
}

// NotFound tags err as ErrNotFound for key. Errors that
// already carry a kind are returned unchanged.
func NotFound(key string, err error) error {
	return newError(ErrNotFound, key, err)
}

// IOError tags err as ErrIO for key. Errors that already
// carry a kind are returned unchanged.
func IOError(key string, err error) error {
	return newError(ErrIO, key, err)
}

// MissingDir tags err as ErrMissingDir for key. Errors
// that already carry a kind are returned unchanged.
func MissingDir(key string, err error) error {
	return newError(ErrMissingDir, key, err)
}

// NotImplemented reports that op is unavailable for key.
func NotImplemented(key string, op string) error {
	return &Error{
		Kind: ErrNotImplemented,
		Key:  key,
		Err:  errors.New(op),
	}
}

// KindOf returns the kind sentinel carried by err, or nil
// when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound, ErrMissingDir, ErrNotImplemented, ErrIO,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
