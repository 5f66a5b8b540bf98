package types

import "errors"

// Kind classifies an error for the REST layer's single status mapping.
type Kind int

const (
	ErrUnknown Kind = iota
	// ErrAuthMissing means no usable credentials were presented.
	ErrAuthMissing
	// ErrAuthRefused means credentials were presented but do not satisfy
	// the operation's access rules.
	ErrAuthRefused
	// ErrMalformedID means a path identifier does not parse as a UUID.
	ErrMalformedID
	// ErrUnsupported means the request body has an unusable content type.
	ErrUnsupported
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound
	// ErrInvalid means the request is well-formed but semantically wrong.
	ErrInvalid
	// ErrNotImplemented marks an operation the deployment does not support.
	ErrNotImplemented
	// ErrTransient marks infrastructure failures the client may retry.
	ErrTransient
)

// Error is a kinded error carried from core to the REST layer.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a kinded error from a message.
func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, ErrUnknown when it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrUnknown
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrNotFound
}
