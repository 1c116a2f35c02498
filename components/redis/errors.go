package redis

import (
	"errors"
	"fmt"
)

// Configuration validation failures. Match with errors.Is.
var (
	ErrInvalidURLString      = errors.New("redis: invalid URL string")
	ErrMissingURLScheme      = errors.New("redis: missing URL scheme")
	ErrInvalidURLScheme      = errors.New("redis: invalid URL scheme, expected redis or rediss")
	ErrMissingURLHost        = errors.New("redis: missing URL host")
	ErrOutOfBoundsDatabaseID = errors.New("redis: database index out of bounds")
	ErrNoServerAddresses     = errors.New("redis: no server addresses")
	ErrInvalidPoolOptions    = errors.New("redis: invalid pool options")
	ErrInvalidMode           = errors.New("redis: invalid mode")
)

var (
	// ErrStubConfiguration is returned when a stub factory is asked for the
	// configuration it does not have.
	ErrStubConfiguration = errors.New("redis: a stub does not have a configuration")
	// ErrNoConfiguration is returned by factories built from a plain
	// function, which carry no resolved target.
	ErrNoConfiguration = errors.New("redis: factory has no configuration")
	ErrUnknownID       = errors.New("redis: no client configured for identifier")
	ErrRegistrySealed  = errors.New("redis: registry already started, configuration is frozen")
	ErrTypeMismatch    = errors.New("redis: response type mismatch")
	ErrClientClosed    = errors.New("redis: client closed")
	ErrNoRegistry      = errors.New("redis: no registry in context")
)

// ValidationError carries the failed rule and the offending input.
type ValidationError struct {
	Kind  error
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	msg := e.Kind.Error()
	if e.Input != "" {
		msg = fmt.Sprintf("%s (%q)", msg, e.Input)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func invalid(kind error, input string, cause error) error {
	return &ValidationError{Kind: kind, Input: input, Err: cause}
}
