package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is.
var (
	// ErrUnknownProvider is matched by every UnknownProviderError.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMalformed is matched by every ParseError.
	ErrMalformed = errors.New("malformed content")

	// ErrUnsupported is matched by every UnsupportedError.
	ErrUnsupported = errors.New("unsupported content")
)

// UnknownProviderError is returned by Registry.Resolve when no provider is
// registered under the requested key.
type UnknownProviderError struct {
	Key string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("no provider registered for %q", e.Key)
}

// Is reports whether target is ErrUnknownProvider.
func (e *UnknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}

// ParseError reports content that is malformed for the provider's format.
type ParseError struct {
	Provider string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed content: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformed.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}

// UnsupportedError reports content that is well-formed but not something this
// provider can turn into a document, such as a JSON file that is not a notebook.
type UnsupportedError struct {
	Provider string
	Reason   string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported content: %s", e.Provider, e.Reason)
}

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func malformed(provider string, format string, args ...any) error {
	return &ParseError{Provider: provider, Err: fmt.Errorf(format, args...)}
}

func unsupported(provider string, format string, args ...any) error {
	return &UnsupportedError{Provider: provider, Reason: fmt.Sprintf(format, args...)}
}
