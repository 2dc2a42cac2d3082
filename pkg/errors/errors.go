// Package errors holds the sentinel errors shared across packages and maps
// them to HTTP statuses and client-safe messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrModelNotFound     = errors.New("language model not found")
	ErrFallbackMissing   = errors.New("heuristic fallback model missing")
	ErrDictionaryMissing = errors.New("dictionary bundle missing or corrupt")
	ErrInvalidRule       = errors.New("invalid rule")
	ErrTypeMismatch      = errors.New("rule type does not match stream type")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
	ErrUnavailable       = errors.New("service unavailable")
)

// classes is checked in order; the first sentinel err matches wins.
var classes = []struct {
	sentinel error
	status   int
	code     string
}{
	{ErrDocumentNotFound, http.StatusNotFound, "not_found"},
	{ErrTypeMismatch, http.StatusBadRequest, "type_mismatch"},
	{ErrInvalidRule, http.StatusBadRequest, "invalid_rule"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{ErrModelNotFound, http.StatusUnprocessableEntity, "model_not_found"},
	{ErrDictionaryMissing, http.StatusUnprocessableEntity, "dictionary_missing"},
	{ErrFallbackMissing, http.StatusInternalServerError, "fallback_missing"},
	{ErrTimeout, http.StatusServiceUnavailable, "timeout"},
	{ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// PublicError carries a message that is safe to show a client alongside the
// sentinel that classifies it.
type PublicError struct {
	Kind error
	Msg  string
}

func (e *PublicError) Error() string { return e.Kind.Error() + ": " + e.Msg }

func (e *PublicError) Unwrap() error { return e.Kind }

// Public wraps kind with a client-facing message.
func Public(kind error, format string, args ...any) error {
	return &PublicError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Invalid is shorthand for a public ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return Public(ErrInvalidInput, format, args...)
}

// Unusable reports whether err is a configuration error: the caller asked
// for something that cannot be served as configured.
func Unusable(err error) bool {
	return errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrFallbackMissing) ||
		errors.Is(err, ErrDictionaryMissing) ||
		errors.Is(err, ErrInvalidRule)
}

// HTTPStatusCode maps err to a response status. Unclassified errors are 500.
func HTTPStatusCode(err error) int {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns a stable machine-readable name for err's class.
func Code(err error) string {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.code
		}
	}
	return "internal"
}

// Message returns the text a client may see for err. Server-side failures
// read "internal error" unless a PublicError says otherwise.
func Message(err error) string {
	var pub *PublicError
	if errors.As(err, &pub) {
		return pub.Msg
	}
	if HTTPStatusCode(err) >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
