// Package errors defines the error kinds reported by the query compositor.
//
// Every compositor failure is an *Error carrying a human-readable message,
// an HTTP-style status code and an optional detail map. Callers classify
// them with errors.Is against ErrBadInput or ErrBadResult.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"net/http"
)

// Kind classifies a compositor error.
type Kind string

const (
	// KindBadInput marks a structurally or semantically invalid request.
	KindBadInput Kind = "bad_input"
	// KindBadResult marks a cardinality violation on a fetched result.
	KindBadResult Kind = "bad_result"
)

var (
	// ErrBadInput matches every error of KindBadInput.
	ErrBadInput = stderrors.New("bad input")

	// ErrBadResult matches every error of KindBadResult.
	ErrBadResult = stderrors.New("bad result")
)

// Error is a compositor error.
type Error struct {
	Kind       Kind           `json:"-"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"-"`
	Err        error          `json:"-"`
}

// New creates an Error of the given kind.
func New(kind Kind, message string, statusCode int, details map[string]any) *Error {
	return &Error{
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// BadInput creates a 400 error of KindBadInput.
func BadInput(format string, args ...any) *Error {
	return New(KindBadInput, fmt.Sprintf(format, args...), http.StatusBadRequest, nil)
}

// BadResult creates a 500 error of KindBadResult.
func BadResult(format string, args ...any) *Error {
	return New(KindBadResult, fmt.Sprintf(format, args...), http.StatusInternalServerError, nil)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrBadInput:
		return e.Kind == KindBadInput
	case ErrBadResult:
		return e.Kind == KindBadResult
	}
	return false
}

// Wrap records err as the cause and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithDetail adds a detail entry and returns e.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithStatus overrides the status code and returns e.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// ToMap returns the details merged with the message under the "message" key.
func (e *Error) ToMap() map[string]any {
	out := make(map[string]any, len(e.Details)+1)
	maps.Copy(out, e.Details)
	out["message"] = e.Message
	return out
}

// As extracts a compositor error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsBadInput reports whether err is a bad input error.
func IsBadInput(err error) bool {
	return stderrors.Is(err, ErrBadInput)
}

// IsBadResult reports whether err is a bad result error.
func IsBadResult(err error) bool {
	return stderrors.Is(err, ErrBadResult)
}
