package filter

import (
	"errors"
	"fmt"
)

// TerminationError is raised by a step to halt the guarded business operation
// and communicate structured context back to the call site. RedirectTo and
// StatusCode are first-class because nearly every filter family uses them;
// anything else goes into Attrs. The engine re-raises it unchanged regardless
// of the fail_silently policy, since its entire purpose is to stop the
// operation.
type TerminationError struct {
	Message    string
	RedirectTo string
	StatusCode int
	Attrs      map[string]any
}

// NewTermination creates a termination error with the given message.
func NewTermination(message string) *TerminationError {
	return &TerminationError{Message: message}
}

// WithRedirect sets the redirect URL and returns the error for chaining.
func (e *TerminationError) WithRedirect(url string) *TerminationError {
	e.RedirectTo = url
	return e
}

// WithStatusCode sets the HTTP status code and returns the error for chaining.
func (e *TerminationError) WithStatusCode(code int) *TerminationError {
	e.StatusCode = code
	return e
}

// WithAttr attaches a named attribute and returns the error for chaining.
func (e *TerminationError) WithAttr(key string, value any) *TerminationError {
	if e.Attrs == nil {
		e.Attrs = make(map[string]any)
	}
	e.Attrs[key] = value
	return e
}

// Attr looks up a named attribute.
func (e *TerminationError) Attr(key string) (any, bool) {
	v, ok := e.Attrs[key]
	return v, ok
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("filter terminated: %s", e.Message)
}

// AsTermination unwraps err to a *TerminationError if it is one.
func AsTermination(err error) (*TerminationError, bool) {
	var term *TerminationError
	ok := errors.As(err, &term)
	return term, ok
}

// IsTermination reports whether err is, or wraps, a termination error.
func IsTermination(err error) bool {
	_, ok := AsTermination(err)
	return ok
}

// ResolutionError reports a step reference that could not be resolved to a
// runnable step. It is a configuration error, distinct from a step's runtime
// failure, and aborts the pipeline unless fail_silently is set.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve pipeline step %q: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
