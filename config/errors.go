package config

import "fmt"

// ErrorKind classifies why an effective configuration document failed to
// compile into a schema.Schema.
type ErrorKind string

const (
	ErrUnsupportedFeature ErrorKind = "unsupported_feature"
	ErrBadFieldSpec       ErrorKind = "bad_field_spec"
	ErrUnknownClass       ErrorKind = "unknown_class"
	ErrMissingFeature     ErrorKind = "missing_feature"
	ErrIncludeNotFound    ErrorKind = "include_not_found"
	ErrDuplicateName      ErrorKind = "duplicate_name"
)

// Error reports a config compile failure at a specific document path, e.g.
// "streams.default.event-record-types.foobar.payload.x".
type Error struct {
	Path string
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s at %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("config: %s at %s", e.Kind, e.Path)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for compatibility, matching any *Error regardless of
// kind - callers wanting a specific kind should compare e.Kind directly.
func (e *Error) Is(target error) bool {
	_, ok := target.(*Error)
	return ok
}

func errAt(path string, kind ErrorKind, err error) *Error {
	return &Error{Path: path, Kind: kind, Err: err}
}
