// Package decode implements the field decoder and packet decoder state
// machine that walk a compiled schema.Schema over a bitio.Cursor to produce
// decoded schema.Value trees.
package decode

import "fmt"

// ErrorKind classifies why a packet failed to decode.
type ErrorKind string

const (
	ErrInsufficientData    ErrorKind = "insufficient_data"
	ErrBadMagic            ErrorKind = "bad_magic"
	ErrUuidMismatch        ErrorKind = "uuid_mismatch"
	ErrUnknownStreamType   ErrorKind = "unknown_stream_type"
	ErrUnknownEventType    ErrorKind = "unknown_event_type"
	ErrPacketSizeInvalid   ErrorKind = "packet_size_invalid"
	ErrTruncatedEvent      ErrorKind = "truncated_event"
	ErrUnknownLengthField  ErrorKind = "unknown_length_field"
	ErrLengthFieldNotInt   ErrorKind = "length_field_not_integer"
	ErrBitsOutOfRange      ErrorKind = "bits_out_of_range"
	ErrUnexpectedEof       ErrorKind = "unexpected_eof"
)

// Error reports a decode failure at a specific field path within a packet,
// e.g. "events[2].payload.bar".
type Error struct {
	Path string
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode: %s at %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for compatibility, matching any *Error regardless
// of kind - callers wanting a specific kind should compare e.Kind directly.
func (e *Error) Is(target error) bool {
	_, ok := target.(*Error)
	return ok
}

func errAt(path string, kind ErrorKind, err error) *Error {
	return &Error{Path: path, Kind: kind, Err: err}
}

// wrapPath prefixes an existing *Error's path with a parent field name,
// matching protolite's wire.FieldError path-accumulation behavior.
func wrapPath(err error, prefix string) error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*Error); ok {
		path := prefix
		if de.Path != "" {
			path = prefix + "." + de.Path
		}
		return &Error{Path: path, Kind: de.Kind, Err: de.Err}
	}
	return errAt(prefix, ErrUnexpectedEof, err)
}
