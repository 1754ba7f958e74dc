package wire

import "fmt"

// FormatError is returned when encoded bytes do not match the structure
// their format requires: a declared length disagrees with the bytes that
// follow, a tag byte is wrong, or the input ends early.
//
// A FormatError aborts the enclosing parse. Nothing parsed before the
// failure is returned to the caller.
type FormatError struct {
	Code    string // Error code (e.g., ErrBadTag)
	Message string // Human-readable error message
	Cause   error  // Underlying error (if any)
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("format error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("format error [%s]: %s", e.Code, e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// Is matches any FormatError with the same code.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// OverflowError is returned when a value is too large for its encoding and
// is rejected before any bytes are written.
type OverflowError struct {
	Message string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("overflow: %s", e.Message)
}

// Format error codes.
const (
	ErrShortRead    = "SHORT_READ"    // Input ended before the structure was complete
	ErrBadTag       = "BAD_TAG"       // Unexpected marker or tag byte
	ErrBadLength    = "BAD_LENGTH"    // Declared length disagrees with content
	ErrBadPrefix    = "BAD_PREFIX"    // Unknown encoding prefix
	ErrTrailingData = "TRAILING_DATA" // Bytes left over after a complete structure
	ErrUnsupported  = "UNSUPPORTED"   // Recognised but unsupported encoding
	ErrBadChecksum  = "BAD_CHECKSUM"  // Checksum does not match the payload
)

// NewFormatError creates a FormatError with a formatted message.
func NewFormatError(code string, format string, args ...interface{}) *FormatError {
	return &FormatError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewOverflowError creates an OverflowError with a formatted message.
func NewOverflowError(format string, args ...interface{}) *OverflowError {
	return &OverflowError{Message: fmt.Sprintf(format, args...)}
}
