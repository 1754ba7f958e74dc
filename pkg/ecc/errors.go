package ecc

import "fmt"

// DomainError is returned when an arithmetic operation is asked to combine
// values that do not belong to the same algebraic structure: field elements
// of different moduli, points on different curves, or coordinates that do
// not satisfy the curve equation.
//
// Domain errors are never retried; they indicate a programming error or
// malformed input and surface to the caller immediately.
type DomainError struct {
	Code    string // Error code (e.g., ErrModulusMismatch)
	Message string // Human-readable error message
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error [%s]: %s", e.Code, e.Message)
}

// Is reports whether target is a DomainError with the same code, so callers
// can match on a code with errors.Is(err, &DomainError{Code: ...}).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes used throughout the ecc package.
const (
	ErrModulusMismatch = "MODULUS_MISMATCH" // Field elements have different moduli
	ErrNotOnCurve      = "NOT_ON_CURVE"     // Coordinates do not satisfy y^2 = x^3 + ax + b
	ErrDifferentCurves = "DIFFERENT_CURVES" // Points belong to different curves
	ErrSingularCurve   = "SINGULAR_CURVE"   // Curve discriminant is zero
	ErrOutOfRange      = "OUT_OF_RANGE"     // Value not in [0, modulus)
	ErrNilOperand      = "NIL_OPERAND"      // Operand is nil
)

func domainErrorf(code, format string, args ...interface{}) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}
