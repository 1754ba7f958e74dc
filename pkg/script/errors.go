package script

import "fmt"

// ExecError describes why a script failed to execute. A failed execution
// means the script is invalid; callers that only need the verdict use
// Script.Evaluate, which folds every ExecError into false.
type ExecError struct {
	Code    string // Error code (e.g., ErrStackUnderflow)
	Message string // Human-readable error message
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("script error [%s]: %s", e.Code, e.Message)
}

// Is matches any ExecError with the same code.
func (e *ExecError) Is(target error) bool {
	t, ok := target.(*ExecError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Execution error codes.
const (
	ErrStackUnderflow    = "STACK_UNDERFLOW"    // Opcode needs more items than the stack holds
	ErrAltStackUnderflow = "ALTSTACK_UNDERFLOW" // OP_FROMALTSTACK on an empty alt stack
	ErrStackOverflow     = "STACK_OVERFLOW"     // Stack grew beyond MaxStackSize
	ErrUnsupportedOpcode = "UNSUPPORTED_OPCODE" // Opcode has no handler
	ErrVerifyFailed      = "VERIFY_FAILED"      // A *VERIFY opcode saw false
	ErrEarlyReturn       = "EARLY_RETURN"       // OP_RETURN executed
	ErrEmptyStack        = "EMPTY_STACK"        // Script finished with nothing on the stack
	ErrEvalFalse         = "EVAL_FALSE"         // Script finished with false on top
	ErrNumberTooBig      = "NUMBER_TOO_BIG"     // Numeric operand wider than MaxNumLen bytes
)

func execErrorf(code, format string, args ...interface{}) *ExecError {
	return &ExecError{Code: code, Message: fmt.Sprintf(format, args...)}
}
