package script

import (
	"math/big"

	"github.com/rs/zerolog"
)

// MaxStackSize is the combined data and alt stack limit.
const MaxStackSize = 1000

// Engine executes a script against a signature digest. The engine consumes
// a private copy of the script's commands, so the Script itself is never
// modified and can be evaluated again.
type Engine struct {
	cmds     []Command
	stack    [][]byte
	altStack [][]byte
	z        *big.Int
	logger   zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger failing opcodes are reported to.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine prepares s for execution. z is the digest OP_CHECKSIG verifies
// signatures against; it may be nil for scripts without signature checks.
func NewEngine(s *Script, z *big.Int, opts ...EngineOption) *Engine {
	e := &Engine{
		cmds:   s.Commands(),
		z:      z,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every command in order. It returns nil only if all commands
// succeed and the stack ends non-empty with a true top element.
func (e *Engine) Execute() error {
	for len(e.cmds) > 0 {
		cmd := e.cmds[0]
		e.cmds = e.cmds[1:]

		if cmd.IsData() {
			if err := e.push(cmd.Data); err != nil {
				return err
			}
			continue
		}

		op := &opcodeArray[cmd.Op]
		if op.exec == nil {
			err := execErrorf(ErrUnsupportedOpcode, "%s is not supported", op.name)
			e.logger.Debug().Str("opcode", op.name).Msg("unsupported opcode")
			return err
		}
		if err := op.exec(op, e); err != nil {
			e.logger.Debug().Str("opcode", op.name).Int("stack_depth", len(e.stack)).Err(err).Msg("opcode failed")
			return err
		}
	}

	if len(e.stack) == 0 {
		return execErrorf(ErrEmptyStack, "stack empty at end of script")
	}
	if !asBool(e.stack[len(e.stack)-1]) {
		return execErrorf(ErrEvalFalse, "false stack entry at end of script")
	}
	return nil
}

// Stack returns a copy of the data stack, bottom first.
func (e *Engine) Stack() [][]byte {
	out := make([][]byte, len(e.stack))
	for i, v := range e.stack {
		out[i] = append([]byte{}, v...)
	}
	return out
}

func (e *Engine) push(v []byte) error {
	if len(e.stack)+len(e.altStack) >= MaxStackSize {
		return execErrorf(ErrStackOverflow, "combined stack size exceeds %d", MaxStackSize)
	}
	e.stack = append(e.stack, v)
	return nil
}

func (e *Engine) require(op *opcode, n int) error {
	if len(e.stack) < n {
		return execErrorf(ErrStackUnderflow, "%s needs %d items, stack has %d", op.name, n, len(e.stack))
	}
	return nil
}

func (e *Engine) pop(op *opcode) ([]byte, error) {
	if err := e.require(op, 1); err != nil {
		return nil, err
	}
	n := len(e.stack)
	v := e.stack[n-1]
	e.stack = e.stack[:n-1]
	return v, nil
}

// peek returns the item idx positions below the top without removing it.
func (e *Engine) peek(op *opcode, idx int) ([]byte, error) {
	if err := e.require(op, idx+1); err != nil {
		return nil, err
	}
	return e.stack[len(e.stack)-1-idx], nil
}

func (e *Engine) popNum(op *opcode) (int64, error) {
	v, err := e.pop(op)
	if err != nil {
		return 0, err
	}
	if len(v) > MaxNumLen {
		return 0, execErrorf(ErrNumberTooBig, "%s operand is %d bytes, max %d", op.name, len(v), MaxNumLen)
	}
	return DecodeNum(v), nil
}

func (e *Engine) hashTop(op *opcode, hash func([]byte) []byte) error {
	v, err := e.pop(op)
	if err != nil {
		return err
	}
	return e.push(hash(v))
}
