// Package script implements Bitcoin-style scripts: an ordered list of
// opcodes and data pushes, their wire encoding, and a stack machine that
// evaluates them against a signature digest.
//
// Wire encoding of a data push built in memory:
//
//	1..75 bytes     <len> <data>
//	76..255 bytes   OP_PUSHDATA1 <len:1> <data>
//	256..520 bytes  OP_PUSHDATA2 <len:2 LE> <data>
//
// A parsed push keeps the opcode it was read with, so non-minimal forms
// (including OP_PUSHDATA4) serialize back to the same bytes. Anything else
// is a single opcode byte.
package script

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/wire"
)

// MaxScriptElementSize is the largest data push a script may carry.
const MaxScriptElementSize = 520

// maxScriptBytes bounds the declared length of a script read off the wire.
const maxScriptBytes = 100_000

// Command is one element of a script: either an opcode or a data push.
type Command struct {
	Op   byte
	Data []byte // nil for opcodes

	// pushOp is the opcode a parsed push was read with. Zero selects the
	// shortest encoding.
	pushOp byte
}

// Op returns an opcode command.
func Op(op byte) Command {
	return Command{Op: op}
}

// Data returns a data push command. An empty push is encoded as OP_0, so it
// is represented that way.
func Data(b []byte) Command {
	if len(b) == 0 {
		return Command{Op: OP_0}
	}
	return Command{Data: append([]byte{}, b...)}
}

// IsData reports whether the command pushes data.
func (c Command) IsData() bool {
	return c.Data != nil
}

// Equal reports whether both commands are the same opcode or push the same
// bytes.
func (c Command) Equal(other Command) bool {
	if c.IsData() != other.IsData() {
		return false
	}
	if c.IsData() {
		return bytes.Equal(c.Data, other.Data)
	}
	return c.Op == other.Op
}

func (c Command) String() string {
	if c.IsData() && len(c.Data) == 0 {
		return OpcodeName(OP_0)
	}
	if c.IsData() {
		return hex.EncodeToString(c.Data)
	}
	return OpcodeName(c.Op)
}

// Script is an immutable sequence of commands.
type Script struct {
	cmds []Command
}

// New creates a script from commands.
func New(cmds ...Command) *Script {
	return &Script{cmds: copyCommands(cmds)}
}

func copyCommands(cmds []Command) []Command {
	out := make([]Command, len(cmds))
	for i, c := range cmds {
		out[i] = c
		if c.Data != nil {
			out[i].Data = append([]byte{}, c.Data...)
		}
	}
	return out
}

// Commands returns a copy of the script's commands.
func (s *Script) Commands() []Command {
	return copyCommands(s.cmds)
}

// Len returns the number of commands.
func (s *Script) Len() int {
	return len(s.cmds)
}

// Combine returns a new script with s's commands followed by other's. For
// spending checks s is the unlocking script and other the locking script.
func (s *Script) Combine(other *Script) *Script {
	cmds := make([]Command, 0, len(s.cmds)+len(other.cmds))
	cmds = append(cmds, s.cmds...)
	cmds = append(cmds, other.cmds...)
	return New(cmds...)
}

// Equal reports whether both scripts have the same commands.
func (s *Script) Equal(other *Script) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.cmds) != len(other.cmds) {
		return false
	}
	for i := range s.cmds {
		if !s.cmds[i].Equal(other.cmds[i]) {
			return false
		}
	}
	return true
}

// String returns the disassembly, e.g. "OP_DUP OP_HASH160 <hex> ...".
func (s *Script) String() string {
	parts := make([]string, len(s.cmds))
	for i, c := range s.cmds {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Parse reads a varint length-prefixed script.
func Parse(r io.Reader) (*Script, error) {
	raw, err := wire.ReadVarBytes(r, maxScriptBytes, "script")
	if err != nil {
		return nil, err
	}
	return ParseRaw(raw)
}

// ParseRaw parses script bytes without a length prefix. A push whose
// declared length runs past the end of the script is a FormatError; a push
// larger than MaxScriptElementSize is an OverflowError.
func ParseRaw(raw []byte) (*Script, error) {
	r := bytes.NewReader(raw)
	var cmds []Command

	for r.Len() > 0 {
		current, _ := r.ReadByte()

		var n uint64
		switch {
		case current >= OP_DATA_1 && current <= OP_DATA_75:
			n = uint64(current)
		case current == OP_PUSHDATA1:
			v, err := r.ReadByte()
			if err != nil {
				return nil, wire.NewFormatError(wire.ErrShortRead, "reading OP_PUSHDATA1 length")
			}
			n = uint64(v)
		case current == OP_PUSHDATA2:
			v, err := wire.ReadUint16(r)
			if err != nil {
				return nil, errors.Wrap(err, "reading OP_PUSHDATA2 length")
			}
			n = uint64(v)
		case current == OP_PUSHDATA4:
			v, err := wire.ReadUint32(r)
			if err != nil {
				return nil, errors.Wrap(err, "reading OP_PUSHDATA4 length")
			}
			n = uint64(v)
		default:
			cmds = append(cmds, Command{Op: current})
			continue
		}

		if n > MaxScriptElementSize {
			return nil, wire.NewOverflowError("data push of %d bytes exceeds %d", n, MaxScriptElementSize)
		}
		if n > uint64(r.Len()) {
			return nil, wire.NewFormatError(wire.ErrBadLength, "push of %d bytes exceeds remaining %d", n, r.Len())
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, errors.Wrap(err, "reading push data")
		}
		cmds = append(cmds, Command{Data: data, pushOp: current})
	}

	return &Script{cmds: cmds}, nil
}

// appendPush appends the encoding of a data push: the opcode it was parsed
// with, or the shortest form for pushes built in memory.
func (c Command) appendPush(b []byte) ([]byte, error) {
	n := len(c.Data)
	if n > MaxScriptElementSize {
		return nil, wire.NewOverflowError("data push of %d bytes exceeds %d", n, MaxScriptElementSize)
	}

	op := c.pushOp
	if op == 0 {
		switch {
		case n <= OP_DATA_75:
			op = byte(n)
		case n <= 0xff:
			op = OP_PUSHDATA1
		default:
			op = OP_PUSHDATA2
		}
	}

	switch {
	case op <= OP_DATA_75:
		if int(op) != n {
			return nil, wire.NewFormatError(wire.ErrBadLength, "push opcode 0x%02x carries %d bytes", op, n)
		}
		b = append(b, op)
	case op == OP_PUSHDATA1:
		if n > 0xff {
			return nil, wire.NewOverflowError("data push of %d bytes does not fit OP_PUSHDATA1", n)
		}
		b = append(b, op, byte(n))
	case op == OP_PUSHDATA2:
		b = binary.LittleEndian.AppendUint16(append(b, op), uint16(n))
	case op == OP_PUSHDATA4:
		b = binary.LittleEndian.AppendUint32(append(b, op), uint32(n))
	default:
		return nil, wire.NewFormatError(wire.ErrBadTag, "0x%02x is not a push opcode", op)
	}
	return append(b, c.Data...), nil
}

// RawSerialize encodes the commands without a length prefix. Pushes larger
// than MaxScriptElementSize are rejected with an OverflowError.
func (s *Script) RawSerialize() ([]byte, error) {
	var b []byte

	for _, c := range s.cmds {
		if !c.IsData() {
			b = append(b, c.Op)
			continue
		}

		var err error
		if b, err = c.appendPush(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Serialize encodes the script with its varint length prefix.
func (s *Script) Serialize() ([]byte, error) {
	raw, err := s.RawSerialize()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, wire.VarIntSerializeSize(uint64(len(raw)))+len(raw))
	return wire.AppendVarBytes(out, raw), nil
}

// Execute runs the script against the digest z. The returned error says
// why the script is invalid; nil means valid.
func (s *Script) Execute(z *big.Int, opts ...EngineOption) error {
	return NewEngine(s, z, opts...).Execute()
}

// Evaluate reports whether the script is valid for the digest z.
func (s *Script) Evaluate(z *big.Int, opts ...EngineOption) bool {
	return s.Execute(z, opts...) == nil
}
