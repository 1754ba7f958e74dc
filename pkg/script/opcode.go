package script

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/tinyblock/tinyblock/pkg/crypto"
)

// opcode describes one entry of the opcode table: its value, its
// human-readable name, its declared stack effect and its handler. A nil
// exec marks an opcode that is recognised (it has a name and disassembles)
// but deliberately not executable.
type opcode struct {
	value  byte
	name   string
	popped int // items consumed from the data stack
	pushed int // items produced on the data stack
	exec   func(*opcode, *Engine) error
}

// These constants are the values of the opcodes used on the Bitcoin wiki
// and in Bitcoin Core.
const (
	OP_0                   = 0x00
	OP_FALSE               = 0x00
	OP_DATA_1              = 0x01
	OP_DATA_75             = 0x4b
	OP_PUSHDATA1           = 0x4c
	OP_PUSHDATA2           = 0x4d
	OP_PUSHDATA4           = 0x4e
	OP_1NEGATE             = 0x4f
	OP_RESERVED            = 0x50
	OP_1                   = 0x51
	OP_TRUE                = 0x51
	OP_2                   = 0x52
	OP_3                   = 0x53
	OP_4                   = 0x54
	OP_5                   = 0x55
	OP_6                   = 0x56
	OP_7                   = 0x57
	OP_8                   = 0x58
	OP_9                   = 0x59
	OP_10                  = 0x5a
	OP_11                  = 0x5b
	OP_12                  = 0x5c
	OP_13                  = 0x5d
	OP_14                  = 0x5e
	OP_15                  = 0x5f
	OP_16                  = 0x60
	OP_NOP                 = 0x61
	OP_VER                 = 0x62
	OP_IF                  = 0x63
	OP_NOTIF               = 0x64
	OP_VERIF               = 0x65
	OP_VERNOTIF            = 0x66
	OP_ELSE                = 0x67
	OP_ENDIF               = 0x68
	OP_VERIFY              = 0x69
	OP_RETURN              = 0x6a
	OP_TOALTSTACK          = 0x6b
	OP_FROMALTSTACK        = 0x6c
	OP_2DROP               = 0x6d
	OP_2DUP                = 0x6e
	OP_3DUP                = 0x6f
	OP_2OVER               = 0x70
	OP_2ROT                = 0x71
	OP_2SWAP               = 0x72
	OP_IFDUP               = 0x73
	OP_DEPTH               = 0x74
	OP_DROP                = 0x75
	OP_DUP                 = 0x76
	OP_NIP                 = 0x77
	OP_OVER                = 0x78
	OP_PICK                = 0x79
	OP_ROLL                = 0x7a
	OP_ROT                 = 0x7b
	OP_SWAP                = 0x7c
	OP_TUCK                = 0x7d
	OP_CAT                 = 0x7e
	OP_SUBSTR              = 0x7f
	OP_LEFT                = 0x80
	OP_RIGHT               = 0x81
	OP_SIZE                = 0x82
	OP_INVERT              = 0x83
	OP_AND                 = 0x84
	OP_OR                  = 0x85
	OP_XOR                 = 0x86
	OP_EQUAL               = 0x87
	OP_EQUALVERIFY         = 0x88
	OP_RESERVED1           = 0x89
	OP_RESERVED2           = 0x8a
	OP_1ADD                = 0x8b
	OP_1SUB                = 0x8c
	OP_2MUL                = 0x8d
	OP_2DIV                = 0x8e
	OP_NEGATE              = 0x8f
	OP_ABS                 = 0x90
	OP_NOT                 = 0x91
	OP_0NOTEQUAL           = 0x92
	OP_ADD                 = 0x93
	OP_SUB                 = 0x94
	OP_MUL                 = 0x95
	OP_DIV                 = 0x96
	OP_MOD                 = 0x97
	OP_LSHIFT              = 0x98
	OP_RSHIFT              = 0x99
	OP_BOOLAND             = 0x9a
	OP_BOOLOR              = 0x9b
	OP_NUMEQUAL            = 0x9c
	OP_NUMEQUALVERIFY      = 0x9d
	OP_NUMNOTEQUAL         = 0x9e
	OP_LESSTHAN            = 0x9f
	OP_GREATERTHAN         = 0xa0
	OP_LESSTHANOREQUAL     = 0xa1
	OP_GREATERTHANOREQUAL  = 0xa2
	OP_MIN                 = 0xa3
	OP_MAX                 = 0xa4
	OP_WITHIN              = 0xa5
	OP_RIPEMD160           = 0xa6
	OP_SHA1                = 0xa7
	OP_SHA256              = 0xa8
	OP_HASH160             = 0xa9
	OP_HASH256             = 0xaa
	OP_CODESEPARATOR       = 0xab
	OP_CHECKSIG            = 0xac
	OP_CHECKSIGVERIFY      = 0xad
	OP_CHECKMULTISIG       = 0xae
	OP_CHECKMULTISIGVERIFY = 0xaf
	OP_NOP1                = 0xb0
	OP_CHECKLOCKTIMEVERIFY = 0xb1
	OP_CHECKSEQUENCEVERIFY = 0xb2
	OP_NOP10               = 0xb9
)

// opcodeNames covers every named opcode outside the small-integer and
// direct-push ranges, which are named programmatically.
var opcodeNames = map[byte]string{
	OP_0:                   "OP_0",
	OP_PUSHDATA1:           "OP_PUSHDATA1",
	OP_PUSHDATA2:           "OP_PUSHDATA2",
	OP_PUSHDATA4:           "OP_PUSHDATA4",
	OP_1NEGATE:             "OP_1NEGATE",
	OP_RESERVED:            "OP_RESERVED",
	OP_NOP:                 "OP_NOP",
	OP_VER:                 "OP_VER",
	OP_IF:                  "OP_IF",
	OP_NOTIF:               "OP_NOTIF",
	OP_VERIF:               "OP_VERIF",
	OP_VERNOTIF:            "OP_VERNOTIF",
	OP_ELSE:                "OP_ELSE",
	OP_ENDIF:               "OP_ENDIF",
	OP_VERIFY:              "OP_VERIFY",
	OP_RETURN:              "OP_RETURN",
	OP_TOALTSTACK:          "OP_TOALTSTACK",
	OP_FROMALTSTACK:        "OP_FROMALTSTACK",
	OP_2DROP:               "OP_2DROP",
	OP_2DUP:                "OP_2DUP",
	OP_3DUP:                "OP_3DUP",
	OP_2OVER:               "OP_2OVER",
	OP_2ROT:                "OP_2ROT",
	OP_2SWAP:               "OP_2SWAP",
	OP_IFDUP:               "OP_IFDUP",
	OP_DEPTH:               "OP_DEPTH",
	OP_DROP:                "OP_DROP",
	OP_DUP:                 "OP_DUP",
	OP_NIP:                 "OP_NIP",
	OP_OVER:                "OP_OVER",
	OP_PICK:                "OP_PICK",
	OP_ROLL:                "OP_ROLL",
	OP_ROT:                 "OP_ROT",
	OP_SWAP:                "OP_SWAP",
	OP_TUCK:                "OP_TUCK",
	OP_CAT:                 "OP_CAT",
	OP_SUBSTR:              "OP_SUBSTR",
	OP_LEFT:                "OP_LEFT",
	OP_RIGHT:               "OP_RIGHT",
	OP_SIZE:                "OP_SIZE",
	OP_INVERT:              "OP_INVERT",
	OP_AND:                 "OP_AND",
	OP_OR:                  "OP_OR",
	OP_XOR:                 "OP_XOR",
	OP_EQUAL:               "OP_EQUAL",
	OP_EQUALVERIFY:         "OP_EQUALVERIFY",
	OP_RESERVED1:           "OP_RESERVED1",
	OP_RESERVED2:           "OP_RESERVED2",
	OP_1ADD:                "OP_1ADD",
	OP_1SUB:                "OP_1SUB",
	OP_2MUL:                "OP_2MUL",
	OP_2DIV:                "OP_2DIV",
	OP_NEGATE:              "OP_NEGATE",
	OP_ABS:                 "OP_ABS",
	OP_NOT:                 "OP_NOT",
	OP_0NOTEQUAL:           "OP_0NOTEQUAL",
	OP_ADD:                 "OP_ADD",
	OP_SUB:                 "OP_SUB",
	OP_MUL:                 "OP_MUL",
	OP_DIV:                 "OP_DIV",
	OP_MOD:                 "OP_MOD",
	OP_LSHIFT:              "OP_LSHIFT",
	OP_RSHIFT:              "OP_RSHIFT",
	OP_BOOLAND:             "OP_BOOLAND",
	OP_BOOLOR:              "OP_BOOLOR",
	OP_NUMEQUAL:            "OP_NUMEQUAL",
	OP_NUMEQUALVERIFY:      "OP_NUMEQUALVERIFY",
	OP_NUMNOTEQUAL:         "OP_NUMNOTEQUAL",
	OP_LESSTHAN:            "OP_LESSTHAN",
	OP_GREATERTHAN:         "OP_GREATERTHAN",
	OP_LESSTHANOREQUAL:     "OP_LESSTHANOREQUAL",
	OP_GREATERTHANOREQUAL:  "OP_GREATERTHANOREQUAL",
	OP_MIN:                 "OP_MIN",
	OP_MAX:                 "OP_MAX",
	OP_WITHIN:              "OP_WITHIN",
	OP_RIPEMD160:           "OP_RIPEMD160",
	OP_SHA1:                "OP_SHA1",
	OP_SHA256:              "OP_SHA256",
	OP_HASH160:             "OP_HASH160",
	OP_HASH256:             "OP_HASH256",
	OP_CODESEPARATOR:       "OP_CODESEPARATOR",
	OP_CHECKSIG:            "OP_CHECKSIG",
	OP_CHECKSIGVERIFY:      "OP_CHECKSIGVERIFY",
	OP_CHECKMULTISIG:       "OP_CHECKMULTISIG",
	OP_CHECKMULTISIGVERIFY: "OP_CHECKMULTISIGVERIFY",
	OP_NOP1:                "OP_NOP1",
	OP_CHECKLOCKTIMEVERIFY: "OP_CHECKLOCKTIMEVERIFY",
	OP_CHECKSEQUENCEVERIFY: "OP_CHECKSEQUENCEVERIFY",
}

// handlers is the executable subset of the opcode table with each entry's
// declared stack effect. Adding an opcode only requires a new entry here.
var handlers = []opcode{
	{value: OP_0, popped: 0, pushed: 1, exec: opcodeFalse},
	{value: OP_1NEGATE, popped: 0, pushed: 1, exec: opcode1Negate},
	{value: OP_NOP, popped: 0, pushed: 0, exec: opcodeNop},
	{value: OP_VERIFY, popped: 1, pushed: 0, exec: opcodeVerify},
	{value: OP_RETURN, popped: 0, pushed: 0, exec: opcodeReturn},
	{value: OP_TOALTSTACK, popped: 1, pushed: 0, exec: opcodeToAltStack},
	{value: OP_FROMALTSTACK, popped: 0, pushed: 1, exec: opcodeFromAltStack},
	{value: OP_DROP, popped: 1, pushed: 0, exec: opcodeDrop},
	{value: OP_DUP, popped: 1, pushed: 2, exec: opcodeDup},
	{value: OP_2DUP, popped: 2, pushed: 4, exec: opcode2Dup},
	{value: OP_SWAP, popped: 2, pushed: 2, exec: opcodeSwap},
	{value: OP_SIZE, popped: 1, pushed: 2, exec: opcodeSize},
	{value: OP_EQUAL, popped: 2, pushed: 1, exec: opcodeEqual},
	{value: OP_EQUALVERIFY, popped: 2, pushed: 0, exec: opcodeEqualVerify},
	{value: OP_NOT, popped: 1, pushed: 1, exec: opcodeNot},
	{value: OP_ADD, popped: 2, pushed: 1, exec: opcodeAdd},
	{value: OP_NUMEQUAL, popped: 2, pushed: 1, exec: opcodeNumEqual},
	{value: OP_RIPEMD160, popped: 1, pushed: 1, exec: opcodeRipemd160},
	{value: OP_SHA256, popped: 1, pushed: 1, exec: opcodeSha256},
	{value: OP_HASH160, popped: 1, pushed: 1, exec: opcodeHash160},
	{value: OP_HASH256, popped: 1, pushed: 1, exec: opcodeHash256},
	{value: OP_CHECKSIG, popped: 2, pushed: 1, exec: opcodeCheckSig},
	{value: OP_CHECKSIGVERIFY, popped: 2, pushed: 0, exec: opcodeCheckSigVerify},
}

// opcodeArray holds every possible opcode value with its name and, for the
// executable subset, its handler.
var opcodeArray = buildOpcodeArray()

func buildOpcodeArray() [256]opcode {
	var table [256]opcode
	for i := range table {
		v := byte(i)
		table[i] = opcode{value: v, name: opcodeName(v)}
	}

	// OP_1 through OP_16 push their small integer.
	for v := OP_1; v <= OP_16; v++ {
		table[v].pushed = 1
		table[v].exec = opcodeN
	}

	for _, h := range handlers {
		h.name = table[h.value].name
		table[h.value] = h
	}
	return table
}

func opcodeName(v byte) string {
	switch {
	case v >= OP_DATA_1 && v <= OP_DATA_75:
		return fmt.Sprintf("OP_DATA_%d", v)
	case v >= OP_1 && v <= OP_16:
		return fmt.Sprintf("OP_%d", v-(OP_1-1))
	case v > OP_CHECKSEQUENCEVERIFY && v <= OP_NOP10:
		return fmt.Sprintf("OP_NOP%d", v-OP_NOP1+1)
	}
	if name, ok := opcodeNames[v]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN%d", v)
}

// OpcodeName returns the human-readable name of an opcode value.
func OpcodeName(v byte) string {
	return opcodeArray[v].name
}

// StackEffect returns the number of items an opcode pops and pushes, and
// whether the engine can execute it.
func StackEffect(v byte) (popped, pushed int, supported bool) {
	op := opcodeArray[v]
	return op.popped, op.pushed, op.exec != nil
}

// opcodeFalse pushes an empty byte array, which is numeric zero.
//
// Stack transformation: [...] -> [... 0]
func opcodeFalse(op *opcode, vm *Engine) error {
	return vm.push(nil)
}

// opcode1Negate pushes -1.
//
// Stack transformation: [...] -> [... -1]
func opcode1Negate(op *opcode, vm *Engine) error {
	return vm.push(EncodeNum(-1))
}

// opcodeN pushes the small integer the opcode names (OP_1 through OP_16).
//
// Stack transformation: [...] -> [... n]
func opcodeN(op *opcode, vm *Engine) error {
	return vm.push(EncodeNum(int64(op.value - (OP_1 - 1))))
}

// opcodeNop does nothing.
func opcodeNop(op *opcode, vm *Engine) error {
	return nil
}

// opcodeVerify pops the top item and fails the script unless it is true.
//
// Stack transformation: [... x] -> [...]
func opcodeVerify(op *opcode, vm *Engine) error {
	v, err := vm.pop(op)
	if err != nil {
		return err
	}
	if !asBool(v) {
		return execErrorf(ErrVerifyFailed, "%s failed", op.name)
	}
	return nil
}

// opcodeReturn marks the script as unspendable.
func opcodeReturn(op *opcode, vm *Engine) error {
	return execErrorf(ErrEarlyReturn, "script returned early")
}

// opcodeToAltStack moves the top item of the data stack to the alt stack.
//
// Main stack transformation: [... x] -> [...]
// Alt stack transformation:  [...] -> [... x]
func opcodeToAltStack(op *opcode, vm *Engine) error {
	v, err := vm.pop(op)
	if err != nil {
		return err
	}
	vm.altStack = append(vm.altStack, v)
	return nil
}

// opcodeFromAltStack moves the top item of the alt stack to the data stack.
//
// Main stack transformation: [...] -> [... x]
// Alt stack transformation:  [... x] -> [...]
func opcodeFromAltStack(op *opcode, vm *Engine) error {
	n := len(vm.altStack)
	if n == 0 {
		return execErrorf(ErrAltStackUnderflow, "%s on an empty alt stack", op.name)
	}
	v := vm.altStack[n-1]
	vm.altStack = vm.altStack[:n-1]
	return vm.push(v)
}

// opcodeDrop removes the top item from the data stack.
//
// Stack transformation: [... x1 x2] -> [... x1]
func opcodeDrop(op *opcode, vm *Engine) error {
	_, err := vm.pop(op)
	return err
}

// opcodeDup duplicates the top item on the data stack.
//
// Stack transformation: [... x1 x2] -> [... x1 x2 x2]
func opcodeDup(op *opcode, vm *Engine) error {
	v, err := vm.peek(op, 0)
	if err != nil {
		return err
	}
	return vm.push(v)
}

// opcode2Dup duplicates the top two items on the data stack.
//
// Stack transformation: [... x1 x2] -> [... x1 x2 x1 x2]
func opcode2Dup(op *opcode, vm *Engine) error {
	x1, err := vm.peek(op, 1)
	if err != nil {
		return err
	}
	x2, err := vm.peek(op, 0)
	if err != nil {
		return err
	}
	if err := vm.push(x1); err != nil {
		return err
	}
	return vm.push(x2)
}

// opcodeSwap swaps the top two items on the data stack.
//
// Stack transformation: [... x1 x2] -> [... x2 x1]
func opcodeSwap(op *opcode, vm *Engine) error {
	if err := vm.require(op, 2); err != nil {
		return err
	}
	n := len(vm.stack)
	vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
	return nil
}

// opcodeSize pushes the byte length of the top item without removing it.
//
// Stack transformation: [... x] -> [... x len(x)]
func opcodeSize(op *opcode, vm *Engine) error {
	v, err := vm.peek(op, 0)
	if err != nil {
		return err
	}
	return vm.push(EncodeNum(int64(len(v))))
}

// opcodeEqual pushes true if the top two items are byte-for-byte equal.
//
// Stack transformation: [... x1 x2] -> [... bool]
func opcodeEqual(op *opcode, vm *Engine) error {
	a, err := vm.pop(op)
	if err != nil {
		return err
	}
	b, err := vm.pop(op)
	if err != nil {
		return err
	}
	return vm.push(fromBool(bytes.Equal(a, b)))
}

// opcodeEqualVerify is OP_EQUAL followed by OP_VERIFY.
//
// Stack transformation: [... x1 x2] -> [...]
func opcodeEqualVerify(op *opcode, vm *Engine) error {
	if err := opcodeEqual(op, vm); err != nil {
		return err
	}
	return opcodeVerify(op, vm)
}

// opcodeNot pushes 1 if the top item is numeric zero, 0 otherwise.
//
// Stack transformation: [... x] -> [... !x]
func opcodeNot(op *opcode, vm *Engine) error {
	n, err := vm.popNum(op)
	if err != nil {
		return err
	}
	return vm.push(fromBool(n == 0))
}

// opcodeAdd pops two numbers and pushes their sum.
//
// Stack transformation: [... x1 x2] -> [... x1+x2]
func opcodeAdd(op *opcode, vm *Engine) error {
	a, err := vm.popNum(op)
	if err != nil {
		return err
	}
	b, err := vm.popNum(op)
	if err != nil {
		return err
	}
	return vm.push(EncodeNum(a + b))
}

// opcodeNumEqual pops two numbers and pushes whether they are equal.
//
// Stack transformation: [... x1 x2] -> [... x1==x2]
func opcodeNumEqual(op *opcode, vm *Engine) error {
	a, err := vm.popNum(op)
	if err != nil {
		return err
	}
	b, err := vm.popNum(op)
	if err != nil {
		return err
	}
	return vm.push(fromBool(a == b))
}

// opcodeRipemd160 replaces the top item with its RIPEMD-160 digest.
//
// Stack transformation: [... x1] -> [... ripemd160(x1)]
func opcodeRipemd160(op *opcode, vm *Engine) error {
	return vm.hashTop(op, crypto.Ripemd160)
}

// opcodeSha256 replaces the top item with its SHA-256 digest.
//
// Stack transformation: [... x1] -> [... sha256(x1)]
func opcodeSha256(op *opcode, vm *Engine) error {
	return vm.hashTop(op, crypto.Sha256)
}

// opcodeHash160 replaces the top item with ripemd160(sha256(data)).
//
// Stack transformation: [... x1] -> [... ripemd160(sha256(x1))]
func opcodeHash160(op *opcode, vm *Engine) error {
	return vm.hashTop(op, crypto.Hash160)
}

// opcodeHash256 replaces the top item with sha256(sha256(data)).
//
// Stack transformation: [... x1] -> [... sha256(sha256(x1))]
func opcodeHash256(op *opcode, vm *Engine) error {
	return vm.hashTop(op, crypto.Hash256)
}

// opcodeCheckSig pops a SEC public key and then a DER signature with its
// trailing sighash-type byte, and pushes whether the signature is valid for
// the engine's digest. A malformed key or signature is a failed check, not
// an execution error.
//
// Stack transformation: [... signature pubkey] -> [... bool]
func opcodeCheckSig(op *opcode, vm *Engine) error {
	pubKey, err := vm.pop(op)
	if err != nil {
		return err
	}
	sigBytes, err := vm.pop(op)
	if err != nil {
		return err
	}

	return vm.push(fromBool(vm.checkSig(sigBytes, pubKey)))
}

// opcodeCheckSigVerify is OP_CHECKSIG followed by OP_VERIFY.
//
// Stack transformation: [... signature pubkey] -> [...]
func opcodeCheckSigVerify(op *opcode, vm *Engine) error {
	if err := opcodeCheckSig(op, vm); err != nil {
		return err
	}
	return opcodeVerify(op, vm)
}

// SigHashAll is the only signature hash type z is computed for.
const SigHashAll = 0x01

func (vm *Engine) checkSig(sigBytes, pubKey []byte) bool {
	if len(sigBytes) == 0 || vm.z == nil {
		return false
	}

	// The last byte is the sighash type, not part of the DER encoding.
	if hashType := sigBytes[len(sigBytes)-1]; hashType != SigHashAll {
		vm.logger.Debug().Uint8("hash_type", hashType).Msg("unsupported sighash type")
		return false
	}
	sig, err := crypto.ParseDER(sigBytes[:len(sigBytes)-1])
	if err != nil {
		vm.logger.Debug().Err(err).Msg("malformed signature")
		return false
	}
	point, err := crypto.ParseSEC(pubKey)
	if err != nil {
		vm.logger.Debug().Err(err).Msg("malformed public key")
		return false
	}

	return point.Verify(new(big.Int).Set(vm.z), sig)
}
