package script

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyblock/tinyblock/pkg/crypto"
	"github.com/tinyblock/tinyblock/pkg/wire"
)

const zeroHash160Hex = "0000000000000000000000000000000000000000"

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestNumEncoding(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, ""},
		{1, "01"},
		{-1, "81"},
		{16, "10"},
		{127, "7f"},
		{-127, "ff"},
		{128, "8000"},
		{-128, "8080"},
		{255, "ff00"},
		{256, "0001"},
		{-256, "0081"},
		{32767, "ff7f"},
		{32768, "008000"},
		{-2147483647, "ffffffff"},
	}

	for _, tt := range tests {
		encoded := EncodeNum(tt.n)
		assert.Equal(t, tt.expected, hex.EncodeToString(encoded), "encode %d", tt.n)
		assert.Equal(t, tt.n, DecodeNum(encoded), "decode %d", tt.n)
	}
}

func TestAsBool(t *testing.T) {
	assert.False(t, asBool(nil))
	assert.False(t, asBool([]byte{0x00}))
	assert.False(t, asBool([]byte{0x00, 0x00}))
	assert.False(t, asBool([]byte{0x00, 0x80}))
	assert.True(t, asBool([]byte{0x01}))
	assert.True(t, asBool([]byte{0x80, 0x00}))
	assert.True(t, asBool([]byte{0x00, 0x01}))
}

func TestParseP2PKH(t *testing.T) {
	raw := mustDecode(t, "1976a914bc3b654dca7e56b04dca18f2566cdaf02e8d9ada88ac")
	s, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.True(t, s.IsP2PKH())
	assert.Equal(t, mustDecode(t, "bc3b654dca7e56b04dca18f2566cdaf02e8d9ada"), s.PubKeyHash())
	assert.Equal(t, "OP_DUP OP_HASH160 bc3b654dca7e56b04dca18f2566cdaf02e8d9ada OP_EQUALVERIFY OP_CHECKSIG", s.String())

	out, err := s.Serialize()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
	assert.True(t, s.Equal(P2PKH(mustDecode(t, "bc3b654dca7e56b04dca18f2566cdaf02e8d9ada"))))
}

func TestParseScriptSig(t *testing.T) {
	raw := mustDecode(t, "6b483045022100ed81ff192e75a3fd2304004dcadb746fa5e24c5031ccfcf21320b0277457c98f"+
		"02207a986d955c6e0cb35d446a89d3f56100f4d7f67801c31967743a9c8e10615bed01"+
		"210349fc4e631e3624a545de3f89f5d8684c7b8138bd94bdd531d2e213bf016b278a")
	s, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)

	cmds := s.Commands()
	require.Len(t, cmds, 2)
	assert.Len(t, cmds[0].Data, 72)
	assert.Equal(t, byte(0x01), cmds[0].Data[71])
	assert.Len(t, cmds[1].Data, 33)
	assert.False(t, s.IsP2PKH())

	out, err := s.Serialize()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestSerializePushBoundaries(t *testing.T) {
	tests := []struct {
		size   int
		prefix []byte
	}{
		{1, []byte{0x01}},
		{75, []byte{0x4b}},
		{76, []byte{OP_PUSHDATA1, 76}},
		{255, []byte{OP_PUSHDATA1, 0xff}},
		{256, []byte{OP_PUSHDATA2, 0x00, 0x01}},
		{520, []byte{OP_PUSHDATA2, 0x08, 0x02}},
	}

	for _, tt := range tests {
		data := bytes.Repeat([]byte{0xaa}, tt.size)
		s := New(Data(data), Op(OP_DROP))

		raw, err := s.RawSerialize()
		require.NoError(t, err, "size %d", tt.size)
		assert.Equal(t, tt.prefix, raw[:len(tt.prefix)], "size %d", tt.size)
		assert.Len(t, raw, len(tt.prefix)+tt.size+1)

		parsed, err := ParseRaw(raw)
		require.NoError(t, err)
		assert.True(t, parsed.Equal(s), "size %d", tt.size)

		withLen, err := s.Serialize()
		require.NoError(t, err)
		parsed, err = Parse(bytes.NewReader(withLen))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(s), "size %d", tt.size)
	}
}

func TestSerializeOverflow(t *testing.T) {
	s := New(Data(bytes.Repeat([]byte{1}, MaxScriptElementSize+1)))
	_, err := s.Serialize()
	require.Error(t, err)
	var overflow *wire.OverflowError
	assert.True(t, errors.As(err, &overflow))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"direct push overruns", "05010203", wire.ErrBadLength},
		{"pushdata1 missing length", "4c", wire.ErrShortRead},
		{"pushdata1 overruns", "4c0501", wire.ErrBadLength},
		{"pushdata2 short length", "4d01", wire.ErrShortRead},
		{"pushdata4 overruns", "4e0500000001", wire.ErrBadLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRaw(mustDecode(t, tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, &wire.FormatError{Code: tt.code}), "%v", err)
		})
	}

	// Declared script length longer than the input.
	_, err := Parse(bytes.NewReader(mustDecode(t, "0576a9")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, &wire.FormatError{Code: wire.ErrShortRead}))
}

func TestParsePushData4(t *testing.T) {
	s, err := ParseRaw(mustDecode(t, "4e03000000aabbcc"))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, mustDecode(t, "aabbcc"), s.Commands()[0].Data)
}

func TestEmptyPush(t *testing.T) {
	assert.True(t, Data(nil).Equal(Op(OP_0)))

	s, err := ParseRaw([]byte{OP_PUSHDATA1, 0x00})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.True(t, s.Commands()[0].IsData())
	assert.Empty(t, s.Commands()[0].Data)
	assert.Equal(t, "OP_0", s.String())

	// Both forms push the empty string.
	for _, raw := range [][]byte{{OP_PUSHDATA1, 0x00, OP_NOT}, {OP_0, OP_NOT}} {
		parsed, err := ParseRaw(raw)
		require.NoError(t, err)
		assert.True(t, parsed.Evaluate(big.NewInt(1)), "%x", raw)
	}
}

func TestParseKeepsPushEncoding(t *testing.T) {
	for _, raw := range []string{
		"4c03aabbcc",         // OP_PUSHDATA1 for a 3-byte push
		"4d0300aabbcc",       // OP_PUSHDATA2 for a 3-byte push
		"4e03000000aabbcc",   // OP_PUSHDATA4 for a 3-byte push
		"4c00",               // zero-length OP_PUSHDATA1
		"4d00004e0000000000", // zero-length OP_PUSHDATA2 and OP_PUSHDATA4, then OP_0
		"03aabbcc76a914" + zeroHash160Hex + "88ac", // minimal pushes stay minimal
	} {
		s, err := ParseRaw(mustDecode(t, raw))
		require.NoError(t, err, raw)

		got, err := s.RawSerialize()
		require.NoError(t, err, raw)
		assert.Equal(t, raw, hex.EncodeToString(got))

		// Copies keep the encoding.
		copied := New(s.Commands()...)
		again, err := copied.RawSerialize()
		require.NoError(t, err)
		assert.Equal(t, raw, hex.EncodeToString(again))
	}

	nonMinimal, err := ParseRaw(mustDecode(t, "4c03aabbcc"))
	require.NoError(t, err)
	assert.True(t, nonMinimal.Equal(New(Data(mustDecode(t, "aabbcc")))))
}

func TestParseOversizedPush(t *testing.T) {
	for _, raw := range []string{
		"4d0902" + hex.EncodeToString(bytes.Repeat([]byte{1}, 521)),
		"4e09020000" + hex.EncodeToString(bytes.Repeat([]byte{1}, 521)),
		"4effffffff",
	} {
		_, err := ParseRaw(mustDecode(t, raw))
		require.Error(t, err)
		var overflow *wire.OverflowError
		assert.True(t, errors.As(err, &overflow), "%v", err)
	}

	ok, err := ParseRaw(mustDecode(t, "4d0802"+hex.EncodeToString(bytes.Repeat([]byte{1}, 520))))
	require.NoError(t, err)
	assert.Equal(t, 1, ok.Len())
}

func TestCombineKeepsOrderAndOperands(t *testing.T) {
	unlock := New(Data([]byte{1}))
	lock := New(Op(OP_DUP), Op(OP_EQUAL))

	combined := unlock.Combine(lock)
	assert.Equal(t, "01 OP_DUP OP_EQUAL", combined.String())
	assert.Equal(t, 1, unlock.Len())
	assert.Equal(t, 2, lock.Len())

	// Evaluation works on a copy, so the script can run twice.
	assert.True(t, combined.Evaluate(nil))
	assert.True(t, combined.Evaluate(nil))
	assert.Equal(t, 3, combined.Len())
}

func TestOpcodeTable(t *testing.T) {
	assert.Equal(t, "OP_0", OpcodeName(OP_0))
	assert.Equal(t, "OP_1", OpcodeName(OP_1))
	assert.Equal(t, "OP_16", OpcodeName(OP_16))
	assert.Equal(t, "OP_DATA_20", OpcodeName(20))
	assert.Equal(t, "OP_CHECKSIG", OpcodeName(OP_CHECKSIG))
	assert.Equal(t, "OP_NOP4", OpcodeName(0xb3))
	assert.Equal(t, "OP_NOP10", OpcodeName(OP_NOP10))
	assert.Equal(t, "OP_UNKNOWN250", OpcodeName(250))

	popped, pushed, ok := StackEffect(OP_CHECKSIG)
	assert.Equal(t, 2, popped)
	assert.Equal(t, 1, pushed)
	assert.True(t, ok)

	popped, pushed, ok = StackEffect(OP_DUP)
	assert.Equal(t, []int{1, 2}, []int{popped, pushed})
	assert.True(t, ok)

	_, _, ok = StackEffect(OP_IF)
	assert.False(t, ok)
}

func TestOpcodeStackEffects(t *testing.T) {
	// Every executable opcode must honour its declared stack effect when
	// given enough arbitrary operands.
	operand := EncodeNum(3)
	for v := 0; v < 256; v++ {
		popped, pushed, ok := StackEffect(byte(v))
		if !ok || v == OP_RETURN || v == OP_FROMALTSTACK {
			continue
		}
		if v == OP_VERIFY || v == OP_EQUALVERIFY || v == OP_CHECKSIGVERIFY {
			continue
		}

		e := &Engine{logger: zerolog.Nop()}
		for i := 0; i < popped; i++ {
			e.stack = append(e.stack, operand)
		}
		op := &opcodeArray[v]
		require.NoError(t, op.exec(op, e), OpcodeName(byte(v)))
		assert.Len(t, e.stack, pushed, OpcodeName(byte(v)))
	}
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name string
		s    *Script
		code string // empty means success
	}{
		{"true", New(Op(OP_1)), ""},
		{"false", New(Op(OP_0)), ErrEvalFalse},
		{"empty", New(), ErrEmptyStack},
		{"small ints", New(Op(OP_2), Op(OP_3), Op(OP_ADD), Op(OP_5), Op(OP_NUMEQUAL)), ""},
		{"1negate", New(Op(OP_1NEGATE), Op(OP_1), Op(OP_ADD), Op(OP_NOT)), ""},
		{"equal", New(Data([]byte("abc")), Data([]byte("abc")), Op(OP_EQUAL)), ""},
		{"not equal", New(Data([]byte("abc")), Data([]byte("abd")), Op(OP_EQUAL)), ErrEvalFalse},
		{"equalverify fails", New(Op(OP_1), Op(OP_2), Op(OP_EQUALVERIFY), Op(OP_1)), ErrVerifyFailed},
		{"verify", New(Op(OP_1), Op(OP_VERIFY), Op(OP_1)), ""},
		{"verify fails", New(Op(OP_0), Op(OP_VERIFY), Op(OP_1)), ErrVerifyFailed},
		{"underflow", New(Op(OP_DUP)), ErrStackUnderflow},
		{"return", New(Op(OP_1), Op(OP_RETURN)), ErrEarlyReturn},
		{"unsupported", New(Op(OP_1), Op(OP_IF)), ErrUnsupportedOpcode},
		{"unknown", New(Op(OP_1), Op(0xfa)), ErrUnsupportedOpcode},
		{"altstack", New(Op(OP_0), Op(OP_1), Op(OP_TOALTSTACK), Op(OP_DROP), Op(OP_FROMALTSTACK)), ""},
		{"altstack underflow", New(Op(OP_FROMALTSTACK)), ErrAltStackUnderflow},
		{"swap", New(Op(OP_1), Op(OP_0), Op(OP_SWAP), Op(OP_DROP)), ErrEvalFalse},
		{"2dup", New(Op(OP_1), Op(OP_2), Op(OP_2DUP), Op(OP_EQUAL)), ErrEvalFalse},
		{"size", New(Data([]byte("abcd")), Op(OP_SIZE), Op(OP_4), Op(OP_NUMEQUAL)), ""},
		{"number too big", New(Data([]byte{1, 2, 3, 4, 5}), Op(OP_NOT)), ErrNumberTooBig},
		{"nop", New(Op(OP_1), Op(OP_NOP)), ""},
		{"hash160", New(Data([]byte("x")), Op(OP_HASH160), Op(OP_SIZE), Data(EncodeNum(20)), Op(OP_NUMEQUAL)), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Execute(nil)
			if tt.code == "" {
				assert.NoError(t, err)
				assert.True(t, tt.s.Evaluate(nil))
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, &ExecError{Code: tt.code}), "%v", err)
			assert.False(t, tt.s.Evaluate(nil))
		})
	}
}

func TestHashOpcodes(t *testing.T) {
	data := []byte("hello")
	tests := []struct {
		op       byte
		expected []byte
	}{
		{OP_RIPEMD160, crypto.Ripemd160(data)},
		{OP_SHA256, crypto.Sha256(data)},
		{OP_HASH160, crypto.Hash160(data)},
		{OP_HASH256, crypto.Hash256(data)},
	}

	for _, tt := range tests {
		e := NewEngine(New(Data(data), Op(tt.op)), nil)
		require.NoError(t, e.Execute(), OpcodeName(tt.op))
		assert.Equal(t, [][]byte{tt.expected}, e.Stack())
	}
}

func TestStackOverflow(t *testing.T) {
	cmds := make([]Command, 0, MaxStackSize+1)
	for i := 0; i <= MaxStackSize; i++ {
		cmds = append(cmds, Op(OP_1))
	}
	err := New(cmds...).Execute(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ExecError{Code: ErrStackOverflow}))
}

// P2PK spend from a mainnet transaction.
func TestEvaluateP2PK(t *testing.T) {
	z, ok := new(big.Int).SetString("7c076ff316692a3d7eb3c3bb0f8b1488cf72e1afcd929e29307032997a838a3d", 16)
	require.True(t, ok)
	sec := mustDecode(t, "04887387e452b8eacc4acfde10d9aaf7f6d9a0f975aabb10d006e4da568744d06c"+
		"61de6d95231cd89026e286df3b6ae4a894a3378e393e93a0f45b666329a0ae34")
	sig := mustDecode(t, "3045022000eff69ef2b1bd93a66ed5219add4fb51e11a840f404876325a1e8ffe0529a2c"+
		"022100c7207fee197d27c618aea621406f6bf5ef6fca38681d82b2f06fddbdce6feab601")

	combined := New(Data(sig)).Combine(P2PK(sec))
	assert.True(t, combined.Evaluate(z))
	assert.False(t, combined.Evaluate(new(big.Int).Add(z, big.NewInt(1))))
}

func TestEvaluateP2PKH(t *testing.T) {
	key, err := crypto.NewPrivateKey(big.NewInt(8675309))
	require.NoError(t, err)

	z := new(big.Int).SetBytes(crypto.Hash256([]byte("spend")))
	sig, err := key.Sign(z)
	require.NoError(t, err)

	sec := key.PublicKey().SEC(true)
	lock := P2PKH(crypto.Hash160(sec))
	unlock := P2PKHUnlock(append(sig.DER(), 0x01), sec)

	assert.True(t, unlock.Combine(lock).Evaluate(z))

	// Wrong public key: hash check fails before the signature check.
	other, err := crypto.NewPrivateKey(big.NewInt(42))
	require.NoError(t, err)
	wrong := P2PKHUnlock(append(sig.DER(), 0x01), other.PublicKey().SEC(true))
	err = wrong.Combine(lock).Execute(z)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ExecError{Code: ErrVerifyFailed}))

	// A valid signature under any hash type but SIGHASH_ALL does not verify.
	for _, hashType := range []byte{0x00, 0x02, 0x03, 0x81} {
		other := P2PKHUnlock(append(sig.DER(), hashType), sec)
		err = other.Combine(lock).Execute(z)
		require.Error(t, err)
		assert.True(t, errors.Is(err, &ExecError{Code: ErrEvalFalse}), "hash type 0x%02x", hashType)
	}

	// Malformed signature: the check fails, it does not error.
	garbage := P2PKHUnlock([]byte{0x30, 0x01}, sec)
	err = garbage.Combine(lock).Execute(z)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ExecError{Code: ErrEvalFalse}))
}

func TestCheckSigVerify(t *testing.T) {
	key, err := crypto.NewPrivateKey(big.NewInt(1234))
	require.NoError(t, err)
	z := new(big.Int).SetBytes(crypto.Hash256([]byte("verify")))
	sig, err := key.Sign(z)
	require.NoError(t, err)

	s := New(Data(append(sig.DER(), 0x01)), Data(key.PublicKey().SEC(false)), Op(OP_CHECKSIGVERIFY), Op(OP_1))
	assert.True(t, s.Evaluate(z))

	err = s.Execute(big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ExecError{Code: ErrVerifyFailed}))
}
