package script

// MaxNumLen is the widest numeric operand arithmetic opcodes accept.
const MaxNumLen = 4

// EncodeNum encodes n as a script number: little-endian magnitude with the
// sign in the high bit of the last byte. Zero encodes as the empty byte
// string. A 0x00 or 0x80 byte is appended only when the magnitude already
// uses the high bit.
//
// Examples:
//
//	127  -> [0x7f]
//	-127 -> [0xff]
//	128  -> [0x80 0x00]
//	-128 -> [0x80 0x80]
func EncodeNum(n int64) []byte {
	if n == 0 {
		return []byte{}
	}

	negative := n < 0
	abs := uint64(n)
	if negative {
		abs = uint64(-n)
	}

	var result []byte
	for abs > 0 {
		result = append(result, byte(abs&0xff))
		abs >>= 8
	}

	last := len(result) - 1
	switch {
	case result[last]&0x80 != 0 && negative:
		result = append(result, 0x80)
	case result[last]&0x80 != 0:
		result = append(result, 0x00)
	case negative:
		result[last] |= 0x80
	}

	return result
}

// DecodeNum reverses EncodeNum. Inputs longer than eight bytes overflow;
// opcodes bound their operands with MaxNumLen before decoding.
func DecodeNum(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}

	last := len(b) - 1
	negative := b[last]&0x80 != 0

	var result int64
	for i := last; i >= 0; i-- {
		v := b[i]
		if i == last {
			v &= 0x7f
		}
		result = result<<8 | int64(v)
	}

	if negative {
		return -result
	}
	return result
}

// asBool interprets a stack element as a boolean. Any nonzero byte is true,
// except a single trailing 0x80 (negative zero).
func asBool(b []byte) bool {
	for i := range b {
		if b[i] != 0 {
			if i == len(b)-1 && b[i] == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

func fromBool(v bool) []byte {
	if v {
		return EncodeNum(1)
	}
	return EncodeNum(0)
}
