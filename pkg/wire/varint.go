// Package wire implements the low-level binary encodings shared by the
// transaction and script codecs: Bitcoin's variable-length integer
// ("compact size") and fixed-width little-endian integers.
//
// Varint format:
//
//	value < 0xfd          1 byte literal
//	value <= 0xffff       0xfd || uint16le
//	value <= 0xffffffff   0xfe || uint32le
//	otherwise             0xff || uint64le
package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// Varint markers.
const (
	varIntMarker16 = 0xfd
	varIntMarker32 = 0xfe
	varIntMarker64 = 0xff
)

// ReadVarInt reads a Bitcoin-style variable-length integer.
func ReadVarInt(r io.Reader) (uint64, error) {
	var first [1]byte
	if err := readFull(r, first[:], "varint marker"); err != nil {
		return 0, err
	}

	switch first[0] {
	case varIntMarker16:
		v, err := ReadUint16(r)
		if err != nil {
			return 0, errors.Wrap(err, "reading 2-byte varint")
		}
		return uint64(v), nil
	case varIntMarker32:
		v, err := ReadUint32(r)
		if err != nil {
			return 0, errors.Wrap(err, "reading 4-byte varint")
		}
		return uint64(v), nil
	case varIntMarker64:
		v, err := ReadUint64(r)
		if err != nil {
			return 0, errors.Wrap(err, "reading 8-byte varint")
		}
		return v, nil
	default:
		return uint64(first[0]), nil
	}
}

// EncodeVarInt returns the smallest varint encoding of v.
func EncodeVarInt(v uint64) []byte {
	switch {
	case v < varIntMarker16:
		return []byte{byte(v)}
	case v <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = varIntMarker16
		binary.LittleEndian.PutUint16(buf[1:], uint16(v))
		return buf
	case v <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = varIntMarker32
		binary.LittleEndian.PutUint32(buf[1:], uint32(v))
		return buf
	default:
		buf := make([]byte, 9)
		buf[0] = varIntMarker64
		binary.LittleEndian.PutUint64(buf[1:], v)
		return buf
	}
}

var maxUint64 = new(big.Int).SetUint64(^uint64(0))

// EncodeVarIntBig encodes an arbitrary-precision value, rejecting negative
// values and values above 2^64-1 with an OverflowError.
func EncodeVarIntBig(v *big.Int) ([]byte, error) {
	if v.Sign() < 0 {
		return nil, NewOverflowError("varint value %s is negative", v)
	}
	if v.Cmp(maxUint64) > 0 {
		return nil, NewOverflowError("integer %s is above 2^64-1", v)
	}
	return EncodeVarInt(v.Uint64()), nil
}

// AppendVarInt appends the varint encoding of v to b.
func AppendVarInt(b []byte, v uint64) []byte {
	return append(b, EncodeVarInt(v)...)
}

// VarIntSerializeSize returns the number of bytes EncodeVarInt(v) produces.
func VarIntSerializeSize(v uint64) int {
	switch {
	case v < varIntMarker16:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// ReadVarBytes reads a varint length followed by that many bytes. Lengths
// above maxLen are rejected before any allocation.
func ReadVarBytes(r io.Reader, maxLen uint64, field string) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s length", field)
	}
	if n > maxLen {
		return nil, NewFormatError(ErrBadLength, "%s length %d exceeds maximum %d", field, n, maxLen)
	}

	buf := make([]byte, n)
	if err := readFull(r, buf, field); err != nil {
		return nil, err
	}
	return buf, nil
}

// AppendVarBytes appends a varint length prefix followed by data to b.
func AppendVarBytes(b, data []byte) []byte {
	b = AppendVarInt(b, uint64(len(data)))
	return append(b, data...)
}

// ReadUint16 reads a little-endian uint16.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if err := readFull(r, buf[:], "uint16"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:], "uint32"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little-endian uint64.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:], "uint64"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadBytes reads exactly len(buf) bytes into buf.
func ReadBytes(r io.Reader, buf []byte, field string) error {
	return readFull(r, buf, field)
}

// AppendUint32 appends v as a little-endian uint32.
func AppendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendUint64 appends v as a little-endian uint64.
func AppendUint64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

// readFull reads exactly len(buf) bytes, translating a premature end of
// input into a FormatError.
func readFull(r io.Reader, buf []byte, field string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &FormatError{Code: ErrShortRead, Message: "reading " + field, Cause: err}
		}
		return errors.Wrapf(err, "reading %s", field)
	}
	return nil
}

// ReverseBytes returns a reversed copy of b. Hashes are stored in display
// (big-endian) order and reversed at the wire boundary.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// ExpectEOF returns a FormatError if r still has unread bytes.
func ExpectEOF(r *bytes.Reader) error {
	if r.Len() != 0 {
		return NewFormatError(ErrTrailingData, "%d unexpected trailing bytes", r.Len())
	}
	return nil
}
