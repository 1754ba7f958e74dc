package crypto

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/tinyblock/tinyblock/pkg/wire"
)

// DER tags.
const (
	derSequence = 0x30
	derInteger  = 0x02
)

// Signature is an ECDSA (r, s) pair.
type Signature struct {
	R *big.Int
	S *big.Int
}

// NewSignature creates a signature from its components.
func NewSignature(r, s *big.Int) *Signature {
	return &Signature{R: new(big.Int).Set(r), S: new(big.Int).Set(s)}
}

// Equal reports whether both signatures have the same components.
func (sig *Signature) Equal(other *Signature) bool {
	if sig == nil || other == nil {
		return sig == other
	}
	return sig.R.Cmp(other.R) == 0 && sig.S.Cmp(other.S) == 0
}

// IsLowS reports whether s is in the lower half of the group order.
func (sig *Signature) IsLowS() bool {
	return sig.S.Cmp(halfN) <= 0
}

func (sig *Signature) String() string {
	return fmt.Sprintf("Signature(%x, %x)", sig.R, sig.S)
}

// DER returns the DER encoding:
//
//	0x30 <len> 0x02 <rlen> <r> 0x02 <slen> <s>
//
// Each integer is minimal big-endian, prefixed with 0x00 when its high bit
// is set so it stays non-negative.
func (sig *Signature) DER() []byte {
	r := derInt(sig.R)
	s := derInt(sig.S)

	body := make([]byte, 0, 4+len(r)+len(s))
	body = append(body, derInteger, byte(len(r)))
	body = append(body, r...)
	body = append(body, derInteger, byte(len(s)))
	body = append(body, s...)

	return append([]byte{derSequence, byte(len(body))}, body...)
}

func derInt(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) == 0 {
		return []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		return append([]byte{0x00}, b...)
	}
	return b
}

// ParseDER decodes a DER signature. Returns a FormatError on a wrong tag, a
// length that disagrees with the content, or trailing bytes.
//
// The range of r and s is not checked here; Verify rejects out-of-range
// components.
func ParseDER(der []byte) (*Signature, error) {
	r := bytes.NewReader(der)

	marker, err := r.ReadByte()
	if err != nil {
		return nil, wire.NewFormatError(wire.ErrShortRead, "empty DER signature")
	}
	if marker != derSequence {
		return nil, wire.NewFormatError(wire.ErrBadTag, "bad DER sequence tag 0x%02x", marker)
	}

	length, err := r.ReadByte()
	if err != nil {
		return nil, wire.NewFormatError(wire.ErrShortRead, "reading DER length")
	}
	if int(length) != len(der)-2 {
		return nil, wire.NewFormatError(wire.ErrBadLength, "DER length %d does not match %d content bytes", length, len(der)-2)
	}

	rVal, err := readDERInt(r, "r")
	if err != nil {
		return nil, err
	}
	sVal, err := readDERInt(r, "s")
	if err != nil {
		return nil, err
	}

	if err := wire.ExpectEOF(r); err != nil {
		return nil, err
	}

	return &Signature{R: rVal, S: sVal}, nil
}

func readDERInt(r *bytes.Reader, name string) (*big.Int, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, wire.NewFormatError(wire.ErrShortRead, "reading %s tag", name)
	}
	if tag != derInteger {
		return nil, wire.NewFormatError(wire.ErrBadTag, "bad DER integer tag 0x%02x for %s", tag, name)
	}

	n, err := r.ReadByte()
	if err != nil {
		return nil, wire.NewFormatError(wire.ErrShortRead, "reading %s length", name)
	}
	if n == 0 || n&0x80 != 0 {
		return nil, wire.NewFormatError(wire.ErrBadLength, "invalid %s length %d", name, n)
	}
	if int(n) > r.Len() {
		return nil, wire.NewFormatError(wire.ErrBadLength, "%s length %d exceeds remaining %d bytes", name, n, r.Len())
	}

	buf := make([]byte, n)
	if err := wire.ReadBytes(r, buf, name); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}
