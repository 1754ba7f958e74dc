// Package crypto implements the secp256k1 signature scheme on top of the
// generic curve arithmetic in pkg/ecc.
//
// Key formats:
//   - Private keys: WIF (Wallet Import Format) or a raw 32-byte scalar
//   - Public keys: SEC, compressed (0x02/0x03 || x) or uncompressed (0x04 || x || y)
//   - Signatures: DER-encoded (r, s)
//   - Addresses: base58check(prefix || HASH160(SEC))
//
// The curve parameters are package-level values built once at init and
// never mutated, so they can be shared between goroutines.
package crypto

import (
	"fmt"
	"math/big"

	"github.com/tinyblock/tinyblock/pkg/ecc"
	"github.com/tinyblock/tinyblock/pkg/wire"
)

// SEC prefixes.
const (
	secEven         = 0x02
	secOdd          = 0x03
	secUncompressed = 0x04
)

var (
	// P is the field prime 2^256 - 2^32 - 977.
	P = mustHex("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f")

	// N is the order of the generator.
	N = mustHex("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")

	gx = mustHex("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	gy = mustHex("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")

	// halfN is N/2, the upper bound of a low-s signature.
	halfN = new(big.Int).Rsh(N, 1)

	// sqrtExp is (P+1)/4; P = 3 mod 4 so w^sqrtExp is a square root of w.
	sqrtExp = new(big.Int).Rsh(new(big.Int).Add(P, big.NewInt(1)), 2)

	nMinus2 = new(big.Int).Sub(N, big.NewInt(2))

	s256Curve = mustCurve()
	generator = mustGenerator()
)

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("crypto: invalid constant " + s)
	}
	return n
}

func mustCurve() *ecc.Curve {
	c, err := ecc.NewCurve(s256Field(big.NewInt(0)), s256Field(big.NewInt(7)))
	if err != nil {
		panic(err)
	}
	return c
}

func mustGenerator() *S256Point {
	g, err := NewS256Point(gx, gy)
	if err != nil {
		panic(err)
	}
	return g
}

// s256Field builds an element of F_P from a value already known to be in
// range.
func s256Field(n *big.Int) *ecc.FieldElement {
	f, err := ecc.NewFieldElement(n, P)
	if err != nil {
		panic(err)
	}
	return f
}

// Curve returns the secp256k1 curve y^2 = x^3 + 7 over F_P.
func Curve() *ecc.Curve {
	return s256Curve
}

// G returns the secp256k1 generator point.
func G() *S256Point {
	return generator
}

// S256Point is a point on secp256k1. Scalars are reduced modulo N before
// multiplication.
type S256Point struct {
	point *ecc.Point
}

// NewS256Point creates the point (x, y). Returns a DomainError if the
// coordinates are out of range or not on the curve.
func NewS256Point(x, y *big.Int) (*S256Point, error) {
	fx, err := ecc.NewFieldElement(x, P)
	if err != nil {
		return nil, err
	}
	fy, err := ecc.NewFieldElement(y, P)
	if err != nil {
		return nil, err
	}
	p, err := ecc.NewPoint(fx, fy, s256Curve)
	if err != nil {
		return nil, err
	}
	return &S256Point{point: p}, nil
}

// S256Infinity returns the point at infinity on secp256k1.
func S256Infinity() *S256Point {
	return &S256Point{point: ecc.Infinity(s256Curve)}
}

// Point returns the underlying generic curve point.
func (p *S256Point) Point() *ecc.Point {
	return p.point
}

// IsInfinity reports whether p is the point at infinity.
func (p *S256Point) IsInfinity() bool {
	return p.point.IsInfinity()
}

// X returns the x coordinate, or nil for the point at infinity.
func (p *S256Point) X() *big.Int {
	if p.point.IsInfinity() {
		return nil
	}
	return p.point.X().Num()
}

// Y returns the y coordinate, or nil for the point at infinity.
func (p *S256Point) Y() *big.Int {
	if p.point.IsInfinity() {
		return nil
	}
	return p.point.Y().Num()
}

// Equal reports whether both points are the same.
func (p *S256Point) Equal(other *S256Point) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.point.Equal(other.point)
}

// Add returns p + other.
func (p *S256Point) Add(other *S256Point) *S256Point {
	// Both operands live on s256Curve, so Add cannot fail.
	sum, err := p.point.Add(other.point)
	if err != nil {
		panic(err)
	}
	return &S256Point{point: sum}
}

// ScalarMul returns (k mod N) * p.
func (p *S256Point) ScalarMul(k *big.Int) *S256Point {
	coef := new(big.Int).Mod(k, N)
	return &S256Point{point: p.point.ScalarMul(coef)}
}

// Verify reports whether sig is a valid signature of the digest z under
// the public key p. All arithmetic is modulo the group order N.
//
// A signature with r or s outside [1, N-1] is rejected.
func (p *S256Point) Verify(z *big.Int, sig *Signature) bool {
	if sig == nil || p.IsInfinity() {
		return false
	}
	if !inScalarRange(sig.R) || !inScalarRange(sig.S) {
		return false
	}

	// s^-1 = s^(N-2) mod N
	sInv := new(big.Int).Exp(sig.S, nMinus2, N)

	// u = z / s, v = r / s
	u := new(big.Int).Mul(z, sInv)
	u.Mod(u, N)
	v := new(big.Int).Mul(sig.R, sInv)
	v.Mod(v, N)

	total := G().ScalarMul(u).Add(p.ScalarMul(v))
	if total.IsInfinity() {
		return false
	}

	x := total.X()
	x.Mod(x, N)
	return x.Cmp(sig.R) == 0
}

// SEC returns the SEC encoding of p. The compressed form carries the parity
// of y in its prefix byte.
func (p *S256Point) SEC(compressed bool) []byte {
	if p.IsInfinity() {
		return nil
	}

	x := p.X().FillBytes(make([]byte, 32))
	if compressed {
		prefix := byte(secEven)
		if p.Y().Bit(0) == 1 {
			prefix = secOdd
		}
		return append([]byte{prefix}, x...)
	}

	y := p.Y().FillBytes(make([]byte, 32))
	out := make([]byte, 0, 65)
	out = append(out, secUncompressed)
	out = append(out, x...)
	return append(out, y...)
}

// Hash160 returns HASH160 of the SEC encoding.
func (p *S256Point) Hash160(compressed bool) []byte {
	return Hash160(p.SEC(compressed))
}

func (p *S256Point) String() string {
	if p.IsInfinity() {
		return "S256Point(infinity)"
	}
	return fmt.Sprintf("S256Point(%064x, %064x)", p.X(), p.Y())
}

// ParseSEC decodes a compressed or uncompressed SEC public key.
//
// For the compressed form y is recovered as sqrt(x^3 + 7), picking the root
// whose parity matches the prefix.
func ParseSEC(sec []byte) (*S256Point, error) {
	if len(sec) == 0 {
		return nil, wire.NewFormatError(wire.ErrShortRead, "empty SEC public key")
	}

	switch sec[0] {
	case secUncompressed:
		if len(sec) != 65 {
			return nil, wire.NewFormatError(wire.ErrBadLength, "uncompressed SEC key must be 65 bytes, got %d", len(sec))
		}
		x := new(big.Int).SetBytes(sec[1:33])
		y := new(big.Int).SetBytes(sec[33:65])
		return NewS256Point(x, y)

	case secEven, secOdd:
		if len(sec) != 33 {
			return nil, wire.NewFormatError(wire.ErrBadLength, "compressed SEC key must be 33 bytes, got %d", len(sec))
		}
		fx, err := ecc.NewFieldElement(new(big.Int).SetBytes(sec[1:]), P)
		if err != nil {
			return nil, err
		}

		alpha, err := s256Curve.Evaluate(fx)
		if err != nil {
			return nil, err
		}
		beta := alpha.Pow(sqrtExp)
		if !beta.Pow(big.NewInt(2)).Equal(alpha) {
			return nil, &ecc.DomainError{Code: ecc.ErrNotOnCurve, Message: "x has no square root on secp256k1"}
		}

		y := beta
		wantOdd := sec[0] == secOdd
		if (beta.Num().Bit(0) == 1) != wantOdd {
			y = beta.Neg()
		}

		p, err := ecc.NewPoint(fx, y, s256Curve)
		if err != nil {
			return nil, err
		}
		return &S256Point{point: p}, nil

	default:
		return nil, wire.NewFormatError(wire.ErrBadPrefix, "unknown SEC prefix 0x%02x", sec[0])
	}
}

func inScalarRange(n *big.Int) bool {
	return n != nil && n.Sign() > 0 && n.Cmp(N) < 0
}
