package ecc

import (
	"fmt"
	"math/big"
)

// affine holds the coordinates of a finite curve point.
type affine struct {
	x *FieldElement
	y *FieldElement
}

// Point is an element of the group of points on a curve: either a finite
// (affine) point or the point at infinity, which is the group identity.
//
// A Point is constructed either with NewPoint, which enforces the curve
// equation, or with Infinity. The zero value is not usable.
type Point struct {
	curve  *Curve
	coords *affine // nil for the point at infinity
}

// NewPoint creates the finite point (x, y) on curve. Returns a DomainError
// if the coordinates are not in the curve's field or do not satisfy the
// curve equation.
func NewPoint(x, y *FieldElement, curve *Curve) (*Point, error) {
	if curve == nil || x == nil || y == nil {
		return nil, domainErrorf(ErrNilOperand, "point coordinates and curve must be set")
	}
	if err := curve.a.checkOperand(x); err != nil {
		return nil, err
	}
	if err := curve.a.checkOperand(y); err != nil {
		return nil, err
	}
	if !y.mul(y).Equal(curve.evaluate(x)) {
		return nil, domainErrorf(ErrNotOnCurve, "(%s, %s) is not on the curve %s", x.num, y.num, curve)
	}

	return &Point{curve: curve, coords: &affine{x: x, y: y}}, nil
}

// Infinity returns the point at infinity of curve.
func Infinity(curve *Curve) *Point {
	return &Point{curve: curve}
}

// IsInfinity reports whether p is the point at infinity.
func (p *Point) IsInfinity() bool {
	return p.coords == nil
}

// X returns the x coordinate, or nil for the point at infinity.
func (p *Point) X() *FieldElement {
	if p.coords == nil {
		return nil
	}
	return p.coords.x
}

// Y returns the y coordinate, or nil for the point at infinity.
func (p *Point) Y() *FieldElement {
	if p.coords == nil {
		return nil
	}
	return p.coords.y
}

// Curve returns the curve the point lives on.
func (p *Point) Curve() *Curve {
	return p.curve
}

// Equal reports whether both points are on the same curve and have the
// same coordinates (or are both the point at infinity).
func (p *Point) Equal(other *Point) bool {
	if p == nil || other == nil {
		return p == other
	}
	if !p.curve.Equal(other.curve) {
		return false
	}
	if p.IsInfinity() || other.IsInfinity() {
		return p.IsInfinity() && other.IsInfinity()
	}
	return p.coords.x.Equal(other.coords.x) && p.coords.y.Equal(other.coords.y)
}

// Add returns p + other under the elliptic-curve group law.
// Returns a DomainError if the points are on different curves.
func (p *Point) Add(other *Point) (*Point, error) {
	if other == nil {
		return nil, domainErrorf(ErrNilOperand, "operand must be a point")
	}
	if !p.curve.Equal(other.curve) {
		return nil, domainErrorf(ErrDifferentCurves, "points %s and %s are not on the same curve", p, other)
	}
	return p.add(other), nil
}

// add implements the group law for two points known to share a curve.
func (p *Point) add(other *Point) *Point {
	// Identity
	if p.IsInfinity() {
		return other
	}
	if other.IsInfinity() {
		return p
	}

	x1, y1 := p.coords.x, p.coords.y
	x2, y2 := other.coords.x, other.coords.y

	// Vertical line: P + (-P)
	if x1.Equal(x2) && !y1.Equal(y2) {
		return Infinity(p.curve)
	}

	// General addition
	if !x1.Equal(x2) {
		// s = (y2 - y1) / (x2 - x1)
		s := y2.sub(y1).div(x2.sub(x1))
		// x3 = s^2 - x1 - x2
		x3 := s.mul(s).sub(x1).sub(x2)
		// y3 = s(x1 - x3) - y1
		y3 := s.mul(x1.sub(x3)).sub(y1)
		return &Point{curve: p.curve, coords: &affine{x: x3, y: y3}}
	}

	// Doubling with a vertical tangent
	if y1.IsZero() {
		return Infinity(p.curve)
	}

	// Doubling: s = (3x^2 + a) / 2y
	s := x1.mul(x1).MulScalar(big.NewInt(3)).add(p.curve.a).div(y1.MulScalar(bigTwo))
	// x3 = s^2 - 2x
	x3 := s.mul(s).sub(x1.MulScalar(bigTwo))
	// y3 = s(x - x3) - y
	y3 := s.mul(x1.sub(x3)).sub(y1)
	return &Point{curve: p.curve, coords: &affine{x: x3, y: y3}}
}

// Neg returns -p, the reflection of p across the x axis.
func (p *Point) Neg() *Point {
	if p.IsInfinity() {
		return p
	}
	return &Point{curve: p.curve, coords: &affine{x: p.coords.x, y: p.coords.y.Neg()}}
}

// ScalarMul returns k*p using double-and-add over the bits of k, from the
// least significant bit up. A negative k multiplies -p by |k|.
func (p *Point) ScalarMul(k *big.Int) *Point {
	coef := new(big.Int).Set(k)
	current := p
	if coef.Sign() < 0 {
		coef.Neg(coef)
		current = p.Neg()
	}

	result := Infinity(p.curve)
	for i := 0; i < coef.BitLen(); i++ {
		if coef.Bit(i) == 1 {
			result = result.add(current)
		}
		current = current.add(current)
	}

	return result
}

func (p *Point) String() string {
	if p.IsInfinity() {
		return "Point(infinity)"
	}
	return fmt.Sprintf("Point(%s, %s)_%s_%s", p.coords.x.num, p.coords.y.num, p.curve.a.num, p.curve.b.num)
}
