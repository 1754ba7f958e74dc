package ecc

import (
	"fmt"
	"math/big"
)

// Curve is a short Weierstrass curve y^2 = x^3 + a*x + b over a prime field.
//
// Invariant: the curve is non-singular, i.e. 4a^3 + 27b^2 != 0 (mod prime).
type Curve struct {
	a *FieldElement
	b *FieldElement
}

// NewCurve creates a curve from its coefficients. Both coefficients must
// belong to the same field and the curve must be non-singular.
func NewCurve(a, b *FieldElement) (*Curve, error) {
	if a == nil || b == nil {
		return nil, domainErrorf(ErrNilOperand, "curve coefficients must be set")
	}
	if err := a.checkOperand(b); err != nil {
		return nil, err
	}

	// 4a^3 + 27b^2
	four := big.NewInt(4)
	twentySeven := big.NewInt(27)
	disc := a.Pow(big.NewInt(3)).MulScalar(four).add(b.Pow(bigTwo).MulScalar(twentySeven))
	if disc.IsZero() {
		return nil, domainErrorf(ErrSingularCurve, "a=%s, b=%s yield a singular curve", a.num, b.num)
	}

	return &Curve{a: a, b: b}, nil
}

// A returns the a coefficient.
func (c *Curve) A() *FieldElement { return c.a }

// B returns the b coefficient.
func (c *Curve) B() *FieldElement { return c.b }

// Prime returns the modulus of the underlying field.
func (c *Curve) Prime() *big.Int { return c.a.Prime() }

// Equal reports whether both curves have the same coefficients over the
// same field.
func (c *Curve) Equal(other *Curve) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	return c.a.Equal(other.a) && c.b.Equal(other.b)
}

// Evaluate returns x^3 + a*x + b.
func (c *Curve) Evaluate(x *FieldElement) (*FieldElement, error) {
	if err := c.a.checkOperand(x); err != nil {
		return nil, err
	}
	return c.evaluate(x), nil
}

func (c *Curve) evaluate(x *FieldElement) *FieldElement {
	return x.Pow(big.NewInt(3)).add(c.a.mul(x)).add(c.b)
}

// Contains reports whether (x, y) satisfies the curve equation.
func (c *Curve) Contains(x, y *FieldElement) bool {
	if c.a.checkOperand(x) != nil || c.a.checkOperand(y) != nil {
		return false
	}
	return y.mul(y).Equal(c.evaluate(x))
}

func (c *Curve) String() string {
	return fmt.Sprintf("Curve(y^2 = x^3 + %s*x + %s mod %s)", c.a.num, c.b.num, c.a.prime)
}
