// Package ecc implements finite-field and elliptic-curve arithmetic over
// short Weierstrass curves y^2 = x^3 + a*x + b.
//
// The package is curve-agnostic: a FieldElement carries its own modulus and
// a Point carries the curve it lives on. The secp256k1 bindings in
// pkg/crypto build on these types with fixed parameters.
//
// All values are immutable. Every operation returns a new instance and
// leaves its operands untouched, so values can be shared freely between
// goroutines.
package ecc

import (
	"fmt"
	"math/big"
)

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// FieldElement is an integer modulo a fixed modulus.
//
// Invariant: 0 <= num < prime. The modulus is expected to be prime for
// division and exponentiation to be meaningful (both rely on Fermat's
// little theorem).
type FieldElement struct {
	num   *big.Int
	prime *big.Int
}

// NewFieldElement creates a field element with value num modulo prime.
// Returns a DomainError if num is not in [0, prime).
func NewFieldElement(num, prime *big.Int) (*FieldElement, error) {
	if num == nil || prime == nil {
		return nil, domainErrorf(ErrNilOperand, "field element value and modulus must be set")
	}
	if prime.Sign() <= 0 {
		return nil, domainErrorf(ErrOutOfRange, "modulus %s must be positive", prime)
	}
	if num.Sign() < 0 || num.Cmp(prime) >= 0 {
		return nil, domainErrorf(ErrOutOfRange, "%s not in range 0 to %s", num, new(big.Int).Sub(prime, bigOne))
	}

	return &FieldElement{
		num:   new(big.Int).Set(num),
		prime: new(big.Int).Set(prime),
	}, nil
}

// NewFieldElementInt64 is a convenience constructor for small fields.
func NewFieldElementInt64(num, prime int64) (*FieldElement, error) {
	return NewFieldElement(big.NewInt(num), big.NewInt(prime))
}

// newReduced builds an element from an arbitrary integer, reducing it modulo
// prime. The prime is shared, not copied: callers only pass a prime that
// already belongs to an immutable element.
func newReduced(num, prime *big.Int) *FieldElement {
	n := new(big.Int).Mod(num, prime)
	return &FieldElement{num: n, prime: prime}
}

// Num returns a copy of the element's value.
func (f *FieldElement) Num() *big.Int {
	return new(big.Int).Set(f.num)
}

// Prime returns a copy of the element's modulus.
func (f *FieldElement) Prime() *big.Int {
	return new(big.Int).Set(f.prime)
}

// Equal reports whether both elements have the same value and modulus.
func (f *FieldElement) Equal(other *FieldElement) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.num.Cmp(other.num) == 0 && f.prime.Cmp(other.prime) == 0
}

// IsZero reports whether the element is the additive identity.
func (f *FieldElement) IsZero() bool {
	return f.num.Sign() == 0
}

func (f *FieldElement) String() string {
	return fmt.Sprintf("FieldElement_%s(%s)", f.prime, f.num)
}

// checkOperand enforces that other is a usable element of the same field.
func (f *FieldElement) checkOperand(other *FieldElement) error {
	if other == nil {
		return domainErrorf(ErrNilOperand, "operand must be a field element")
	}
	if f.prime.Cmp(other.prime) != 0 {
		return domainErrorf(ErrModulusMismatch, "field elements must have the same modulus, %s != %s", f.prime, other.prime)
	}
	return nil
}

// Add returns f + other.
func (f *FieldElement) Add(other *FieldElement) (*FieldElement, error) {
	if err := f.checkOperand(other); err != nil {
		return nil, err
	}
	return f.add(other), nil
}

// Sub returns f - other.
func (f *FieldElement) Sub(other *FieldElement) (*FieldElement, error) {
	if err := f.checkOperand(other); err != nil {
		return nil, err
	}
	return f.sub(other), nil
}

// Mul returns f * other.
func (f *FieldElement) Mul(other *FieldElement) (*FieldElement, error) {
	if err := f.checkOperand(other); err != nil {
		return nil, err
	}
	return f.mul(other), nil
}

// Div returns f / other, computing the inverse of other as
// other^(prime-2) by Fermat's little theorem.
//
// Dividing by zero yields zero rather than an error, because 0^(p-2) = 0;
// callers must not divide by zero.
func (f *FieldElement) Div(other *FieldElement) (*FieldElement, error) {
	if err := f.checkOperand(other); err != nil {
		return nil, err
	}
	return f.div(other), nil
}

// Pow returns f^exponent. The exponent is first reduced modulo (prime-1),
// which makes negative exponents work as inverses.
//
// The reduction is only valid for a nonzero base: for f == 0 and an
// exponent that is a multiple of (prime-1) the result is 1, not 0.
func (f *FieldElement) Pow(exponent *big.Int) *FieldElement {
	order := new(big.Int).Sub(f.prime, bigOne)
	n := new(big.Int).Mod(exponent, order)
	return &FieldElement{num: new(big.Int).Exp(f.num, n, f.prime), prime: f.prime}
}

// MulScalar multiplies the element by a plain integer coefficient. This is
// repeated field addition, not elliptic-curve scalar multiplication.
func (f *FieldElement) MulScalar(coefficient *big.Int) *FieldElement {
	return newReduced(new(big.Int).Mul(f.num, coefficient), f.prime)
}

// Neg returns the additive inverse of f.
func (f *FieldElement) Neg() *FieldElement {
	return newReduced(new(big.Int).Neg(f.num), f.prime)
}

// Unchecked operations used by the curve arithmetic, where both operands are
// known to share a modulus.

func (f *FieldElement) add(other *FieldElement) *FieldElement {
	return newReduced(new(big.Int).Add(f.num, other.num), f.prime)
}

func (f *FieldElement) sub(other *FieldElement) *FieldElement {
	return newReduced(new(big.Int).Sub(f.num, other.num), f.prime)
}

func (f *FieldElement) mul(other *FieldElement) *FieldElement {
	return newReduced(new(big.Int).Mul(f.num, other.num), f.prime)
}

func (f *FieldElement) div(other *FieldElement) *FieldElement {
	e := new(big.Int).Sub(f.prime, bigTwo)
	inv := new(big.Int).Exp(other.num, e, f.prime)
	return newReduced(inv.Mul(inv, f.num), f.prime)
}
