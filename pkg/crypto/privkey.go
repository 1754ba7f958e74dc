package crypto

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"

	"github.com/tinyblock/tinyblock/pkg/ecc"
)

// maxSignAttempts bounds the nonce retries when a nonce yields r = 0 or
// s = 0, which for RFC6979 happens with negligible probability.
const maxSignAttempts = 16

// NonceSource produces the per-signature ECDSA nonce k. attempt starts at 0
// and is incremented each time the previous nonce produced an unusable
// signature.
type NonceSource interface {
	Nonce(secret, z *big.Int, attempt uint32) *big.Int
}

// NonceFunc adapts a function to the NonceSource interface.
type NonceFunc func(secret, z *big.Int, attempt uint32) *big.Int

// Nonce calls f.
func (f NonceFunc) Nonce(secret, z *big.Int, attempt uint32) *big.Int {
	return f(secret, z, attempt)
}

// RFC6979 derives k deterministically from the secret and the digest
// (HMAC-SHA256 DRBG), so signing the same digest twice yields the same
// signature and k never depends on a random source.
var RFC6979 NonceSource = NonceFunc(rfc6979Nonce)

func rfc6979Nonce(secret, z *big.Int, attempt uint32) *big.Int {
	key := secret.FillBytes(make([]byte, 32))
	hash := digestBytes(z)

	k := secp256k1.NonceRFC6979(key, hash, nil, nil, attempt)
	kb := k.Bytes()
	k.Zero()
	return new(big.Int).SetBytes(kb[:])
}

// digestBytes returns z as 32 big-endian bytes. Digests wider than 256 bits
// are reduced modulo N first.
func digestBytes(z *big.Int) []byte {
	v := z
	if v.Sign() < 0 || v.BitLen() > 256 {
		v = new(big.Int).Mod(z, N)
	}
	return v.FillBytes(make([]byte, 32))
}

// PrivateKey is a secp256k1 secret scalar together with its public point.
type PrivateKey struct {
	secret *big.Int
	point  *S256Point
	nonces NonceSource
}

// KeyOption configures a PrivateKey.
type KeyOption func(*PrivateKey)

// WithNonceSource replaces the default RFC6979 nonce source. Intended for
// tests that need a fixed k.
func WithNonceSource(ns NonceSource) KeyOption {
	return func(k *PrivateKey) {
		k.nonces = ns
	}
}

// NewPrivateKey creates a key from a secret in [1, N-1] and derives its
// public point secret*G.
func NewPrivateKey(secret *big.Int, opts ...KeyOption) (*PrivateKey, error) {
	if !inScalarRange(secret) {
		return nil, &ecc.DomainError{Code: ecc.ErrOutOfRange, Message: "private key must be in [1, N-1]"}
	}

	k := &PrivateKey{
		secret: new(big.Int).Set(secret),
		nonces: RFC6979,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.point = G().ScalarMul(k.secret)
	return k, nil
}

// PrivateKeyFromBytes creates a private key from a raw 32-byte big-endian
// scalar.
func PrivateKeyFromBytes(keyBytes []byte, opts ...KeyOption) (*PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, errors.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}
	return NewPrivateKey(new(big.Int).SetBytes(keyBytes), opts...)
}

// PublicKey returns the public point secret*G.
func (k *PrivateKey) PublicKey() *S256Point {
	return k.point
}

// Secret returns a copy of the secret scalar.
func (k *PrivateKey) Secret() *big.Int {
	return new(big.Int).Set(k.secret)
}

// Bytes returns the raw 32-byte secret.
func (k *PrivateKey) Bytes() []byte {
	return k.secret.FillBytes(make([]byte, 32))
}

// Sign signs the digest z:
//
//	r = (k*G).x mod N
//	s = (z + r*secret) / k mod N
//
// s is normalised to the lower half of the order. Returns an error only if
// the nonce source produces a k outside [1, N-1] or keeps producing
// unusable nonces.
func (k *PrivateKey) Sign(z *big.Int) (*Signature, error) {
	for attempt := uint32(0); attempt < maxSignAttempts; attempt++ {
		nonce := k.nonces.Nonce(k.secret, z, attempt)
		if !inScalarRange(nonce) {
			return nil, errors.Errorf("nonce source returned k outside [1, N-1] on attempt %d", attempt)
		}

		r := G().ScalarMul(nonce).X()
		r.Mod(r, N)
		if r.Sign() == 0 {
			continue
		}

		// k^-1 = k^(N-2) mod N
		kInv := new(big.Int).Exp(nonce, nMinus2, N)

		s := new(big.Int).Mul(r, k.secret)
		s.Add(s, z)
		s.Mul(s, kInv)
		s.Mod(s, N)
		if s.Sign() == 0 {
			continue
		}

		if s.Cmp(halfN) > 0 {
			s.Sub(N, s)
		}

		return &Signature{R: r, S: s}, nil
	}

	return nil, errors.Errorf("no usable nonce after %d attempts", maxSignAttempts)
}
