package crypto

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyblock/tinyblock/pkg/ecc"
	"github.com/tinyblock/tinyblock/pkg/wire"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 16)
	require.True(t, ok, s)
	return n
}

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func digest(msg string) *big.Int {
	return new(big.Int).SetBytes(Hash256([]byte(msg)))
}

// Public key and signature from a mainnet P2PK spend.
const (
	fixtureSEC = "04887387e452b8eacc4acfde10d9aaf7f6d9a0f975aabb10d006e4da568744d06c" +
		"61de6d95231cd89026e286df3b6ae4a894a3378e393e93a0f45b666329a0ae34"
	fixtureZ   = "7c076ff316692a3d7eb3c3bb0f8b1488cf72e1afcd929e29307032997a838a3d"
	fixtureR   = "eff69ef2b1bd93a66ed5219add4fb51e11a840f404876325a1e8ffe0529a2c"
	fixtureS   = "c7207fee197d27c618aea621406f6bf5ef6fca38681d82b2f06fddbdce6feab6"
	fixtureDER = "3045022000eff69ef2b1bd93a66ed5219add4fb51e11a840f404876325a1e8ffe0529a2c" +
		"022100c7207fee197d27c618aea621406f6bf5ef6fca38681d82b2f06fddbdce6feab6"
)

func TestGeneratorOrder(t *testing.T) {
	// The generic curve multiplication does not reduce k, so this walks all
	// of N's bits.
	assert.True(t, G().Point().ScalarMul(N).IsInfinity())
	assert.False(t, G().Point().ScalarMul(new(big.Int).Sub(N, big.NewInt(1))).IsInfinity())

	neg := G().ScalarMul(new(big.Int).Sub(N, big.NewInt(1)))
	assert.Equal(t, 0, neg.X().Cmp(gx))
	assert.Equal(t, 0, neg.Y().Cmp(new(big.Int).Sub(P, gy)))
}

func TestNewS256PointRejectsOffCurve(t *testing.T) {
	_, err := NewS256Point(gx, new(big.Int).Add(gy, big.NewInt(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ecc.DomainError{Code: ecc.ErrNotOnCurve}))

	_, err = NewS256Point(P, gy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ecc.DomainError{Code: ecc.ErrOutOfRange}))
}

func TestPublicKeyMatchesOracle(t *testing.T) {
	secrets := []*big.Int{
		big.NewInt(1),
		big.NewInt(5000),
		new(big.Int).Exp(big.NewInt(2018), big.NewInt(5), nil),
		mustBig(t, "deadbeef12345"),
		digest("my very secret secret"),
		new(big.Int).Sub(N, big.NewInt(1)),
	}

	for _, secret := range secrets {
		key, err := NewPrivateKey(secret)
		require.NoError(t, err)

		oracle := secp256k1.PrivKeyFromBytes(key.Bytes()).PubKey()
		assert.Equal(t, oracle.SerializeCompressed(), key.PublicKey().SEC(true), "secret %x", secret)
		assert.Equal(t, oracle.SerializeUncompressed(), key.PublicKey().SEC(false), "secret %x", secret)
	}
}

func TestSECRoundTrip(t *testing.T) {
	for _, secret := range []int64{1, 2, 3, 5001, 33466154331649568} {
		point := G().ScalarMul(big.NewInt(secret))
		for _, compressed := range []bool{true, false} {
			sec := point.SEC(compressed)
			parsed, err := ParseSEC(sec)
			require.NoError(t, err)
			assert.True(t, parsed.Equal(point), "secret %d compressed %v", secret, compressed)
		}
	}
}

func TestSECCompressedParity(t *testing.T) {
	// Both parities must occur and round-trip.
	seen := map[byte]bool{}
	for i := int64(1); i <= 8; i++ {
		sec := G().ScalarMul(big.NewInt(i)).SEC(true)
		seen[sec[0]] = true
	}
	assert.True(t, seen[0x02])
	assert.True(t, seen[0x03])
}

func TestParseSECErrors(t *testing.T) {
	tests := []struct {
		name string
		sec  string
		code string
	}{
		{"empty", "", wire.ErrShortRead},
		{"bad prefix", "05" + fixtureSEC[2:], wire.ErrBadPrefix},
		{"short compressed", "02" + fixtureSEC[2:40], wire.ErrBadLength},
		{"short uncompressed", fixtureSEC[:100], wire.ErrBadLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSEC(mustDecode(t, tt.sec))
			require.Error(t, err)
			assert.True(t, errors.Is(err, &wire.FormatError{Code: tt.code}), "%v", err)
		})
	}

	bad := mustDecode(t, fixtureSEC)
	bad[64] ^= 0x01
	_, err := ParseSEC(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ecc.DomainError{Code: ecc.ErrNotOnCurve}))
}

func TestVerifyFixture(t *testing.T) {
	point, err := ParseSEC(mustDecode(t, fixtureSEC))
	require.NoError(t, err)

	sig, err := ParseDER(mustDecode(t, fixtureDER))
	require.NoError(t, err)
	assert.Equal(t, 0, sig.R.Cmp(mustBig(t, fixtureR)))
	assert.Equal(t, 0, sig.S.Cmp(mustBig(t, fixtureS)))

	z := mustBig(t, fixtureZ)
	assert.True(t, point.Verify(z, sig))
	assert.False(t, point.Verify(new(big.Int).Add(z, big.NewInt(1)), sig))
}

func TestVerifyRejectsOutOfRange(t *testing.T) {
	key, err := NewPrivateKey(big.NewInt(12345))
	require.NoError(t, err)

	z := digest("range")
	assert.False(t, key.PublicKey().Verify(z, &Signature{R: big.NewInt(0), S: big.NewInt(1)}))
	assert.False(t, key.PublicKey().Verify(z, &Signature{R: big.NewInt(1), S: new(big.Int).Set(N)}))
	assert.False(t, key.PublicKey().Verify(z, nil))
}

func TestSignMatchesOracle(t *testing.T) {
	key, err := NewPrivateKey(digest("my very secret secret"))
	require.NoError(t, err)

	oracleKey := secp256k1.PrivKeyFromBytes(key.Bytes())

	for _, msg := range []string{"my message", "Programming Bitcoin!", "", "another message"} {
		hash := Hash256([]byte(msg))
		z := new(big.Int).SetBytes(hash)

		sig, err := key.Sign(z)
		require.NoError(t, err)
		assert.True(t, sig.IsLowS())
		assert.True(t, key.PublicKey().Verify(z, sig), msg)

		// RFC6979 with low-s normalisation is deterministic, so both
		// implementations must produce the same bytes.
		assert.Equal(t, ecdsa.Sign(oracleKey, hash).Serialize(), sig.DER(), msg)

		parsed, err := ecdsa.ParseDERSignature(sig.DER())
		require.NoError(t, err)
		assert.True(t, parsed.Verify(hash, oracleKey.PubKey()), msg)

		// A different digest must not verify.
		assert.False(t, key.PublicKey().Verify(new(big.Int).Add(z, big.NewInt(1)), sig), msg)
	}
}

func TestSignDeterministic(t *testing.T) {
	key, err := NewPrivateKey(big.NewInt(8675309))
	require.NoError(t, err)

	z := digest("deterministic")
	first, err := key.Sign(z)
	require.NoError(t, err)
	second, err := key.Sign(z)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestSignWithNonceSource(t *testing.T) {
	secret := big.NewInt(424242)
	k := big.NewInt(1234567890)
	var calls int
	fixed := NonceFunc(func(_, _ *big.Int, _ uint32) *big.Int {
		calls++
		return k
	})

	key, err := NewPrivateKey(secret, WithNonceSource(fixed))
	require.NoError(t, err)

	z := digest("fixed nonce")
	sig, err := key.Sign(z)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	expectedR := G().ScalarMul(k).X()
	assert.Equal(t, 0, sig.R.Cmp(expectedR))
	assert.True(t, key.PublicKey().Verify(z, sig))

	bad := NonceFunc(func(_, _ *big.Int, _ uint32) *big.Int { return big.NewInt(0) })
	key, err = NewPrivateKey(secret, WithNonceSource(bad))
	require.NoError(t, err)
	_, err = key.Sign(z)
	assert.Error(t, err)
}

func TestSignVerifyProperty(t *testing.T) {
	for i := 1; i <= 5; i++ {
		secret := digest(string(rune('a' + i)))
		key, err := NewPrivateKey(secret)
		require.NoError(t, err)

		z := digest(string(rune('A' + i)))
		sig, err := key.Sign(z)
		require.NoError(t, err)
		assert.True(t, key.PublicKey().Verify(z, sig))
	}
}

func TestNewPrivateKeyRange(t *testing.T) {
	_, err := NewPrivateKey(big.NewInt(0))
	assert.Error(t, err)
	_, err = NewPrivateKey(N)
	assert.Error(t, err)
	_, err = PrivateKeyFromBytes(make([]byte, 31))
	assert.Error(t, err)
}

func TestDERRoundTrip(t *testing.T) {
	sigs := []*Signature{
		NewSignature(big.NewInt(1), big.NewInt(1)),
		NewSignature(big.NewInt(0x80), big.NewInt(0x7f)),
		NewSignature(mustBig(t, fixtureR), mustBig(t, fixtureS)),
		NewSignature(new(big.Int).Sub(N, big.NewInt(1)), halfN),
	}

	for _, sig := range sigs {
		der := sig.DER()
		parsed, err := ParseDER(der)
		require.NoError(t, err)
		assert.True(t, parsed.Equal(sig), "%s", sig)
	}

	assert.Equal(t, fixtureDER, hex.EncodeToString(NewSignature(mustBig(t, fixtureR), mustBig(t, fixtureS)).DER()))
	assert.Equal(t, "3006020101020101", hex.EncodeToString(sigs[0].DER()))
	assert.Equal(t, "30070202008002017f", hex.EncodeToString(sigs[1].DER()))
}

func TestParseDERErrors(t *testing.T) {
	tests := []struct {
		name string
		der  string
		code string
	}{
		{"empty", "", wire.ErrShortRead},
		{"bad sequence tag", "3106020101020101", wire.ErrBadTag},
		{"outer length too long", "3007020101020101", wire.ErrBadLength},
		{"outer length too short", "3005020101020101", wire.ErrBadLength},
		{"bad r tag", "3006030101020101", wire.ErrBadTag},
		{"bad s tag", "3006020101030101", wire.ErrBadTag},
		{"r length overruns", "3006020501020101", wire.ErrBadLength},
		{"trailing bytes", "300702010102010100", wire.ErrTrailingData},
		{"missing s", "3003020101", wire.ErrShortRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDER(mustDecode(t, tt.der))
			require.Error(t, err)
			assert.True(t, errors.Is(err, &wire.FormatError{Code: tt.code}), "%v", err)
		})
	}
}

func TestHashes(t *testing.T) {
	assert.Equal(t,
		"5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456",
		hex.EncodeToString(Hash256(nil)))
	assert.Equal(t,
		"b472a266d0bd89c13706a4132ccfb16f7c3b9fcb",
		hex.EncodeToString(Hash160(nil)))
	assert.Equal(t,
		"9c1185a5c5e9fc54612808977ee8f548b2258d31",
		hex.EncodeToString(Ripemd160(nil)))
}
