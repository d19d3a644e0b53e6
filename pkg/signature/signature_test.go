package signature_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
	"github.com/taurusgroup/multi-party-keystore/pkg/signature"
)

func signECDSA(t *testing.T, secret curve.Scalar, digest []byte) *signature.ECDSA {
	group := curve.Secp256k1{}
	k := sample.ScalarUnit(rand.Reader, group)
	R := k.ActOnBase()
	r := R.(*curve.Secp256k1Point).XScalar()
	m := curve.FromHash(group, digest)

	// s = k⁻¹(m + r⋅x)
	s := group.NewScalar().Set(r).Mul(secret).Add(m).Mul(group.NewScalar().Set(k).Invert())
	sig, err := signature.NewECDSA(R, s, secret.ActOnBase())
	require.NoError(t, err)
	return sig
}

func TestECDSA(t *testing.T) {
	group := curve.Secp256k1{}
	digest := sha256.Sum256([]byte("hello"))

	for i := 0; i < 16; i++ {
		secret := sample.ScalarUnit(rand.Reader, group)
		sig := signECDSA(t, secret, digest[:])

		require.NoError(t, sig.Verify(digest[:]))
		assert.False(t, sig.S.(*curve.Secp256k1Scalar).IsOverHalfOrder())
		assert.Len(t, sig.RBytes(), 32)

		recovered, err := sig.RecoverPublicKey(digest[:])
		require.NoError(t, err)
		expected, err := secret.ActOnBase().MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, expected, recovered)

		other := sha256.Sum256([]byte("world"))
		assert.ErrorIs(t, sig.Verify(other[:]), signature.ErrInvalidSignature)
	}
}

func TestECDSARejectsZero(t *testing.T) {
	group := curve.Secp256k1{}
	_, err := signature.NewECDSA(group.NewBasePoint(), group.NewScalar(), group.NewBasePoint())
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)
}

func TestChallengeEd25519MatchesStandard(t *testing.T) {
	group := curve.Edwards25519{}
	seed := make([]byte, ed25519.SeedSize)
	_, _ = rand.Read(seed)
	standard := ed25519.NewKeyFromSeed(seed)

	// RFC 8032 key expansion
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	le := h[:32]
	be := make([]byte, 32)
	for i := range le {
		be[31-i] = le[i]
	}
	secret := curve.ScalarFromBytesModOrder(group, be)
	public := secret.ActOnBase()
	pk, err := public.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte(standard.Public().(ed25519.PublicKey)), pk)

	message := []byte("message")
	k := sample.ScalarUnit(rand.Reader, group)
	R := k.ActOnBase()
	c, err := signature.Challenge(algo.SchnorrEd25519, R, public, message)
	require.NoError(t, err)
	z := group.NewScalar().Set(c).Mul(secret).Add(k)

	sig := &signature.Schnorr{Algorithm: algo.SchnorrEd25519, R: R, Z: z, PublicKey: public}
	require.NoError(t, sig.Verify(message))
	raw, err := sig.Bytes()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(standard.Public().(ed25519.PublicKey), message, raw))
	assert.ErrorIs(t, sig.Verify([]byte("other")), signature.ErrInvalidSignature)
}

func TestChallengeTaproot(t *testing.T) {
	group := curve.Secp256k1{}
	digest := sha256.Sum256([]byte("taproot"))

	for i := 0; i < 8; i++ {
		secret := sample.ScalarUnit(rand.Reader, group)
		public := secret.ActOnBase()
		if !public.(*curve.Secp256k1Point).HasEvenY() {
			secret.Negate()
		}
		k := sample.ScalarUnit(rand.Reader, group)
		R := k.ActOnBase()
		if !R.(*curve.Secp256k1Point).HasEvenY() {
			k.Negate()
		}

		c, err := signature.Challenge(algo.SchnorrSecp256k1Taproot, R, public, digest[:])
		require.NoError(t, err)
		z := group.NewScalar().Set(c).Mul(secret).Add(k)

		// R and the key keep their original parity, only x-coordinates are serialized
		sig := &signature.Schnorr{Algorithm: algo.SchnorrSecp256k1Taproot, R: R, Z: z, PublicKey: public}
		require.NoError(t, sig.Verify(digest[:]))
		raw, err := sig.Bytes()
		require.NoError(t, err)
		assert.Len(t, raw, 64)

		z.Add(c)
		assert.Error(t, sig.Verify(digest[:]))
	}
}

func TestChallengeRejectsElGamal(t *testing.T) {
	group := curve.Secp256k1{}
	_, err := signature.Challenge(algo.ElGamalSecp256k1, group.NewBasePoint(), group.NewBasePoint(), nil)
	assert.ErrorIs(t, err, algo.ErrAlgorithmMismatch)
}
