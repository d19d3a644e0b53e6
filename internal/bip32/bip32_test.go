package bip32

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
)

func TestPathFrom(t *testing.T) {
	for _, spec := range []string{"m/1/2/3/4", "1/2/3/4"} {
		p, err := PathFrom(spec)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 2, 3, 4}, p.Indices())
		assert.Equal(t, "m/1/2/3/4", p.String())
	}

	for _, spec := range []string{"", "m", "m/"} {
		p, err := PathFrom(spec)
		require.NoError(t, err)
		assert.True(t, p.IsRoot())
	}

	_, err := PathFrom("m/1'/2")
	assert.ErrorIs(t, err, ErrHardened)
	_, err = PathFrom("m/2147483648")
	assert.ErrorIs(t, err, ErrHardened)
	_, err = PathFrom("m/a")
	assert.Error(t, err)
	_, err = PathFrom("m//1")
	assert.Error(t, err)
}

func TestDeriveMatchesHDKeychain(t *testing.T) {
	group := curve.Secp256k1{}
	secret := sample.ScalarUnit(rand.Reader, group)
	public := secret.ActOnBase()
	chainCode, err := ChainCode(public)
	require.NoError(t, err)

	path, err := PathFrom("m/1/2/3/4")
	require.NoError(t, err)
	tweak, derived, chain, err := Derive(public, chainCode, path)
	require.NoError(t, err)

	// the tweak applies to the secret key
	assert.True(t, group.NewScalar().Set(secret).Add(tweak).ActOnBase().Equal(derived))

	key, err := public.MarshalBinary()
	require.NoError(t, err)
	ext := hdkeychain.NewExtendedKey(chaincfg.MainNetParams.HDPublicKeyID[:], key, chainCode, []byte{0, 0, 0, 0}, 0, 0, false)
	for _, i := range path.Indices() {
		ext, err = ext.Derive(i)
		require.NoError(t, err)
	}
	expected, err := ext.ECPubKey()
	require.NoError(t, err)
	derivedBytes, err := derived.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, expected.SerializeCompressed(), derivedBytes)
	assert.Equal(t, ext.ChainCode(), chain)
}

func TestDeriveEd25519(t *testing.T) {
	group := curve.Edwards25519{}
	secret := sample.ScalarUnit(rand.Reader, group)
	public := secret.ActOnBase()
	chainCode, err := ChainCode(public)
	require.NoError(t, err)

	path, err := PathFrom("m/7/0")
	require.NoError(t, err)
	tweak, derived, _, err := Derive(public, chainCode, path)
	require.NoError(t, err)
	assert.True(t, group.NewScalar().Set(secret).Add(tweak).ActOnBase().Equal(derived))

	root, err := PathFrom("m")
	require.NoError(t, err)
	tweak, derived, chain, err := Derive(public, chainCode, root)
	require.NoError(t, err)
	assert.True(t, tweak.IsZero())
	assert.True(t, derived.Equal(public))
	assert.Equal(t, chainCode, chain)
}

func TestExtendedPublicKey(t *testing.T) {
	group := curve.Secp256k1{}
	public := sample.ScalarUnit(rand.Reader, group).ActOnBase()
	chainCode, err := ChainCode(public)
	require.NoError(t, err)

	xpub, err := ExtendedPublicKey(public, chainCode)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(xpub, "xpub"))

	parsed, err := hdkeychain.NewKeyFromString(xpub)
	require.NoError(t, err)
	assert.False(t, parsed.IsPrivate())
	pub, err := parsed.ECPubKey()
	require.NoError(t, err)
	key, err := public.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, key, pub.SerializeCompressed())

	// deterministic
	xpub2, err := ExtendedPublicKey(public, chainCode)
	require.NoError(t, err)
	assert.Equal(t, xpub, xpub2)

	edPublic := sample.ScalarUnit(rand.Reader, curve.Edwards25519{}).ActOnBase()
	edChain, err := ChainCode(edPublic)
	require.NoError(t, err)
	edXpub, err := ExtendedPublicKey(edPublic, edChain)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(edXpub, "xpub"))

	_, err = ExtendedPublicKey(public, chainCode[1:])
	assert.Error(t, err)
}
