package keystore_test

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/internal/test"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

func TestGeneratedKeystores(t *testing.T) {
	for _, a := range algo.All() {
		t.Run(a.String(), func(t *testing.T) {
			keystores, err := test.GenerateKeystores(a, 3, 1, &test.PaillierPool{})
			require.NoError(t, err)

			group := a.Group()
			public := keystores[0].PublicPoint()
			for _, ks := range keystores {
				assert.Equal(t, 1, ks.Threshold())
				assert.Equal(t, a, ks.Algorithm())
				assert.True(t, public.Equal(ks.PublicPoint()))
				require.NoError(t, ks.VerifyShare())
			}

			// any two shares interpolate the secret
			ids := []party.ID{1, 3}
			lagrange := polynomial.Lagrange(group, ids)
			secret := group.NewScalar()
			for _, id := range ids {
				secret.Add(group.NewScalar().Set(lagrange[id]).Mul(keystores[id-1].SigningShare()))
			}
			assert.True(t, secret.ActOnBase().Equal(public))
		})
	}
}

func TestAccessorsCopy(t *testing.T) {
	keystores, err := test.GenerateKeystores(algo.SchnorrEd25519, 2, 1, nil)
	require.NoError(t, err)
	ks := keystores[0]

	x := ks.SigningShare()
	x.Add(x)
	assert.False(t, x.Equal(ks.SigningShare()))

	commitments := ks.Commitments()
	commitments[1][0] = ks.Group().NewBasePoint()
	delete(commitments, 2)
	assert.Len(t, ks.Commitments(), 2)
	require.NoError(t, ks.VerifyShare())
}

func TestNewRejects(t *testing.T) {
	keystores, err := test.GenerateKeystores(algo.ElGamalSecp256k1, 2, 1, &test.PaillierPool{})
	require.NoError(t, err)
	ks := keystores[0]
	valid := keystore.Params{
		Algorithm:      ks.Algorithm(),
		ID:             ks.ID(),
		BlindingScalar: ks.BlindingScalar(),
		SigningShare:   ks.SigningShare(),
		Commitments:    ks.Commitments(),
		EncryptionKey:  ks.EncryptionKey(),
		PeerModuli:     ks.PeerModuli(),
	}
	rebuilt, err := keystore.New(valid)
	require.NoError(t, err)
	assert.True(t, rebuilt.Equal(ks))

	cases := map[string]func(p *keystore.Params){
		"unknown algorithm": func(p *keystore.Params) { p.Algorithm = algo.Algorithm{Curve: algo.Ed25519, Scheme: algo.ElGamal} },
		"index zero":        func(p *keystore.Params) { p.ID = 0 },
		"wrong curve scalar": func(p *keystore.Params) {
			p.SigningShare = sample.Scalar(rand.Reader, curve.Edwards25519{})
		},
		"empty commitments": func(p *keystore.Params) { p.Commitments = nil },
		"uneven commitments": func(p *keystore.Params) {
			p.Commitments = ks.Commitments()
			p.Commitments[2] = p.Commitments[2][:1]
		},
		"missing encryption key": func(p *keystore.Params) { p.EncryptionKey = nil },
		"missing moduli":         func(p *keystore.Params) { p.PeerModuli = nil },
		"foreign own modulus": func(p *keystore.Params) {
			p.PeerModuli = ks.PeerModuli()
			p.PeerModuli[ks.ID()] = keystores[1].EncryptionKey().PublicKey
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			_, err := keystore.New(p)
			assert.ErrorIs(t, err, keystore.ErrInvalidKeystore)
		})
	}
}

func TestSchnorrRejectsPaillier(t *testing.T) {
	keystores, err := test.GenerateKeystores(algo.SchnorrSecp256k1Taproot, 2, 1, nil)
	require.NoError(t, err)
	sk, err := (&test.PaillierPool{}).KeyGen(rand.Reader)
	require.NoError(t, err)

	ks := keystores[1]
	_, err = keystore.New(keystore.Params{
		Algorithm:      ks.Algorithm(),
		ID:             ks.ID(),
		BlindingScalar: ks.BlindingScalar(),
		SigningShare:   ks.SigningShare(),
		Commitments:    ks.Commitments(),
		EncryptionKey:  sk,
	})
	assert.ErrorIs(t, err, keystore.ErrInvalidKeystore)
}

func TestVerifyShareDetectsCorruption(t *testing.T) {
	keystores, err := test.GenerateKeystores(algo.SchnorrSecp256k1Taproot, 3, 1, nil)
	require.NoError(t, err)
	ks := keystores[2]
	group := ks.Group()

	corrupted, err := keystore.New(keystore.Params{
		Algorithm:      ks.Algorithm(),
		ID:             ks.ID(),
		BlindingScalar: ks.BlindingScalar(),
		SigningShare:   ks.SigningShare().Add(group.NewScalar().Set(party.ID(1).Scalar(group))),
		Commitments:    ks.Commitments(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, corrupted.VerifyShare(), keystore.ErrInvalidShare)
	assert.False(t, corrupted.Equal(ks))
}

func TestDerive(t *testing.T) {
	for _, a := range algo.All() {
		t.Run(a.String(), func(t *testing.T) {
			keystores, err := test.GenerateKeystores(a, 2, 1, &test.PaillierPool{})
			require.NoError(t, err)
			ks := keystores[0]

			tweak, derived, err := ks.Derive("m/1/2/3/4")
			require.NoError(t, err)
			assert.True(t, ks.PublicPoint().Add(tweak.ActOnBase()).Equal(derived))

			tweak, derived, err = ks.Derive("m")
			require.NoError(t, err)
			assert.True(t, tweak.IsZero())
			assert.True(t, derived.Equal(ks.PublicPoint()))

			_, _, err = ks.Derive("m/1'/2")
			assert.Error(t, err)

			xpub, err := ks.ExtendedPublicKey()
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(xpub, "xpub"))
			other, err := keystores[1].ExtendedPublicKey()
			require.NoError(t, err)
			assert.Equal(t, xpub, other)
		})
	}
}

func TestQuorum(t *testing.T) {
	a := algo.SchnorrSecp256k1Taproot
	group := a.Group()
	keystores, err := test.GenerateKeystores(a, 3, 1, nil)
	require.NoError(t, err)

	tweak := sample.Scalar(rand.Reader, group)
	signers := []party.ID{3, 1}
	total := group.NewScalar()
	for _, id := range signers {
		w, W, err := keystores[id-1].Quorum(signers, tweak)
		require.NoError(t, err)
		require.Len(t, W, 2)
		assert.True(t, w.ActOnBase().Equal(W[id]))
		total.Add(w)
	}
	expected := keystores[0].PublicPoint().Add(tweak.ActOnBase())
	assert.True(t, total.ActOnBase().Equal(expected))

	_, _, err = keystores[0].Quorum([]party.ID{1}, nil)
	assert.ErrorIs(t, err, keystore.ErrInvalidQuorum)
	_, _, err = keystores[0].Quorum([]party.ID{2, 3}, nil)
	assert.ErrorIs(t, err, keystore.ErrInvalidQuorum)
	_, _, err = keystores[0].Quorum([]party.ID{1, 1}, nil)
	assert.ErrorIs(t, err, keystore.ErrInvalidQuorum)
}
