package elgamal_test

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/internal/dkg"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/internal/test"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/signature"
	"github.com/taurusgroup/multi-party-keystore/protocols/elgamal"
)

var group = curve.Secp256k1{}

func keygen(t *testing.T, pool *test.PaillierPool, names []string, threshold int) map[string]*keystore.Keystore {
	parties := make(round.Parties, len(names))
	for i, name := range names {
		parties[name] = party.ID(i + 1)
	}
	units := make(map[string]test.Unit[*keystore.Keystore], len(names))
	for _, name := range names {
		units[name] = func(ctx context.Context, h *round.Helper) (*keystore.Keystore, error) {
			return elgamal.Keygen(ctx, h, dkg.KeygenParams{
				Parties:   parties,
				Threshold: threshold,
				Rand:      rand.Reader,
			}, pool.KeyGen)
		}
	}
	results, errs, err := test.Run("elgamal/keygen", group, units)
	require.NoError(t, err)
	for _, name := range names {
		require.NoError(t, errs[name], name)
	}
	return results
}

func sign(t *testing.T, keystores map[string]*keystore.Keystore, signers []string, digest []byte, path string) (map[string]*signature.ECDSA, map[string]error) {
	parties := make(round.Parties, len(signers))
	for _, name := range signers {
		parties[name] = keystores[name].ID()
	}
	units := make(map[string]test.Unit[*signature.ECDSA], len(signers))
	for _, name := range signers {
		ks := keystores[name]
		units[name] = func(ctx context.Context, h *round.Helper) (*signature.ECDSA, error) {
			return elgamal.Sign(ctx, h, elgamal.SignParams{
				Signers:  parties,
				Keystore: ks,
				Digest:   digest,
				Path:     path,
				Rand:     rand.Reader,
			})
		}
	}
	results, errs, err := test.Run("elgamal/sign", group, units)
	require.NoError(t, err)
	return results, errs
}

func TestKeygenSign(t *testing.T) {
	names := test.PartyNames(3)
	keystores := keygen(t, &test.PaillierPool{}, names, 1)
	public := keystores["A"].PublicPoint()
	for _, name := range names {
		ks := keystores[name]
		assert.Equal(t, algo.ElGamalSecp256k1, ks.Algorithm())
		assert.True(t, public.Equal(ks.PublicPoint()))
		assert.Len(t, ks.PeerModuli(), 3)
		require.NoError(t, ks.VerifyShare())
	}

	digest := sha256.Sum256([]byte("hello"))
	_, derived, err := keystores["A"].Derive("m/1/2/3/4")
	require.NoError(t, err)
	expected, err := derived.MarshalBinary()
	require.NoError(t, err)

	for _, signers := range [][]string{{"A", "B"}, {"A", "C"}, {"B", "C"}} {
		sigs, errs := sign(t, keystores, signers, digest[:], "m/1/2/3/4")
		for _, name := range signers {
			require.NoError(t, errs[name], name)
		}
		sig := sigs[signers[0]]
		require.NoError(t, sig.Verify(digest[:]))
		for _, name := range signers[1:] {
			assert.Equal(t, sig.RBytes(), sigs[name].RBytes())
			assert.True(t, sig.S.Equal(sigs[name].S))
			assert.Equal(t, sig.RecoveryID, sigs[name].RecoveryID)
		}

		recovered, err := sig.RecoverPublicKey(digest[:])
		require.NoError(t, err)
		assert.Equal(t, expected, recovered)
	}
}

func TestSignCorruptedShare(t *testing.T) {
	keystores := keygen(t, &test.PaillierPool{}, test.PartyNames(3), 1)
	honest := keystores["C"]
	corrupted, err := keystore.New(keystore.Params{
		Algorithm:      honest.Algorithm(),
		ID:             honest.ID(),
		BlindingScalar: honest.BlindingScalar(),
		SigningShare:   honest.SigningShare().Add(party.ID(1).Scalar(group)),
		Commitments:    honest.Commitments(),
		EncryptionKey:  honest.EncryptionKey(),
		PeerModuli:     honest.PeerModuli(),
	})
	require.NoError(t, err)
	keystores["C"] = corrupted

	digest := sha256.Sum256([]byte("hello"))
	sigs, errs := sign(t, keystores, []string{"A", "C"}, digest[:], "")
	for _, name := range []string{"A", "C"} {
		assert.Nil(t, sigs[name])
		assert.Error(t, errs[name])
	}
}

func TestSignRejectsQuorum(t *testing.T) {
	keystores := keygen(t, &test.PaillierPool{}, test.PartyNames(3), 1)
	digest := sha256.Sum256([]byte("hello"))

	_, errs := sign(t, keystores, []string{"B"}, digest[:], "")
	assert.ErrorIs(t, errs["B"], keystore.ErrInvalidQuorum)

	_, errs = sign(t, keystores, []string{"A", "B"}, digest[:16], "")
	assert.Error(t, errs["A"])
}

func TestReshareThenSign(t *testing.T) {
	pool := &test.PaillierPool{}
	old := keygen(t, pool, []string{"A", "B", "C"}, 1)
	public := old["A"].PublicPoint()

	// B leaves, D joins, C does not attend and is dropped
	consumers := round.Parties{"A": 1, "D": 2, "E": 3}
	units := make(map[string]test.Unit[*keystore.Keystore])
	for _, name := range []string{"A", "B", "D", "E"} {
		params := dkg.ReshareParams{
			Providers:     []string{"A", "B"},
			Consumers:     consumers,
			ThresholdNext: 1,
			Keystore:      old[name],
			Rand:          rand.Reader,
		}
		units[name] = func(ctx context.Context, h *round.Helper) (*keystore.Keystore, error) {
			return elgamal.Reshare(ctx, h, params, pool.KeyGen)
		}
	}
	next, errs, err := test.Run("elgamal/reshare", group, units)
	require.NoError(t, err)
	for name, err := range errs {
		require.NoError(t, err, name)
	}
	assert.Nil(t, next["B"])
	delete(next, "B")
	for name, ks := range next {
		assert.True(t, public.Equal(ks.PublicPoint()), name)
		assert.Len(t, ks.PeerModuli(), 3)
		assert.Equal(t, consumers[name], ks.ID())
	}

	digest := sha256.Sum256([]byte("after reshare"))
	sigs, errs := sign(t, next, []string{"D", "E"}, digest[:], "")
	require.NoError(t, errs["D"])
	require.NoError(t, errs["E"])
	require.NoError(t, sigs["D"].Verify(digest[:]))
	assert.True(t, public.Equal(sigs["D"].PublicKey))
}
