package schnorr_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/internal/dkg"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/internal/test"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
	"github.com/taurusgroup/multi-party-keystore/pkg/signature"
	"github.com/taurusgroup/multi-party-keystore/protocols/schnorr"
)

var algorithms = []algo.Algorithm{algo.SchnorrEd25519, algo.SchnorrSecp256k1Taproot}

func keygen(t *testing.T, a algo.Algorithm, names []string, threshold int) map[string]*keystore.Keystore {
	parties := make(round.Parties, len(names))
	for i, name := range names {
		parties[name] = party.ID(i + 1)
	}
	units := make(map[string]test.Unit[*keystore.Keystore], len(names))
	for _, name := range names {
		units[name] = func(ctx context.Context, h *round.Helper) (*keystore.Keystore, error) {
			return schnorr.Keygen(ctx, h, a, dkg.KeygenParams{
				Parties:   parties,
				Threshold: threshold,
				Rand:      rand.Reader,
			})
		}
	}
	results, errs, err := test.Run("schnorr/keygen", a.Group(), units)
	require.NoError(t, err)
	for _, name := range names {
		require.NoError(t, errs[name], name)
	}
	return results
}

func sign(t *testing.T, keystores map[string]*keystore.Keystore, signers []string, message []byte, path string) (map[string]*signature.Schnorr, map[string]error) {
	parties := make(round.Parties, len(signers))
	for _, name := range signers {
		parties[name] = keystores[name].ID()
	}
	units := make(map[string]test.Unit[*signature.Schnorr], len(signers))
	var a algo.Algorithm
	for _, name := range signers {
		ks := keystores[name]
		a = ks.Algorithm()
		units[name] = func(ctx context.Context, h *round.Helper) (*signature.Schnorr, error) {
			return schnorr.Sign(ctx, h, schnorr.SignParams{
				Signers:  parties,
				Keystore: ks,
				Message:  message,
				Path:     path,
				Rand:     rand.Reader,
			})
		}
	}
	results, errs, err := test.Run("schnorr/sign", a.Group(), units)
	require.NoError(t, err)
	return results, errs
}

func TestKeygenSign(t *testing.T) {
	for _, a := range algorithms {
		t.Run(a.String(), func(t *testing.T) {
			names := test.PartyNames(3)
			keystores := keygen(t, a, names, 1)
			public := keystores["A"].PublicPoint()
			for _, ks := range keystores {
				assert.True(t, public.Equal(ks.PublicPoint()))
				assert.Equal(t, a, ks.Algorithm())
			}

			digest := sha256.Sum256([]byte("hello"))
			for _, signers := range [][]string{{"A", "B"}, {"B", "C"}, {"A", "B", "C"}} {
				sigs, errs := sign(t, keystores, signers, digest[:], "m/1/2/3/4")
				var first []byte
				for _, name := range signers {
					require.NoError(t, errs[name], name)
					require.NoError(t, sigs[name].Verify(digest[:]))
					raw, err := sigs[name].Bytes()
					require.NoError(t, err)
					if first == nil {
						first = raw
					}
					assert.Equal(t, first, raw, "signers of one session agree")
				}
			}
		})
	}
}

func TestSignEd25519Stdlib(t *testing.T) {
	keystores := keygen(t, algo.SchnorrEd25519, test.PartyNames(3), 1)
	message := []byte("any length message for ed25519")
	sigs, errs := sign(t, keystores, []string{"A", "C"}, message, "")
	require.NoError(t, errs["A"])

	pk, err := keystores["A"].PublicPoint().MarshalBinary()
	require.NoError(t, err)
	raw, err := sigs["A"].Bytes()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pk, message, raw))
}

func TestSignRejectsSmallQuorum(t *testing.T) {
	keystores := keygen(t, algo.SchnorrSecp256k1Taproot, test.PartyNames(3), 1)
	digest := sha256.Sum256([]byte("hello"))
	_, errs := sign(t, keystores, []string{"A"}, digest[:], "")
	assert.ErrorIs(t, errs["A"], keystore.ErrInvalidQuorum)
}

func TestSignTaprootNeedsDigest(t *testing.T) {
	keystores := keygen(t, algo.SchnorrSecp256k1Taproot, test.PartyNames(2), 1)
	_, errs := sign(t, keystores, []string{"A", "B"}, []byte("short"), "")
	assert.Error(t, errs["A"])
	assert.Error(t, errs["B"])
}

func TestSignCorruptedShare(t *testing.T) {
	for _, a := range algorithms {
		t.Run(a.String(), func(t *testing.T) {
			keystores := keygen(t, a, test.PartyNames(3), 1)
			honest := keystores["B"]
			corrupted, err := keystore.New(keystore.Params{
				Algorithm:      a,
				ID:             honest.ID(),
				BlindingScalar: honest.BlindingScalar(),
				SigningShare:   honest.SigningShare().Add(party.ID(1).Scalar(a.Group())),
				Commitments:    honest.Commitments(),
			})
			require.NoError(t, err)
			keystores["B"] = corrupted

			digest := sha256.Sum256([]byte("hello"))
			sigs, errs := sign(t, keystores, []string{"A", "B"}, digest[:], "")
			assert.Nil(t, sigs["A"])
			assert.Nil(t, sigs["B"])
			require.Error(t, errs["B"])

			var protocolErr *protocol.Error
			require.True(t, errors.As(errs["A"], &protocolErr))
			assert.Equal(t, "B", protocolErr.Culprit)
			assert.ErrorIs(t, errs["A"], schnorr.ErrInvalidPartial)
		})
	}
}

func TestReshareThenSign(t *testing.T) {
	for _, a := range algorithms {
		t.Run(a.String(), func(t *testing.T) {
			old := keygen(t, a, []string{"A", "B", "C"}, 1)
			public := old["A"].PublicPoint()

			consumers := round.Parties{"A": 1, "C": 2, "D": 3}
			providers := []string{"A", "B"}
			units := make(map[string]test.Unit[*keystore.Keystore])
			for _, name := range []string{"A", "B", "C", "D"} {
				params := dkg.ReshareParams{
					Providers:     providers,
					Consumers:     consumers,
					ThresholdNext: 1,
					Rand:          rand.Reader,
				}
				if name == "A" || name == "B" {
					params.Keystore = old[name]
				}
				units[name] = func(ctx context.Context, h *round.Helper) (*keystore.Keystore, error) {
					return schnorr.Reshare(ctx, h, a, params)
				}
			}
			next, errs, err := test.Run("schnorr/reshare", a.Group(), units)
			require.NoError(t, err)
			for name, err := range errs {
				require.NoError(t, err, name)
			}
			assert.Nil(t, next["B"])
			delete(next, "B")
			for _, ks := range next {
				assert.True(t, public.Equal(ks.PublicPoint()))
			}

			digest := sha256.Sum256([]byte("after reshare"))
			sigs, errs := sign(t, next, []string{"C", "D"}, digest[:], "m/0")
			require.NoError(t, errs["C"])
			require.NoError(t, errs["D"])
			require.NoError(t, sigs["C"].Verify(digest[:]))
		})
	}
}

func TestReshareAlgorithmMismatch(t *testing.T) {
	keystores := keygen(t, algo.SchnorrSecp256k1Taproot, test.PartyNames(2), 1)
	units := map[string]test.Unit[*keystore.Keystore]{
		"A": func(ctx context.Context, h *round.Helper) (*keystore.Keystore, error) {
			return schnorr.Reshare(ctx, h, algo.SchnorrEd25519, dkg.ReshareParams{
				Providers: []string{"A", "B"},
				Consumers: round.Parties{"A": 1, "B": 2},
				Keystore:  keystores["A"],
				Rand:      rand.Reader,
			})
		},
	}
	_, errs, err := test.Run("schnorr/reshare", algo.SchnorrEd25519.Group(), units)
	require.NoError(t, err)
	assert.True(t, errors.Is(errs["A"], algo.ErrAlgorithmMismatch))
	var protocolErr *protocol.Error
	assert.True(t, errors.As(errs["A"], &protocolErr))
}
