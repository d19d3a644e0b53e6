package session_test

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-keystore/internal/test"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/legacy"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
	"github.com/taurusgroup/multi-party-keystore/pkg/rendezvous"
	"github.com/taurusgroup/multi-party-keystore/pkg/session"
	"github.com/taurusgroup/multi-party-keystore/pkg/wire"
)

const path = "m/1/2/3/4"

func newService() *session.Service {
	pool := new(test.PaillierPool)
	return session.NewService(rendezvous.NewMemory(), session.WithPaillier(pool.KeyGen))
}

func attendance(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = true
	}
	return out
}

// verify checks sig with the reference implementation of its algorithm.
func verify(t *testing.T, sig *wire.Signature, digest []byte) {
	t.Helper()
	switch sig.Algorithm {
	case algo.ElGamalSecp256k1:
		pk, err := btcec.ParsePubKey(sig.PublicKey)
		require.NoError(t, err)
		var r, s btcec.ModNScalar
		require.False(t, r.SetByteSlice(sig.R))
		require.False(t, s.SetByteSlice(sig.S))
		assert.True(t, ecdsa.NewSignature(&r, &s).Verify(digest, pk))
	case algo.SchnorrEd25519:
		assert.True(t, ed25519.Verify(sig.PublicKey, digest, sig.Bytes()))
	case algo.SchnorrSecp256k1Taproot:
		pk, err := schnorr.ParsePubKey(sig.PublicKey[1:])
		require.NoError(t, err)
		parsed, err := schnorr.ParseSignature(sig.Bytes())
		require.NoError(t, err)
		assert.True(t, parsed.Verify(digest, pk))
	default:
		t.Fatalf("unexpected algorithm %s", sig.Algorithm)
	}
}

func derived(t *testing.T, ks *keystore.Keystore) []byte {
	_, public, err := ks.Derive(path)
	require.NoError(t, err)
	data, err := public.MarshalBinary()
	require.NoError(t, err)
	return data
}

func indices(keystores map[string]*keystore.Keystore, names ...string) map[string]party.ID {
	out := make(map[string]party.ID, len(names))
	for _, name := range names {
		out[name] = keystores[name].ID()
	}
	return out
}

func TestCreateSessionRejectsSingleSigner(t *testing.T) {
	s := newService()
	_, err := s.CreateSession(context.Background(), session.Config{
		Kind:      session.Sign,
		Algorithm: algo.ElGamalSecp256k1,
		Roster:    map[string]bool{"A": true, "B": false, "C": false},
		Threshold: 1,
	})
	assert.ErrorIs(t, err, session.ErrInvalidRoster)
}

func TestRunRejectsUnknownParty(t *testing.T) {
	s := newService()
	ctx := context.Background()
	sid, err := s.CreateSession(ctx, session.Config{
		Kind:      session.Keygen,
		Algorithm: algo.SchnorrEd25519,
		Roster:    attendance("A", "B"),
	})
	require.NoError(t, err)
	_, err = s.RunKeygen(ctx, sid, "Z")
	assert.ErrorIs(t, err, session.ErrInvalidRoster)
}

func TestKeygenReshareSign(t *testing.T) {
	for _, a := range algo.All() {
		t.Run(a.String(), func(t *testing.T) {
			s := newService()
			ctx := context.Background()
			digest := sha256.Sum256([]byte("session"))

			keystores, err := s.Keygen(ctx, session.Config{
				Kind:      session.Keygen,
				Algorithm: a,
				Roster:    attendance("A", "B", "C"),
				Threshold: 1,
			})
			require.NoError(t, err)
			require.Len(t, keystores, 3)
			public := derived(t, keystores["A"])

			var first *wire.Signature
			for _, signers := range [][]string{{"A", "B"}, {"B", "C"}} {
				sig, err := s.Sign(ctx, session.Config{
					Kind:      session.Sign,
					Algorithm: a,
					Roster:    attendance(signers...),
					Threshold: 1,
				}, keystores, digest[:], path)
				require.NoError(t, err)
				verify(t, sig, digest[:])
				assert.Equal(t, public, sig.PublicKey)
				assert.Equal(t, a, sig.Algorithm)
				if first == nil {
					first = sig
				}
				assert.Equal(t, first.PublicKey, sig.PublicKey)
			}

			next, err := s.Reshare(ctx, session.Config{
				Kind:          session.Reshare,
				Algorithm:     a,
				Roster:        map[string]bool{"A": true, "B": true, "C": false},
				Threshold:     1,
				RosterNext:    attendance("A", "D"),
				ThresholdNext: 1,
			}, keystores)
			require.NoError(t, err)
			require.Len(t, next, 2)
			assert.Equal(t, party.ID(4), next["D"].ID())
			assert.Equal(t, public, derived(t, next["D"]))

			sig, err := s.Sign(ctx, session.Config{
				Kind:      session.Sign,
				Algorithm: a,
				Roster:    attendance("A", "D"),
				Threshold: 1,
				Indices:   indices(next, "A", "D"),
			}, next, digest[:], path)
			require.NoError(t, err)
			verify(t, sig, digest[:])
			assert.Equal(t, public, sig.PublicKey)
		})
	}
}

func TestSignEveryQuorum(t *testing.T) {
	for _, a := range algo.All() {
		t.Run(a.String(), func(t *testing.T) {
			s := newService()
			ctx := context.Background()
			digest := sha256.Sum256([]byte("quorum"))
			keystores, err := s.Keygen(ctx, session.Config{
				Kind:      session.Keygen,
				Algorithm: a,
				Roster:    attendance("A", "B", "C"),
				Threshold: 1,
			})
			require.NoError(t, err)

			for _, signers := range [][]string{{"A", "B"}, {"A", "C"}, {"B", "C"}} {
				sig, err := s.Sign(ctx, session.Config{
					Kind:      session.Sign,
					Algorithm: a,
					Roster:    attendance(signers...),
					Threshold: 1,
				}, keystores, digest[:], path)
				require.NoError(t, err, signers)
				verify(t, sig, digest[:])
			}
		})
	}
}

func TestSignRejectsIndexMismatch(t *testing.T) {
	rv := rendezvous.NewMemory()
	s := session.NewService(rv)
	ctx := context.Background()
	keystores, err := s.Keygen(ctx, session.Config{
		Kind:      session.Keygen,
		Algorithm: algo.SchnorrEd25519,
		Roster:    attendance("A", "B", "C"),
		Threshold: 1,
	})
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("mismatch"))
	_, err = s.Sign(ctx, session.Config{
		Kind:      session.Sign,
		Algorithm: algo.SchnorrEd25519,
		Roster:    attendance("A", "C"),
		Threshold: 1,
		Indices:   map[string]party.ID{"C": 2},
	}, keystores, digest[:], path)
	require.ErrorIs(t, err, session.ErrInvalidRoster)
	assert.Contains(t, err.Error(), "C")
	// both the keygen and the failed signing session are released
	assert.Equal(t, 0, rv.Sessions())
}

func TestSignMigratedKeystores(t *testing.T) {
	sets := map[string]algo.Algorithm{
		test.LegacyElGamal: algo.ElGamalSecp256k1,
		test.LegacyEd25519: algo.SchnorrEd25519,
		test.LegacyTaproot: algo.SchnorrSecp256k1Taproot,
	}
	for set, a := range sets {
		t.Run(set, func(t *testing.T) {
			names := test.PartyNames(test.LegacyParties)
			keystores := make(map[string]*keystore.Keystore, len(names))
			for i, name := range names {
				ks, err := legacy.Migrate(test.LegacyKeystore(set, i+1), a)
				require.NoError(t, err)
				keystores[name] = ks
			}

			s := newService()
			ctx := context.Background()
			digest := sha256.Sum256([]byte("migrated"))
			var first *wire.Signature
			for _, signers := range [][]string{{"A", "B"}, {"A", "C"}, {"B", "C"}} {
				sig, err := s.Sign(ctx, session.Config{
					Kind:      session.Sign,
					Algorithm: a,
					Roster:    attendance(signers...),
					Threshold: test.LegacyThreshold,
				}, keystores, digest[:], path)
				require.NoError(t, err, signers)
				verify(t, sig, digest[:])
				if first == nil {
					first = sig
				}
				assert.Equal(t, first.PublicKey, sig.PublicKey)
				assert.Equal(t, first.Algorithm, sig.Algorithm)
			}
		})
	}
}

func TestSignAlgorithmMismatch(t *testing.T) {
	s := newService()
	ctx := context.Background()
	keystores, err := s.Keygen(ctx, session.Config{
		Kind:      session.Keygen,
		Algorithm: algo.SchnorrEd25519,
		Roster:    attendance("A", "B"),
		Threshold: 1,
	})
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("mismatch"))
	_, err = s.Sign(ctx, session.Config{
		Kind:      session.Sign,
		Algorithm: algo.SchnorrSecp256k1Taproot,
		Roster:    attendance("A", "B"),
		Threshold: 1,
	}, keystores, digest[:], "")
	assert.ErrorIs(t, err, algo.ErrAlgorithmMismatch)
}

func TestSignCorruptedShare(t *testing.T) {
	for _, a := range algo.All() {
		t.Run(a.String(), func(t *testing.T) {
			s := newService()
			ctx := context.Background()
			keystores, err := s.Keygen(ctx, session.Config{
				Kind:      session.Keygen,
				Algorithm: a,
				Roster:    attendance("A", "B", "C"),
				Threshold: 1,
			})
			require.NoError(t, err)

			honest := keystores["B"]
			corrupted, err := keystore.New(keystore.Params{
				Algorithm:      a,
				ID:             honest.ID(),
				BlindingScalar: honest.BlindingScalar(),
				SigningShare:   honest.SigningShare().Add(party.ID(1).Scalar(a.Group())),
				Commitments:    honest.Commitments(),
				EncryptionKey:  honest.EncryptionKey(),
				PeerModuli:     honest.PeerModuli(),
			})
			require.NoError(t, err)
			keystores["B"] = corrupted

			digest := sha256.Sum256([]byte("corrupted"))
			sig, err := s.Sign(ctx, session.Config{
				Kind:      session.Sign,
				Algorithm: a,
				Roster:    attendance("A", "B"),
				Threshold: 1,
			}, keystores, digest[:], path)
			require.Error(t, err)
			assert.Nil(t, sig)

			var protocolErr *protocol.Error
			if !errors.As(err, &protocolErr) {
				assert.ErrorIs(t, err, session.ErrConsistencyViolation)
			}
		})
	}
}

func TestConsistent(t *testing.T) {
	a := &wire.Signature{R: []byte{1}, S: []byte{2}, Algorithm: algo.SchnorrEd25519, PublicKey: []byte{3}}
	b := &wire.Signature{R: []byte{1}, S: []byte{2}, Algorithm: algo.SchnorrEd25519, PublicKey: []byte{3}}
	c := &wire.Signature{R: []byte{1}, S: []byte{9}, Algorithm: algo.SchnorrEd25519, PublicKey: []byte{3}}

	assert.NoError(t, session.Consistent([]string{"A", "B"}, []*wire.Signature{a, b}))

	err := session.Consistent([]string{"A", "B", "C"}, []*wire.Signature{a, b, c})
	require.ErrorIs(t, err, session.ErrConsistencyViolation)
	assert.Contains(t, err.Error(), "C")
	assert.NotContains(t, err.Error(), "B,")
}
