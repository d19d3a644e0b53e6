// Package elgamal implements threshold ECDSA over secp256k1, where the
// multiplicative shares of the nonce and key are converted with Paillier encryption.
//
// Key generation and resharing run the common Feldman DKG, and every receiver
// attaches a fresh Paillier modulus to it.
package elgamal

import (
	"context"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-keystore/internal/dkg"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
)

// KeyGenerator samples a Paillier key pair. paillier.KeyGen is the default.
type KeyGenerator func(rand io.Reader) (*paillier.SecretKey, error)

func checkGroup(h *round.Helper) error {
	if h.Group().Name() != algo.ElGamalSecp256k1.Group().Name() {
		return protocol.NewError(h.Self(), 1, fmt.Errorf("%w: session runs on %s", algo.ErrAlgorithmMismatch, h.Group().Name()))
	}
	return nil
}

func newPaillier(h *round.Helper, rand io.Reader, gen KeyGenerator) (*paillier.SecretKey, error) {
	if gen == nil {
		gen = paillier.KeyGen
	}
	sk, err := gen(rand)
	if err != nil {
		return nil, protocol.NewError(h.Self(), 1, fmt.Errorf("elgamal: paillier keygen: %w", err))
	}
	return sk, nil
}

// toKeystore parses the moduli attached by every receiver and wraps r in a keystore.
func toKeystore(h *round.Helper, number round.Number, names round.Parties, sk *paillier.SecretKey, r *dkg.Result) (*keystore.Keystore, error) {
	byID := make(map[party.ID]string, len(names))
	for name, id := range names {
		byID[id] = name
	}
	moduli := make(map[party.ID]*paillier.PublicKey, len(r.Extras))
	for id, data := range r.Extras {
		pk, err := paillier.NewPublicKeyFromBytes(data)
		if err != nil {
			return nil, protocol.Blame(h.Self(), 1, byID[id], err)
		}
		moduli[id] = pk
	}
	ks, err := keystore.New(keystore.Params{
		Algorithm:      algo.ElGamalSecp256k1,
		ID:             r.ID,
		BlindingScalar: r.BlindingScalar,
		SigningShare:   r.SigningShare,
		Commitments:    r.Commitments,
		EncryptionKey:  sk,
		PeerModuli:     moduli,
	})
	if err != nil {
		return nil, protocol.NewError(h.Self(), number, err)
	}
	return ks, nil
}

// Keygen generates a new key shared among p.Parties, together with a Paillier key for each of them.
func Keygen(ctx context.Context, h *round.Helper, p dkg.KeygenParams, gen KeyGenerator) (*keystore.Keystore, error) {
	if err := checkGroup(h); err != nil {
		return nil, err
	}
	sk, err := newPaillier(h, p.Rand, gen)
	if err != nil {
		return nil, err
	}
	p.Extra = sk.PublicKey.Bytes()
	r, err := dkg.Keygen(ctx, h, p)
	if err != nil {
		return nil, err
	}
	return toKeystore(h, 3, p.Parties, sk, r)
}

// Reshare moves the key of the providers to the consumers, each of which gets a fresh Paillier key.
// Provider-only parties get a nil keystore.
func Reshare(ctx context.Context, h *round.Helper, p dkg.ReshareParams, gen KeyGenerator) (*keystore.Keystore, error) {
	if err := checkGroup(h); err != nil {
		return nil, err
	}
	if p.Keystore != nil {
		if err := p.Keystore.Algorithm().Expect(algo.ElGamalSecp256k1); err != nil {
			return nil, protocol.NewError(h.Self(), 1, err)
		}
	}
	var sk *paillier.SecretKey
	p.Extra = nil
	if _, ok := p.Consumers[h.Self()]; ok {
		var err error
		if sk, err = newPaillier(h, p.Rand, gen); err != nil {
			return nil, err
		}
		p.Extra = sk.PublicKey.Bytes()
	}
	r, err := dkg.Reshare(ctx, h, p)
	if err != nil || r == nil {
		return nil, err
	}
	return toKeystore(h, 4, p.Consumers, sk, r)
}
