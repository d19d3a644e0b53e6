// Package schnorr implements key generation, resharing and FROST signing
// for Ed25519 and BIP-340 (taproot) keys.
package schnorr

import (
	"context"
	"fmt"

	"github.com/taurusgroup/multi-party-keystore/internal/dkg"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
)

func checkAlgorithm(h *round.Helper, a algo.Algorithm) error {
	if err := a.Validate(); err != nil {
		return protocol.NewError(h.Self(), 1, err)
	}
	if a.Scheme != algo.Schnorr {
		return protocol.NewError(h.Self(), 1, fmt.Errorf("%w: %s is not a schnorr scheme", algo.ErrAlgorithmMismatch, a))
	}
	if a.Group().Name() != h.Group().Name() {
		return protocol.NewError(h.Self(), 1, fmt.Errorf("%w: session runs on %s", algo.ErrAlgorithmMismatch, h.Group().Name()))
	}
	return nil
}

func toKeystore(h *round.Helper, a algo.Algorithm, number round.Number, r *dkg.Result) (*keystore.Keystore, error) {
	ks, err := keystore.New(keystore.Params{
		Algorithm:      a,
		ID:             r.ID,
		BlindingScalar: r.BlindingScalar,
		SigningShare:   r.SigningShare,
		Commitments:    r.Commitments,
	})
	if err != nil {
		return nil, protocol.NewError(h.Self(), number, err)
	}
	return ks, nil
}

// Keygen generates a new key shared among p.Parties.
func Keygen(ctx context.Context, h *round.Helper, a algo.Algorithm, p dkg.KeygenParams) (*keystore.Keystore, error) {
	if err := checkAlgorithm(h, a); err != nil {
		return nil, err
	}
	p.Extra = nil
	r, err := dkg.Keygen(ctx, h, p)
	if err != nil {
		return nil, err
	}
	return toKeystore(h, a, 3, r)
}

// Reshare moves the key of the providers to the consumers.
// Provider-only parties get a nil keystore.
func Reshare(ctx context.Context, h *round.Helper, a algo.Algorithm, p dkg.ReshareParams) (*keystore.Keystore, error) {
	if err := checkAlgorithm(h, a); err != nil {
		return nil, err
	}
	if p.Keystore != nil {
		if err := p.Keystore.Algorithm().Expect(a); err != nil {
			return nil, protocol.NewError(h.Self(), 1, err)
		}
	}
	p.Extra = nil
	r, err := dkg.Reshare(ctx, h, p)
	if err != nil || r == nil {
		return nil, err
	}
	return toKeystore(h, a, 4, r)
}
