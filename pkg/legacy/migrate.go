// Package legacy converts keystores from the positional JSON format of earlier
// releases into keystore.Keystore values.
//
// Migration is pure: it performs no I/O and uses no randomness, so a given
// record always produces the same keystore.
package legacy

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

// ErrMalformedLegacyRecord is returned when a record does not have the expected shape.
var ErrMalformedLegacyRecord = errors.New("legacy: malformed record")

// Migrate converts data into a keystore for the given algorithm.
func Migrate(data []byte, a algo.Algorithm) (*keystore.Keystore, error) {
	switch a {
	case algo.ElGamalSecp256k1:
		return MigrateElGamal(data)
	case algo.SchnorrEd25519:
		return MigrateSchnorrEd25519(data)
	case algo.SchnorrSecp256k1Taproot:
		return MigrateSchnorrTaproot(data)
	default:
		return nil, a.Validate()
	}
}

// MigrateElGamal converts a threshold ECDSA record, which must carry a Paillier decryption key.
func MigrateElGamal(data []byte) (*keystore.Keystore, error) {
	return migrate(data, algo.ElGamalSecp256k1)
}

// MigrateSchnorrEd25519 converts an Ed25519 record.
func MigrateSchnorrEd25519(data []byte) (*keystore.Keystore, error) {
	return migrate(data, algo.SchnorrEd25519)
}

// MigrateSchnorrTaproot converts a BIP-340 record.
func MigrateSchnorrTaproot(data []byte) (*keystore.Keystore, error) {
	return migrate(data, algo.SchnorrSecp256k1Taproot)
}

func migrate(data []byte, a algo.Algorithm) (*keystore.Keystore, error) {
	record, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	b := builder{group: a.Group()}

	params := keystore.Params{
		Algorithm: a,
		ID:        party.ID(record.Index),
	}
	if params.BlindingScalar, err = b.scalar("u_i", record.BlindingScalar); err != nil {
		return nil, err
	}
	if params.SigningShare, err = b.scalar("x_i", record.SigningShare); err != nil {
		return nil, err
	}

	if len(record.Commitments) > party.MAX {
		return nil, malformed("%d commitment sequences", len(record.Commitments))
	}
	params.Commitments = make(map[party.ID][]curve.Point, len(record.Commitments))
	for j, encoded := range record.Commitments {
		id := party.ID(j + 1)
		points := make([]curve.Point, 0, len(encoded))
		for l, e := range encoded {
			p, err := b.point(fmt.Sprintf("commitment %d of party %d", l, id), e)
			if err != nil {
				return nil, err
			}
			points = append(points, p)
		}
		params.Commitments[id] = points
	}
	if _, ok := params.Commitments[params.ID]; !ok {
		return nil, malformed("party index %d has no commitments", params.ID)
	}

	if a.UsesPaillier() {
		if params.EncryptionKey, params.PeerModuli, err = b.paillier(record, params.ID); err != nil {
			return nil, err
		}
	} else {
		if record.P != nil || record.Q != nil {
			return nil, malformed("%s record cannot hold a decryption key", a)
		}
		if len(record.Moduli) != 0 {
			return nil, malformed("%s record cannot hold paillier moduli", a)
		}
	}

	ks, err := keystore.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLegacyRecord, err)
	}
	if err = ks.VerifyShare(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLegacyRecord, err)
	}

	if record.Public != nil {
		public, err := b.point("public", *record.Public)
		if err != nil {
			return nil, err
		}
		if !public.Equal(ks.PublicPoint()) {
			return nil, malformed("public key does not match commitments")
		}
	}
	return ks, nil
}

// builder turns the raw fields of a legacyRecord into typed values of one curve.
type builder struct {
	group curve.Curve
}

func (b builder) checkCurve(name string, v curveBytes) error {
	if v.Curve != b.group.Name() {
		return malformed("%s: curve %q, expected %q", name, v.Curve, b.group.Name())
	}
	return nil
}

func (b builder) scalar(name string, v curveBytes) (curve.Scalar, error) {
	if err := b.checkCurve(name, v); err != nil {
		return nil, err
	}
	return curve.ScalarFromBytesModOrder(b.group, v.Bytes), nil
}

func (b builder) point(name string, v curveBytes) (curve.Point, error) {
	if err := b.checkCurve(name, v); err != nil {
		return nil, err
	}
	p, err := curve.DecodePoint(b.group, v.Bytes)
	if err != nil {
		return nil, fmt.Errorf("legacy: %s: %w", name, err)
	}
	return p, nil
}

func (b builder) paillier(record *legacyRecord, id party.ID) (*paillier.SecretKey, map[party.ID]*paillier.PublicKey, error) {
	if record.P == nil || record.Q == nil {
		return nil, nil, malformed("missing decryption key")
	}
	if len(record.Moduli) == 0 {
		return nil, nil, malformed("missing paillier moduli")
	}

	sk, err := paillier.Import(record.P, record.Q)
	if err != nil {
		return nil, nil, fmt.Errorf("legacy: decryption key: %w", err)
	}

	moduli := make(map[party.ID]*paillier.PublicKey, len(record.Moduli))
	for j, n := range record.Moduli {
		if n.Sign() == 0 {
			return nil, nil, malformed("modulus of party %d is zero", j+1)
		}
		pk, err := paillier.NewPublicKeyFromBytes(n.Bytes())
		if err != nil {
			return nil, nil, fmt.Errorf("legacy: modulus of party %d: %w", j+1, err)
		}
		moduli[party.ID(j+1)] = pk
	}

	own, ok := moduli[id]
	if !ok {
		return nil, nil, malformed("party index %d has no paillier modulus", id)
	}
	if own.N().Big().Cmp(new(big.Int).Mul(record.P, record.Q)) != 0 {
		return nil, nil, malformed("paillier modulus of party %d is not p⋅q", id)
	}
	return sk, moduli, nil
}
