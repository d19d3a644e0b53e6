// Package keystore holds the durable per-party state produced by a keygen or reshare round.
package keystore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/taurusgroup/multi-party-keystore/internal/bip32"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

var (
	// ErrInvalidKeystore is returned by New when the given fields violate a keystore invariant.
	ErrInvalidKeystore = errors.New("keystore: invalid keystore")
	// ErrInvalidShare is returned when the signing share does not match the commitment table.
	ErrInvalidShare = errors.New("keystore: signing share does not match commitments")
	// ErrInvalidQuorum is returned when a signer set cannot use this keystore.
	ErrInvalidQuorum = errors.New("keystore: invalid signer set")
)

// Params lists the fields of a Keystore. It is only used to construct one.
type Params struct {
	Algorithm algo.Algorithm
	ID        party.ID
	// BlindingScalar is uᵢ, the constant of the polynomial this party dealt.
	BlindingScalar curve.Scalar
	// SigningShare is xᵢ, this party's share of the aggregate secret.
	SigningShare curve.Scalar
	// Commitments maps each contributing party to the Feldman commitments of its polynomial.
	Commitments map[party.ID][]curve.Point
	// EncryptionKey and PeerModuli are only set for algo.ElGamal.
	EncryptionKey *paillier.SecretKey
	PeerModuli    map[party.ID]*paillier.PublicKey
}

// Keystore is the immutable state of one party for a given algorithm.
// All accessors return copies.
type Keystore struct {
	algorithm   algo.Algorithm
	id          party.ID
	u, x        curve.Scalar
	commitments map[party.ID]*polynomial.Exponent
	threshold   int
	encryption  *paillier.SecretKey
	moduli      map[party.ID]*paillier.PublicKey
}

// New validates p and returns a Keystore holding a deep copy of it.
func New(p Params) (*Keystore, error) {
	if err := p.Algorithm.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeystore, err)
	}
	group := p.Algorithm.Group()

	if !p.ID.Valid() {
		return nil, fmt.Errorf("%w: party index 0", ErrInvalidKeystore)
	}
	if p.BlindingScalar == nil || p.SigningShare == nil {
		return nil, fmt.Errorf("%w: missing scalar", ErrInvalidKeystore)
	}
	if p.BlindingScalar.Curve().Name() != group.Name() || p.SigningShare.Curve().Name() != group.Name() {
		return nil, fmt.Errorf("%w: scalar on wrong curve", ErrInvalidKeystore)
	}

	if len(p.Commitments) == 0 {
		return nil, fmt.Errorf("%w: empty commitment table", ErrInvalidKeystore)
	}
	commitments := make(map[party.ID]*polynomial.Exponent, len(p.Commitments))
	length := -1
	for id, points := range p.Commitments {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: commitment for party index 0", ErrInvalidKeystore)
		}
		if length == -1 {
			length = len(points)
		}
		if len(points) != length {
			return nil, fmt.Errorf("%w: commitments of party %d have length %d, expected %d", ErrInvalidKeystore, id, len(points), length)
		}
		for _, c := range points {
			if c == nil || c.Curve().Name() != group.Name() {
				return nil, fmt.Errorf("%w: commitment of party %d on wrong curve", ErrInvalidKeystore, id)
			}
		}
		exponent, err := polynomial.NewExponent(group, points)
		if err != nil {
			return nil, fmt.Errorf("%w: party %d: %w", ErrInvalidKeystore, id, err)
		}
		commitments[id] = exponent
	}

	ks := &Keystore{
		algorithm:   p.Algorithm,
		id:          p.ID,
		u:           group.NewScalar().Set(p.BlindingScalar),
		x:           group.NewScalar().Set(p.SigningShare),
		commitments: commitments,
		threshold:   length - 1,
	}

	if ks.PublicPoint().IsIdentity() {
		return nil, fmt.Errorf("%w: public key is the identity", ErrInvalidKeystore)
	}

	if !p.Algorithm.UsesPaillier() {
		if p.EncryptionKey != nil || len(p.PeerModuli) != 0 {
			return nil, fmt.Errorf("%w: %s keystore cannot hold paillier keys", ErrInvalidKeystore, p.Algorithm)
		}
		return ks, nil
	}

	if p.EncryptionKey == nil {
		return nil, fmt.Errorf("%w: missing encryption key", ErrInvalidKeystore)
	}
	if len(p.PeerModuli) == 0 {
		return nil, fmt.Errorf("%w: missing peer moduli", ErrInvalidKeystore)
	}
	ks.encryption = p.EncryptionKey
	ks.moduli = make(map[party.ID]*paillier.PublicKey, len(p.PeerModuli))
	for id, pk := range p.PeerModuli {
		if !id.Valid() || pk == nil {
			return nil, fmt.Errorf("%w: invalid peer modulus entry %d", ErrInvalidKeystore, id)
		}
		ks.moduli[id] = pk
	}
	if own, ok := ks.moduli[p.ID]; ok && !own.Equal(p.EncryptionKey.PublicKey) {
		return nil, fmt.Errorf("%w: own modulus does not match encryption key", ErrInvalidKeystore)
	}
	return ks, nil
}

// Algorithm returns the (curve, scheme) tag of this keystore.
func (k *Keystore) Algorithm() algo.Algorithm { return k.algorithm }

// Group returns the curve of this keystore.
func (k *Keystore) Group() curve.Curve { return k.algorithm.Group() }

// ID returns this party's index.
func (k *Keystore) ID() party.ID { return k.id }

// Threshold returns t, such that t+1 shares are needed to sign.
func (k *Keystore) Threshold() int { return k.threshold }

// BlindingScalar returns a copy of uᵢ.
func (k *Keystore) BlindingScalar() curve.Scalar {
	return k.Group().NewScalar().Set(k.u)
}

// SigningShare returns a copy of xᵢ.
func (k *Keystore) SigningShare() curve.Scalar {
	return k.Group().NewScalar().Set(k.x)
}

// Contributors returns the sorted indices of the commitment table.
func (k *Keystore) Contributors() party.IDSlice {
	ids := make([]party.ID, 0, len(k.commitments))
	for id := range k.commitments {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}

// Commitments returns a copy of the commitment table.
func (k *Keystore) Commitments() map[party.ID][]curve.Point {
	out := make(map[party.ID][]curve.Point, len(k.commitments))
	for id, c := range k.commitments {
		out[id] = c.Coefficients()
	}
	return out
}

// EncryptionKey returns this party's Paillier key, or nil for Schnorr keystores.
func (k *Keystore) EncryptionKey() *paillier.SecretKey { return k.encryption }

// PeerModuli returns a copy of the table of Paillier public keys.
func (k *Keystore) PeerModuli() map[party.ID]*paillier.PublicKey {
	if k.moduli == nil {
		return nil
	}
	out := make(map[party.ID]*paillier.PublicKey, len(k.moduli))
	for id, pk := range k.moduli {
		out[id] = pk
	}
	return out
}

// PeerModulus returns the Paillier public key of party id.
func (k *Keystore) PeerModulus(id party.ID) (*paillier.PublicKey, bool) {
	pk, ok := k.moduli[id]
	return pk, ok
}

func (k *Keystore) summed() *polynomial.Exponent {
	exponents := make([]*polynomial.Exponent, 0, len(k.commitments))
	for _, id := range k.Contributors() {
		exponents = append(exponents, k.commitments[id])
	}
	// all exponents have the same length, checked in New
	summed, _ := polynomial.Sum(exponents)
	return summed
}

// PublicPoint returns the aggregate public key Y = ∑ⱼ Cⱼ[0].
func (k *Keystore) PublicPoint() curve.Point {
	return k.summed().Constant()
}

// VerificationShare returns Yᵢ = xᵢ⋅G for party i, computed as ∑ⱼ Fⱼ(i).
func (k *Keystore) VerificationShare(id party.ID) curve.Point {
	return k.summed().Evaluate(id.Scalar(k.Group()))
}

// VerifyShare checks that the signing share matches this party's verification share.
func (k *Keystore) VerifyShare() error {
	if !k.x.ActOnBase().Equal(k.VerificationShare(k.id)) {
		return fmt.Errorf("%w: party %d", ErrInvalidShare, k.id)
	}
	return nil
}

// ChainCode returns the BIP-32 chain code derived from the public key.
func (k *Keystore) ChainCode() ([]byte, error) {
	return bip32.ChainCode(k.PublicPoint())
}

// ExtendedPublicKey returns the serialized root extended public key.
func (k *Keystore) ExtendedPublicKey() (string, error) {
	public := k.PublicPoint()
	chainCode, err := bip32.ChainCode(public)
	if err != nil {
		return "", err
	}
	return bip32.ExtendedPublicKey(public, chainCode)
}

// Derive returns the additive tweak and derived public key for a non-hardened path.
func (k *Keystore) Derive(path string) (curve.Scalar, curve.Point, error) {
	p, err := bip32.PathFrom(path)
	if err != nil {
		return nil, nil, err
	}
	public := k.PublicPoint()
	chainCode, err := bip32.ChainCode(public)
	if err != nil {
		return nil, nil, err
	}
	tweak, derived, _, err := bip32.Derive(public, chainCode, p)
	if err != nil {
		return nil, nil, err
	}
	return tweak, derived, nil
}

// Quorum returns the additive share wᵢ = λᵢ⋅(xᵢ + t) of this party for the given signer set,
// and the public shares Wⱼ = λⱼ⋅(Yⱼ + t⋅G) of every signer, so that ∑ⱼ wⱼ is the secret key tweaked by t.
// A nil tweak is treated as zero.
func (k *Keystore) Quorum(signers []party.ID, tweak curve.Scalar) (curve.Scalar, map[party.ID]curve.Point, error) {
	ids := party.NewIDSlice(signers)
	if !ids.Valid() {
		return nil, nil, fmt.Errorf("%w: duplicate or zero index in %v", ErrInvalidQuorum, ids)
	}
	if !ids.Contains(k.id) {
		return nil, nil, fmt.Errorf("%w: party %d is not a signer", ErrInvalidQuorum, k.id)
	}
	if len(ids) <= k.threshold {
		return nil, nil, fmt.Errorf("%w: %d signers for threshold %d", ErrInvalidQuorum, len(ids), k.threshold)
	}

	group := k.Group()
	if tweak == nil {
		tweak = group.NewScalar()
	}
	T := tweak.ActOnBase()
	summed := k.summed()
	lagrange := polynomial.Lagrange(group, ids)

	public := make(map[party.ID]curve.Point, len(ids))
	for _, j := range ids {
		Y := summed.Evaluate(j.Scalar(group))
		public[j] = lagrange[j].Act(Y.Add(T))
	}
	share := group.NewScalar().Set(k.x).Add(tweak)
	share.Mul(lagrange[k.id])
	return share, public, nil
}

// Equal returns true if both keystores hold the same values.
func (k *Keystore) Equal(other *Keystore) bool {
	if k == nil || other == nil {
		return k == other
	}
	if k.algorithm != other.algorithm || k.id != other.id || k.threshold != other.threshold {
		return false
	}
	if !k.u.Equal(other.u) || !k.x.Equal(other.x) {
		return false
	}
	if len(k.commitments) != len(other.commitments) {
		return false
	}
	for id, c := range k.commitments {
		o, ok := other.commitments[id]
		if !ok || !c.Equal(o) {
			return false
		}
	}
	if !k.encryption.Equal(other.encryption) || len(k.moduli) != len(other.moduli) {
		return false
	}
	for id, pk := range k.moduli {
		o, ok := other.moduli[id]
		if !ok || !pk.Equal(o) {
			return false
		}
	}
	return true
}

// ModuliIDs returns the sorted indices of the peer moduli table.
func (k *Keystore) ModuliIDs() party.IDSlice {
	ids := make([]party.ID, 0, len(k.moduli))
	for id := range k.moduli {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
