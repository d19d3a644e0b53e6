package schnorr

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-keystore/internal/hash"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
	"github.com/taurusgroup/multi-party-keystore/pkg/signature"
)

// ErrInvalidPartial is returned when a signer's response does not match its public share.
var ErrInvalidPartial = errors.New("schnorr: invalid partial signature")

// SignParams describes one signer.
type SignParams struct {
	// Signers maps the name of every signer to the index of its keystore.
	Signers  round.Parties
	Keystore *keystore.Keystore
	// Message is signed as is by Ed25519, and must be a 32 byte digest for taproot.
	Message []byte
	// Path is a non-hardened BIP-32 derivation path, empty for the root key.
	Path string
	Rand io.Reader
}

type commitments struct {
	D []byte `cbor:"d"`
	E []byte `cbor:"e"`
}

type response struct {
	Z []byte `cbor:"z"`
}

func decodeNonces(group curve.Curve, c *commitments) (D, E curve.Point, err error) {
	if D, err = curve.DecodePoint(group, c.D); err != nil {
		return nil, nil, err
	}
	if E, err = curve.DecodePoint(group, c.E); err != nil {
		return nil, nil, err
	}
	// 3. "each Pᵢ checks Dₗ, Eₗ in Gˣ"
	if D.IsIdentity() || E.IsIdentity() {
		return nil, nil, errors.New("schnorr: nonce commitment is the identity point")
	}
	return D, E, nil
}

// Sign produces a signature of p.Message with the key of p.Keystore, derived along p.Path.
//
// This follows Figures 2 and 3 of the FROST paper (https://eprint.iacr.org/2020/852.pdf),
// without a signature aggregator: commitments and responses are broadcast, and every signer
// aggregates and verifies the signature.
func Sign(ctx context.Context, h *round.Helper, p SignParams) (*signature.Schnorr, error) {
	self := h.Self()
	ks := p.Keystore
	if ks == nil {
		return nil, protocol.NewError(self, 1, errors.New("schnorr: missing keystore"))
	}
	a := ks.Algorithm()
	if err := checkAlgorithm(h, a); err != nil {
		return nil, err
	}
	group := h.Group()
	if a == algo.SchnorrSecp256k1Taproot && len(p.Message) != 32 {
		return nil, protocol.NewError(self, 1, fmt.Errorf("schnorr: taproot message must be a 32 byte digest, got %d bytes", len(p.Message)))
	}
	if err := p.Signers.Validate(); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if id, ok := p.Signers[self]; !ok || id != ks.ID() {
		return nil, protocol.NewError(self, 1, fmt.Errorf("%w: %s does not sign with index %d", keystore.ErrInvalidQuorum, self, ks.ID()))
	}
	names := p.Signers.Names()
	ids := p.Signers.IDs()

	tweak, public, err := ks.Derive(p.Path)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	// W[j] = λⱼ⋅(Yⱼ + t⋅G), with ∑ⱼ W[j] the derived public key
	w, W, err := ks.Quorum(ids, tweak)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if a == algo.SchnorrSecp256k1Taproot && !public.(*curve.Secp256k1Point).HasEvenY() {
		// BIP-340 signs with the secret of the even-y key
		w.Negate()
		for _, j := range ids {
			W[j] = W[j].Negate()
		}
	}

	// 1. sample the nonces dᵢ, eᵢ and broadcast Dᵢ, Eᵢ
	d, D := sample.ScalarPointPair(p.Rand, group)
	e, E := sample.ScalarPointPair(p.Rand, group)
	msg := &commitments{}
	if msg.D, err = D.MarshalBinary(); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if msg.E, err = E.MarshalBinary(); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if err = h.Broadcast(ctx, 1, msg); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}

	Ds := map[party.ID]curve.Point{ks.ID(): D}
	Es := map[party.ID]curve.Point{ks.ID(): E}
	received, err := round.ReceiveAll[commitments](ctx, h, 1, names, true)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	for name, c := range received {
		Dj, Ej, err := decodeNonces(group, c)
		if err != nil {
			return nil, protocol.Blame(self, 1, name, err)
		}
		Ds[p.Signers[name]] = Dj
		Es[p.Signers[name]] = Ej
	}

	// 4. ρₗ = H(m, B, l), R = ∑ₗ Dₗ + ρₗ⋅Eₗ
	rhoPreHash := h.Hash()
	_ = rhoPreHash.WriteAny(&hash.BytesWithDomain{TheDomain: "Message", Bytes: p.Message})
	_ = rhoPreHash.WriteAny(&hash.BytesWithDomain{TheDomain: "Path", Bytes: []byte(p.Path)})
	for _, l := range ids {
		_ = rhoPreHash.WriteAny(l, Ds[l], Es[l])
	}
	R := group.NewPoint()
	RShares := make(map[party.ID]curve.Point, len(ids))
	rho := make(map[party.ID]curve.Scalar, len(ids))
	for _, l := range ids {
		rhoHash := rhoPreHash.Clone()
		_ = rhoHash.WriteAny(l)
		rho[l] = rhoHash.Scalar(group)
		RShares[l] = rho[l].Act(Es[l]).Add(Ds[l])
		R = R.Add(RShares[l])
	}
	if R.IsIdentity() {
		return nil, protocol.NewError(self, 2, errors.New("schnorr: nonce is the identity"))
	}
	if a == algo.SchnorrSecp256k1Taproot && !R.(*curve.Secp256k1Point).HasEvenY() {
		// BIP-340 needs R with an even y coordinate, so we negate k = ∑ᵢ dᵢ + eᵢ⋅ρᵢ
		R = R.Negate()
		d.Negate()
		e.Negate()
		for _, l := range ids {
			RShares[l] = RShares[l].Negate()
		}
	}
	c, err := signature.Challenge(a, R, public, p.Message)
	if err != nil {
		return nil, protocol.NewError(self, 2, err)
	}

	// 5. zᵢ = dᵢ + eᵢ⋅ρᵢ + c⋅wᵢ, where wᵢ already carries λᵢ
	z := group.NewScalar().Set(c).Mul(w)
	z.Add(d)
	z.Add(group.NewScalar().Set(e).Mul(rho[ks.ID()]))
	zBytes, err := z.MarshalBinary()
	if err != nil {
		return nil, protocol.NewError(self, 2, err)
	}
	if err = h.Broadcast(ctx, 2, &response{Z: zBytes}); err != nil {
		return nil, protocol.NewError(self, 2, err)
	}

	// 7.b check every zⱼ⋅G = Rⱼ + c⋅Wⱼ
	responses, err := round.ReceiveAll[response](ctx, h, 2, names, true)
	if err != nil {
		return nil, protocol.NewError(self, 2, err)
	}
	total := group.NewScalar().Set(z)
	for _, name := range names {
		r, ok := responses[name]
		if !ok {
			continue
		}
		j := p.Signers[name]
		zj, err := curve.DecodeScalar(group, r.Z)
		if err != nil {
			return nil, protocol.Blame(self, 2, name, fmt.Errorf("%w: %w", ErrInvalidPartial, err))
		}
		if !zj.ActOnBase().Equal(c.Act(W[j]).Add(RShares[j])) {
			return nil, protocol.Blame(self, 2, name, ErrInvalidPartial)
		}
		total.Add(zj)
	}

	sig := &signature.Schnorr{
		Algorithm: a,
		R:         R,
		Z:         total,
		PublicKey: public,
	}
	if err = sig.Verify(p.Message); err != nil {
		return nil, protocol.NewError(self, 2, err)
	}
	h.Log.Debug().Int("signers", len(ids)).Str("path", p.Path).Msg("signature verified")
	return sig, nil
}
