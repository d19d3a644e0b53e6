package elgamal

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
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
	"github.com/taurusgroup/multi-party-keystore/pkg/signature"
)

var (
	// ErrInvalidCiphertext is returned for Paillier ciphertexts outside of ℤ*ₙ².
	ErrInvalidCiphertext = errors.New("elgamal: invalid ciphertext")
	// ErrInvalidDecommitment is returned when Γⱼ does not open the commitment of round 1.
	ErrInvalidDecommitment = errors.New("elgamal: invalid decommitment")
	// ErrNonceOverflow is returned in the rare case where the x-coordinate of R exceeds the group order.
	ErrNonceOverflow = errors.New("elgamal: nonce x-coordinate exceeds the group order")
)

// SignParams describes one signer.
type SignParams struct {
	// Signers maps the name of every signer to the index of its keystore.
	Signers  round.Parties
	Keystore *keystore.Keystore
	// Digest is the 32 byte hash of the message.
	Digest []byte
	// Path is a non-hardened BIP-32 derivation path, empty for the root key.
	Path string
	Rand io.Reader
}

type message1 struct {
	// K = Encᵢ(kᵢ)
	K []byte `cbor:"k"`
	// Commitment to Γᵢ
	Commitment []byte `cbor:"c"`
}

type message2 struct {
	// DGamma = γᵢ ⊙ Kⱼ ⊕ Encⱼ(β')
	DGamma []byte `cbor:"g"`
	// DW = wᵢ ⊙ Kⱼ ⊕ Encⱼ(ν')
	DW []byte `cbor:"w"`
}

type message3 struct {
	Delta        []byte `cbor:"d"`
	Gamma        []byte `cbor:"g"`
	Decommitment []byte `cbor:"r"`
}

type message4 struct {
	S []byte `cbor:"s"`
}

func decodeCiphertext(pk *paillier.PublicKey, data []byte) (*paillier.Ciphertext, error) {
	ct := new(paillier.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCiphertext, err)
	}
	if !pk.ValidateCiphertexts(ct) {
		return nil, ErrInvalidCiphertext
	}
	return ct, nil
}

// signer holds the state of one party during signing.
type signer struct {
	h      *round.Helper
	p      SignParams
	group  curve.Curve
	self   string
	names  []string
	ids    party.IDSlice
	sk     *paillier.SecretKey
	moduli map[party.ID]*paillier.PublicKey
	public curve.Point

	// wᵢ = λᵢ⋅(xᵢ + t)
	w curve.Scalar
	// kᵢ, γᵢ are the multiplicative shares of k and γ
	k, gamma curve.Scalar
	Gamma    curve.Point
}

// Sign produces an ECDSA signature of p.Digest with the key of p.Keystore, derived along p.Path.
//
// Round 1 broadcasts Kᵢ = Encᵢ(kᵢ) and a commitment to Γᵢ = γᵢ⋅G.
// Round 2 runs the MtA conversions for kⱼ⋅γᵢ and kⱼ⋅wᵢ with every other signer.
// Round 3 broadcasts δᵢ = kᵢγᵢ + ∑ⱼ αᵢⱼ + βᵢⱼ and opens Γᵢ, so that R = δ⁻¹⋅Γ = k⁻¹⋅G.
// Round 4 broadcasts sᵢ = m⋅kᵢ + r⋅σᵢ, where σ = ∑ᵢ σᵢ = k⋅w.
func Sign(ctx context.Context, h *round.Helper, p SignParams) (*signature.ECDSA, error) {
	s, err := newSigner(h, p)
	if err != nil {
		return nil, err
	}
	return s.run(ctx)
}

func newSigner(h *round.Helper, p SignParams) (*signer, error) {
	self := h.Self()
	ks := p.Keystore
	if ks == nil {
		return nil, protocol.NewError(self, 1, errors.New("elgamal: missing keystore"))
	}
	if err := checkGroup(h); err != nil {
		return nil, err
	}
	if err := ks.Algorithm().Expect(algo.ElGamalSecp256k1); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if len(p.Digest) != 32 {
		return nil, protocol.NewError(self, 1, fmt.Errorf("elgamal: digest must be 32 bytes, got %d", len(p.Digest)))
	}
	if err := p.Signers.Validate(); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if id, ok := p.Signers[self]; !ok || id != ks.ID() {
		return nil, protocol.NewError(self, 1, fmt.Errorf("%w: %s does not sign with index %d", keystore.ErrInvalidQuorum, self, ks.ID()))
	}

	ids := p.Signers.IDs()
	moduli := make(map[party.ID]*paillier.PublicKey, len(ids))
	for _, id := range ids {
		pk, ok := ks.PeerModulus(id)
		if !ok {
			return nil, protocol.NewError(self, 1, fmt.Errorf("%w: no paillier modulus for party %d", keystore.ErrInvalidQuorum, id))
		}
		moduli[id] = pk
	}

	tweak, public, err := ks.Derive(p.Path)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	w, _, err := ks.Quorum(ids, tweak)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	return &signer{
		h:      h,
		p:      p,
		group:  h.Group(),
		self:   self,
		names:  p.Signers.Names(),
		ids:    ids,
		sk:     ks.EncryptionKey(),
		moduli: moduli,
		public: public,
		w:      w,
	}, nil
}

func (s *signer) id(name string) party.ID { return s.p.Signers[name] }

func (s *signer) run(ctx context.Context) (*signature.ECDSA, error) {
	h, self, group := s.h, s.self, s.group

	// 1. Kᵢ = Encᵢ(kᵢ), commit to Γᵢ
	s.k = sample.ScalarUnit(s.p.Rand, group)
	s.gamma, s.Gamma = sample.ScalarPointPair(s.p.Rand, group)
	K, _ := s.sk.PublicKey.Enc(s.p.Rand, scalarNat(s.k))
	commitment, decommitment, err := h.HashForParty(self).Commit(s.p.Rand, s.Gamma)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	kBytes, err := K.MarshalBinary()
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if err = h.Broadcast(ctx, 1, &message1{K: kBytes, Commitment: commitment}); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	first, err := round.ReceiveAll[message1](ctx, h, 1, s.names, true)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}

	// 2. MtA with every other signer
	delta := group.NewScalar().Set(s.k).Mul(s.gamma)
	sigma := group.NewScalar().Set(s.k).Mul(s.w)
	for _, name := range s.names {
		if name == self {
			continue
		}
		pk := s.moduli[s.id(name)]
		Kj, err := decodeCiphertext(pk, first[name].K)
		if err != nil {
			return nil, protocol.Blame(self, 1, name, err)
		}
		if err = hash.Commitment(first[name].Commitment).Validate(); err != nil {
			return nil, protocol.Blame(self, 1, name, err)
		}
		DGamma, beta := mta(s.p.Rand, s.gamma, Kj, pk)
		DW, nu := mta(s.p.Rand, s.w, Kj, pk)
		delta.Add(beta)
		sigma.Add(nu)

		msg := &message2{}
		if msg.DGamma, err = DGamma.MarshalBinary(); err != nil {
			return nil, protocol.NewError(self, 2, err)
		}
		if msg.DW, err = DW.MarshalBinary(); err != nil {
			return nil, protocol.NewError(self, 2, err)
		}
		if err = h.Send(ctx, 2, name, msg); err != nil {
			return nil, protocol.NewError(self, 2, err)
		}
	}

	second, err := round.ReceiveAll[message2](ctx, h, 2, s.names, false)
	if err != nil {
		return nil, protocol.NewError(self, 2, err)
	}
	own := s.sk.PublicKey
	for name, msg := range second {
		DGamma, err := decodeCiphertext(own, msg.DGamma)
		if err != nil {
			return nil, protocol.Blame(self, 2, name, err)
		}
		DW, err := decodeCiphertext(own, msg.DW)
		if err != nil {
			return nil, protocol.Blame(self, 2, name, err)
		}
		alpha, err := decryptShare(group, s.sk, DGamma)
		if err != nil {
			return nil, protocol.Blame(self, 2, name, err)
		}
		mu, err := decryptShare(group, s.sk, DW)
		if err != nil {
			return nil, protocol.Blame(self, 2, name, err)
		}
		delta.Add(alpha)
		sigma.Add(mu)
	}

	// 3. reveal δᵢ and Γᵢ
	msg3 := &message3{Decommitment: decommitment}
	if msg3.Delta, err = delta.MarshalBinary(); err != nil {
		return nil, protocol.NewError(self, 3, err)
	}
	if msg3.Gamma, err = s.Gamma.MarshalBinary(); err != nil {
		return nil, protocol.NewError(self, 3, err)
	}
	if err = h.Broadcast(ctx, 3, msg3); err != nil {
		return nil, protocol.NewError(self, 3, err)
	}
	third, err := round.ReceiveAll[message3](ctx, h, 3, s.names, true)
	if err != nil {
		return nil, protocol.NewError(self, 3, err)
	}
	Delta := group.NewScalar().Set(delta)
	Gamma := s.Gamma
	for _, name := range s.names {
		msg, ok := third[name]
		if !ok {
			continue
		}
		deltaJ, err := curve.DecodeScalar(group, msg.Delta)
		if err != nil {
			return nil, protocol.Blame(self, 3, name, err)
		}
		GammaJ, err := curve.DecodePoint(group, msg.Gamma)
		if err != nil {
			return nil, protocol.Blame(self, 3, name, err)
		}
		if !h.HashForParty(name).Decommit(first[name].Commitment, msg.Decommitment, GammaJ) {
			return nil, protocol.Blame(self, 3, name, ErrInvalidDecommitment)
		}
		Delta.Add(deltaJ)
		Gamma = Gamma.Add(GammaJ)
	}
	if Delta.IsZero() {
		return nil, protocol.NewError(self, 3, errors.New("elgamal: δ is zero"))
	}

	// R = δ⁻¹⋅Γ = k⁻¹⋅G
	R := Delta.Invert().Act(Gamma).(*curve.Secp256k1Point)
	if R.IsIdentity() {
		return nil, protocol.NewError(self, 3, errors.New("elgamal: nonce is the identity"))
	}
	if R.XOverflows() {
		return nil, protocol.NewError(self, 3, ErrNonceOverflow)
	}
	r := R.XScalar()
	m := curve.FromHash(group, s.p.Digest)

	// 4. sᵢ = m⋅kᵢ + r⋅σᵢ
	si := group.NewScalar().Set(m).Mul(s.k)
	si.Add(group.NewScalar().Set(r).Mul(sigma))
	siBytes, err := si.MarshalBinary()
	if err != nil {
		return nil, protocol.NewError(self, 4, err)
	}
	if err = h.Broadcast(ctx, 4, &message4{S: siBytes}); err != nil {
		return nil, protocol.NewError(self, 4, err)
	}
	fourth, err := round.ReceiveAll[message4](ctx, h, 4, s.names, true)
	if err != nil {
		return nil, protocol.NewError(self, 4, err)
	}
	total := group.NewScalar().Set(si)
	for _, name := range s.names {
		msg, ok := fourth[name]
		if !ok {
			continue
		}
		sj, err := curve.DecodeScalar(group, msg.S)
		if err != nil {
			return nil, protocol.Blame(self, 4, name, err)
		}
		total.Add(sj)
	}

	sig, err := signature.NewECDSA(R, total, s.public)
	if err != nil {
		return nil, protocol.NewError(self, 4, err)
	}
	if err = sig.Verify(s.p.Digest); err != nil {
		return nil, protocol.NewError(self, 4, err)
	}
	h.Log.Debug().Int("signers", len(s.ids)).Str("path", s.p.Path).Msg("signature verified")
	return sig, nil
}
