package dkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/taurusgroup/multi-party-keystore/internal/hash"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
)

// ReshareParams describes one participant of a reshare.
// A participant is a provider, a consumer, or both.
type ReshareParams struct {
	// Providers are the names of the parties holding a share of the key.
	Providers []string
	// Consumers maps the names of the parties receiving a new share to their new index.
	Consumers     round.Parties
	ThresholdNext int
	// Keystore is the share held by this party before the reshare, nil for exclusive consumers.
	Keystore *keystore.Keystore
	// Extra is attached by consumers, and returned to every consumer in Result.Extras.
	Extra []byte
	Rand  io.Reader
}

type reshareAnnounce struct {
	OldID        party.ID `cbor:"i,omitempty"`
	OldThreshold int      `cbor:"t,omitempty"`
	PublicKey    []byte   `cbor:"p,omitempty"`
	Extra        []byte   `cbor:"e,omitempty"`
}

// ErrInvalidAnnouncement is returned when a provider does not announce its share consistently.
var ErrInvalidAnnouncement = errors.New("dkg: invalid reshare announcement")

// Reshare moves the key shared by the providers to the consumers.
//
// Round 1 announces the old index and public key of each provider and the extras of consumers.
// In round 2 every provider deals λᵢ⋅xᵢ with a polynomial of degree ThresholdNext, in round 3
// it sends the evaluations to the consumers. Consumers echo their view in round 4.
//
// Provider-only parties return a nil Result.
func Reshare(ctx context.Context, h *round.Helper, p ReshareParams) (*Result, error) {
	self := h.Self()
	group := h.Group()

	providers := append([]string(nil), p.Providers...)
	sort.Strings(providers)
	isProvider := contains(providers, self)
	newID, isConsumer := p.Consumers[self]
	if !isProvider && !isConsumer {
		return nil, protocol.NewError(self, 1, fmt.Errorf("dkg: %s is not a reshare participant", self))
	}
	if isProvider && p.Keystore == nil {
		return nil, protocol.NewError(self, 1, errors.New("dkg: provider without keystore"))
	}
	if p.ThresholdNext < 0 || p.ThresholdNext >= len(p.Consumers) {
		return nil, protocol.NewError(self, 1, fmt.Errorf("dkg: threshold %d is invalid for %d consumers", p.ThresholdNext, len(p.Consumers)))
	}
	if err := p.Consumers.Validate(); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	consumers := p.Consumers.Names()
	everyone := union(providers, consumers)

	// 1. announce
	announce := &reshareAnnounce{}
	if isProvider {
		pk, err := p.Keystore.PublicPoint().MarshalBinary()
		if err != nil {
			return nil, protocol.NewError(self, 1, err)
		}
		announce.OldID = p.Keystore.ID()
		announce.OldThreshold = p.Keystore.Threshold()
		announce.PublicKey = pk
	}
	if isConsumer {
		announce.Extra = p.Extra
	}
	if err := h.Broadcast(ctx, 1, announce); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	announcements, err := round.ReceiveAll[reshareAnnounce](ctx, h, 1, everyone, true)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	announcements[self] = announce

	oldIDs, public, oldThreshold, err := checkAnnouncements(self, group, providers, announcements)
	if err != nil {
		return nil, err
	}
	if len(providers) <= oldThreshold {
		return nil, protocol.NewError(self, 1, fmt.Errorf("dkg: %d providers cannot reconstruct a key of threshold %d", len(providers), oldThreshold))
	}
	extras := make(map[party.ID][]byte, len(consumers))
	for _, name := range consumers {
		extras[p.Consumers[name]] = announcements[name].Extra
	}
	domain := make([]party.ID, 0, len(providers))
	for _, name := range providers {
		domain = append(domain, oldIDs[name])
	}

	// 2. providers deal their additive share λᵢ⋅xᵢ
	var (
		f *polynomial.Polynomial
		u curve.Scalar
	)
	if isProvider {
		lambda := polynomial.LagrangeSingle(group, domain, p.Keystore.ID())
		u = group.NewScalar().Set(lambda).Mul(p.Keystore.SigningShare())
		var d *dealing
		if f, d, err = deal(h, p.ThresholdNext, u, p.Rand); err != nil {
			return nil, protocol.NewError(self, 2, err)
		}
		if err = h.Broadcast(ctx, 2, d); err != nil {
			return nil, protocol.NewError(self, 2, err)
		}

		// 3. send the new shares
		for _, name := range consumers {
			if name == self {
				continue
			}
			data, err := f.Evaluate(p.Consumers[name].Scalar(group)).MarshalBinary()
			if err != nil {
				return nil, protocol.NewError(self, 3, err)
			}
			if err = h.Send(ctx, 3, name, &shareMessage{Share: data}); err != nil {
				return nil, protocol.NewError(self, 3, err)
			}
		}
		if !isConsumer {
			h.Log.Debug().Int("consumers", len(consumers)).Msg("reshare dealt")
			return nil, nil
		}
	} else {
		u = sample.Scalar(p.Rand, group)
	}

	F := make(map[party.ID]*polynomial.Exponent, len(providers))
	if isProvider {
		F[p.Keystore.ID()] = polynomial.NewPolynomialExponent(f)
	}
	dealings, err := round.ReceiveAll[dealing](ctx, h, 2, providers, true)
	if err != nil {
		return nil, protocol.NewError(self, 2, err)
	}
	for _, name := range providers {
		d, ok := dealings[name]
		if !ok {
			continue
		}
		Fj, err := d.open(h, name, p.ThresholdNext)
		if err != nil {
			return nil, protocol.Blame(self, 2, name, err)
		}
		// a provider can check the other contributions against the old verification shares
		if isProvider {
			lambda := polynomial.LagrangeSingle(group, domain, oldIDs[name])
			expected := lambda.Act(p.Keystore.VerificationShare(oldIDs[name]))
			if !expected.Equal(Fj.Constant()) {
				return nil, protocol.Blame(self, 2, name, fmt.Errorf("%w: dealt constant does not match verification share", ErrInvalidCommitments))
			}
		}
		F[oldIDs[name]] = Fj
	}
	summed := group.NewPoint()
	for _, Fj := range F {
		summed = summed.Add(Fj.Constant())
	}
	if !summed.Equal(public) {
		return nil, protocol.NewError(self, 2, ErrPublicKeyMismatch)
	}

	// xᵢ' = ∑ⱼ fⱼ(i')
	x := group.NewScalar()
	if isProvider {
		x.Add(f.Evaluate(newID.Scalar(group)))
	}
	shares, err := round.ReceiveAll[shareMessage](ctx, h, 3, providers, false)
	if err != nil {
		return nil, protocol.NewError(self, 3, err)
	}
	for name, s := range shares {
		share, err := verifyShare(group, F[oldIDs[name]], newID, s.Share)
		if err != nil {
			return nil, protocol.Blame(self, 3, name, err)
		}
		x.Add(share)
	}

	// 4. echo among consumers
	digest := transcript(h, F, extras, &hash.Uint64WithDomain{TheDomain: "Threshold", Value: uint64(p.ThresholdNext)})
	if err = h.Broadcast(ctx, 4, &echoMessage{Digest: digest}); err != nil {
		return nil, protocol.NewError(self, 4, err)
	}
	echoes, err := round.ReceiveAll[echoMessage](ctx, h, 4, consumers, true)
	if err != nil {
		return nil, protocol.NewError(self, 4, err)
	}
	if culprit, err := checkEcho(digest, echoes); err != nil {
		return nil, protocol.Blame(self, 4, culprit, err)
	}

	h.Log.Debug().Int("threshold", p.ThresholdNext).Int("providers", len(providers)).Msg("reshare done")
	return &Result{
		ID:             newID,
		BlindingScalar: u,
		SigningShare:   x,
		Commitments:    coefficients(F),
		Extras:         extras,
	}, nil
}

// checkAnnouncements makes sure that all providers hold shares of the same key,
// with distinct indices.
func checkAnnouncements(self string, group curve.Curve, providers []string, announcements map[string]*reshareAnnounce) (map[string]party.ID, curve.Point, int, error) {
	oldIDs := make(map[string]party.ID, len(providers))
	seen := make(map[party.ID]string, len(providers))
	reference := announcements[providers[0]]
	for _, name := range providers {
		a := announcements[name]
		if !a.OldID.Valid() {
			return nil, nil, 0, protocol.Blame(self, 1, name, fmt.Errorf("%w: missing index", ErrInvalidAnnouncement))
		}
		if other, ok := seen[a.OldID]; ok {
			return nil, nil, 0, protocol.Blame(self, 1, name, fmt.Errorf("%w: index %d already used by %s", ErrInvalidAnnouncement, a.OldID, other))
		}
		if a.OldThreshold != reference.OldThreshold {
			return nil, nil, 0, protocol.Blame(self, 1, name, fmt.Errorf("%w: threshold %d, expected %d", ErrInvalidAnnouncement, a.OldThreshold, reference.OldThreshold))
		}
		if !bytes.Equal(a.PublicKey, reference.PublicKey) {
			return nil, nil, 0, protocol.Blame(self, 1, name, ErrPublicKeyMismatch)
		}
		seen[a.OldID] = name
		oldIDs[name] = a.OldID
	}
	public, err := curve.DecodePoint(group, reference.PublicKey)
	if err != nil {
		return nil, nil, 0, protocol.Blame(self, 1, providers[0], fmt.Errorf("%w: %w", ErrInvalidAnnouncement, err))
	}
	return oldIDs, public, reference.OldThreshold, nil
}

func contains(names []string, name string) bool {
	i := sort.SearchStrings(names, name)
	return i < len(names) && names[i] == name
}

// union merges two sorted lists of names.
func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, name := range b {
		if !contains(a, name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
