package dkg

import (
	"context"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-keystore/internal/hash"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/sample"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/protocol"
)

// KeygenParams describes one participant of a key generation.
type KeygenParams struct {
	// Parties maps the name of every participant, this one included, to its index.
	Parties   round.Parties
	Threshold int
	// Extra is attached to the commitments of this party, and returned to everyone in Result.Extras.
	Extra []byte
	Rand  io.Reader
}

type keygenBroadcast struct {
	Dealing dealing `cbor:"d"`
	Extra   []byte  `cbor:"e,omitempty"`
}

// Keygen runs the key generation for the party of h.
//
// Round 1 broadcasts the commitments to a random polynomial fᵢ of degree t,
// round 2 sends fᵢ(j) to every party j, and round 3 echoes a digest of all commitments.
func Keygen(ctx context.Context, h *round.Helper, p KeygenParams) (*Result, error) {
	self := h.Self()
	group := h.Group()
	selfID, ok := p.Parties[self]
	if !ok {
		return nil, protocol.NewError(self, 1, fmt.Errorf("dkg: %s is not a keygen participant", self))
	}
	if err := p.Parties.Validate(); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if p.Threshold < 0 || p.Threshold >= len(p.Parties) {
		return nil, protocol.NewError(self, 1, fmt.Errorf("dkg: threshold %d is invalid for %d parties", p.Threshold, len(p.Parties)))
	}
	names := p.Parties.Names()

	// 1. sample uᵢ and fᵢ(X) = uᵢ + a₁X + … + aₜXᵗ, broadcast Fᵢ(X) = fᵢ(X)⋅G
	u := sample.Scalar(p.Rand, group)
	f, d, err := deal(h, p.Threshold, u, p.Rand)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	if err = h.Broadcast(ctx, 1, &keygenBroadcast{Dealing: *d, Extra: p.Extra}); err != nil {
		return nil, protocol.NewError(self, 1, err)
	}

	// 2. send fᵢ(j) to every other party
	for _, name := range names {
		if name == self {
			continue
		}
		data, err := f.Evaluate(p.Parties[name].Scalar(group)).MarshalBinary()
		if err != nil {
			return nil, protocol.NewError(self, 2, err)
		}
		if err = h.Send(ctx, 2, name, &shareMessage{Share: data}); err != nil {
			return nil, protocol.NewError(self, 2, err)
		}
	}

	F := map[party.ID]*polynomial.Exponent{selfID: polynomial.NewPolynomialExponent(f)}
	extras := map[party.ID][]byte{selfID: p.Extra}
	broadcasts, err := round.ReceiveAll[keygenBroadcast](ctx, h, 1, names, true)
	if err != nil {
		return nil, protocol.NewError(self, 1, err)
	}
	for name, b := range broadcasts {
		Fj, err := b.Dealing.open(h, name, p.Threshold)
		if err != nil {
			return nil, protocol.Blame(self, 1, name, err)
		}
		F[p.Parties[name]] = Fj
		extras[p.Parties[name]] = b.Extra
	}

	// xᵢ = ∑ⱼ fⱼ(i)
	x := f.Evaluate(selfID.Scalar(group))
	shares, err := round.ReceiveAll[shareMessage](ctx, h, 2, names, false)
	if err != nil {
		return nil, protocol.NewError(self, 2, err)
	}
	for name, s := range shares {
		share, err := verifyShare(group, F[p.Parties[name]], selfID, s.Share)
		if err != nil {
			return nil, protocol.Blame(self, 2, name, err)
		}
		x.Add(share)
	}

	// 3. make sure everyone received the same commitments
	digest := transcript(h, F, extras, &hash.Uint64WithDomain{TheDomain: "Threshold", Value: uint64(p.Threshold)})
	if err = h.Broadcast(ctx, 3, &echoMessage{Digest: digest}); err != nil {
		return nil, protocol.NewError(self, 3, err)
	}
	echoes, err := round.ReceiveAll[echoMessage](ctx, h, 3, names, true)
	if err != nil {
		return nil, protocol.NewError(self, 3, err)
	}
	if culprit, err := checkEcho(digest, echoes); err != nil {
		return nil, protocol.Blame(self, 3, culprit, err)
	}

	h.Log.Debug().Int("threshold", p.Threshold).Int("parties", len(names)).Msg("keygen done")
	return &Result{
		ID:             selfID,
		BlindingScalar: u,
		SigningShare:   x,
		Commitments:    coefficients(F),
		Extras:         extras,
	}, nil
}
