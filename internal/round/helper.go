package round

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-keystore/internal/hash"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/rendezvous"
	"github.com/taurusgroup/multi-party-keystore/pkg/wire"
)

// Helper sends and receives the messages of one protocol unit through the rendezvous,
// and holds the hash state shared by all parties of the execution.
type Helper struct {
	info Info
	rv   rendezvous.Rendezvous

	// Log is enriched with the protocol and party of this unit.
	Log zerolog.Logger

	hash *hash.Hash
	mtx  sync.Mutex
}

// NewHelper creates a *Helper for the unit described by info.
// `auxInfo` is a variable list of objects which should be included in the session's hash state.
func NewHelper(info Info, rv rendezvous.Rendezvous, log zerolog.Logger, auxInfo ...hash.WriterToWithDomain) (*Helper, error) {
	if info.Self == "" {
		return nil, errors.New("round: empty party name")
	}
	if info.Group == nil {
		return nil, errors.New("round: missing group")
	}

	h := hash.New()
	if err := h.WriteAny(&hash.BytesWithDomain{
		TheDomain: "Session ID",
		Bytes:     []byte(info.Session),
	}); err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	if err := h.WriteAny(&hash.BytesWithDomain{
		TheDomain: "Protocol ID",
		Bytes:     []byte(info.ProtocolID),
	}); err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	if err := h.WriteAny(&hash.BytesWithDomain{
		TheDomain: "Group Name",
		Bytes:     []byte(info.Group.Name()),
	}); err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	for _, a := range auxInfo {
		if a == nil {
			continue
		}
		if err := h.WriteAny(a); err != nil {
			return nil, fmt.Errorf("round: %w", err)
		}
	}

	return &Helper{
		info: info,
		rv:   rv,
		Log:  log.With().Str("protocol", info.ProtocolID).Str("party", info.Self).Logger(),
		hash: h,
	}, nil
}

// Self is the name of the party running this unit.
func (h *Helper) Self() string { return h.info.Self }

// Group returns the curve used for this protocol execution.
func (h *Helper) Group() curve.Curve { return h.info.Group }

// ProtocolID is an identifier for this protocol.
func (h *Helper) ProtocolID() string { return h.info.ProtocolID }

// Hash returns copy of the hash function of this protocol execution.
func (h *Helper) Hash() *hash.Hash {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.hash.Clone()
}

// HashForParty returns a clone of the hash.Hash for this session, initialized with the given party name.
func (h *Helper) HashForParty(name string) *hash.Hash {
	cloned := h.Hash()
	_ = cloned.WriteAny(&hash.BytesWithDomain{
		TheDomain: "Party",
		Bytes:     []byte(name),
	})
	return cloned
}

func (h *Helper) publish(ctx context.Context, number Number, to string, content interface{}) error {
	data, err := wire.Marshal(content)
	if err != nil {
		return fmt.Errorf("round %d: marshal: %w", number, err)
	}
	return h.rv.Publish(ctx, h.info.Session, rendezvous.Message{
		From:  h.info.Self,
		To:    to,
		Round: uint16(number),
		Data:  data,
	})
}

// Broadcast publishes content to every party of the session.
func (h *Helper) Broadcast(ctx context.Context, number Number, content interface{}) error {
	return h.publish(ctx, number, "", content)
}

// Send publishes content for a single party.
func (h *Helper) Send(ctx context.Context, number Number, to string, content interface{}) error {
	if to == "" || to == h.info.Self {
		return fmt.Errorf("round %d: invalid recipient %q", number, to)
	}
	return h.publish(ctx, number, to, content)
}

func (h *Helper) receive(ctx context.Context, number Number, from, to string, content interface{}) error {
	msg, err := h.rv.Await(ctx, h.info.Session, from, to, uint16(number))
	if err != nil {
		if errors.Is(err, rendezvous.ErrAborted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &PeerError{From: from, Err: err}
	}
	if err = wire.Unmarshal(msg.Data, content); err != nil {
		return &PeerError{From: from, Err: fmt.Errorf("round %d: unmarshal: %w", number, err)}
	}
	return nil
}

// Receive waits for the message `from` sent to this party.
func (h *Helper) Receive(ctx context.Context, number Number, from string, content interface{}) error {
	return h.receive(ctx, number, from, h.info.Self, content)
}

// ReceiveBroadcast waits for the broadcast message of `from`.
func (h *Helper) ReceiveBroadcast(ctx context.Context, number Number, from string, content interface{}) error {
	return h.receive(ctx, number, from, "", content)
}

// ReceiveAll waits for the messages of every party in from, and returns them by sender.
// Messages are received in order, the first failure is returned.
func ReceiveAll[T any](ctx context.Context, h *Helper, number Number, from []string, broadcast bool) (map[string]*T, error) {
	out := make(map[string]*T, len(from))
	for _, name := range from {
		if name == h.info.Self {
			continue
		}
		content := new(T)
		var err error
		if broadcast {
			err = h.ReceiveBroadcast(ctx, number, name, content)
		} else {
			err = h.Receive(ctx, number, name, content)
		}
		if err != nil {
			return nil, err
		}
		out[name] = content
	}
	return out, nil
}

// Abort tells the other parties that this unit failed with err, so that they stop waiting.
func (h *Helper) Abort(ctx context.Context, err error) {
	if errors.Is(err, rendezvous.ErrAborted) {
		return
	}
	if abortErr := h.rv.Abort(ctx, h.info.Session, h.info.Self, err.Error()); abortErr != nil {
		h.Log.Warn().Err(abortErr).Msg("failed to abort session")
	}
}
