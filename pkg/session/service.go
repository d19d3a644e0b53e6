// Package session resolves the roles of a round from its configuration,
// and runs the protocol unit of each party through a rendezvous service.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-keystore/internal/dkg"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/rendezvous"
	"github.com/taurusgroup/multi-party-keystore/pkg/wire"
	"github.com/taurusgroup/multi-party-keystore/protocols/elgamal"
	"github.com/taurusgroup/multi-party-keystore/protocols/schnorr"
)

// State is the lifecycle of a round.
type State uint8

const (
	Configured State = iota
	RolesResolved
	Executing
	Aggregated
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case RolesResolved:
		return "roles-resolved"
	case Executing:
		return "executing"
	case Aggregated:
		return "aggregated"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Service runs rounds on behalf of the parties of this process.
type Service struct {
	rv       rendezvous.Rendezvous
	log      zerolog.Logger
	rand     io.Reader
	paillier elgamal.KeyGenerator
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger, which defaults to zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithRand sets the source of randomness, which defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

// WithPaillier replaces the generator of Paillier keys used by ElGamal keygen and reshare.
func WithPaillier(gen elgamal.KeyGenerator) Option {
	return func(s *Service) { s.paillier = gen }
}

// NewService returns a Service exchanging messages through rv.
func NewService(rv rendezvous.Rendezvous, opts ...Option) *Service {
	s := &Service{
		rv:       rv,
		log:      zerolog.Nop(),
		rand:     rand.Reader,
		paillier: paillier.KeyGen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func transition(log zerolog.Logger, state State) {
	log.Info().Stringer("state", state).Msg("session state")
}

func protocolID(cfg *Config) string {
	return fmt.Sprintf("keystore/%s/%s", cfg.Kind, cfg.Algorithm)
}

// CreateSession validates cfg, resolves its roles and stores it at the rendezvous.
func (s *Service) CreateSession(ctx context.Context, cfg Config) (rendezvous.SessionID, error) {
	log := s.log.With().Stringer("kind", cfg.Kind).Stringer("algorithm", cfg.Algorithm).Logger()
	transition(log, Configured)
	if _, err := cfg.Resolve(); err != nil {
		log.Error().Err(err).Msg("failed to resolve roles")
		return "", err
	}
	transition(log, RolesResolved)

	data, err := wire.Marshal(&cfg)
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	sid, err := s.rv.NewSession(ctx, data)
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	log.Debug().Str("session", string(sid)).Msg("session created")
	return sid, nil
}

// load fetches the config of sid and checks that name runs a unit of a round of the given kind.
func (s *Service) load(ctx context.Context, sid rendezvous.SessionID, name string, kind Kind) (*Config, *Roles, error) {
	data, err := s.rv.Config(ctx, sid)
	if err != nil {
		return nil, nil, fmt.Errorf("session: %w", err)
	}
	cfg := new(Config)
	if err = wire.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("session: %w: %w", ErrInvalidConfig, err)
	}
	roles, err := cfg.Resolve()
	if err != nil {
		return nil, nil, err
	}
	if !roles.Has(name) {
		return nil, nil, fmt.Errorf("%w: %s has no role in session %s", ErrInvalidRoster, name, sid)
	}
	if cfg.Kind != kind {
		err = fmt.Errorf("%w: session runs a %s round, not %s", ErrInvalidConfig, cfg.Kind, kind)
		// the peers expect a unit from name
		if abortErr := s.rv.Abort(ctx, sid, name, err.Error()); abortErr != nil {
			s.log.Warn().Err(abortErr).Msg("failed to abort session")
		}
		return nil, nil, err
	}
	return cfg, roles, nil
}

// execute runs the unit of name, and aborts the session if it fails.
func execute[T any](ctx context.Context, s *Service, sid rendezvous.SessionID, name string, cfg *Config, unit func(h *round.Helper) (T, error)) (T, error) {
	var empty T
	h, err := round.NewHelper(round.Info{
		ProtocolID: protocolID(cfg),
		Session:    sid,
		Self:       name,
		Group:      cfg.Algorithm.Group(),
	}, s.rv, s.log.With().Str("session", string(sid)).Logger())
	if err != nil {
		return empty, fmt.Errorf("session: %w", err)
	}

	transition(h.Log, Executing)
	result, err := unit(h)
	if err != nil {
		if !errors.Is(err, rendezvous.ErrAborted) {
			h.Log.Error().Err(err).Msg("unit failed")
		}
		h.Abort(ctx, err)
		transition(h.Log, Failed)
		return empty, err
	}
	transition(h.Log, Complete)
	return result, nil
}

func expect(ks *keystore.Keystore, cfg *Config) error {
	if ks == nil {
		return fmt.Errorf("%w: missing keystore", ErrInvalidRoster)
	}
	if err := ks.Algorithm().Expect(cfg.Algorithm); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// RunKeygen runs the keygen unit of name in session sid.
func (s *Service) RunKeygen(ctx context.Context, sid rendezvous.SessionID, name string) (*keystore.Keystore, error) {
	cfg, roles, err := s.load(ctx, sid, name, Keygen)
	if err != nil {
		return nil, err
	}
	return execute(ctx, s, sid, name, cfg, func(h *round.Helper) (*keystore.Keystore, error) {
		p := dkg.KeygenParams{
			Parties:   roles.Participants,
			Threshold: cfg.Threshold,
			Rand:      s.rand,
		}
		if cfg.Algorithm.UsesPaillier() {
			return elgamal.Keygen(ctx, h, p, s.paillier)
		}
		return schnorr.Keygen(ctx, h, cfg.Algorithm, p)
	})
}

// RunReshare runs the reshare unit of name in session sid.
// Providers must pass their current keystore, exclusive consumers pass nil.
// Parties which are only providers get a nil keystore.
func (s *Service) RunReshare(ctx context.Context, sid rendezvous.SessionID, name string, old *keystore.Keystore) (*keystore.Keystore, error) {
	cfg, roles, err := s.load(ctx, sid, name, Reshare)
	if err != nil {
		return nil, err
	}
	return execute(ctx, s, sid, name, cfg, func(h *round.Helper) (*keystore.Keystore, error) {
		if _, provider := roles.Providers[name]; provider {
			if err := expect(old, cfg); err != nil {
				return nil, err
			}
			if old.Threshold() != cfg.Threshold {
				return nil, fmt.Errorf("%w: keystore of %s has threshold %d, session expects %d",
					ErrInvalidRoster, name, old.Threshold(), cfg.Threshold)
			}
		} else if old != nil {
			return nil, fmt.Errorf("%w: %s is not a provider but holds a keystore", ErrInvalidRoster, name)
		}
		p := dkg.ReshareParams{
			Providers:     roles.Providers.Names(),
			Consumers:     roles.Consumers,
			ThresholdNext: cfg.ThresholdNext,
			Keystore:      old,
			Rand:          s.rand,
		}
		if cfg.Algorithm.UsesPaillier() {
			return elgamal.Reshare(ctx, h, p, s.paillier)
		}
		return schnorr.Reshare(ctx, h, cfg.Algorithm, p)
	})
}

// RunSign runs the signing unit of name in session sid, using ks to sign digest
// under the key derived along path.
func (s *Service) RunSign(ctx context.Context, sid rendezvous.SessionID, name string, ks *keystore.Keystore, digest []byte, path string) (*wire.Signature, error) {
	cfg, roles, err := s.load(ctx, sid, name, Sign)
	if err != nil {
		return nil, err
	}
	return execute(ctx, s, sid, name, cfg, func(h *round.Helper) (*wire.Signature, error) {
		if err := expect(ks, cfg); err != nil {
			return nil, err
		}
		if ks.ID() != roles.Signers[name] {
			return nil, fmt.Errorf("%w: keystore of %s has index %d, session assigns %d",
				ErrInvalidRoster, name, ks.ID(), roles.Signers[name])
		}
		if cfg.Algorithm == algo.ElGamalSecp256k1 {
			sig, err := elgamal.Sign(ctx, h, elgamal.SignParams{
				Signers:  roles.Signers,
				Keystore: ks,
				Digest:   digest,
				Path:     path,
				Rand:     s.rand,
			})
			if err != nil {
				return nil, err
			}
			return wire.FromECDSA(sig)
		}
		sig, err := schnorr.Sign(ctx, h, schnorr.SignParams{
			Signers:  roles.Signers,
			Keystore: ks,
			Message:  digest,
			Path:     path,
			Rand:     s.rand,
		})
		if err != nil {
			return nil, err
		}
		return wire.FromSchnorr(sig)
	})
}
