package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/rendezvous"
	"github.com/taurusgroup/multi-party-keystore/pkg/wire"
	"golang.org/x/sync/errgroup"
)

// ErrConsistencyViolation is returned when the signers of a round do not all output the same signature.
var ErrConsistencyViolation = errors.New("session: signers disagree on the signature")

// join runs unit for every name concurrently, and waits for all of them.
// Each unit writes only its own slot of the returned slice.
func join[T any](names []string, unit func(name string) (T, error)) ([]T, error) {
	var (
		g       errgroup.Group
		results = make([]T, len(names))
		errs    = make([]error, len(names))
	)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i], errs[i] = unit(name)
			return errs[i]
		})
	}
	first := g.Wait()
	if first == nil {
		return results, nil
	}
	// an abort only echoes the failure of another unit
	if errors.Is(first, rendezvous.ErrAborted) {
		for _, err := range errs {
			if err != nil && !errors.Is(err, rendezvous.ErrAborted) {
				return nil, err
			}
		}
	}
	return nil, first
}

func (s *Service) start(ctx context.Context, cfg Config, kind Kind) (rendezvous.SessionID, *Roles, zerolog.Logger, error) {
	log := s.log
	if cfg.Kind != kind {
		return "", nil, log, fmt.Errorf("%w: expected a %s round, got %s", ErrInvalidConfig, kind, cfg.Kind)
	}
	sid, err := s.CreateSession(ctx, cfg)
	if err != nil {
		return "", nil, log, err
	}
	roles, err := cfg.Resolve()
	if err != nil {
		return "", nil, log, err
	}
	return sid, roles, log.With().Str("session", string(sid)).Logger(), nil
}

// release drops a session once all of its units have returned.
func (s *Service) release(ctx context.Context, sid rendezvous.SessionID, log zerolog.Logger) {
	if err := s.rv.Release(ctx, sid); err != nil {
		log.Warn().Err(err).Msg("failed to release session")
	}
}

// Keygen runs a keygen round for every participant in cfg, in this process.
func (s *Service) Keygen(ctx context.Context, cfg Config) (map[string]*keystore.Keystore, error) {
	sid, roles, log, err := s.start(ctx, cfg, Keygen)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, sid, log)
	names := roles.Units()
	results, err := join(names, func(name string) (*keystore.Keystore, error) {
		return s.RunKeygen(ctx, sid, name)
	})
	if err != nil {
		transition(log, Failed)
		return nil, err
	}
	transition(log, Aggregated)

	out := make(map[string]*keystore.Keystore, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	transition(log, Complete)
	return out, nil
}

// Reshare runs a reshare round for every provider and consumer in cfg, in this process.
// old holds the keystores of the providers.
// The keystores of the consumers are returned.
func (s *Service) Reshare(ctx context.Context, cfg Config, old map[string]*keystore.Keystore) (map[string]*keystore.Keystore, error) {
	sid, roles, log, err := s.start(ctx, cfg, Reshare)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, sid, log)
	names := roles.Units()
	results, err := join(names, func(name string) (*keystore.Keystore, error) {
		return s.RunReshare(ctx, sid, name, old[name])
	})
	if err != nil {
		transition(log, Failed)
		return nil, err
	}
	transition(log, Aggregated)

	out := make(map[string]*keystore.Keystore, len(roles.Consumers))
	for i, name := range names {
		if _, ok := roles.Consumers[name]; !ok {
			continue
		}
		if results[i] == nil {
			transition(log, Failed)
			return nil, fmt.Errorf("session: consumer %s produced no keystore", name)
		}
		out[name] = results[i]
	}
	transition(log, Complete)
	return out, nil
}

// signerIndices pins every attending signer without an explicit index to the index of its keystore.
func signerIndices(cfg Config, keystores map[string]*keystore.Keystore) map[string]party.ID {
	out := make(map[string]party.ID, len(cfg.Roster))
	for name, id := range cfg.Indices {
		out[name] = id
	}
	for name, ok := range cfg.Roster {
		if _, pinned := out[name]; pinned || !ok || keystores[name] == nil {
			continue
		}
		out[name] = keystores[name].ID()
	}
	return out
}

// Sign runs a signing round for every signer in cfg, in this process,
// and checks that they all produced the same signature.
// Signers keep the index of their keystore unless cfg.Indices pins another one.
func (s *Service) Sign(ctx context.Context, cfg Config, keystores map[string]*keystore.Keystore, digest []byte, path string) (*wire.Signature, error) {
	cfg.Indices = signerIndices(cfg, keystores)
	sid, roles, log, err := s.start(ctx, cfg, Sign)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, sid, log)
	names := roles.Units()
	results, err := join(names, func(name string) (*wire.Signature, error) {
		return s.RunSign(ctx, sid, name, keystores[name], digest, path)
	})
	if err != nil {
		transition(log, Failed)
		return nil, err
	}
	transition(log, Aggregated)

	if err = Consistent(names, results); err != nil {
		log.Error().Err(err).Msg("consistency check failed")
		transition(log, Failed)
		return nil, err
	}
	transition(log, Complete)
	return results[0], nil
}

// Consistent returns ErrConsistencyViolation, naming the divergent signers,
// unless every signature equals the one of the first signer.
func Consistent(names []string, signatures []*wire.Signature) error {
	if len(signatures) == 0 {
		return fmt.Errorf("%w: no signature", ErrConsistencyViolation)
	}
	var divergent []string
	for i := 1; i < len(signatures); i++ {
		if !signatures[0].Equal(signatures[i]) {
			divergent = append(divergent, names[i])
		}
	}
	if len(divergent) > 0 {
		return fmt.Errorf("%w: %s differ from %s", ErrConsistencyViolation, strings.Join(divergent, ", "), names[0])
	}
	return nil
}
