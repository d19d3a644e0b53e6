package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/keystore"
	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
	"github.com/taurusgroup/multi-party-keystore/pkg/pool"
	"github.com/taurusgroup/multi-party-keystore/pkg/rendezvous"
	"github.com/taurusgroup/multi-party-keystore/pkg/session"
)

// Sessions holds the rounds every party takes part in, created upfront by the operator.
type Sessions struct {
	Keygen, Reshare, Sign rendezvous.SessionID
}

func Create(ctx context.Context, s *session.Service, a algo.Algorithm) (*Sessions, error) {
	var (
		out Sessions
		err error
	)
	out.Keygen, err = s.CreateSession(ctx, session.Config{
		Kind:      session.Keygen,
		Algorithm: a,
		Roster:    map[string]bool{"a": true, "b": true, "c": true, "d": true},
		Threshold: 2,
	})
	if err != nil {
		return nil, err
	}
	// d leaves, e joins
	out.Reshare, err = s.CreateSession(ctx, session.Config{
		Kind:          session.Reshare,
		Algorithm:     a,
		Roster:        map[string]bool{"a": true, "b": true, "c": true, "d": false},
		Threshold:     2,
		RosterNext:    map[string]bool{"b": true, "c": true, "e": true},
		ThresholdNext: 1,
	})
	if err != nil {
		return nil, err
	}
	out.Sign, err = s.CreateSession(ctx, session.Config{
		Kind:      session.Sign,
		Algorithm: a,
		Roster:    map[string]bool{"c": true, "e": true},
		Threshold: 1,
		Indices:   map[string]party.ID{"c": 3, "e": 5},
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func All(ctx context.Context, name string, s *session.Service, sessions *Sessions, digest []byte, log zerolog.Logger) error {
	// KEYGEN
	var ks *keystore.Keystore
	if name != "e" {
		var err error
		if ks, err = s.RunKeygen(ctx, sessions.Keygen, name); err != nil {
			return err
		}
		xpub, err := ks.ExtendedPublicKey()
		if err != nil {
			return err
		}
		log.Info().Str("party", name).Str("xpub", xpub).Msg("keygen done")
	}

	// RESHARE
	if name != "d" {
		next, err := s.RunReshare(ctx, sessions.Reshare, name, ks)
		if err != nil {
			return err
		}
		ks = next
	}
	if ks == nil {
		log.Info().Str("party", name).Msg("left the roster")
		return nil
	}

	// SIGN
	if name != "c" && name != "e" {
		return nil
	}
	sig, err := s.RunSign(ctx, sessions.Sign, name, ks, digest, "m/0/1")
	if err != nil {
		return err
	}
	log.Info().Str("party", name).Hex("r", sig.R).Hex("s", sig.S).Hex("pk", sig.PublicKey).Msg("signed")
	return nil
}

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	ctx := context.Background()
	digest := sha256.Sum256([]byte("hello"))
	names := []string{"a", "b", "c", "d", "e"}

	rv := rendezvous.NewMemory()
	defer rv.Close()
	pl := pool.NewPool(0)
	defer pl.TearDown()
	s := session.NewService(rv,
		session.WithLogger(log.Level(zerolog.WarnLevel)),
		session.WithPaillier(paillier.KeyGenWithPool(pl)),
	)

	var (
		mtx    sync.Mutex
		failed bool
	)
	for _, a := range algo.All() {
		log.Info().Stringer("algorithm", a).Msg("start")
		sessions, err := Create(ctx, s, a)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create sessions")
		}

		var wg sync.WaitGroup
		for _, name := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if err := All(ctx, name, s, sessions, digest[:], log.With().Stringer("algorithm", a).Logger()); err != nil {
					log.Error().Err(err).Str("party", name).Msg("failed")
					mtx.Lock()
					failed = true
					mtx.Unlock()
				}
			}(name)
		}
		wg.Wait()
		for _, sid := range []rendezvous.SessionID{sessions.Keygen, sessions.Reshare, sessions.Sign} {
			_ = rv.Release(ctx, sid)
		}
	}
	if failed {
		fmt.Fprintln(os.Stderr, "some parties failed")
		os.Exit(1)
	}
}
