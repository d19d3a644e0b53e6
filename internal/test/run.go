package test

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/rendezvous"
)

// Unit is the part of a protocol executed by a single party.
type Unit[T any] func(ctx context.Context, h *round.Helper) (T, error)

// Run executes every unit concurrently over a fresh in-memory session, and waits for all of them.
// A failing unit aborts the session, so that the others do not wait forever.
func Run[T any](protocolID string, group curve.Curve, units map[string]Unit[T]) (map[string]T, map[string]error, error) {
	ctx := context.Background()
	rv := rendezvous.NewMemory()
	sid, err := rv.NewSession(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	helpers := make(map[string]*round.Helper, len(units))
	for name := range units {
		h, err := round.NewHelper(round.Info{
			ProtocolID: protocolID,
			Session:    sid,
			Self:       name,
			Group:      group,
		}, rv, zerolog.Nop())
		if err != nil {
			return nil, nil, err
		}
		helpers[name] = h
	}

	var (
		wg      sync.WaitGroup
		mtx     sync.Mutex
		results = make(map[string]T, len(units))
		errs    = make(map[string]error, len(units))
	)
	for name, unit := range units {
		wg.Add(1)
		go func(name string, unit Unit[T]) {
			defer wg.Done()
			h := helpers[name]
			result, err := unit(ctx, h)
			if err != nil {
				h.Abort(ctx, err)
			}
			mtx.Lock()
			defer mtx.Unlock()
			results[name] = result
			errs[name] = err
		}(name, unit)
	}
	wg.Wait()
	return results, errs, nil
}
