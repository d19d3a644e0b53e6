package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/taurusgroup/multi-party-keystore/internal/round"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

var (
	// ErrInvalidRoster is returned when the roster of a session cannot be resolved into roles.
	ErrInvalidRoster = errors.New("session: invalid roster")
	// ErrInvalidConfig is returned for configurations that do not describe a round at all.
	ErrInvalidConfig = errors.New("session: invalid config")
)

// Kind is the type of round a session runs.
type Kind uint8

const (
	Keygen Kind = iota + 1
	Reshare
	Sign
)

func (k Kind) String() string {
	switch k {
	case Keygen:
		return "keygen"
	case Reshare:
		return "reshare"
	case Sign:
		return "sign"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Config is the immutable input of one round.
//
// Roster maps party names to whether they attend the round.
// For a reshare, RosterNext and ThresholdNext describe the membership after the round.
type Config struct {
	Kind          Kind            `cbor:"kind"`
	Algorithm     algo.Algorithm  `cbor:"algorithm"`
	Roster        map[string]bool `cbor:"roster"`
	Threshold     int             `cbor:"threshold"`
	RosterNext    map[string]bool `cbor:"roster_next,omitempty"`
	ThresholdNext int             `cbor:"threshold_next,omitempty"`
	// Indices pins the index of some parties.
	// The others get their 1-based position in the sorted roster,
	// and for a reshare, names only present in RosterNext are numbered after the ones of Roster.
	Indices map[string]party.ID `cbor:"indices,omitempty"`
}

// Roles is the result of resolving a Config.
// Only the fields matching the Kind of the round are set.
type Roles struct {
	Kind Kind
	// Participants of a keygen.
	Participants round.Parties
	// Providers hold a share of the key before a reshare.
	Providers round.Parties
	// Consumers hold a share of the key after a reshare.
	Consumers round.Parties
	// Exclusive lists the consumers which are not providers.
	Exclusive []string
	// Signers of a signing round.
	Signers round.Parties
}

// Units returns the sorted names of every party that runs a unit of the round.
func (r *Roles) Units() []string {
	switch r.Kind {
	case Keygen:
		return r.Participants.Names()
	case Reshare:
		all := make(round.Parties, len(r.Providers)+len(r.Exclusive))
		for name, id := range r.Providers {
			all[name] = id
		}
		for name, id := range r.Consumers {
			all[name] = id
		}
		return all.Names()
	case Sign:
		return r.Signers.Names()
	default:
		return nil
	}
}

// Has reports whether name runs a unit of the round.
func (r *Roles) Has(name string) bool {
	for _, other := range r.Units() {
		if other == name {
			return true
		}
	}
	return false
}

func attending(roster map[string]bool) []string {
	names := make([]string, 0, len(roster))
	for name, ok := range roster {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func sortedKeys(roster map[string]bool) []string {
	names := make([]string, 0, len(roster))
	for name := range roster {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the internal consistency of the config, without resolving indices.
func (c *Config) Validate() error {
	if err := c.Algorithm.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for name := range c.Roster {
		if name == "" {
			return fmt.Errorf("%w: empty party name", ErrInvalidRoster)
		}
	}
	present := attending(c.Roster)
	if len(present) == 0 {
		return fmt.Errorf("%w: no attending party", ErrInvalidRoster)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("%w: negative threshold %d", ErrInvalidConfig, c.Threshold)
	}

	switch c.Kind {
	case Keygen:
		if c.Threshold >= len(present) {
			return fmt.Errorf("%w: threshold %d needs more than %d parties", ErrInvalidRoster, c.Threshold, len(present))
		}
	case Sign:
		if len(present) <= c.Threshold {
			return fmt.Errorf("%w: %d signers cannot meet threshold %d", ErrInvalidRoster, len(present), c.Threshold)
		}
	case Reshare:
		if len(present) <= c.Threshold {
			return fmt.Errorf("%w: %d providers cannot meet threshold %d", ErrInvalidRoster, len(present), c.Threshold)
		}
		for name := range c.RosterNext {
			if name == "" {
				return fmt.Errorf("%w: empty party name", ErrInvalidRoster)
			}
		}
		next := attending(c.RosterNext)
		if len(next) == 0 {
			return fmt.Errorf("%w: no consumer", ErrInvalidRoster)
		}
		if c.ThresholdNext < 0 {
			return fmt.Errorf("%w: negative threshold %d", ErrInvalidConfig, c.ThresholdNext)
		}
		if c.ThresholdNext >= len(next) {
			return fmt.Errorf("%w: threshold %d needs more than %d consumers", ErrInvalidRoster, c.ThresholdNext, len(next))
		}
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidConfig, c.Kind)
	}
	return nil
}

// order returns every name known to the config, in index order.
func (c *Config) order() []string {
	names := sortedKeys(c.Roster)
	if c.Kind != Reshare {
		return names
	}
	for _, name := range sortedKeys(c.RosterNext) {
		if _, ok := c.Roster[name]; !ok {
			names = append(names, name)
		}
	}
	return names
}

func (c *Config) indices() (map[string]party.ID, error) {
	names := c.order()
	out := make(map[string]party.ID, len(names))
	for i, name := range names {
		out[name] = party.ID(i + 1)
	}
	for name, id := range c.Indices {
		if _, ok := out[name]; !ok {
			return nil, fmt.Errorf("%w: index pinned for unknown party %s", ErrInvalidRoster, name)
		}
		if !id.Valid() {
			return nil, fmt.Errorf("%w: party %s pinned to index 0", ErrInvalidRoster, name)
		}
		out[name] = id
	}
	return out, nil
}

func pick(indices map[string]party.ID, names []string) round.Parties {
	out := make(round.Parties, len(names))
	for _, name := range names {
		out[name] = indices[name]
	}
	return out
}

// Resolve validates the config and assigns roles and indices to the parties.
func (c *Config) Resolve() (*Roles, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	indices, err := c.indices()
	if err != nil {
		return nil, err
	}

	roles := &Roles{Kind: c.Kind}
	switch c.Kind {
	case Keygen:
		roles.Participants = pick(indices, attending(c.Roster))
		if err = roles.Participants.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
		}
	case Sign:
		roles.Signers = pick(indices, attending(c.Roster))
		if err = roles.Signers.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
		}
	case Reshare:
		roles.Providers = pick(indices, attending(c.Roster))
		roles.Consumers = pick(indices, attending(c.RosterNext))
		for _, name := range roles.Consumers.Names() {
			if _, ok := roles.Providers[name]; !ok {
				roles.Exclusive = append(roles.Exclusive, name)
			}
		}
		if err = roles.Providers.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
		}
		if err = roles.Consumers.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
		}
		for _, name := range roles.Exclusive {
			for _, provider := range roles.Providers.Names() {
				if roles.Providers[provider] == roles.Consumers[name] {
					return nil, fmt.Errorf("%w: consumer %s and provider %s share index %d",
						ErrInvalidRoster, name, provider, roles.Consumers[name])
				}
			}
		}
	}
	return roles, nil
}
