package round

import (
	"fmt"
	"sort"

	"github.com/taurusgroup/multi-party-keystore/pkg/party"
)

// Parties maps the names of the parties of a protocol execution to their index.
type Parties map[string]party.ID

// Names returns the sorted names.
func (p Parties) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDs returns the sorted indices.
func (p Parties) IDs() party.IDSlice {
	ids := make([]party.ID, 0, len(p))
	for _, id := range p {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}

// Validate checks that indices are non-zero and distinct.
func (p Parties) Validate() error {
	seen := make(map[party.ID]string, len(p))
	for _, name := range p.Names() {
		id := p[name]
		if !id.Valid() {
			return fmt.Errorf("round: party %s has index 0", name)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("round: parties %s and %s share index %d", other, name, id)
		}
		seen[id] = name
	}
	return nil
}
