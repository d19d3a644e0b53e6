package round

import (
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"github.com/taurusgroup/multi-party-keystore/pkg/rendezvous"
)

// Info is the static information a unit needs to talk to its peers.
type Info struct {
	// ProtocolID is an identifier for this protocol
	ProtocolID string
	// Session is the rendezvous session of this execution.
	Session rendezvous.SessionID
	// Self is the name of the party running this unit.
	Self string
	// Group returns the group used for this protocol execution.
	Group curve.Curve
}
