package protocol

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/multi-party-keystore/internal/round"
)

// Error is a custom error for protocols which contains information about the responsible round in which it occurred,
// and the party responsible.
type Error struct {
	// Party is the name of the party whose unit failed.
	Party string
	// RoundNumber where the error occurred
	RoundNumber round.Number
	// Culprit is empty if the identity of the misbehaving party cannot be known
	Culprit string
	// Err is the underlying error
	Err error
}

// NewError wraps err for the unit of party in the given round.
// If err was caused by a message from a peer, that peer is the culprit.
func NewError(party string, number round.Number, err error) *Error {
	e := &Error{
		Party:       party,
		RoundNumber: number,
		Err:         err,
	}
	var peerErr *round.PeerError
	if errors.As(err, &peerErr) {
		e.Culprit = peerErr.From
	}
	return e
}

// Blame is like NewError but names the culprit explicitly.
func Blame(party string, number round.Number, culprit string, err error) *Error {
	return &Error{
		Party:       party,
		RoundNumber: number,
		Culprit:     culprit,
		Err:         err,
	}
}

func (e *Error) Error() string {
	if e.Culprit == "" {
		return fmt.Sprintf("party %s: round %d: %s", e.Party, e.RoundNumber, e.Err)
	}
	return fmt.Sprintf("party %s: round %d: culprit %s: %s", e.Party, e.RoundNumber, e.Culprit, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
