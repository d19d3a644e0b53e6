// Package rendezvous defines the service through which the parties of a session exchange messages.
//
// The service is the only channel between protocol units: parties never share memory,
// they publish messages and wait for the messages of their peers.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownSession is returned for session identifiers the service never issued.
	ErrUnknownSession = errors.New("rendezvous: unknown session")
	// ErrDuplicateMessage is returned when a party publishes twice for the same recipient and round.
	ErrDuplicateMessage = errors.New("rendezvous: duplicate message")
	// ErrAborted is returned by Await once a party of the session has aborted.
	ErrAborted = errors.New("rendezvous: session aborted")
)

// SessionID is an opaque identifier for a session, issued by NewSession.
type SessionID string

// Message is a single payload from one party to another, or to everyone when To is empty.
type Message struct {
	From  string `cbor:"from"`
	To    string `cbor:"to,omitempty"`
	Round uint16 `cbor:"round"`
	Data  []byte `cbor:"data"`
}

// IsBroadcast returns true if the message is intended for all parties.
func (m *Message) IsBroadcast() bool {
	return m.To == ""
}

// AbortError describes why a session was aborted, and by whom.
type AbortError struct {
	From   string
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("rendezvous: session aborted by %s: %s", e.From, e.Reason)
}

func (e *AbortError) Unwrap() error {
	return ErrAborted
}

// Rendezvous is implemented by the message relay shared by all parties.
type Rendezvous interface {
	// NewSession stores the encoded configuration of a session and returns its identifier.
	NewSession(ctx context.Context, config []byte) (SessionID, error)
	// Config returns the configuration given to NewSession.
	Config(ctx context.Context, sid SessionID) ([]byte, error)
	// Publish makes msg available to its recipients.
	Publish(ctx context.Context, sid SessionID, msg Message) error
	// Await blocks until the message from `from` to `to` in the given round is available.
	// An empty `to` waits for a broadcast message.
	// It returns an *AbortError if any party aborted the session in the meantime.
	Await(ctx context.Context, sid SessionID, from, to string, round uint16) (Message, error)
	// Abort notifies every party waiting in the session that `from` failed.
	Abort(ctx context.Context, sid SessionID, from, reason string) error
	// Release forgets the session. Parties still waiting in it fail, later calls return ErrUnknownSession.
	Release(ctx context.Context, sid SessionID) error
}
