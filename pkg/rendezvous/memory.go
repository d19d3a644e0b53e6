package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("rendezvous: closed")

type slotKey struct {
	from, to string
	round    uint16
}

type slot struct {
	ready chan struct{}
	msg   Message
}

type memorySession struct {
	config []byte

	mtx   sync.Mutex
	slots map[slotKey]*slot

	aborted   chan struct{}
	abortOnce sync.Once
	abort     *AbortError
}

func (s *memorySession) slot(key slotKey) *slot {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{ready: make(chan struct{})}
		s.slots[key] = sl
	}
	return sl
}

// Memory is an in-process Rendezvous. It is safe for concurrent use.
type Memory struct {
	Log zerolog.Logger

	mtx      sync.RWMutex
	sessions map[SessionID]*memorySession
	closed   bool
}

var _ Rendezvous = (*Memory)(nil)

// NewMemory returns an empty in-process rendezvous, which does not log.
func NewMemory() *Memory {
	return &Memory{
		Log:      zerolog.Nop(),
		sessions: make(map[SessionID]*memorySession),
	}
}

func (m *Memory) session(sid SessionID) (*memorySession, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}
	return s, nil
}

func (m *Memory) NewSession(_ context.Context, config []byte) (SessionID, error) {
	sid := SessionID(uuid.NewString())

	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	m.sessions[sid] = &memorySession{
		config:  append([]byte(nil), config...),
		slots:   make(map[slotKey]*slot),
		aborted: make(chan struct{}),
	}
	m.Log.Debug().Str("session", string(sid)).Msg("session created")
	return sid, nil
}

func (m *Memory) Config(_ context.Context, sid SessionID) ([]byte, error) {
	s, err := m.session(sid)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), s.config...), nil
}

func (m *Memory) Publish(_ context.Context, sid SessionID, msg Message) error {
	s, err := m.session(sid)
	if err != nil {
		return err
	}
	sl := s.slot(slotKey{from: msg.From, to: msg.To, round: msg.Round})

	s.mtx.Lock()
	defer s.mtx.Unlock()
	select {
	case <-sl.ready:
		return fmt.Errorf("%w: from %s to %q in round %d", ErrDuplicateMessage, msg.From, msg.To, msg.Round)
	default:
	}
	sl.msg = Message{
		From:  msg.From,
		To:    msg.To,
		Round: msg.Round,
		Data:  append([]byte(nil), msg.Data...),
	}
	close(sl.ready)

	m.Log.Debug().
		Str("session", string(sid)).
		Str("from", msg.From).
		Str("to", msg.To).
		Uint16("round", msg.Round).
		Int("size", len(msg.Data)).
		Msg("message published")
	return nil
}

func (m *Memory) Await(ctx context.Context, sid SessionID, from, to string, round uint16) (Message, error) {
	s, err := m.session(sid)
	if err != nil {
		return Message{}, err
	}
	sl := s.slot(slotKey{from: from, to: to, round: round})

	// a message that is already there is delivered, even if the session was aborted since
	select {
	case <-sl.ready:
		return sl.msg, nil
	default:
	}

	select {
	case <-sl.ready:
		return sl.msg, nil
	case <-s.aborted:
		return Message{}, s.abort
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (m *Memory) Abort(_ context.Context, sid SessionID, from, reason string) error {
	s, err := m.session(sid)
	if err != nil {
		return err
	}
	s.abortOnce.Do(func() {
		s.abort = &AbortError{From: from, Reason: reason}
		close(s.aborted)
		m.Log.Debug().Str("session", string(sid)).Str("from", from).Str("reason", reason).Msg("session aborted")
	})
	return nil
}

func (m *Memory) Release(_ context.Context, sid SessionID) error {
	m.mtx.Lock()
	if m.closed {
		m.mtx.Unlock()
		return ErrClosed
	}
	s, ok := m.sessions[sid]
	delete(m.sessions, sid)
	m.mtx.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sid)
	}

	s.abortOnce.Do(func() {
		s.abort = &AbortError{Reason: "session released"}
		close(s.aborted)
	})
	m.Log.Debug().Str("session", string(sid)).Msg("session released")
	return nil
}

// Sessions returns the number of sessions currently held.
func (m *Memory) Sessions() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.sessions)
}

// Ping reports whether the service accepts requests.
func (m *Memory) Ping(context.Context) error {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all sessions. Parties blocked in Await are not woken up, their context should be cancelled.
func (m *Memory) Close() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.closed = true
	m.sessions = nil
	return nil
}
