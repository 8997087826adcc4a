package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is the protocol state of a Session
type SessionState int

const (
	// StateUninitialized accepts nothing but initialize
	StateUninitialized SessionState = iota
	// StateReady is reached after initialize and is never left
	StateReady
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is one client's protocol conversation
type Session struct {
	id      string
	created time.Time

	mu              sync.Mutex
	state           SessionState
	protocolVersion string
	lastActive      time.Time
	streams         int

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession creates an uninitialized session with a random id
func NewSession() *Session {
	now := time.Now()
	return &Session{
		id:         uuid.NewString(),
		created:    now,
		lastActive: now,
		done:       make(chan struct{}),
	}
}

// ID returns the session identifier sent in the Mcp-Session-Id header
func (s *Session) ID() string {
	return s.id
}

// State returns the current protocol state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProtocolVersion returns the negotiated version, or "" before initialize
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// initialize moves the session to StateReady. It reports whether this call
// performed the transition.
func (s *Session) initialize(version string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateReady {
		return false
	}
	s.state = StateReady
	s.protocolVersion = version
	return true
}

// touch records client activity at now
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(now)
}

// openStream marks a stream as attached. The session cannot expire until
// the matching closeStream.
func (s *Session) openStream(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams++
	s.advance(now)
}

func (s *Session) closeStream(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams--
	s.advance(now)
}

// advance moves lastActive forward; s.mu must be held
func (s *Session) advance(now time.Time) {
	if now.After(s.lastActive) {
		s.lastActive = now
	}
}

// expired reports whether the session has had no activity and no open
// stream for at least ttl
func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams == 0 && now.Sub(s.lastActive) >= ttl
}

// Done is closed when the session is terminated
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// close terminates the session and reports whether this call did so
func (s *Session) close() bool {
	closed := false
	s.closeOnce.Do(func() {
		close(s.done)
		closed = true
	})
	return closed
}

// SessionStore tracks live sessions by id
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Add stores a session under its id
func (s *SessionStore) Add(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

// Get returns the session with the given id
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Remove deletes and returns the session with the given id
func (s *SessionStore) Remove(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	return session, ok
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Drain removes every session and returns them
func (s *SessionStore) Drain() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	return sessions
}

// Expire removes and returns the sessions idle for at least ttl at now
func (s *SessionStore) Expire(now time.Time, ttl time.Duration) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Session
	for id, session := range s.sessions {
		if session.expired(now, ttl) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	return expired
}
