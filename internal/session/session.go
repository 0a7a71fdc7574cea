// Package session tracks the login lifecycle of the front end:
// LoggedOut -> LoggingIn -> LoggedIn -> LoggedOut.
package session

import (
	"errors"
	"strings"
	"sync"

	"medsales/m/domain"
)

// State is a login lifecycle state.
type State int

const (
	LoggedOut State = iota
	LoggingIn
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "LoggedOut"
	case LoggingIn:
		return "LoggingIn"
	case LoggedIn:
		return "LoggedIn"
	default:
		return "Unknown"
	}
}

// ErrLoginInProgress is returned by Begin while a login attempt is pending.
var ErrLoginInProgress = errors.New("login already in progress")

// ErrAlreadyLoggedIn is returned by Begin when a session is active.
var ErrAlreadyLoggedIn = errors.New("already logged in")

// ErrBadTransition is returned when an event does not apply to the current state.
var ErrBadTransition = errors.New("invalid session transition")

// Reason says why a session ended.
type Reason int

const (
	ReasonLogout Reason = iota
	ReasonInvalidated
)

// Session holds role and session id in memory only. The zero value is a
// usable LoggedOut session.
type Session struct {
	mu        sync.Mutex
	state     State
	role      string
	id        string
	listeners []func(Reason)
}

// New returns a LoggedOut session.
func New() *Session {
	return &Session{}
}

// OnLogout registers fn to run whenever the session returns to LoggedOut
// from LoggedIn.
func (s *Session) OnLogout(fn func(Reason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Begin moves LoggedOut to LoggingIn. While LoggingIn, further attempts are
// refused, which is what keeps the submit control disabled.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case LoggingIn:
		return ErrLoginInProgress
	case LoggedIn:
		return ErrAlreadyLoggedIn
	}
	s.state = LoggingIn
	return nil
}

// Succeed completes a login attempt.
func (s *Session) Succeed(role, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != LoggingIn {
		return ErrBadTransition
	}
	s.state = LoggedIn
	s.role = role
	s.id = sessionID
	return nil
}

// Fail aborts a login attempt.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == LoggingIn {
		s.state = LoggedOut
	}
}

// Logout ends the session at the user's request.
func (s *Session) Logout() {
	s.end(ReasonLogout)
}

// Invalidate ends the session because the backend rejected it.
func (s *Session) Invalidate() {
	s.end(ReasonInvalidated)
}

func (s *Session) end(reason Reason) {
	s.mu.Lock()
	if s.state != LoggedIn {
		s.mu.Unlock()
		return
	}
	s.state = LoggedOut
	s.role = ""
	s.id = ""
	listeners := append([]func(Reason){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the role and session id; both are empty unless LoggedIn.
func (s *Session) Current() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Session{Role: s.role, SessionID: s.id}
}

// ID returns the held session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// CanManageInventory gates the inventory management screens.
func (s *Session) CanManageInventory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == LoggedIn && CanManageInventory(s.role)
}

// CanManageInventory reports whether role may change the inventory.
func CanManageInventory(role string) bool {
	return strings.EqualFold(role, domain.RoleAdmin) || strings.EqualFold(role, domain.RoleManager)
}
