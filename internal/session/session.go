package session

import (
	"fmt"
	"strings"
	"sync"
)

// Session holds the acting wallet for an MCP session. Tools fall back to it
// when a call does not name an actor.
type Session struct {
	mu    sync.Mutex
	actor string
}

// New creates a new session with no actor bound.
func New() *Session {
	return &Session{}
}

// SetActor binds wallet as the current actor. The id is opaque and is only
// recorded, never checked.
func (s *Session) SetActor(wallet string) error {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return fmt.Errorf("wallet is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = wallet
	return nil
}

// Actor returns the bound actor, or ok=false if none is set.
func (s *Session) Actor() (wallet string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor, s.actor != ""
}

// Resolve returns explicit when given, else the bound actor.
func (s *Session) Resolve(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	wallet, ok := s.Actor()
	if !ok {
		return "", fmt.Errorf("no actor: pass actor or call set_actor first")
	}
	return wallet, nil
}

// Clear unbinds the actor.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = ""
}
