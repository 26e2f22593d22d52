package engine

import (
	"sync"
)

// Session is the live, in-process state of one game. Its mutex serializes
// every mutation of the game, including timer-driven auction resolution.
type Session struct {
	mu      sync.Mutex
	gameID  string
	auction *auction
	// auctionSeq numbers countdowns so a stale timer can recognize itself.
	auctionSeq uint64
	closed     bool
}

// AuctionActive reports whether an auction is open for the game.
func (s *Session) AuctionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auction != nil
}

// Registry maps game ids to live sessions. Presence of a session's auction
// is the single source of truth for whether an auction is running.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for gameID if one is live.
func (r *Registry) Get(gameID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[gameID]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ActiveAuctions counts sessions with an open auction.
func (r *Registry) ActiveAuctions() int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	n := 0
	for _, s := range sessions {
		if s.AuctionActive() {
			n++
		}
	}
	return n
}

func (r *Registry) getOrCreate(gameID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[gameID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[gameID]; ok {
		return s
	}
	s = &Session{gameID: gameID}
	r.sessions[gameID] = s
	return s
}

// acquire returns the locked session for gameID. A session closed while the
// caller waited for its lock is skipped in favor of a fresh one.
func (r *Registry) acquire(gameID string) *Session {
	for {
		s := r.getOrCreate(gameID)
		s.mu.Lock()
		if !s.closed {
			return s
		}
		s.mu.Unlock()
	}
}

// close marks s closed and drops it from the registry. The caller holds s.mu.
func (r *Registry) close(s *Session) {
	s.closed = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.gameID]; ok && cur == s {
		delete(r.sessions, s.gameID)
	}
}

// CloseAll stops every pending auction countdown and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.cancelAuction()
		s.closed = true
		s.mu.Unlock()
	}
}
