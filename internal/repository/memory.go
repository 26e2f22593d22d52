package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/boardtycoon/tycoon-server-go/internal/model"
)

// MemoryStore keeps entities in process memory. It backs single-node
// deployments without a database and the test suites.
type MemoryStore struct {
	mu         sync.RWMutex
	games      map[string]*model.Game
	players    map[string]*model.Player
	properties map[string]*model.Property
	states     map[string]string
	chat       map[string][]*model.ChatMessage
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:      make(map[string]*model.Game),
		players:    make(map[string]*model.Player),
		properties: make(map[string]*model.Property),
		states:     make(map[string]string),
		chat:       make(map[string][]*model.ChatMessage),
	}
}

var _ Store = (*MemoryStore)(nil)

// FindGame returns a copy of the game with id.
func (s *MemoryStore) FindGame(_ context.Context, id string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

// ListGames returns all games ordered by creation time.
func (s *MemoryStore) ListGames(_ context.Context) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]*model.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g.Clone())
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].CreatedAt.Before(games[j].CreatedAt)
	})
	return games, nil
}

// FindPlayer returns the player with username in game gameID.
func (s *MemoryStore) FindPlayer(_ context.Context, gameID, username string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.players {
		if p.GameID == gameID && p.Username == username {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// FindPlayers returns the roster of gameID ordered by seat.
func (s *MemoryStore) FindPlayers(_ context.Context, gameID string) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var roster []*model.Player
	for _, p := range s.players {
		if p.GameID == gameID {
			roster = append(roster, p.Clone())
		}
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Seat < roster[j].Seat })
	return roster, nil
}

// FindProperties returns every property of gameID ordered by position.
func (s *MemoryStore) FindProperties(_ context.Context, gameID string) ([]*model.Property, error) {
	return s.filterProperties(func(p *model.Property) bool { return p.GameID == gameID }), nil
}

// FindPropertyByName returns the first property named name, by position.
func (s *MemoryStore) FindPropertyByName(_ context.Context, gameID, name string) (*model.Property, error) {
	props := s.filterProperties(func(p *model.Property) bool {
		return p.GameID == gameID && p.Name == name
	})
	if len(props) == 0 {
		return nil, ErrNotFound
	}
	return props[0], nil
}

// FindPropertyByPosition returns the property at a board position.
func (s *MemoryStore) FindPropertyByPosition(_ context.Context, gameID string, position int) (*model.Property, error) {
	props := s.filterProperties(func(p *model.Property) bool {
		return p.GameID == gameID && p.Position == position
	})
	if len(props) == 0 {
		return nil, ErrNotFound
	}
	return props[0], nil
}

// FindPropertiesByCategory returns the properties of a category.
func (s *MemoryStore) FindPropertiesByCategory(_ context.Context, gameID, category string) ([]*model.Property, error) {
	return s.filterProperties(func(p *model.Property) bool {
		return p.GameID == gameID && p.Category == category
	}), nil
}

// FindPropertiesByOwner returns the properties owned by playerID.
func (s *MemoryStore) FindPropertiesByOwner(_ context.Context, playerID string) ([]*model.Property, error) {
	return s.filterProperties(func(p *model.Property) bool {
		return p.OwnedBy(playerID)
	}), nil
}

func (s *MemoryStore) filterProperties(keep func(*model.Property) bool) []*model.Property {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Property
	for _, p := range s.properties {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Commit applies the changeset under the store lock.
func (s *MemoryStore) Commit(_ context.Context, cs *Changeset) error {
	if cs == nil || cs.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range cs.Games {
		s.games[g.ID] = g.Clone()
	}
	for _, p := range cs.Players {
		s.players[p.ID] = p.Clone()
	}
	for _, p := range cs.Properties {
		s.properties[p.ID] = p.Clone()
	}
	for _, id := range cs.DeletePlayers {
		delete(s.players, id)
		for _, prop := range s.properties {
			if prop.OwnerID == id {
				prop.OwnerID = ""
			}
		}
	}
	for _, id := range cs.DeleteGames {
		s.deleteGameLocked(id)
	}
	return nil
}

func (s *MemoryStore) deleteGameLocked(id string) {
	delete(s.games, id)
	delete(s.states, id)
	delete(s.chat, id)
	for pid, p := range s.players {
		if p.GameID == id {
			delete(s.players, pid)
		}
	}
	for pid, p := range s.properties {
		if p.GameID == id {
			delete(s.properties, pid)
		}
	}
}

// SaveGameState stores the client board state for a game.
func (s *MemoryStore) SaveGameState(_ context.Context, gameID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return ErrNotFound
	}
	s.states[gameID] = state
	return nil
}

// LoadGameState returns the saved client board state.
func (s *MemoryStore) LoadGameState(_ context.Context, gameID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[gameID]
	if !ok {
		return "", ErrNotFound
	}
	return state, nil
}

// SaveChatMessage appends a copy of m to its room.
func (s *MemoryStore) SaveChatMessage(_ context.Context, m *model.ChatMessage) error {
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown chat kind %q", m.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.GameID != "" {
		if _, ok := s.games[m.GameID]; !ok {
			return ErrNotFound
		}
	}
	s.chat[m.GameID] = append(s.chat[m.GameID], m.Clone())
	return nil
}

// FindChatMessages returns the tail of a room's history.
func (s *MemoryStore) FindChatMessages(_ context.Context, gameID string, limit int) ([]*model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.chat[gameID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]*model.ChatMessage, 0, len(history))
	for _, m := range history {
		out = append(out, m.Clone())
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() {}
