// Package repository is the durable entity store for games, players,
// properties and chat history.
package repository

import (
	"context"
	"errors"

	"github.com/boardtycoon/tycoon-server-go/internal/model"
)

// ErrNotFound is returned when a lookup matches no entity.
var ErrNotFound = errors.New("not found")

// Store is the system of record for game entities. Entities returned by
// finders are copies; changes become visible only through Commit.
type Store interface {
	FindGame(ctx context.Context, id string) (*model.Game, error)
	ListGames(ctx context.Context) ([]*model.Game, error)

	FindPlayer(ctx context.Context, gameID, username string) (*model.Player, error)
	// FindPlayers returns the roster ordered by seat.
	FindPlayers(ctx context.Context, gameID string) ([]*model.Player, error)

	FindProperties(ctx context.Context, gameID string) ([]*model.Property, error)
	FindPropertyByName(ctx context.Context, gameID, name string) (*model.Property, error)
	FindPropertyByPosition(ctx context.Context, gameID string, position int) (*model.Property, error)
	FindPropertiesByCategory(ctx context.Context, gameID, category string) ([]*model.Property, error)
	FindPropertiesByOwner(ctx context.Context, playerID string) ([]*model.Property, error)

	// Commit applies every change in the changeset atomically.
	Commit(ctx context.Context, cs *Changeset) error

	SaveGameState(ctx context.Context, gameID, state string) error
	// LoadGameState returns ErrNotFound when nothing was saved.
	LoadGameState(ctx context.Context, gameID string) (string, error)

	// SaveChatMessage appends m to its room. A game room must exist.
	SaveChatMessage(ctx context.Context, m *model.ChatMessage) error
	// FindChatMessages returns the latest limit messages of a room, oldest
	// first. The empty gameID is the lobby room.
	FindChatMessages(ctx context.Context, gameID string, limit int) ([]*model.ChatMessage, error)

	Close()
}

// Changeset collects writes to apply in one transaction. Saves are upserts.
// Deleting a game removes its players, properties, saved state and chat.
type Changeset struct {
	Games         []*model.Game
	Players       []*model.Player
	Properties    []*model.Property
	DeletePlayers []string
	DeleteGames   []string
}

// NewChangeset returns an empty changeset.
func NewChangeset() *Changeset {
	return &Changeset{}
}

// SaveGame queues an upsert of g.
func (cs *Changeset) SaveGame(g *model.Game) *Changeset {
	cs.Games = append(cs.Games, g)
	return cs
}

// SavePlayers queues upserts of players.
func (cs *Changeset) SavePlayers(players ...*model.Player) *Changeset {
	cs.Players = append(cs.Players, players...)
	return cs
}

// SaveProperties queues upserts of properties.
func (cs *Changeset) SaveProperties(props ...*model.Property) *Changeset {
	cs.Properties = append(cs.Properties, props...)
	return cs
}

// DeletePlayer queues removal of a player.
func (cs *Changeset) DeletePlayer(id string) *Changeset {
	cs.DeletePlayers = append(cs.DeletePlayers, id)
	return cs
}

// DeleteGame queues removal of a game and everything it owns.
func (cs *Changeset) DeleteGame(id string) *Changeset {
	cs.DeleteGames = append(cs.DeleteGames, id)
	return cs
}

// Empty reports whether the changeset holds no writes.
func (cs *Changeset) Empty() bool {
	return len(cs.Games) == 0 && len(cs.Players) == 0 && len(cs.Properties) == 0 &&
		len(cs.DeletePlayers) == 0 && len(cs.DeleteGames) == 0
}
