// Package model holds the persisted game records. Relationships are kept as
// id fields (player.GameID, property.OwnerID) instead of object references.
package model

import (
	"time"
)

// BoardSize is the number of squares on the board.
const BoardSize = 40

// Game is a running or waiting game.
type Game struct {
	ID              string
	Name            string
	Started         bool
	MaxPlayers      int
	CurrentPlayerID string
	CreatedAt       time.Time
	Spectators      []string
}

// Clone returns a deep copy of the game.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Spectators = append([]string(nil), g.Spectators...)
	return &c
}

// HasSpectator reports whether user is watching the game.
func (g *Game) HasSpectator(user string) bool {
	for _, s := range g.Spectators {
		if s == user {
			return true
		}
	}
	return false
}

// Coords are the player's token coordinates on the client board.
type Coords struct {
	X float64
	Y float64
}

// Player is a seat in a game.
type Player struct {
	ID       string
	GameID   string
	UserID   string
	Username string
	Seat     int
	Color    string
	Position int
	Coords   Coords
	Money    int
}

// Clone returns a copy of the player.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Property is one board square of a game.
type Property struct {
	ID               string
	GameID           string
	Name             string
	Position         int
	Category         string
	Cost             int
	BaseRent         int
	OriginalBaseRent int
	Offices          int
	OwnerID          string
	Mortgaged        bool
	MortgageValue    int
}

// Clone returns a copy of the property.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Owned reports whether a player owns the property.
func (p *Property) Owned() bool {
	return p.OwnerID != ""
}

// OwnedBy reports whether playerID owns the property.
func (p *Property) OwnedBy(playerID string) bool {
	return playerID != "" && p.OwnerID == playerID
}

// Purchasable reports whether the square can ever be owned.
func (p *Property) Purchasable() bool {
	return p.Cost > 0
}

// IndexOfPlayer returns the roster index of playerID, or -1.
func IndexOfPlayer(roster []*Player, playerID string) int {
	for i, p := range roster {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// FindByUsername returns the roster entry for username.
func FindByUsername(roster []*Player, username string) (*Player, bool) {
	for _, p := range roster {
		if p.Username == username {
			return p, true
		}
	}
	return nil, false
}
