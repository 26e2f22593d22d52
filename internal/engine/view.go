package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/boardtycoon/tycoon-server-go/internal/model"
)

// GameView is the snapshot sent to clients after every state change. Command
// results embed it and add the fields describing what happened.
type GameView struct {
	GameID          string             `json:"gameId"`
	GameName        string             `json:"gameName"`
	Started         bool               `json:"started"`
	MaxPlayers      int                `json:"maxPlayers"`
	CurrentPlayerID string             `json:"currentPlayerId,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	Spectators      []string           `json:"spectators"`
	Players         []model.PlayerView `json:"players"`
}

// PlayerByName returns the roster entry for username.
func (v *GameView) PlayerByName(username string) (model.PlayerView, bool) {
	for _, p := range v.Players {
		if p.Username == username {
			return p, true
		}
	}
	return model.PlayerView{}, false
}

func newGameView(g *model.Game, players []*model.Player, props []*model.Property) GameView {
	spectators := append([]string{}, g.Spectators...)
	return GameView{
		GameID:          g.ID,
		GameName:        g.Name,
		Started:         g.Started,
		MaxPlayers:      g.MaxPlayers,
		CurrentPlayerID: g.CurrentPlayerID,
		CreatedAt:       g.CreatedAt,
		Spectators:      spectators,
		Players:         model.Roster(players, props),
	}
}

// view loads the current roster and properties of g.
func (e *Engine) view(ctx context.Context, g *model.Game) (GameView, error) {
	players, err := e.roster(ctx, g.ID)
	if err != nil {
		return GameView{}, err
	}
	props, err := e.store.FindProperties(ctx, g.ID)
	if err != nil {
		return GameView{}, fmt.Errorf("load properties %s: %w", g.ID, err)
	}
	return newGameView(g, players, props), nil
}

// GameSummary is a lobby entry.
type GameSummary struct {
	GameID      string    `json:"gameId"`
	GameName    string    `json:"gameName"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	Started     bool      `json:"started"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GameStatus describes whose turn it is and whether an auction is open.
type GameStatus struct {
	GameID          string `json:"gameId"`
	GameName        string `json:"gameName"`
	Started         bool   `json:"started"`
	PlayerCount     int    `json:"playerCount"`
	MaxPlayers      int    `json:"maxPlayers"`
	CurrentPlayerID string `json:"currentPlayerId,omitempty"`
	CurrentPlayer   string `json:"currentPlayer,omitempty"`
	AuctionActive   bool   `json:"auctionActive"`
}

// LeaveResult reports a player leaving or surrendering.
type LeaveResult struct {
	GameView
	PlayerWhoLeft string `json:"playerWhoLeft"`
	GameRemoved   bool   `json:"gameRemoved"`
}

// WatchView is sent to spectators.
type WatchView struct {
	GameView
	Spectator string `json:"spectator"`
	State     string `json:"state,omitempty"`
}

// PropertyOwnerView answers who owns a square.
type PropertyOwnerView struct {
	GameID   string `json:"gameId"`
	Position int    `json:"position"`
	Name     string `json:"name"`
	Owned    bool   `json:"owned"`
	Owner    string `json:"owner,omitempty"`
}

// LandedProperty is the rent obligation raised by a final move.
type LandedProperty struct {
	Position      int    `json:"position"`
	Name          string `json:"name"`
	Owner         string `json:"owner"`
	NeedToPayRent bool   `json:"needToPayRent"`
	Rent          int    `json:"rent"`
}

// MoveResult is the outcome of MovePlayer.
type MoveResult struct {
	GameView
	Username       string          `json:"username"`
	NewPosition    int             `json:"newPosition"`
	PassedGo       bool            `json:"passedGo"`
	LandedProperty *LandedProperty `json:"landedProperty"`
}

// FieldResult is the outcome of LandOnField.
type FieldResult struct {
	GameView
	Username    string `json:"username"`
	Field       string `json:"field"`
	Relocated   bool   `json:"relocated"`
	NewPosition int    `json:"newPosition"`
}

// PaymentResult reports money changing hands.
type PaymentResult struct {
	GameView
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Amount   int    `json:"amount"`
	Property string `json:"property,omitempty"`
}

// CasinoResult reports a casino round.
type CasinoResult struct {
	GameView
	Username     string `json:"username"`
	Bet          int    `json:"bet"`
	RandomNumber int    `json:"randomNumber"`
	IsWinner     bool   `json:"isWinner"`
	Multiplier   int    `json:"multiplier"`
}

// PropertyResult reports a change to one property.
type PropertyResult struct {
	GameView
	Action   string             `json:"action"`
	Username string             `json:"username"`
	Property model.PropertyView `json:"property"`
}
