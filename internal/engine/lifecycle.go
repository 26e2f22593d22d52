package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateGame creates a game with username as its first and current player.
// maxPlayers of zero selects the configured maximum.
func (e *Engine) CreateGame(ctx context.Context, username, gameName string, maxPlayers int) (*GameView, error) {
	username = strings.TrimSpace(username)
	gameName = strings.TrimSpace(gameName)
	if username == "" {
		return nil, apperrors.InvalidArgument("username is required")
	}
	if gameName == "" {
		return nil, apperrors.InvalidArgument("game name is required")
	}
	if maxPlayers == 0 {
		maxPlayers = e.rules.MaxPlayers
	}
	if maxPlayers < e.rules.MinPlayers || maxPlayers > e.rules.MaxPlayers {
		return nil, apperrors.InvalidArgument("max players must be between %d and %d", e.rules.MinPlayers, e.rules.MaxPlayers)
	}

	game := &model.Game{
		ID:         uuid.NewString(),
		Name:       gameName,
		MaxPlayers: maxPlayers,
		CreatedAt:  e.clock.Now().UTC(),
		Spectators: []string{},
	}
	player := e.newPlayer(game.ID, username, 0)
	game.CurrentPlayerID = player.ID

	s := e.sessions.acquire(game.ID)
	defer s.mu.Unlock()

	props := model.SeedProperties(game.ID)
	cs := repository.NewChangeset().SaveGame(game).SavePlayers(player).SaveProperties(props...)
	if err := e.commit(ctx, cs); err != nil {
		e.sessions.close(s)
		return nil, err
	}

	view := newGameView(game, []*model.Player{player}, props)

	e.logger.Info("game created",
		zap.String("game_id", game.ID),
		zap.String("game_name", game.Name),
		zap.String("creator", username),
		zap.Int("max_players", maxPlayers),
	)

	e.publisher.Publish(broadcast.GameCreatedTopic(game.ID), view)
	e.publishLobby(ctx)
	return &view, nil
}

func (e *Engine) newPlayer(gameID, username string, seat int) *model.Player {
	return &model.Player{
		ID:       uuid.NewString(),
		GameID:   gameID,
		UserID:   username,
		Username: username,
		Seat:     seat,
		Color:    model.ColorForSeat(seat),
		Money:    e.rules.StartingMoney,
	}
}

// JoinGame adds username to a waiting game. The game starts once the roster
// reaches its maximum size.
func (e *Engine) JoinGame(ctx context.Context, gameID, username string) (*GameView, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.InvalidArgument("username is required")
	}

	var view GameView
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		if g.Started {
			return apperrors.InvalidAction("game %s has already started", g.Name)
		}

		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}
		if _, ok := model.FindByUsername(players, username); ok {
			return apperrors.InvalidAction("player %s already joined game %s", username, g.Name)
		}
		if len(players) >= g.MaxPlayers {
			return apperrors.InvalidAction("game %s is full", g.Name)
		}

		seat := 0
		for _, p := range players {
			if p.Seat >= seat {
				seat = p.Seat + 1
			}
		}
		player := e.newPlayer(g.ID, username, seat)
		players = append(players, player)

		cs := repository.NewChangeset().SavePlayers(player)
		if g.CurrentPlayerID == "" {
			g.CurrentPlayerID = player.ID
		}
		if len(players) == g.MaxPlayers {
			g.Started = true
		}
		cs.SaveGame(g)
		if err := e.commit(ctx, cs); err != nil {
			return err
		}

		view, err = e.view(ctx, g)
		if err != nil {
			return err
		}

		e.gameLogger(g.ID).Info("player joined",
			zap.String("username", username),
			zap.Int("seat", seat),
			zap.Int("players", len(players)),
		)

		e.publisher.Publish(broadcast.GameTopic(g.ID), view)
		if g.Started {
			e.gameLogger(g.ID).Info("game started")
			e.publisher.Publish(broadcast.GameStartedTopic(g.ID), view)
		}
		e.publishLobby(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// LeaveGame removes username from the game.
func (e *Engine) LeaveGame(ctx context.Context, gameID, username string) (*LeaveResult, error) {
	return e.removePlayer(ctx, gameID, username, "left")
}

// Surrender removes username from a running game.
func (e *Engine) Surrender(ctx context.Context, gameID, username string) (*LeaveResult, error) {
	return e.removePlayer(ctx, gameID, username, "surrendered")
}

// removePlayer drops a player, returns their properties to the bank and
// passes the turn on if it was theirs. The last player out deletes the game.
func (e *Engine) removePlayer(ctx context.Context, gameID, username, reason string) (*LeaveResult, error) {
	var result LeaveResult
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		player, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}
		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}

		log := e.gameLogger(g.ID).With(zap.String("username", username), zap.String("reason", reason))
		result.PlayerWhoLeft = username

		if len(players) <= 1 {
			if err := e.deleteLocked(ctx, s, g); err != nil {
				return err
			}
			log.Info("last player left, game removed")
			result.GameView = newGameView(g, nil, nil)
			result.GameRemoved = true
			return nil
		}

		owned, err := e.store.FindPropertiesByOwner(ctx, player.ID)
		if err != nil {
			return fmt.Errorf("load properties of %s: %w", username, err)
		}
		for _, p := range owned {
			releaseProperty(p)
		}

		if g.CurrentPlayerID == player.ID {
			idx := model.IndexOfPlayer(players, player.ID)
			g.CurrentPlayerID = players[(idx+1)%len(players)].ID
		}

		cs := repository.NewChangeset().
			SaveProperties(owned...).
			DeletePlayer(player.ID).
			SaveGame(g)
		if err := e.commit(ctx, cs); err != nil {
			return err
		}

		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}

		log.Info("player removed", zap.Int("released_properties", len(owned)))
		e.publisher.Publish(broadcast.GameTopic(g.ID), result)
		if !g.Started {
			e.publishLobby(ctx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// releaseProperty returns p to the bank in its unimproved state.
func releaseProperty(p *model.Property) {
	p.OwnerID = ""
	p.Offices = 0
	p.Mortgaged = false
	p.BaseRent = p.OriginalBaseRent
}

// DeleteGame removes a game and everything in it.
func (e *Engine) DeleteGame(ctx context.Context, gameID string) error {
	return e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		if err := e.deleteLocked(ctx, s, g); err != nil {
			return err
		}
		e.logger.Info("game deleted", zap.String("game_id", g.ID))
		return nil
	})
}

func (e *Engine) deleteLocked(ctx context.Context, s *Session, g *model.Game) error {
	if err := e.commit(ctx, repository.NewChangeset().DeleteGame(g.ID)); err != nil {
		return err
	}
	s.cancelAuction()
	e.sessions.close(s)

	e.publisher.Publish(broadcast.TopicGameRemoved, map[string]any{
		"gameId":   g.ID,
		"gameName": g.Name,
	})
	e.publishLobby(ctx)
	return nil
}

// ListOpenGames returns the games that are waiting for players.
func (e *Engine) ListOpenGames(ctx context.Context) ([]GameSummary, error) {
	games, err := e.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	out := make([]GameSummary, 0, len(games))
	for _, g := range games {
		if g.Started {
			continue
		}
		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		if len(players) >= g.MaxPlayers {
			continue
		}
		out = append(out, GameSummary{
			GameID:      g.ID,
			GameName:    g.Name,
			PlayerCount: len(players),
			MaxPlayers:  g.MaxPlayers,
			Started:     g.Started,
			CreatedAt:   g.CreatedAt,
		})
	}
	return out, nil
}

func (e *Engine) publishLobby(ctx context.Context) {
	games, err := e.ListOpenGames(ctx)
	if err != nil {
		e.logger.Warn("failed to refresh lobby", zap.Error(err))
		return
	}
	e.publisher.Publish(broadcast.TopicGames, map[string]any{"games": games})
}

// GetGame returns the current snapshot of a game.
func (e *Engine) GetGame(ctx context.Context, gameID string) (*GameView, error) {
	var view GameView
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		var err error
		view, err = e.view(ctx, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// GameStatus reports whose turn it is.
func (e *Engine) GameStatus(ctx context.Context, gameID string) (*GameStatus, error) {
	var status GameStatus
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}
		status = GameStatus{
			GameID:          g.ID,
			GameName:        g.Name,
			Started:         g.Started,
			PlayerCount:     len(players),
			MaxPlayers:      g.MaxPlayers,
			CurrentPlayerID: g.CurrentPlayerID,
			AuctionActive:   s.auction != nil,
		}
		if idx := model.IndexOfPlayer(players, g.CurrentPlayerID); idx >= 0 {
			status.CurrentPlayer = players[idx].Username
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// AddSpectator lets username watch a game and sends them its saved board
// state.
func (e *Engine) AddSpectator(ctx context.Context, gameID, username string) (*WatchView, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.InvalidArgument("username is required")
	}

	var result WatchView
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		if _, err := e.store.FindPlayer(ctx, g.ID, username); err == nil {
			return apperrors.InvalidAction("player %s cannot spectate their own game", username)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load player %s: %w", username, err)
		}

		if !g.HasSpectator(username) {
			g.Spectators = append(g.Spectators, username)
			if err := e.commit(ctx, repository.NewChangeset().SaveGame(g)); err != nil {
				return err
			}
		}

		state, err := e.store.LoadGameState(ctx, g.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load game state %s: %w", g.ID, err)
		}

		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}
		result.Spectator = username
		result.State = state

		e.gameLogger(g.ID).Info("spectator added", zap.String("username", username))
		e.publisher.Publish(broadcast.GameWatchTopic(g.ID), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PropertyOwner reports who owns the square at position.
func (e *Engine) PropertyOwner(ctx context.Context, gameID string, position int) (*PropertyOwnerView, error) {
	if position < 0 || position >= model.BoardSize {
		return nil, apperrors.InvalidArgument("position %d is off the board", position)
	}

	var out PropertyOwnerView
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		prop, err := e.findPropertyAt(ctx, g.ID, position)
		if err != nil {
			return err
		}
		if prop == nil {
			return apperrors.PropertyNotFound(fmt.Sprintf("position %d", position))
		}

		out = PropertyOwnerView{GameID: g.ID, Position: position, Name: prop.Name, Owned: prop.Owned()}
		if prop.Owned() {
			players, err := e.roster(ctx, g.ID)
			if err != nil {
				return err
			}
			if idx := model.IndexOfPlayer(players, prop.OwnerID); idx >= 0 {
				out.Owner = players[idx].Username
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveGameState stores the client's opaque board state for a game.
func (e *Engine) SaveGameState(ctx context.Context, gameID, state string) error {
	return e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		if err := e.store.SaveGameState(ctx, g.ID, state); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.GameNotFound(g.ID)
			}
			return fmt.Errorf("save game state %s: %w", g.ID, err)
		}
		return nil
	})
}

// GameState returns the saved board state, or an empty string.
func (e *Engine) GameState(ctx context.Context, gameID string) (string, error) {
	var state string
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		var err error
		state, err = e.store.LoadGameState(ctx, g.ID)
		if errors.Is(err, repository.ErrNotFound) {
			state = ""
			return nil
		}
		if err != nil {
			return fmt.Errorf("load game state %s: %w", g.ID, err)
		}
		return nil
	})
	return state, err
}
