// Package engine runs game sessions: turn order, movement and rent,
// the property economy, timed auctions and trade contracts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/benbjohnson/clock"
	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/config"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"go.uber.org/zap"
)

// Engine executes game commands against the store and publishes the
// resulting state. It is safe for concurrent use; commands for one game are
// serialized through that game's Session.
type Engine struct {
	store     repository.Store
	publisher broadcast.Publisher
	rules     config.GameConfig
	logger    *zap.Logger
	clock     clock.Clock
	roll      func() int
	sessions  *Registry
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock sets the clock driving auction countdowns.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithDie sets the casino die. roll must return a value in 1..6.
func WithDie(roll func() int) Option {
	return func(e *Engine) { e.roll = roll }
}

// New creates an engine.
func New(store repository.Store, publisher broadcast.Publisher, rules config.GameConfig, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		publisher: publisher,
		rules:     rules,
		logger:    logger,
		clock:     clock.New(),
		roll:      func() int { return rand.IntN(6) + 1 },
		sessions:  NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sessions exposes the live session registry.
func (e *Engine) Sessions() *Registry {
	return e.sessions
}

// Close cancels pending auction countdowns.
func (e *Engine) Close() {
	e.sessions.CloseAll()
}

// withGame runs fn with the game's session locked and the game loaded.
func (e *Engine) withGame(ctx context.Context, gameID string, fn func(s *Session, g *model.Game) error) error {
	if gameID == "" {
		return apperrors.InvalidArgument("gameId is required")
	}

	s := e.sessions.acquire(gameID)
	defer s.mu.Unlock()

	g, err := e.store.FindGame(ctx, gameID)
	if errors.Is(err, repository.ErrNotFound) {
		s.cancelAuction()
		e.sessions.close(s)
		return apperrors.GameNotFound(gameID)
	}
	if err != nil {
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	return fn(s, g)
}

func (e *Engine) findPlayer(ctx context.Context, gameID, username string) (*model.Player, error) {
	if username == "" {
		return nil, apperrors.InvalidArgument("username is required")
	}
	p, err := e.store.FindPlayer(ctx, gameID, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.PlayerNotFound(username)
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", username, err)
	}
	return p, nil
}

func (e *Engine) findPropertyByName(ctx context.Context, gameID, name string) (*model.Property, error) {
	if name == "" {
		return nil, apperrors.InvalidArgument("property name is required")
	}
	p, err := e.store.FindPropertyByName(ctx, gameID, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.PropertyNotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("load property %s: %w", name, err)
	}
	return p, nil
}

// findPropertyAt returns the property on a square, or nil if there is none.
func (e *Engine) findPropertyAt(ctx context.Context, gameID string, position int) (*model.Property, error) {
	p, err := e.store.FindPropertyByPosition(ctx, gameID, position)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load property at %d: %w", position, err)
	}
	return p, nil
}

func (e *Engine) roster(ctx context.Context, gameID string) ([]*model.Player, error) {
	players, err := e.store.FindPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load roster %s: %w", gameID, err)
	}
	return players, nil
}

func (e *Engine) commit(ctx context.Context, cs *repository.Changeset) error {
	if err := e.store.Commit(ctx, cs); err != nil {
		return fmt.Errorf("persist changes: %w", err)
	}
	return nil
}

func (e *Engine) gameLogger(gameID string) *zap.Logger {
	return e.logger.With(zap.String("game_id", gameID))
}
