// Package chat runs the public lobby room and one room per game. Messages
// are stored in the entity store and fanned out on the room's topic.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxMessageLength caps a message in characters.
	MaxMessageLength = 500
	// DefaultHistory is the page size when none is requested.
	DefaultHistory = 50
	// MaxHistory caps a history page.
	MaxHistory = 200
)

// Message is a chat line as clients see it.
type Message struct {
	ID      string    `json:"id"`
	GameID  string    `json:"gameId,omitempty"`
	Type    string    `json:"type"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

func newMessage(m *model.ChatMessage) Message {
	return Message{
		ID:      m.ID,
		GameID:  m.GameID,
		Type:    string(m.Kind),
		Sender:  m.Sender,
		Content: m.Content,
		SentAt:  m.SentAt,
	}
}

// Topic returns the broadcast topic of a room. The empty gameID is the lobby.
func Topic(gameID string) string {
	if gameID == "" {
		return broadcast.TopicPublicChat
	}
	return broadcast.ChatTopic(gameID)
}

// Manager posts and reads chat messages.
type Manager struct {
	store     repository.Store
	publisher broadcast.Publisher
	logger    *zap.Logger
	clock     clock.Clock
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock sets the clock stamping messages.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// NewManager creates a chat manager.
func NewManager(store repository.Store, publisher broadcast.Publisher, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		publisher: publisher,
		logger:    logger,
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendMessage posts content from sender. In a game room the sender must be
// a player or a spectator of that game.
func (m *Manager) SendMessage(ctx context.Context, gameID, sender, content string) (*Message, error) {
	gameID = strings.TrimSpace(gameID)
	sender = strings.TrimSpace(sender)
	content = strings.TrimSpace(content)
	if sender == "" {
		return nil, apperrors.InvalidArgument("username is required")
	}
	if content == "" {
		return nil, apperrors.InvalidArgument("message is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, apperrors.InvalidArgument("message is longer than %d characters", MaxMessageLength)
	}

	if gameID != "" {
		if err := m.checkMember(ctx, gameID, sender); err != nil {
			return nil, err
		}
	}

	return m.post(ctx, gameID, sender, content, model.ChatKindChat)
}

// JoinRoom records that username joined the game's room.
func (m *Manager) JoinRoom(ctx context.Context, gameID, username string) error {
	_, err := m.post(ctx, gameID, username, username+" joined the game", model.ChatKindJoin)
	return err
}

// LeaveRoom records that username left the game's room.
func (m *Manager) LeaveRoom(ctx context.Context, gameID, username string) error {
	_, err := m.post(ctx, gameID, username, username+" left the game", model.ChatKindLeave)
	return err
}

// History returns up to limit recent messages of a room, oldest first.
// A limit of zero selects DefaultHistory.
func (m *Manager) History(ctx context.Context, gameID string, limit int) ([]Message, error) {
	gameID = strings.TrimSpace(gameID)
	switch {
	case limit < 0:
		return nil, apperrors.InvalidArgument("limit must not be negative")
	case limit == 0:
		limit = DefaultHistory
	case limit > MaxHistory:
		limit = MaxHistory
	}

	if gameID != "" {
		if _, err := m.findGame(ctx, gameID); err != nil {
			return nil, err
		}
	}

	stored, err := m.store.FindChatMessages(ctx, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	out := make([]Message, 0, len(stored))
	for _, msg := range stored {
		out = append(out, newMessage(msg))
	}
	return out, nil
}

func (m *Manager) post(ctx context.Context, gameID, sender, content string, kind model.ChatKind) (*Message, error) {
	record := &model.ChatMessage{
		ID:      uuid.NewString(),
		GameID:  gameID,
		Kind:    kind,
		Sender:  sender,
		Content: content,
		SentAt:  m.clock.Now().UTC(),
	}
	if err := m.store.SaveChatMessage(ctx, record); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.GameNotFound(gameID)
		}
		return nil, fmt.Errorf("save chat message: %w", err)
	}

	msg := newMessage(record)
	m.publisher.Publish(Topic(gameID), msg)

	m.logger.Debug("chat message posted",
		zap.String("game_id", gameID),
		zap.String("sender", sender),
		zap.String("type", msg.Type),
	)
	return &msg, nil
}

func (m *Manager) findGame(ctx context.Context, gameID string) (*model.Game, error) {
	g, err := m.store.FindGame(ctx, gameID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.GameNotFound(gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	return g, nil
}

func (m *Manager) checkMember(ctx context.Context, gameID, username string) error {
	g, err := m.findGame(ctx, gameID)
	if err != nil {
		return err
	}
	_, err = m.store.FindPlayer(ctx, gameID, username)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		if g.HasSpectator(username) {
			return nil
		}
		return apperrors.PlayerNotFound(username)
	default:
		return fmt.Errorf("load player %s: %w", username, err)
	}
}
