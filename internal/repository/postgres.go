package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/jackc/pgx/v5"
)

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	db *DB
}

// NewPostgresStore creates a store backed by db.
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const gameColumns = `id, name, started, max_players, current_player_id, spectators, created_at`

const playerColumns = `id, game_id, user_id, username, seat, color, position, x, y, money`

const propertyColumns = `id, game_id, name, position, category, cost, base_rent,
	original_base_rent, offices, COALESCE(owner_id, ''), mortgaged, mortgage_value`

func scanGame(row pgx.CollectableRow) (*model.Game, error) {
	var g model.Game
	err := row.Scan(&g.ID, &g.Name, &g.Started, &g.MaxPlayers, &g.CurrentPlayerID, &g.Spectators, &g.CreatedAt)
	return &g, err
}

func scanPlayer(row pgx.CollectableRow) (*model.Player, error) {
	var p model.Player
	err := row.Scan(&p.ID, &p.GameID, &p.UserID, &p.Username, &p.Seat, &p.Color,
		&p.Position, &p.Coords.X, &p.Coords.Y, &p.Money)
	return &p, err
}

func scanProperty(row pgx.CollectableRow) (*model.Property, error) {
	var p model.Property
	err := row.Scan(&p.ID, &p.GameID, &p.Name, &p.Position, &p.Category, &p.Cost, &p.BaseRent,
		&p.OriginalBaseRent, &p.Offices, &p.OwnerID, &p.Mortgaged, &p.MortgageValue)
	return &p, err
}

const chatColumns = `id, COALESCE(game_id, ''), kind, sender, content, sent_at`

func scanChatMessage(row pgx.CollectableRow) (*model.ChatMessage, error) {
	var m model.ChatMessage
	err := row.Scan(&m.ID, &m.GameID, &m.Kind, &m.Sender, &m.Content, &m.SentAt)
	return &m, err
}

func queryOne[T any](ctx context.Context, s *PostgresStore, scan pgx.RowToFunc[T], sql string, args ...any) (T, error) {
	rows, err := s.db.pool.Query(ctx, sql, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := pgx.CollectOneRow(rows, scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

func queryAll[T any](ctx context.Context, s *PostgresStore, scan pgx.RowToFunc[T], sql string, args ...any) ([]T, error) {
	rows, err := s.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

// FindGame loads a game by id.
func (s *PostgresStore) FindGame(ctx context.Context, id string) (*model.Game, error) {
	return queryOne(ctx, s, scanGame, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
}

// ListGames loads every game ordered by creation time.
func (s *PostgresStore) ListGames(ctx context.Context) ([]*model.Game, error) {
	return queryAll(ctx, s, scanGame, `SELECT `+gameColumns+` FROM games ORDER BY created_at`)
}

// FindPlayer loads a player by username within a game.
func (s *PostgresStore) FindPlayer(ctx context.Context, gameID, username string) (*model.Player, error) {
	return queryOne(ctx, s, scanPlayer,
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 AND username = $2`, gameID, username)
}

// FindPlayers loads a game's roster ordered by seat.
func (s *PostgresStore) FindPlayers(ctx context.Context, gameID string) ([]*model.Player, error) {
	return queryAll(ctx, s, scanPlayer,
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 ORDER BY seat`, gameID)
}

// FindProperties loads every property of a game ordered by position.
func (s *PostgresStore) FindProperties(ctx context.Context, gameID string) ([]*model.Property, error) {
	return queryAll(ctx, s, scanProperty,
		`SELECT `+propertyColumns+` FROM properties WHERE game_id = $1 ORDER BY position`, gameID)
}

// FindPropertyByName loads the first property with name by position.
func (s *PostgresStore) FindPropertyByName(ctx context.Context, gameID, name string) (*model.Property, error) {
	return queryOne(ctx, s, scanProperty,
		`SELECT `+propertyColumns+` FROM properties WHERE game_id = $1 AND name = $2
		 ORDER BY position LIMIT 1`, gameID, name)
}

// FindPropertyByPosition loads the property on a board square.
func (s *PostgresStore) FindPropertyByPosition(ctx context.Context, gameID string, position int) (*model.Property, error) {
	return queryOne(ctx, s, scanProperty,
		`SELECT `+propertyColumns+` FROM properties WHERE game_id = $1 AND position = $2`, gameID, position)
}

// FindPropertiesByCategory loads a category's properties.
func (s *PostgresStore) FindPropertiesByCategory(ctx context.Context, gameID, category string) ([]*model.Property, error) {
	return queryAll(ctx, s, scanProperty,
		`SELECT `+propertyColumns+` FROM properties WHERE game_id = $1 AND category = $2
		 ORDER BY position`, gameID, category)
}

// FindPropertiesByOwner loads the properties owned by a player.
func (s *PostgresStore) FindPropertiesByOwner(ctx context.Context, playerID string) ([]*model.Property, error) {
	return queryAll(ctx, s, scanProperty,
		`SELECT `+propertyColumns+` FROM properties WHERE owner_id = $1 ORDER BY position`, playerID)
}

// Commit writes the changeset in a single transaction.
func (s *PostgresStore) Commit(ctx context.Context, cs *Changeset) error {
	if cs == nil || cs.Empty() {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.db.pool, func(tx pgx.Tx) error {
		for _, g := range cs.Games {
			spectators := g.Spectators
			if spectators == nil {
				spectators = []string{}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO games (id, name, started, max_players, current_player_id, spectators, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					started = EXCLUDED.started,
					max_players = EXCLUDED.max_players,
					current_player_id = EXCLUDED.current_player_id,
					spectators = EXCLUDED.spectators`,
				g.ID, g.Name, g.Started, g.MaxPlayers, g.CurrentPlayerID, spectators, g.CreatedAt,
			); err != nil {
				return fmt.Errorf("save game %s: %w", g.ID, err)
			}
		}

		for _, p := range cs.Players {
			if _, err := tx.Exec(ctx, `
				INSERT INTO players (id, game_id, user_id, username, seat, color, position, x, y, money)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO UPDATE SET
					color = EXCLUDED.color,
					position = EXCLUDED.position,
					x = EXCLUDED.x,
					y = EXCLUDED.y,
					money = EXCLUDED.money`,
				p.ID, p.GameID, p.UserID, p.Username, p.Seat, p.Color, p.Position, p.Coords.X, p.Coords.Y, p.Money,
			); err != nil {
				return fmt.Errorf("save player %s: %w", p.ID, err)
			}
		}

		for _, p := range cs.Properties {
			if _, err := tx.Exec(ctx, `
				INSERT INTO properties (id, game_id, name, position, category, cost, base_rent,
					original_base_rent, offices, owner_id, mortgaged, mortgage_value)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
				ON CONFLICT (id) DO UPDATE SET
					base_rent = EXCLUDED.base_rent,
					original_base_rent = EXCLUDED.original_base_rent,
					offices = EXCLUDED.offices,
					owner_id = EXCLUDED.owner_id,
					mortgaged = EXCLUDED.mortgaged`,
				p.ID, p.GameID, p.Name, p.Position, p.Category, p.Cost, p.BaseRent,
				p.OriginalBaseRent, p.Offices, p.OwnerID, p.Mortgaged, p.MortgageValue,
			); err != nil {
				return fmt.Errorf("save property %s: %w", p.ID, err)
			}
		}

		for _, id := range cs.DeletePlayers {
			if _, err := tx.Exec(ctx, `DELETE FROM players WHERE id = $1`, id); err != nil {
				return fmt.Errorf("delete player %s: %w", id, err)
			}
		}

		for _, id := range cs.DeleteGames {
			if _, err := tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, id); err != nil {
				return fmt.Errorf("delete game %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}
	return nil
}

// SaveGameState upserts the client board state for a game.
func (s *PostgresStore) SaveGameState(ctx context.Context, gameID, state string) error {
	tag, err := s.db.pool.Exec(ctx, `
		INSERT INTO game_states (game_id, state, updated_at)
		SELECT id, $2, now() FROM games WHERE id = $1
		ON CONFLICT (game_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		gameID, state)
	if err != nil {
		return fmt.Errorf("save game state %s: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadGameState returns the saved client board state.
func (s *PostgresStore) LoadGameState(ctx context.Context, gameID string) (string, error) {
	var state string
	err := s.db.pool.QueryRow(ctx, `SELECT state FROM game_states WHERE game_id = $1`, gameID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load game state %s: %w", gameID, err)
	}
	return state, nil
}

// SaveChatMessage inserts m. A game room that no longer exists yields
// ErrNotFound.
func (s *PostgresStore) SaveChatMessage(ctx context.Context, m *model.ChatMessage) error {
	tag, err := s.db.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, game_id, kind, sender, content, sent_at)
		SELECT $1, NULLIF($2, ''), $3, $4, $5, $6
		WHERE $2 = '' OR EXISTS (SELECT 1 FROM games WHERE id = $2)`,
		m.ID, m.GameID, string(m.Kind), m.Sender, m.Content, m.SentAt)
	if err != nil {
		return fmt.Errorf("save chat message %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindChatMessages loads the latest limit messages of a room, oldest first.
func (s *PostgresStore) FindChatMessages(ctx context.Context, gameID string, limit int) ([]*model.ChatMessage, error) {
	msgs, err := queryAll(ctx, s, scanChatMessage, `
		SELECT `+chatColumns+` FROM (
			SELECT seq, id, game_id, kind, sender, content, sent_at FROM chat_messages
			WHERE COALESCE(game_id, '') = $1
			ORDER BY seq DESC
			LIMIT NULLIF($2, 0)
		) AS recent ORDER BY seq`,
		gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("load chat of %q: %w", gameID, err)
	}
	return msgs, nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}
