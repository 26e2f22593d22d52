package engine

import (
	"context"

	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"go.uber.org/zap"
)

// EndTurn passes the turn to the next player in seat order. If the current
// player is no longer on the roster the game is left untouched and nothing
// is published.
func (e *Engine) EndTurn(ctx context.Context, gameID string) (*GameView, error) {
	var view GameView
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}

		idx := model.IndexOfPlayer(players, g.CurrentPlayerID)
		if idx < 0 {
			e.gameLogger(g.ID).Debug("current player not on roster, turn not advanced",
				zap.String("current_player_id", g.CurrentPlayerID),
			)
			view, err = e.view(ctx, g)
			return err
		}

		next := players[(idx+1)%len(players)]
		g.CurrentPlayerID = next.ID
		if err := e.commit(ctx, repository.NewChangeset().SaveGame(g)); err != nil {
			return err
		}

		view, err = e.view(ctx, g)
		if err != nil {
			return err
		}

		e.gameLogger(g.ID).Debug("turn advanced",
			zap.String("from", players[idx].Username),
			zap.String("to", next.Username),
		)
		e.publisher.Publish(broadcast.GameTopic(g.ID), view)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}
