package engine

import (
	"context"
	"strings"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/ledger"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"go.uber.org/zap"
)

// Move is a token movement reported by a client.
type Move struct {
	GameID   string
	Username string
	Position int
	Coords   model.Coords
	// Final marks the last step of a move; only then is the landing resolved.
	Final bool
	// Start marks the first step of a move.
	Start bool
}

// MovePlayer moves a token, pays the pass-go bonus on wraparound and, for a
// final step, reports any rent owed. It never moves rent money itself.
func (e *Engine) MovePlayer(ctx context.Context, m Move) (*MoveResult, error) {
	if m.Position < 0 || m.Position >= model.BoardSize {
		return nil, apperrors.InvalidArgument("position %d is off the board", m.Position)
	}

	var result MoveResult
	err := e.withGame(ctx, m.GameID, func(_ *Session, g *model.Game) error {
		player, err := e.findPlayer(ctx, g.ID, m.Username)
		if err != nil {
			return err
		}

		if m.Position < player.Position || (m.Position == 0 && m.Start) {
			player.Money += e.rules.PassGoBonus
			result.PassedGo = true
		}
		player.Position = m.Position
		player.Coords = m.Coords

		if m.Final {
			landed, err := e.resolveLanding(ctx, g, player)
			if err != nil {
				return err
			}
			result.LandedProperty = landed
		}

		if err := e.commit(ctx, repository.NewChangeset().SavePlayers(player)); err != nil {
			return err
		}

		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}
		result.Username = player.Username
		result.NewPosition = player.Position

		if result.PassedGo {
			e.gameLogger(g.ID).Debug("passed go", zap.String("username", player.Username))
		}
		e.publisher.Publish(broadcast.GameTopic(g.ID), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// resolveLanding returns the rent obligation for player's square, or nil
// when nothing is owed.
func (e *Engine) resolveLanding(ctx context.Context, g *model.Game, player *model.Player) (*LandedProperty, error) {
	prop, err := e.findPropertyAt(ctx, g.ID, player.Position)
	if err != nil || prop == nil {
		return nil, err
	}
	if !prop.Owned() || prop.OwnedBy(player.ID) {
		return nil, nil
	}

	players, err := e.roster(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	owner := ""
	if idx := model.IndexOfPlayer(players, prop.OwnerID); idx >= 0 {
		owner = players[idx].Username
	}

	return &LandedProperty{
		Position:      prop.Position,
		Name:          prop.Name,
		Owner:         owner,
		NeedToPayRent: true,
		Rent:          ledger.Rent(prop),
	}, nil
}

// LandOnField handles squares with forced effects. Landing on the jail
// field sends the player to the jail square.
func (e *Engine) LandOnField(ctx context.Context, gameID, username, field string) (*FieldResult, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, apperrors.InvalidArgument("field name is required")
	}

	var result FieldResult
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		player, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}

		result.Username = player.Username
		result.Field = field
		if !strings.EqualFold(field, e.rules.JailField) {
			result.NewPosition = player.Position
			result.GameView, err = e.view(ctx, g)
			return err
		}

		player.Position = e.rules.JailPosition
		if err := e.commit(ctx, repository.NewChangeset().SavePlayers(player)); err != nil {
			return err
		}

		result.Relocated = true
		result.NewPosition = player.Position
		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}

		e.gameLogger(g.ID).Info("player sent to jail", zap.String("username", player.Username))
		e.publisher.Publish(broadcast.GameTopic(g.ID), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PayRent charges username the rent of the square they stand on and credits
// its owner.
func (e *Engine) PayRent(ctx context.Context, gameID, username string) (*PaymentResult, error) {
	var result PaymentResult
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		payer, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}
		prop, err := e.findPropertyAt(ctx, g.ID, payer.Position)
		if err != nil {
			return err
		}
		if prop == nil || !prop.Owned() || prop.OwnedBy(payer.ID) {
			return apperrors.InvalidAction("no rent is owed on position %d", payer.Position)
		}

		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}
		idx := model.IndexOfPlayer(players, prop.OwnerID)
		if idx < 0 {
			return apperrors.InvalidAction("owner of %s is no longer in the game", prop.Name)
		}
		owner := players[idx]

		rent := ledger.Rent(prop)
		if payer.Money < rent {
			return apperrors.InsufficientFunds("insufficient funds to pay rent of %d", rent)
		}
		payer.Money -= rent
		owner.Money += rent

		if err := e.commit(ctx, repository.NewChangeset().SavePlayers(payer, owner)); err != nil {
			return err
		}

		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}
		result.From = payer.Username
		result.To = owner.Username
		result.Amount = rent
		result.Property = prop.Name

		e.gameLogger(g.ID).Info("rent paid",
			zap.String("from", payer.Username),
			zap.String("to", owner.Username),
			zap.String("property", prop.Name),
			zap.Int("amount", rent),
		)
		e.publisher.Publish(broadcast.GameTopic(g.ID), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PayMoney charges username amount, paid to the bank.
func (e *Engine) PayMoney(ctx context.Context, gameID, username string, amount int) (*PaymentResult, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidArgument("amount must be positive")
	}

	var result PaymentResult
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		player, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}
		if player.Money < amount {
			return apperrors.InsufficientFunds("insufficient funds to pay %d", amount)
		}
		player.Money -= amount

		if err := e.commit(ctx, repository.NewChangeset().SavePlayers(player)); err != nil {
			return err
		}

		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}
		result.From = player.Username
		result.Amount = amount

		e.publisher.Publish(broadcast.GameTopic(g.ID), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

var casinoMultipliers = map[int]int{1: 100, 2: 60, 3: 40, 4: 20}

// PlayCasino bets on up to four distinct die faces. A win returns the bet
// plus a share of it that shrinks with the number of faces covered.
func (e *Engine) PlayCasino(ctx context.Context, gameID, username string, bet int, numbers []int) (*CasinoResult, error) {
	if bet <= 0 {
		return nil, apperrors.InvalidArgument("bet must be positive")
	}
	multiplier, ok := casinoMultipliers[len(numbers)]
	if !ok {
		return nil, apperrors.InvalidArgument("select between 1 and 4 numbers")
	}
	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > 6 {
			return nil, apperrors.InvalidArgument("number %d is not a die face", n)
		}
		if seen[n] {
			return nil, apperrors.InvalidArgument("number %d selected twice", n)
		}
		seen[n] = true
	}

	var result CasinoResult
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		player, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}
		if player.Money < bet {
			return apperrors.InsufficientFunds("insufficient funds to bet %d", bet)
		}

		roll := e.roll()
		win := seen[roll]
		if win {
			player.Money += bet + bet*multiplier/100
		} else {
			player.Money -= bet
		}

		if err := e.commit(ctx, repository.NewChangeset().SavePlayers(player)); err != nil {
			return err
		}

		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}
		result.Username = player.Username
		result.Bet = bet
		result.RandomNumber = roll
		result.IsWinner = win
		result.Multiplier = multiplier

		e.gameLogger(g.ID).Debug("casino round",
			zap.String("username", player.Username),
			zap.Int("bet", bet),
			zap.Int("roll", roll),
			zap.Bool("win", win),
		)
		e.publisher.Publish(broadcast.GameTopic(g.ID), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
