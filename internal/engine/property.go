package engine

import (
	"context"
	"fmt"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/ledger"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"go.uber.org/zap"
)

// Property actions reported in PropertyResult.Action.
const (
	ActionBuy        = "buy"
	ActionBuyOffice  = "buyOffice"
	ActionSellOffice = "sellOffice"
	ActionMortgage   = "mortgage"
	ActionUnmortgage = "unmortgage"
)

// BuyProperty sells an unowned property to username at its cost.
func (e *Engine) BuyProperty(ctx context.Context, gameID, username, propertyName string) (*PropertyResult, error) {
	return e.propertyAction(ctx, gameID, username, propertyName, ActionBuy,
		func(s *Session, g *model.Game, player *model.Player, prop *model.Property) ([]*model.Property, error) {
			if !prop.Purchasable() {
				return nil, apperrors.InvalidAction("property %s cannot be bought", prop.Name)
			}
			if prop.Owned() {
				return nil, apperrors.InvalidAction("property %s is already owned", prop.Name)
			}
			if a := s.auction; a != nil && a.position == prop.Position {
				return nil, apperrors.InvalidAction("property %s is being auctioned", prop.Name)
			}
			if player.Money < prop.Cost {
				return nil, apperrors.InsufficientFunds("insufficient funds to buy %s", prop.Name)
			}

			player.Money -= prop.Cost
			prop.OwnerID = player.ID
			return e.applyCategoryBonus(ctx, g, player, prop)
		})
}

// BuyOffice adds an office to a property username owns.
func (e *Engine) BuyOffice(ctx context.Context, gameID, username, propertyName string) (*PropertyResult, error) {
	return e.propertyAction(ctx, gameID, username, propertyName, ActionBuyOffice,
		func(_ *Session, _ *model.Game, player *model.Player, prop *model.Property) ([]*model.Property, error) {
			return []*model.Property{prop}, ledger.BuyOffice(player, prop)
		})
}

// SellOffice sells an office back to the bank.
func (e *Engine) SellOffice(ctx context.Context, gameID, username, propertyName string) (*PropertyResult, error) {
	return e.propertyAction(ctx, gameID, username, propertyName, ActionSellOffice,
		func(_ *Session, _ *model.Game, player *model.Player, prop *model.Property) ([]*model.Property, error) {
			return []*model.Property{prop}, ledger.SellOffice(player, prop)
		})
}

// MortgageProperty mortgages a property username owns.
func (e *Engine) MortgageProperty(ctx context.Context, gameID, username, propertyName string) (*PropertyResult, error) {
	return e.propertyAction(ctx, gameID, username, propertyName, ActionMortgage,
		func(_ *Session, _ *model.Game, player *model.Player, prop *model.Property) ([]*model.Property, error) {
			return []*model.Property{prop}, ledger.Mortgage(player, prop)
		})
}

// UnmortgageProperty lifts the mortgage on a property username owns.
func (e *Engine) UnmortgageProperty(ctx context.Context, gameID, username, propertyName string) (*PropertyResult, error) {
	return e.propertyAction(ctx, gameID, username, propertyName, ActionUnmortgage,
		func(_ *Session, _ *model.Game, player *model.Player, prop *model.Property) ([]*model.Property, error) {
			return []*model.Property{prop}, ledger.Unmortgage(player, prop)
		})
}

type propertyMutation func(s *Session, g *model.Game, player *model.Player, prop *model.Property) ([]*model.Property, error)

// propertyAction loads the player and property, applies mutate and persists
// the player together with the properties mutate returns.
func (e *Engine) propertyAction(ctx context.Context, gameID, username, propertyName, action string, mutate propertyMutation) (*PropertyResult, error) {
	var result PropertyResult
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		player, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}
		prop, err := e.findPropertyByName(ctx, g.ID, propertyName)
		if err != nil {
			return err
		}

		changed, err := mutate(s, g, player, prop)
		if err != nil {
			return err
		}

		cs := repository.NewChangeset().SavePlayers(player).SaveProperties(changed...)
		if err := e.commit(ctx, cs); err != nil {
			return err
		}

		result.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}
		result.Action = action
		result.Username = player.Username
		result.Property = model.ViewProperty(prop, map[string]string{player.ID: player.Username})

		e.gameLogger(g.ID).Info("property updated",
			zap.String("action", action),
			zap.String("username", player.Username),
			zap.String("property", prop.Name),
			zap.Int("money", player.Money),
		)
		e.publisher.Publish(broadcast.GameTopic(g.ID), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyCategoryBonus recomputes the category rents after owner acquired
// prop. The returned slice holds prop and every other property whose rent
// changed.
func (e *Engine) applyCategoryBonus(ctx context.Context, g *model.Game, owner *model.Player, prop *model.Property) ([]*model.Property, error) {
	category, err := e.store.FindPropertiesByCategory(ctx, g.ID, prop.Category)
	if err != nil {
		return nil, fmt.Errorf("load category %s: %w", prop.Category, err)
	}

	for i, p := range category {
		if p.ID == prop.ID {
			category[i] = prop
		}
	}

	changed := []*model.Property{prop}
	for _, p := range ledger.ApplyCategoryBonus(owner, prop.Category, category) {
		if p.ID != prop.ID {
			changed = append(changed, p)
		}
	}
	return changed, nil
}
