package engine

import (
	"context"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"go.uber.org/zap"
)

// Offer is one side of a contract: money plus an optional property.
type Offer struct {
	Money    int    `json:"money"`
	Property string `json:"property,omitempty"`
}

// Contract is a trade proposal from one player to another. From gives Offer
// and receives Request.
type Contract struct {
	From    string `json:"fromUsername"`
	To      string `json:"toUsername"`
	Offer   Offer  `json:"offer"`
	Request Offer  `json:"request"`
}

func (c Contract) validate() error {
	if c.From == "" || c.To == "" {
		return apperrors.InvalidArgument("both contract parties are required")
	}
	if c.From == c.To {
		return apperrors.InvalidAction("a player cannot trade with themselves")
	}
	if c.Offer.Money < 0 || c.Request.Money < 0 {
		return apperrors.InvalidArgument("contract amounts must not be negative")
	}
	return nil
}

// ContractView is published for proposals and accepted trades.
type ContractView struct {
	GameView
	Contract Contract `json:"contract"`
	Accepted bool     `json:"accepted"`
}

// ProposeContract forwards a proposal to the game's contract topic. Nothing
// is changed.
func (e *Engine) ProposeContract(ctx context.Context, gameID string, c Contract) (*ContractView, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	var out ContractView
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		if _, err := e.findPlayer(ctx, g.ID, c.From); err != nil {
			return err
		}
		if _, err := e.findPlayer(ctx, g.ID, c.To); err != nil {
			return err
		}

		out = ContractView{
			GameView: GameView{GameID: g.ID, GameName: g.Name},
			Contract: c,
		}

		e.gameLogger(g.ID).Info("contract proposed", zap.String("from", c.From), zap.String("to", c.To))
		e.publisher.Publish(broadcast.ContractTopic(g.ID), out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptContract executes a trade. Both legs are validated before anything
// changes, and the players and properties are persisted together.
func (e *Engine) AcceptContract(ctx context.Context, gameID string, c Contract) (*ContractView, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	var out ContractView
	err := e.withGame(ctx, gameID, func(_ *Session, g *model.Game) error {
		from, err := e.findPlayer(ctx, g.ID, c.From)
		if err != nil {
			return err
		}
		to, err := e.findPlayer(ctx, g.ID, c.To)
		if err != nil {
			return err
		}

		offered, err := e.tradedProperty(ctx, g.ID, c.Offer.Property, from)
		if err != nil {
			return err
		}
		requested, err := e.tradedProperty(ctx, g.ID, c.Request.Property, to)
		if err != nil {
			return err
		}

		fromMoney := from.Money - c.Offer.Money + c.Request.Money
		toMoney := to.Money - c.Request.Money + c.Offer.Money
		if fromMoney < 0 {
			return apperrors.InsufficientFunds("%s cannot cover the offered %d", from.Username, c.Offer.Money)
		}
		if toMoney < 0 {
			return apperrors.InsufficientFunds("%s cannot cover the requested %d", to.Username, c.Request.Money)
		}

		from.Money = fromMoney
		to.Money = toMoney
		cs := repository.NewChangeset().SavePlayers(from, to)
		if offered != nil {
			offered.OwnerID = to.ID
			cs.SaveProperties(offered)
		}
		if requested != nil {
			requested.OwnerID = from.ID
			cs.SaveProperties(requested)
		}
		if err := e.commit(ctx, cs); err != nil {
			return err
		}

		out.GameView, err = e.view(ctx, g)
		if err != nil {
			return err
		}
		out.Contract = c
		out.Accepted = true

		e.gameLogger(g.ID).Info("contract accepted",
			zap.String("from", from.Username),
			zap.String("to", to.Username),
			zap.Int("offer_money", c.Offer.Money),
			zap.String("offer_property", c.Offer.Property),
			zap.Int("request_money", c.Request.Money),
			zap.String("request_property", c.Request.Property),
		)
		e.publisher.Publish(broadcast.GameTopic(g.ID), out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// tradedProperty resolves a contract leg's property, which must belong to
// owner. An empty name means the leg carries money only.
func (e *Engine) tradedProperty(ctx context.Context, gameID, name string, owner *model.Player) (*model.Property, error) {
	if name == "" {
		return nil, nil
	}
	prop, err := e.findPropertyByName(ctx, gameID, name)
	if err != nil {
		return nil, err
	}
	if !prop.OwnedBy(owner.ID) {
		return nil, apperrors.InvalidAction("player %s does not own %s", owner.Username, prop.Name)
	}
	return prop, nil
}
