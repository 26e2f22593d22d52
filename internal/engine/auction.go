package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"go.uber.org/zap"
)

// AuctionState is the lifecycle of a game's auction.
type AuctionState int

const (
	AuctionIdle AuctionState = iota
	AuctionOpen
	AuctionResolved
)

func (s AuctionState) String() string {
	switch s {
	case AuctionOpen:
		return "OPEN"
	case AuctionResolved:
		return "RESOLVED"
	default:
		return "IDLE"
	}
}

// Reasons an auction resolved.
const (
	ResolvedTimeout    = "countdown expired"
	ResolvedNoBidders  = "no eligible bidder"
	ResolvedNoBids     = "no bids"
	ResolvedWinnerLeft = "winner left the game"
	ResolvedNoFunds    = "winner cannot cover the bid"
	ResolvedOwned      = "property already owned"
	ResolvedSettled    = "settled"
)

// auction is the in-memory state of an open auction. It lives in its
// session and is only touched with the session lock held, except for
// resolved, which a racing resolution claims with a compare-and-swap.
type auction struct {
	propertyID   string
	propertyName string
	position     int
	initiator    string

	highestBid        int
	highestBidderID   string
	highestBidderName string

	// rotation is the roster at auction start in seat order; current is the
	// rotation index of the last bidder.
	rotation []string
	current  int

	timer    *clock.Timer
	seq      uint64
	deadline time.Time
	resolved atomic.Bool
}

// cancelAuction drops the open auction without resolving it. The caller
// holds s.mu.
func (s *Session) cancelAuction() {
	a := s.auction
	if a == nil {
		return
	}
	a.resolved.Store(true)
	if a.timer != nil {
		a.timer.Stop()
	}
	s.auction = nil
}

// AuctionView is published when an auction opens or accepts a bid.
type AuctionView struct {
	GameView
	State         string             `json:"state"`
	Property      model.PropertyView `json:"property"`
	Initiator     string             `json:"initiator"`
	HighestBid    int                `json:"highestBid"`
	HighestBidder string             `json:"highestBidder,omitempty"`
	NextBidder    string             `json:"nextBidder,omitempty"`
	EndsAt        time.Time          `json:"endsAt"`
	Result        *AuctionResult     `json:"result,omitempty"`
}

// AuctionResult is published when an auction resolves.
type AuctionResult struct {
	GameView
	State    string             `json:"state"`
	Property model.PropertyView `json:"property"`
	Sold     bool               `json:"sold"`
	Winner   string             `json:"winner,omitempty"`
	Amount   int                `json:"amount"`
	Reason   string             `json:"reason"`
}

// StartAuction opens an auction for an unowned property. The opening bid is
// the greater of half the cost and initialBid; the initiator holds it only
// if initialBid reaches half the cost.
func (e *Engine) StartAuction(ctx context.Context, gameID, username, propertyName string, initialBid int) (*AuctionView, error) {
	if initialBid < 0 {
		return nil, apperrors.InvalidArgument("initial bid must not be negative")
	}

	var view AuctionView
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		if s.auction != nil {
			return apperrors.InvalidAction("an auction is already running in game %s", g.Name)
		}

		player, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}
		prop, err := e.findPropertyByName(ctx, g.ID, propertyName)
		if err != nil {
			return err
		}
		if !prop.Purchasable() {
			return apperrors.InvalidAction("property %s cannot be auctioned", prop.Name)
		}
		if prop.Owned() {
			return apperrors.InvalidAction("property %s is already owned", prop.Name)
		}

		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}

		floor := prop.Cost / 2
		a := &auction{
			propertyID:   prop.ID,
			propertyName: prop.Name,
			position:     prop.Position,
			initiator:    player.Username,
			highestBid:   max(floor, initialBid),
			rotation:     make([]string, 0, len(players)),
		}
		for i, p := range players {
			a.rotation = append(a.rotation, p.ID)
			if p.ID == player.ID {
				a.current = i
			}
		}
		if initialBid >= floor && initialBid > 0 {
			if player.Money < initialBid {
				return apperrors.InsufficientFunds("insufficient funds to open with %d", initialBid)
			}
			a.highestBidderID = player.ID
			a.highestBidderName = player.Username
		}

		s.auction = a
		e.scheduleCountdown(s, a)

		view, err = e.auctionView(ctx, g, a, players, prop)
		if err != nil {
			s.cancelAuction()
			return err
		}

		e.gameLogger(g.ID).Info("auction started",
			zap.String("property", prop.Name),
			zap.String("initiator", player.Username),
			zap.Int("opening_bid", a.highestBid),
			zap.String("next_bidder", view.NextBidder),
		)
		e.publisher.Publish(broadcast.AuctionBidTopic(g.ID), view)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// PlaceBid raises the highest bid and restarts the countdown. When no other
// player can match the new bid the auction resolves immediately and the
// returned view carries the result.
func (e *Engine) PlaceBid(ctx context.Context, gameID, username string, amount int) (*AuctionView, error) {
	var view AuctionView
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		a := s.auction
		if a == nil {
			return apperrors.AuctionNotFound(g.ID, g.Name)
		}

		player, err := e.findPlayer(ctx, g.ID, username)
		if err != nil {
			return err
		}
		if amount <= a.highestBid {
			return apperrors.InvalidAction("bid %d must exceed the highest bid of %d", amount, a.highestBid)
		}
		if player.Money < amount {
			return apperrors.InsufficientFunds("insufficient funds to bid %d", amount)
		}

		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}
		prop, err := e.findPropertyAt(ctx, g.ID, a.position)
		if err != nil {
			return err
		}
		if prop == nil {
			return apperrors.PropertyNotFound(a.propertyName)
		}

		a.highestBid = amount
		a.highestBidderID = player.ID
		a.highestBidderName = player.Username
		for i, id := range a.rotation {
			if id == player.ID {
				a.current = i
				break
			}
		}
		if a.timer != nil {
			a.timer.Stop()
		}

		log := e.gameLogger(g.ID).With(zap.String("property", a.propertyName))
		log.Info("bid accepted", zap.String("bidder", player.Username), zap.Int("amount", amount))

		if _, ok := nextBidder(a, players); !ok {
			result, err := e.resolveAuction(ctx, s, g, ResolvedNoBidders)
			if err != nil {
				return err
			}
			view = AuctionView{
				GameView:      result.GameView,
				State:         AuctionResolved.String(),
				Property:      result.Property,
				Initiator:     a.initiator,
				HighestBid:    a.highestBid,
				HighestBidder: a.highestBidderName,
				Result:        result,
			}
			return nil
		}

		e.scheduleCountdown(s, a)
		view, err = e.auctionView(ctx, g, a, players, prop)
		if err != nil {
			return err
		}
		e.publisher.Publish(broadcast.AuctionBidTopic(g.ID), view)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// scheduleCountdown arms a fresh countdown for a. Each countdown gets a new
// sequence number so a timer that fires after being replaced is ignored.
// The caller holds s.mu.
func (e *Engine) scheduleCountdown(s *Session, a *auction) {
	s.auctionSeq++
	seq := s.auctionSeq
	a.seq = seq
	a.deadline = e.clock.Now().Add(e.rules.AuctionCountdown)
	a.timer = e.clock.AfterFunc(e.rules.AuctionCountdown, func() {
		e.onCountdown(s, a, seq)
	})
}

// onCountdown runs on the timer goroutine.
func (e *Engine) onCountdown(s *Session, a *auction, seq uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	log := e.gameLogger(s.gameID)
	if s.closed || s.auction != a || a.seq != seq {
		log.Debug("stale auction countdown ignored", zap.Uint64("seq", seq))
		return
	}

	g, err := e.store.FindGame(ctx, s.gameID)
	if err != nil {
		s.cancelAuction()
		log.Error("auction game unavailable at countdown", zap.Error(err))
		return
	}

	if _, err := e.resolveAuction(ctx, s, g, ResolvedTimeout); err != nil {
		log.Error("failed to resolve auction", zap.String("property", a.propertyName), zap.Error(err))
		e.publisher.Publish(broadcast.AuctionEndTopic(s.gameID), map[string]any{
			"gameId":   g.ID,
			"gameName": g.Name,
			"state":    AuctionResolved.String(),
			"property": a.propertyName,
			"sold":     false,
			"error":    apperrors.Payload(err),
		})
	}
}

// resolveAuction closes the open auction and settles it. Only the first
// caller settles; later callers get a nil result. The caller holds s.mu.
func (e *Engine) resolveAuction(ctx context.Context, s *Session, g *model.Game, reason string) (*AuctionResult, error) {
	a := s.auction
	if a == nil || !a.resolved.CompareAndSwap(false, true) {
		return nil, nil
	}
	s.auction = nil
	if a.timer != nil {
		a.timer.Stop()
	}

	log := e.gameLogger(g.ID).With(zap.String("property", a.propertyName))

	prop, err := e.findPropertyAt(ctx, g.ID, a.position)
	if err != nil {
		return nil, err
	}
	if prop == nil || prop.ID != a.propertyID {
		return nil, apperrors.PropertyNotFound(a.propertyName)
	}
	players, err := e.roster(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	result := &AuctionResult{
		State:  AuctionResolved.String(),
		Amount: a.highestBid,
		Reason: reason,
	}

	var winner *model.Player
	switch idx := model.IndexOfPlayer(players, a.highestBidderID); {
	case a.highestBidderID == "":
		result.Reason = ResolvedNoBids
	case idx < 0:
		result.Reason = ResolvedWinnerLeft
	case prop.Owned():
		result.Reason = ResolvedOwned
	case players[idx].Money < a.highestBid:
		result.Reason = ResolvedNoFunds
	default:
		winner = players[idx]
	}

	if winner != nil {
		winner.Money -= a.highestBid
		prop.OwnerID = winner.ID
		changed, err := e.applyCategoryBonus(ctx, g, winner, prop)
		if err != nil {
			return nil, err
		}
		cs := repository.NewChangeset().SavePlayers(winner).SaveProperties(changed...)
		if err := e.commit(ctx, cs); err != nil {
			return nil, err
		}
		result.Sold = true
		result.Winner = winner.Username
	}

	result.GameView, err = e.view(ctx, g)
	if err != nil {
		return nil, err
	}
	owners := map[string]string{}
	if winner != nil {
		owners[winner.ID] = winner.Username
	}
	result.Property = model.ViewProperty(prop, owners)

	if result.Sold {
		log.Info("auction resolved", zap.String("winner", result.Winner), zap.Int("amount", result.Amount), zap.String("reason", reason))
	} else {
		log.Info("auction ended unsold", zap.String("reason", result.Reason))
	}
	e.publisher.Publish(broadcast.AuctionEndTopic(g.ID), result)
	return result, nil
}

// nextBidder scans the rotation cyclically after the last bidder for the
// first other player still in the game who can afford the highest bid.
func nextBidder(a *auction, players []*model.Player) (*model.Player, bool) {
	byID := make(map[string]*model.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	n := len(a.rotation)
	for i := 1; i <= n; i++ {
		id := a.rotation[(a.current+i)%n]
		if id == a.highestBidderID {
			continue
		}
		p, ok := byID[id]
		if !ok {
			continue
		}
		if p.Money >= a.highestBid {
			return p, true
		}
	}
	return nil, false
}

func (e *Engine) auctionView(ctx context.Context, g *model.Game, a *auction, players []*model.Player, prop *model.Property) (AuctionView, error) {
	gv, err := e.view(ctx, g)
	if err != nil {
		return AuctionView{}, err
	}
	view := AuctionView{
		GameView:      gv,
		State:         AuctionOpen.String(),
		Property:      model.ViewProperty(prop, nil),
		Initiator:     a.initiator,
		HighestBid:    a.highestBid,
		HighestBidder: a.highestBidderName,
		EndsAt:        a.deadline,
	}
	if next, ok := nextBidder(a, players); ok {
		view.NextBidder = next.Username
	}
	return view, nil
}

// Auction reports the open auction of a game.
func (e *Engine) Auction(ctx context.Context, gameID string) (*AuctionView, error) {
	var view AuctionView
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		a := s.auction
		if a == nil {
			return apperrors.AuctionNotFound(g.ID, g.Name)
		}
		players, err := e.roster(ctx, g.ID)
		if err != nil {
			return err
		}
		prop, err := e.findPropertyAt(ctx, g.ID, a.position)
		if err != nil {
			return err
		}
		if prop == nil {
			return apperrors.PropertyNotFound(a.propertyName)
		}
		view, err = e.auctionView(ctx, g, a, players, prop)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// SettleAuction resolves the open auction now instead of waiting for the
// countdown.
func (e *Engine) SettleAuction(ctx context.Context, gameID string) (*AuctionResult, error) {
	var result *AuctionResult
	err := e.withGame(ctx, gameID, func(s *Session, g *model.Game) error {
		if s.auction == nil {
			return apperrors.AuctionNotFound(g.ID, g.Name)
		}
		var err error
		result, err = e.resolveAuction(ctx, s, g, ResolvedSettled)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
