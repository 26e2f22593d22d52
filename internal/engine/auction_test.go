package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countdown = 10 * time.Second

func (h *harness) waitAuctionEnd(gameID string) AuctionResult {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		_, ok := h.rec.Last(broadcast.AuctionEndTopic(gameID))
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	event, _ := h.rec.Last(broadcast.AuctionEndTopic(gameID))
	result, ok := event.Payload.(*AuctionResult)
	require.True(h.t, ok, "unexpected payload %T", event.Payload)
	return *result
}

func TestAuctionScenario(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")
	h.setMoney(gameID, "alice", 10000)
	h.setMoney(gameID, "bob", 5000)

	// Ferrari costs 2000.
	open, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Ferrari", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, open.HighestBid)
	assert.Equal(t, "alice", open.HighestBidder)
	assert.Equal(t, "bob", open.NextBidder)
	assert.Equal(t, AuctionOpen.String(), open.State)

	bid, err := h.engine.PlaceBid(h.ctx, gameID, "bob", 1500)
	require.NoError(t, err)
	assert.Equal(t, 1500, bid.HighestBid)
	assert.Equal(t, "bob", bid.HighestBidder)
	assert.Equal(t, "alice", bid.NextBidder)
	assert.Len(t, h.rec.On(broadcast.AuctionBidTopic(gameID)), 2)

	h.clock.Add(countdown)
	result := h.waitAuctionEnd(gameID)

	assert.True(t, result.Sold)
	assert.Equal(t, "bob", result.Winner)
	assert.Equal(t, 1500, result.Amount)
	assert.Equal(t, ResolvedTimeout, result.Reason)

	bob := h.player(gameID, "bob")
	assert.Equal(t, 3500, bob.Money)
	assert.Equal(t, 10000, h.player(gameID, "alice").Money)
	assert.True(t, h.property(gameID, "Ferrari").OwnedBy(bob.ID))
	assert.Zero(t, h.engine.Sessions().ActiveAuctions())
}

func TestAuctionBidResetsCountdown(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 2000)
	require.NoError(t, err)

	h.clock.Add(countdown - time.Second)
	_, err = h.engine.PlaceBid(h.ctx, gameID, "bob", 2500)
	require.NoError(t, err)

	// The original deadline passes without resolving.
	h.clock.Add(2 * time.Second)
	assert.Empty(t, h.rec.On(broadcast.AuctionEndTopic(gameID)))
	assert.Equal(t, 1, h.engine.Sessions().ActiveAuctions())

	h.clock.Add(countdown)
	result := h.waitAuctionEnd(gameID)
	assert.Equal(t, "bob", result.Winner)
	assert.Len(t, h.rec.On(broadcast.AuctionEndTopic(gameID)), 1)
}

func TestAuctionWithoutBidsStaysUnowned(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	// Below half the cost: the initiator holds no bid.
	open, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 500)
	require.NoError(t, err)
	assert.Equal(t, 2000, open.HighestBid)
	assert.Empty(t, open.HighestBidder)

	h.clock.Add(countdown)
	result := h.waitAuctionEnd(gameID)

	assert.False(t, result.Sold)
	assert.Equal(t, ResolvedNoBids, result.Reason)
	assert.False(t, h.property(gameID, "Nike").Owned())
	assert.Equal(t, 100000, h.player(gameID, "alice").Money)
	assert.Equal(t, 100000, h.player(gameID, "bob").Money)
}

func TestAuctionOnePerGame(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")
	otherID := h.newGame("carol", "dave")

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 0)
	require.NoError(t, err)

	_, err = h.engine.StartAuction(h.ctx, gameID, "bob", "Adidas", 0)
	assertCode(t, err, apperrors.CodeInvalidAction)

	_, err = h.engine.StartAuction(h.ctx, otherID, "carol", "Nike", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, h.engine.Sessions().ActiveAuctions())
}

func TestStartAuctionRejections(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")
	h.giveProperty(gameID, "bob", "Apple")

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Apple", 0)
	assertCode(t, err, apperrors.CodeInvalidAction)

	_, err = h.engine.StartAuction(h.ctx, gameID, "alice", "Go", 0)
	assertCode(t, err, apperrors.CodeInvalidAction)

	_, err = h.engine.StartAuction(h.ctx, gameID, "alice", "Atlantis", 0)
	assertCode(t, err, apperrors.CodePropertyNotFound)

	_, err = h.engine.StartAuction(h.ctx, gameID, "zed", "Nike", 0)
	assertCode(t, err, apperrors.CodePlayerNotFound)

	_, err = h.engine.StartAuction(h.ctx, "missing", "alice", "Nike", 0)
	assertCode(t, err, apperrors.CodeGameNotFound)

	h.setMoney(gameID, "alice", 1000)
	_, err = h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 3000)
	assertCode(t, err, apperrors.CodeInsufficientFunds)

	assert.Zero(t, h.engine.Sessions().ActiveAuctions())
}

func TestPlaceBidRejections(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob", "carol")

	_, err := h.engine.PlaceBid(h.ctx, gameID, "bob", 5000)
	assertCode(t, err, apperrors.CodeAuctionNotFound)

	_, err = h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 2000)
	require.NoError(t, err)
	h.rec.Reset()

	_, err = h.engine.PlaceBid(h.ctx, gameID, "bob", 2000)
	assertCode(t, err, apperrors.CodeInvalidAction)

	_, err = h.engine.PlaceBid(h.ctx, gameID, "bob", 1999)
	assertCode(t, err, apperrors.CodeInvalidAction)

	h.setMoney(gameID, "bob", 2500)
	_, err = h.engine.PlaceBid(h.ctx, gameID, "bob", 3000)
	assertCode(t, err, apperrors.CodeInsufficientFunds)

	assert.Empty(t, h.rec.Events())

	view, err := h.engine.Auction(h.ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 2000, view.HighestBid)
	assert.Equal(t, "alice", view.HighestBidder)
}

func TestPlaceBidResolvesWithoutEligibleBidder(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob", "carol")
	h.setMoney(gameID, "alice", 2500)
	h.setMoney(gameID, "carol", 1000)

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 2000)
	require.NoError(t, err)

	view, err := h.engine.PlaceBid(h.ctx, gameID, "bob", 3000)
	require.NoError(t, err)
	require.NotNil(t, view.Result)
	assert.Equal(t, AuctionResolved.String(), view.State)
	assert.True(t, view.Result.Sold)
	assert.Equal(t, ResolvedNoBidders, view.Result.Reason)

	bob := h.player(gameID, "bob")
	assert.Equal(t, 97000, bob.Money)
	assert.True(t, h.property(gameID, "Nike").OwnedBy(bob.ID))
	assert.Zero(t, h.engine.Sessions().ActiveAuctions())

	// The countdown of the settled auction never fires.
	h.clock.Add(countdown)
	assert.Len(t, h.rec.On(broadcast.AuctionEndTopic(gameID)), 1)
}

func TestNextBidderSkipsPoorAndDepartedPlayers(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob", "carol", "dave")
	h.setMoney(gameID, "carol", 100)

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 2000)
	require.NoError(t, err)

	view, err := h.engine.PlaceBid(h.ctx, gameID, "bob", 2500)
	require.NoError(t, err)
	assert.Equal(t, "dave", view.NextBidder)

	_, err = h.engine.LeaveGame(h.ctx, gameID, "dave")
	require.NoError(t, err)

	view, err = h.engine.Auction(h.ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.NextBidder)
}

func TestAuctionWinnerLeftBeforeResolution(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob", "carol")

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 0)
	require.NoError(t, err)
	_, err = h.engine.PlaceBid(h.ctx, gameID, "bob", 2500)
	require.NoError(t, err)
	_, err = h.engine.LeaveGame(h.ctx, gameID, "bob")
	require.NoError(t, err)

	h.clock.Add(countdown)
	result := h.waitAuctionEnd(gameID)
	assert.False(t, result.Sold)
	assert.Equal(t, ResolvedWinnerLeft, result.Reason)
	assert.False(t, h.property(gameID, "Nike").Owned())
}

func TestSettleAuction(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 2000)
	require.NoError(t, err)

	result, err := h.engine.SettleAuction(h.ctx, gameID)
	require.NoError(t, err)
	assert.True(t, result.Sold)
	assert.Equal(t, "alice", result.Winner)
	assert.Equal(t, 98000, h.player(gameID, "alice").Money)

	_, err = h.engine.SettleAuction(h.ctx, gameID)
	assertCode(t, err, apperrors.CodeAuctionNotFound)
}

func TestAuctionWinAppliesCategoryBonus(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")
	h.giveProperty(gameID, "bob", "Chanel")

	_, err := h.engine.StartAuction(h.ctx, gameID, "bob", "Boss", 2500)
	require.NoError(t, err)
	_, err = h.engine.SettleAuction(h.ctx, gameID)
	require.NoError(t, err)

	assert.Equal(t, 120, h.property(gameID, "Chanel").BaseRent)
	assert.Equal(t, 132, h.property(gameID, "Boss").BaseRent)
}

func TestConcurrentBidsKeepOneWinner(t *testing.T) {
	h := newHarness(t)
	players := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	gameID := h.newGame(players...)

	_, err := h.engine.StartAuction(h.ctx, gameID, "p1", "Nvidia", 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i, p := range players {
		for j := 0; j < 20; j++ {
			wg.Add(1)
			go func(username string, amount int) {
				defer wg.Done()
				_, _ = h.engine.PlaceBid(h.ctx, gameID, username, amount)
			}(p, 3000+j*100+i)
		}
	}
	wg.Wait()

	view, err := h.engine.Auction(h.ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 3000+19*100+5, view.HighestBid)
	assert.Equal(t, "p6", view.HighestBidder)
	assert.Equal(t, 1, h.engine.Sessions().ActiveAuctions())

	h.clock.Add(countdown)
	result := h.waitAuctionEnd(gameID)
	assert.Equal(t, "p6", result.Winner)

	owners := 0
	total := 0
	for _, p := range players {
		pl := h.player(gameID, p)
		total += pl.Money
		if h.property(gameID, "Nvidia").OwnedBy(pl.ID) {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
	assert.Equal(t, 6*100000-view.HighestBid, total)
}

func TestCountdownRacingSettlementIsNoop(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	_, err := h.engine.StartAuction(h.ctx, gameID, "alice", "Nike", 2000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.clock.Add(countdown)
	}()
	go func() {
		defer wg.Done()
		_, _ = h.engine.SettleAuction(h.ctx, gameID)
	}()
	wg.Wait()

	h.waitAuctionEnd(gameID)
	// Give a late countdown callback time to run before counting.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.rec.On(broadcast.AuctionEndTopic(gameID)), 1)
	assert.Equal(t, 98000, h.player(gameID, "alice").Money)
}
