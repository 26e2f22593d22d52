package engine

import (
	"testing"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovePlayerPassGo(t *testing.T) {
	tests := []struct {
		name     string
		from     int
		to       int
		start    bool
		passedGo bool
	}{
		{"forward", 5, 9, false, false},
		{"wraparound", 38, 2, false, true},
		{"start on go", 0, 0, true, true},
		{"land on go mid move", 36, 0, false, true},
		{"same square", 7, 7, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			gameID := h.newGame("alice", "bob")
			h.setPosition(gameID, "alice", tt.from)

			result, err := h.engine.MovePlayer(h.ctx, Move{
				GameID:   gameID,
				Username: "alice",
				Position: tt.to,
				Coords:   model.Coords{X: 12.5, Y: 40},
				Start:    tt.start,
			})
			require.NoError(t, err)

			want := 100000
			if tt.passedGo {
				want += 2000
			}
			assert.Equal(t, tt.passedGo, result.PassedGo)
			alice := h.player(gameID, "alice")
			assert.Equal(t, want, alice.Money)
			assert.Equal(t, tt.to, alice.Position)
			assert.Equal(t, model.Coords{X: 12.5, Y: 40}, alice.Coords)
			assert.Nil(t, result.LandedProperty)
		})
	}
}

func TestMovePlayerReportsRentWithOffices(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	prop := h.giveProperty(gameID, "bob", "Chanel")
	prop.BaseRent = 100
	prop.Offices = 2
	h.updateProperty(prop)

	result, err := h.engine.MovePlayer(h.ctx, Move{GameID: gameID, Username: "alice", Position: prop.Position, Final: true})
	require.NoError(t, err)

	require.NotNil(t, result.LandedProperty)
	assert.True(t, result.LandedProperty.NeedToPayRent)
	assert.Equal(t, 120, result.LandedProperty.Rent)
	assert.Equal(t, "bob", result.LandedProperty.Owner)

	// Reporting rent moves no money.
	assert.Equal(t, 100000, h.player(gameID, "alice").Money)
	assert.Equal(t, 100000, h.player(gameID, "bob").Money)

	events := h.rec.On(broadcast.GameTopic(gameID))
	require.Len(t, events, 1)
	assert.Equal(t, 120, events[0].Payload.(MoveResult).LandedProperty.Rent)
}

func TestMovePlayerNoRentOnOwnOrFreeSquare(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")
	own := h.giveProperty(gameID, "alice", "Boss")

	result, err := h.engine.MovePlayer(h.ctx, Move{GameID: gameID, Username: "alice", Position: own.Position, Final: true})
	require.NoError(t, err)
	assert.Nil(t, result.LandedProperty)

	result, err = h.engine.MovePlayer(h.ctx, Move{GameID: gameID, Username: "alice", Position: 6, Final: true})
	require.NoError(t, err)
	assert.Nil(t, result.LandedProperty)
}

func TestMovePlayerValidation(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	_, err := h.engine.MovePlayer(h.ctx, Move{GameID: gameID, Username: "alice", Position: 40})
	assertCode(t, err, apperrors.CodeInvalidArgument)

	_, err = h.engine.MovePlayer(h.ctx, Move{GameID: gameID, Username: "zed", Position: 3})
	assertCode(t, err, apperrors.CodePlayerNotFound)

	_, err = h.engine.MovePlayer(h.ctx, Move{GameID: "missing", Username: "alice", Position: 3})
	assertCode(t, err, apperrors.CodeGameNotFound)
}

func TestLandOnJailField(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")
	h.setPosition(gameID, "alice", 30)

	result, err := h.engine.LandOnField(h.ctx, gameID, "alice", "Prison")
	require.NoError(t, err)
	assert.True(t, result.Relocated)
	assert.Equal(t, 10, result.NewPosition)
	assert.Equal(t, 10, h.player(gameID, "alice").Position)
	assert.Len(t, h.rec.On(broadcast.GameTopic(gameID)), 1)

	result, err = h.engine.LandOnField(h.ctx, gameID, "alice", "Casino")
	require.NoError(t, err)
	assert.False(t, result.Relocated)
	assert.Len(t, h.rec.On(broadcast.GameTopic(gameID)), 1)
}

func TestPayRent(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	prop := h.giveProperty(gameID, "bob", "Chanel")
	prop.Offices = 4
	h.updateProperty(prop)
	h.setPosition(gameID, "alice", prop.Position)

	result, err := h.engine.PayRent(h.ctx, gameID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 150, result.Amount)
	assert.Equal(t, "bob", result.To)
	assert.Equal(t, 100000-150, h.player(gameID, "alice").Money)
	assert.Equal(t, 100000+150, h.player(gameID, "bob").Money)
}

func TestPayRentRejections(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	h.setPosition(gameID, "alice", 1)
	_, err := h.engine.PayRent(h.ctx, gameID, "alice")
	assertCode(t, err, apperrors.CodeInvalidAction)

	h.giveProperty(gameID, "bob", "Chanel")
	h.setMoney(gameID, "alice", 10)
	_, err = h.engine.PayRent(h.ctx, gameID, "alice")
	assertCode(t, err, apperrors.CodeInsufficientFunds)
	assert.Equal(t, 10, h.player(gameID, "alice").Money)
	assert.Equal(t, 100000, h.player(gameID, "bob").Money)
}

func TestPayMoney(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	_, err := h.engine.PayMoney(h.ctx, gameID, "alice", 2500)
	require.NoError(t, err)
	assert.Equal(t, 97500, h.player(gameID, "alice").Money)

	_, err = h.engine.PayMoney(h.ctx, gameID, "alice", 97501)
	assertCode(t, err, apperrors.CodeInsufficientFunds)
	assert.Equal(t, 97500, h.player(gameID, "alice").Money)

	_, err = h.engine.PayMoney(h.ctx, gameID, "alice", 0)
	assertCode(t, err, apperrors.CodeInvalidArgument)
}

func TestPlayCasino(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	h.die = 3
	result, err := h.engine.PlayCasino(h.ctx, gameID, "alice", 1000, []int{3, 5})
	require.NoError(t, err)
	assert.True(t, result.IsWinner)
	assert.Equal(t, 60, result.Multiplier)
	assert.Equal(t, 3, result.RandomNumber)
	assert.Equal(t, 100000+1000+600, h.player(gameID, "alice").Money)

	h.die = 6
	result, err = h.engine.PlayCasino(h.ctx, gameID, "alice", 1000, []int{1})
	require.NoError(t, err)
	assert.False(t, result.IsWinner)
	assert.Equal(t, 100000+1600-1000, h.player(gameID, "alice").Money)
}

func TestPlayCasinoValidation(t *testing.T) {
	h := newHarness(t)
	gameID := h.newGame("alice", "bob")

	tests := []struct {
		name    string
		bet     int
		numbers []int
		code    apperrors.Code
	}{
		{"no numbers", 100, nil, apperrors.CodeInvalidArgument},
		{"too many numbers", 100, []int{1, 2, 3, 4, 5}, apperrors.CodeInvalidArgument},
		{"duplicate", 100, []int{2, 2}, apperrors.CodeInvalidArgument},
		{"off the die", 100, []int{7}, apperrors.CodeInvalidArgument},
		{"zero bet", 0, []int{1}, apperrors.CodeInvalidArgument},
		{"over balance", 100001, []int{1}, apperrors.CodeInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.PlayCasino(h.ctx, gameID, "alice", tt.bet, tt.numbers)
			assertCode(t, err, tt.code)
		})
	}
	assert.Equal(t, 100000, h.player(gameID, "alice").Money)
}
