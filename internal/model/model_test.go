package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardCoversEverySquare(t *testing.T) {
	require.Len(t, Board, BoardSize)
	for i, sq := range Board {
		assert.Equal(t, i, sq.Position, sq.Name)
		if sq.Category == CategoryCorner || sq.Category == CategoryUtility {
			assert.Zero(t, sq.Cost, sq.Name)
		}
	}
}

func TestSeedProperties(t *testing.T) {
	props := SeedProperties("g1")
	require.Len(t, props, BoardSize)

	ids := map[string]bool{}
	for _, p := range props {
		assert.Equal(t, "g1", p.GameID)
		assert.False(t, p.Owned())
		assert.Equal(t, p.Cost/2, p.MortgageValue)
		assert.Equal(t, p.BaseRent, p.OriginalBaseRent)
		assert.False(t, ids[p.ID], "duplicate id")
		ids[p.ID] = true
	}
	assert.False(t, props[0].Purchasable())
	assert.True(t, props[39].Purchasable())
}

func TestColorForSeat(t *testing.T) {
	assert.Equal(t, "red", ColorForSeat(0))
	assert.Equal(t, "blue", ColorForSeat(1))
	assert.Equal(t, "red", ColorForSeat(len(playerColors)))
	assert.Equal(t, "red", ColorForSeat(-3))
}

func TestRoster(t *testing.T) {
	alice := &Player{ID: "p1", Username: "alice", Money: 500, Coords: Coords{X: 1, Y: 2}}
	bob := &Player{ID: "p2", Username: "bob"}
	props := []*Property{
		{ID: "a", Name: "Nike", OwnerID: "p1"},
		{ID: "b", Name: "Apple"},
	}

	views := Roster([]*Player{alice, bob}, props)
	require.Len(t, views, 2)
	assert.Equal(t, 1.0, views[0].X)
	require.Len(t, views[0].Properties, 1)
	assert.Equal(t, "alice", views[0].Properties[0].Owner)
	assert.NotNil(t, views[1].Properties)
	assert.Empty(t, views[1].Properties)

	found, ok := FindByUsername([]*Player{alice, bob}, "bob")
	require.True(t, ok)
	assert.Same(t, bob, found)
	assert.Equal(t, -1, IndexOfPlayer([]*Player{alice}, "p2"))
}

func TestCloneIsDeep(t *testing.T) {
	g := &Game{ID: "g", Spectators: []string{"eve"}}
	c := g.Clone()
	c.Spectators[0] = "mallory"
	assert.True(t, g.HasSpectator("eve"))
	assert.Nil(t, (*Game)(nil).Clone())
}
