package model

import (
	"github.com/google/uuid"
)

// Category tags with special handling.
const (
	CategoryCorner  = "corner"
	CategoryUtility = "utility"
	CategoryCars    = "cars"
)

// Square is a fixed board entry used to seed properties.
type Square struct {
	Name     string
	Position int
	Cost     int
	Category string
	BaseRent int
}

// Board is the fixed layout seeded into every new game.
var Board = []Square{
	{"Go", 0, 0, CategoryCorner, 0},
	{"Chanel", 1, 5000, "pink", 100},
	{"Question Mark", 2, 0, CategoryUtility, 0},
	{"Boss", 3, 5000, "pink", 110},
	{"Money", 4, 0, CategoryUtility, 0},
	{"Mercedes", 5, 3000, CategoryCars, 120},
	{"Adidas", 6, 5000, "yellow", 130},
	{"Question Mark", 7, 0, CategoryUtility, 0},
	{"Nike", 8, 4000, "yellow", 140},
	{"Lacoste", 9, 3000, "yellow", 150},
	{"Go to jail", 10, 0, CategoryCorner, 0},
	{"Instagram", 11, 3000, "social media", 160},
	{"Rockstar", 12, 3000, "games", 170},
	{"X", 13, 3000, "social media", 180},
	{"Tik Tok", 14, 3000, "social media", 190},
	{"Ferrari", 15, 2000, CategoryCars, 200},
	{"Coca Cola", 16, 3000, "drinks", 210},
	{"Question Mark", 17, 0, CategoryUtility, 0},
	{"Pepsi", 18, 3000, "drinks", 220},
	{"Sprite", 19, 3000, "drinks", 230},
	{"Casino", 20, 0, CategoryCorner, 0},
	{"Ryanair", 21, 3400, "aircompany", 240},
	{"Question Mark", 22, 0, CategoryUtility, 0},
	{"British airways", 23, 3050, "aircompany", 250},
	{"Qatar Airways", 24, 3500, "aircompany", 260},
	{"Aston Martin", 25, 3000, CategoryCars, 270},
	{"Burger King", 26, 3000, "fastfood", 280},
	{"McDonalds", 27, 3000, "fastfood", 290},
	{"Activision", 28, 3000, "games", 300},
	{"KFC", 29, 3000, "fastfood", 310},
	{"Prison", 30, 0, CategoryCorner, 0},
	{"HolidayInn", 31, 4000, "hotels", 320},
	{"Radisson Blu", 32, 4000, "hotels", 330},
	{"Question Mark", 33, 0, CategoryUtility, 0},
	{"Novotel", 34, 4000, "hotels", 340},
	{"Porsche", 35, 3000, CategoryCars, 350},
	{"Diamond", 36, 0, CategoryUtility, 0},
	{"Apple", 37, 5000, "technology", 360},
	{"Question Mark", 38, 0, CategoryUtility, 0},
	{"Nvidia", 39, 5500, "technology", 370},
}

// NewProperty builds an unowned property from a square. The mortgage value
// is fixed here at half the cost.
func NewProperty(gameID string, sq Square) *Property {
	return &Property{
		ID:               uuid.NewString(),
		GameID:           gameID,
		Name:             sq.Name,
		Position:         sq.Position,
		Category:         sq.Category,
		Cost:             sq.Cost,
		BaseRent:         sq.BaseRent,
		OriginalBaseRent: sq.BaseRent,
		MortgageValue:    sq.Cost / 2,
	}
}

// SeedProperties returns the full board of properties for a new game.
func SeedProperties(gameID string) []*Property {
	props := make([]*Property, 0, len(Board))
	for _, sq := range Board {
		props = append(props, NewProperty(gameID, sq))
	}
	return props
}

// playerColors is assigned to players by seat.
var playerColors = []string{"red", "blue", "green", "yellow", "purple", "orange", "pink", "teal"}

// ColorForSeat returns the token color for a seat number.
func ColorForSeat(seat int) string {
	if seat < 0 {
		seat = 0
	}
	return playerColors[seat%len(playerColors)]
}
