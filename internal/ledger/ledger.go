// Package ledger implements the property economy rules: rent, category
// bonuses, offices and mortgages. Functions mutate the records they are given
// and never touch storage.
package ledger

import (
	"strings"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
)

const (
	// OfficePrice is paid per office bought and refunded per office sold.
	OfficePrice = 2000
	// MaxOffices is the office cap per property.
	MaxOffices = 4
)

// officeRentPercent is the rent surcharge per office count.
var officeRentPercent = map[int]int{
	1: 10,
	2: 20,
	3: 30,
	4: 50,
}

// carRent is the absolute base rent for each car when a player owns n cars.
func carRent(n int) (int, bool) {
	switch {
	case n >= 4:
		return 2000, true
	case n == 3:
		return 1000, true
	case n == 2:
		return 500, true
	default:
		return 0, false
	}
}

// IsCars reports whether category is the car category.
func IsCars(category string) bool {
	return strings.EqualFold(category, model.CategoryCars)
}

// Rent returns the rent owed for landing on p. Mortgaged properties have a
// zero base rent, so they yield zero.
func Rent(p *model.Property) int {
	base := p.BaseRent
	return base + base*officeRentPercent[p.Offices]/100
}

// ApplyCategoryBonus recomputes rents after owner acquired a property in
// category. props must hold every property of that category in the game.
// It returns the properties whose rent changed.
//
// Cars use absolute rents by count owned. Other categories get a permanent
// 20% raise on every property once the owner holds the whole set.
func ApplyCategoryBonus(owner *model.Player, category string, props []*model.Property) []*model.Property {
	var mine []*model.Property
	for _, p := range props {
		if p.OwnedBy(owner.ID) {
			mine = append(mine, p)
		}
	}

	if IsCars(category) {
		rent, ok := carRent(len(mine))
		if !ok {
			return nil
		}
		for _, p := range mine {
			setBaseRent(p, rent)
		}
		return mine
	}

	if len(props) == 0 || len(mine) != len(props) {
		return nil
	}
	for _, p := range mine {
		setBaseRent(p, p.OriginalBaseRent*12/10)
	}
	return mine
}

// setBaseRent records rent as the new baseline. A mortgaged property keeps
// charging nothing until it is unmortgaged.
func setBaseRent(p *model.Property, rent int) {
	p.OriginalBaseRent = rent
	if !p.Mortgaged {
		p.BaseRent = rent
	}
}

// UnmortgageCost is the mortgage value plus 10%, rounded up.
func UnmortgageCost(p *model.Property) int {
	return (p.MortgageValue*11 + 9) / 10
}

// Mortgage zeroes the property's rent and credits owner its mortgage value.
func Mortgage(owner *model.Player, p *model.Property) error {
	if err := requireOwner(owner, p); err != nil {
		return err
	}
	if p.Mortgaged {
		return apperrors.InvalidAction("property %s is already mortgaged", p.Name)
	}
	if p.Offices > 0 {
		return apperrors.InvalidAction("cannot mortgage property %s with offices", p.Name)
	}

	p.Mortgaged = true
	p.BaseRent = 0
	owner.Money += p.MortgageValue
	return nil
}

// Unmortgage charges owner UnmortgageCost and restores the recorded base rent.
func Unmortgage(owner *model.Player, p *model.Property) error {
	if err := requireOwner(owner, p); err != nil {
		return err
	}
	if !p.Mortgaged {
		return apperrors.InvalidAction("property %s is not mortgaged", p.Name)
	}
	cost := UnmortgageCost(p)
	if owner.Money < cost {
		return apperrors.InsufficientFunds("insufficient funds to unmortgage %s: need %d", p.Name, cost)
	}

	owner.Money -= cost
	p.Mortgaged = false
	p.BaseRent = p.OriginalBaseRent
	return nil
}

// BuyOffice adds one office to p, charging owner OfficePrice.
func BuyOffice(owner *model.Player, p *model.Property) error {
	if err := requireOwner(owner, p); err != nil {
		return err
	}
	if IsCars(p.Category) {
		return apperrors.InvalidAction("cannot buy offices for properties in the cars category")
	}
	if p.Mortgaged {
		return apperrors.InvalidAction("cannot buy offices on mortgaged property %s", p.Name)
	}
	if p.Offices >= MaxOffices {
		return apperrors.InvalidAction("maximum number of offices reached for %s", p.Name)
	}
	if owner.Money < OfficePrice {
		return apperrors.InsufficientFunds("insufficient funds to buy an office")
	}

	p.Offices++
	owner.Money -= OfficePrice
	return nil
}

// SellOffice removes one office from p, refunding owner OfficePrice.
func SellOffice(owner *model.Player, p *model.Property) error {
	if err := requireOwner(owner, p); err != nil {
		return err
	}
	if p.Offices == 0 {
		return apperrors.InvalidAction("no offices to sell on %s", p.Name)
	}

	p.Offices--
	owner.Money += OfficePrice
	return nil
}

func requireOwner(owner *model.Player, p *model.Property) error {
	if !p.OwnedBy(owner.ID) {
		return apperrors.InvalidAction("player %s does not own %s", owner.Username, p.Name)
	}
	return nil
}
