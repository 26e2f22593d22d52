package model

// PropertyView is the broadcast shape of a property.
type PropertyView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Position      int    `json:"position"`
	Category      string `json:"category"`
	Cost          int    `json:"cost"`
	BaseRent      int    `json:"baseRent"`
	Offices       int    `json:"offices"`
	Mortgaged     bool   `json:"mortgaged"`
	MortgageValue int    `json:"mortgageValue"`
	Owner         string `json:"owner,omitempty"`
}

// PlayerView is the broadcast shape of a player with the properties they own.
type PlayerView struct {
	ID         string         `json:"id"`
	Username   string         `json:"username"`
	Color      string         `json:"color"`
	Position   int            `json:"currentPosition"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Money      int            `json:"money"`
	Properties []PropertyView `json:"properties"`
}

// ViewProperty converts a property, resolving the owner's username through owners.
func ViewProperty(p *Property, owners map[string]string) PropertyView {
	return PropertyView{
		ID:            p.ID,
		Name:          p.Name,
		Position:      p.Position,
		Category:      p.Category,
		Cost:          p.Cost,
		BaseRent:      p.BaseRent,
		Offices:       p.Offices,
		Mortgaged:     p.Mortgaged,
		MortgageValue: p.MortgageValue,
		Owner:         owners[p.OwnerID],
	}
}

// Roster builds the ordered player snapshot for a game.
func Roster(players []*Player, properties []*Property) []PlayerView {
	owners := make(map[string]string, len(players))
	for _, p := range players {
		owners[p.ID] = p.Username
	}

	owned := make(map[string][]PropertyView, len(players))
	for _, prop := range properties {
		if prop.Owned() {
			owned[prop.OwnerID] = append(owned[prop.OwnerID], ViewProperty(prop, owners))
		}
	}

	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		props := owned[p.ID]
		if props == nil {
			props = []PropertyView{}
		}
		views = append(views, PlayerView{
			ID:         p.ID,
			Username:   p.Username,
			Color:      p.Color,
			Position:   p.Position,
			X:          p.Coords.X,
			Y:          p.Coords.Y,
			Money:      p.Money,
			Properties: props,
		})
	}
	return views
}
