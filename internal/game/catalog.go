// internal/game/catalog.go
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jason-s-yu/mathduel/internal/models"
)

// Multiplicity is how many physical copies of each catalog entry go into a match deck.
const Multiplicity = 3

// Catalog is the ordered, immutable set of card templates a deck is built from.
type Catalog []models.CardTemplate

// DefaultCatalog returns the built-in eight-card set.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "add_5", Name: "Add 5", Description: "Deal 5 damage", Cost: 2, Kind: models.KindDamage, Magnitude: 5},
		{ID: "sub_3", Name: "Subtract 3", Description: "Deal 3 damage", Cost: 1, Kind: models.KindDamage, Magnitude: 3},
		{ID: "mult_2", Name: "Multiply by 2", Description: "Deal 8 damage", Cost: 3, Kind: models.KindDamage, Magnitude: 8},
		{ID: "div_2", Name: "Divide by 2", Description: "Heal 4 IP", Cost: 2, Kind: models.KindHeal, Magnitude: 4},
		{ID: "shield_3", Name: "Shield", Description: "Block 5 damage until your next turn", Cost: 2, Kind: models.KindBlock, Magnitude: 5},
		{ID: "heal_4", Name: "Healing Formula", Description: "Restore 6 IP", Cost: 2, Kind: models.KindHeal, Magnitude: 6},
		{ID: "sqrt", Name: "Square Root", Description: "Set opponent IP to its square root", Cost: 4, Kind: models.KindSpecial, Special: models.SpecialSquareRoot},
		{ID: "factorial", Name: "Factorial", Description: "Deal massive damage", Cost: 5, Kind: models.KindSpecial, Magnitude: 12, Special: models.SpecialFactorial},
	}
}

// LoadCatalog reads a JSON array of card templates from path and validates it.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the catalog is usable for building decks.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return errors.New("catalog is empty")
	}
	seen := make(map[string]bool, len(c))
	for i, t := range c {
		if t.ID == "" {
			return fmt.Errorf("entry %d: missing id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("entry %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		if t.Cost < 0 {
			return fmt.Errorf("card %q: negative cost %d", t.ID, t.Cost)
		}
		if !t.Kind.Valid() {
			return fmt.Errorf("card %q: unknown kind %q", t.ID, t.Kind)
		}
		if t.Kind == models.KindSpecial && !t.Special.Valid() {
			return fmt.Errorf("card %q: unknown special %q", t.ID, t.Special)
		}
	}
	return nil
}

// Lookup returns the template with the given id.
func (c Catalog) Lookup(id string) (models.CardTemplate, bool) {
	for _, t := range c {
		if t.ID == id {
			return t, true
		}
	}
	return models.CardTemplate{}, false
}

// BuildCards stamps Multiplicity fresh instances of every entry, in catalog order.
func (c Catalog) BuildCards() []*models.Card {
	cards := make([]*models.Card, 0, len(c)*Multiplicity)
	for i := 0; i < Multiplicity; i++ {
		for _, t := range c {
			cards = append(cards, models.NewCard(t))
		}
	}
	return cards
}
