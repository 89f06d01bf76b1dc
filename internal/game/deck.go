// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/mathduel/internal/models"
)

// Deck owns a match's draw pile and discard pile. The draw pile is a stack:
// the last element is the next card drawn.
type Deck struct {
	DrawPile []*models.Card
	Discard  []*models.Card

	rng *rand.Rand
}

// NewDeck wraps the given cards as the draw pile. The cards are not shuffled.
func NewDeck(cards []*models.Card, rng *rand.Rand) *Deck {
	return &Deck{
		DrawPile: cards,
		Discard:  []*models.Card{},
		rng:      rng,
	}
}

// Shuffle performs a Fisher-Yates shuffle of the draw pile.
func (d *Deck) Shuffle() {
	for i := len(d.DrawPile) - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.DrawPile[i], d.DrawPile[j] = d.DrawPile[j], d.DrawPile[i]
	}
}

// Draw moves one card from the draw end onto hand. An empty draw pile is
// first refilled from the discard pile and reshuffled; if both are empty the
// hand is returned unchanged with ErrEmptySupply.
func (d *Deck) Draw(hand []*models.Card) ([]*models.Card, *models.Card, error) {
	if len(d.DrawPile) == 0 {
		if len(d.Discard) == 0 {
			return hand, nil, ErrEmptySupply
		}
		d.DrawPile = d.Discard
		d.Discard = []*models.Card{}
		d.Shuffle()
	}
	last := len(d.DrawPile) - 1
	card := d.DrawPile[last]
	d.DrawPile[last] = nil
	d.DrawPile = d.DrawPile[:last]
	return append(hand, card), card, nil
}

// PutDiscard appends a card to the discard pile.
func (d *Deck) PutDiscard(card *models.Card) {
	d.Discard = append(d.Discard, card)
}

// Size is the number of cards left in the draw pile.
func (d *Deck) Size() int { return len(d.DrawPile) }

// DiscardSize is the number of cards in the discard pile.
func (d *Deck) DiscardSize() int { return len(d.Discard) }

// Total counts the cards held by the deck in either pile.
func (d *Deck) Total() int { return len(d.DrawPile) + len(d.Discard) }
