// internal/models/card.go
package models

import "github.com/google/uuid"

// CardKind selects which resolver case applies when a card is played.
type CardKind string

const (
	KindDamage  CardKind = "damage"
	KindHeal    CardKind = "heal"
	KindBlock   CardKind = "block"
	KindSpecial CardKind = "special"
)

// Valid reports whether k is one of the known kinds.
func (k CardKind) Valid() bool {
	switch k {
	case KindDamage, KindHeal, KindBlock, KindSpecial:
		return true
	}
	return false
}

// SpecialEffect names a heterogeneous effect carried by a card of kind special.
type SpecialEffect string

const (
	SpecialSquareRoot SpecialEffect = "square_root" // opponent IP becomes sqrt(IP)
	SpecialFactorial  SpecialEffect = "factorial"   // heavy fixed damage, reduced by block
	SpecialPoison     SpecialEffect = "poison"      // damage over time on the opponent
	SpecialRegenerate SpecialEffect = "regenerate"  // heal over time on the actor
	SpecialMirror     SpecialEffect = "mirror"      // reflect part of the next incoming hit
	SpecialAmplify    SpecialEffect = "amplify"     // double damage during the actor's next turn
)

// Valid reports whether s is a special effect the resolver knows how to apply.
func (s SpecialEffect) Valid() bool {
	switch s {
	case SpecialSquareRoot, SpecialFactorial, SpecialPoison, SpecialRegenerate, SpecialMirror, SpecialAmplify:
		return true
	}
	return false
}

// CardTemplate is an immutable catalog entry.
type CardTemplate struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Cost        int           `json:"cost"`
	Kind        CardKind      `json:"kind"`
	Magnitude   int           `json:"magnitude"`
	Special     SpecialEffect `json:"special,omitempty"`
}

// Card is one physical copy of a catalog entry. InstanceID is assigned when the
// deck is built and tracks the copy across deck, hand and discard.
type Card struct {
	InstanceID uuid.UUID `json:"instanceId"`
	CardTemplate
}

// NewCard stamps a fresh instance of the template.
func NewCard(t CardTemplate) *Card {
	return &Card{
		InstanceID:   uuid.New(),
		CardTemplate: t,
	}
}
