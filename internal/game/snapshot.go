// internal/game/snapshot.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/models"
)

// PlayerView is one player's state as seen by a given recipient. Hand is only
// filled for the recipient's own seat; the opponent's hand is a count.
type PlayerView struct {
	Role          Role           `json:"role"`
	DisplayName   string         `json:"displayName"`
	Health        float64        `json:"health"`
	Tokens        int            `json:"tokens"`
	Block         int            `json:"block"`
	Ready         bool           `json:"ready"`
	Branch        string         `json:"branch,omitempty"`
	HandSize      int            `json:"handSize"`
	Hand          []*models.Card `json:"hand,omitempty"`
	IsCurrentTurn bool           `json:"isCurrentTurn"`

	DamageOverTime models.StatusEffect `json:"damageOverTime"`
	HealOverTime   models.StatusEffect `json:"healOverTime"`
	Reflect        models.StatusEffect `json:"reflect"`
	DoubleDamage   models.StatusEffect `json:"doubleDamage"`
}

// Snapshot is the full match state sent in a state_update.
type Snapshot struct {
	MatchID             uuid.UUID      `json:"matchId"`
	Status              Status         `json:"status"`
	You                 Role           `json:"you"`
	CurrentRole         Role           `json:"currentRole"`
	TurnNumber          int            `json:"turnNumber"`
	Phase               Phase          `json:"phase"`
	DeckSize            int            `json:"deckSize"`
	DiscardSize         int            `json:"discardSize"`
	CardsPlayedThisTurn []*models.Card `json:"cardsPlayedThisTurn"`
	Started             bool           `json:"started"`
	Over                bool           `json:"over"`
	Winner              Role           `json:"winner,omitempty"`
	Players             []PlayerView   `json:"players"`
}

// Snapshot builds the state as seen by forRole.
func (m *Match) Snapshot(forRole Role) Snapshot {
	s := Snapshot{
		MatchID:             m.ID,
		Status:              m.Status(),
		You:                 forRole,
		CurrentRole:         m.CurrentRole,
		TurnNumber:          m.TurnNumber,
		Phase:               m.Phase,
		CardsPlayedThisTurn: append([]*models.Card{}, m.CardsPlayedThisTurn...),
		Started:             m.Started,
		Over:                m.Over,
		Winner:              m.Winner,
	}
	if m.Deck != nil {
		s.DeckSize = m.Deck.Size()
		s.DiscardSize = m.Deck.DiscardSize()
	}

	for _, role := range []Role{RoleFirst, RoleSecond} {
		p := m.Players[role]
		v := PlayerView{
			Role:           role,
			DisplayName:    p.DisplayName,
			Health:         p.Health,
			Tokens:         p.Tokens,
			Block:          p.Block,
			Ready:          p.Ready,
			Branch:         p.Branch,
			HandSize:       len(p.Hand),
			IsCurrentTurn:  m.Started && role == m.CurrentRole,
			DamageOverTime: p.DamageOverTime,
			HealOverTime:   p.HealOverTime,
			Reflect:        p.Reflect,
			DoubleDamage:   p.DoubleDamage,
		}
		if role == forRole {
			v.Hand = append([]*models.Card{}, p.Hand...)
		}
		s.Players = append(s.Players, v)
	}
	return s
}
