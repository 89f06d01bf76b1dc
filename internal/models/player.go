package models

import "github.com/google/uuid"

const (
	MaxHealth      = 100.0
	MaxTokens      = 12
	StartingHealth = MaxHealth
	StartingTokens = MaxTokens
)

// StatusEffect is a timed slot on a player (damage over time, reflect, ...).
// TurnsRemaining counts the owner's turn starts before the slot expires.
type StatusEffect struct {
	Active         bool `json:"active"`
	Value          int  `json:"value"`
	TurnsRemaining int  `json:"turnsRemaining"`
}

// Set arms the slot, overwriting any previous value.
func (s *StatusEffect) Set(value, turns int) {
	s.Active = turns > 0
	s.Value = value
	s.TurnsRemaining = turns
}

// Tick consumes one turn. The slot deactivates once no turns remain.
func (s *StatusEffect) Tick() {
	if !s.Active {
		return
	}
	s.TurnsRemaining--
	if s.TurnsRemaining <= 0 {
		*s = StatusEffect{}
	}
}

// PlayerState is the mutable per-participant record inside a match.
// Health and Tokens are only changed through the clamping methods below.
type PlayerState struct {
	Identity    uuid.UUID `json:"-"`
	DisplayName string    `json:"displayName"`
	Health      float64   `json:"health"`
	Tokens      int       `json:"tokens"`
	Hand        []*Card   `json:"hand"`
	Block       int       `json:"block"`
	Ready       bool      `json:"ready"`
	Branch      string    `json:"branch,omitempty"`

	DamageOverTime StatusEffect `json:"damageOverTime"`
	HealOverTime   StatusEffect `json:"healOverTime"`
	Reflect        StatusEffect `json:"reflect"`
	DoubleDamage   StatusEffect `json:"doubleDamage"`
}

// NewPlayerState returns a player at full IP and tokens with an empty hand.
func NewPlayerState(identity uuid.UUID, displayName string) *PlayerState {
	return &PlayerState{
		Identity:    identity,
		DisplayName: displayName,
		Health:      StartingHealth,
		Tokens:      StartingTokens,
		Hand:        []*Card{},
	}
}

// SetHealth stores v clamped to [0, MaxHealth].
func (p *PlayerState) SetHealth(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > MaxHealth:
		v = MaxHealth
	}
	p.Health = v
}

// TakeDamage lowers health by amount and returns how much was actually lost.
func (p *PlayerState) TakeDamage(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := p.Health
	p.SetHealth(p.Health - amount)
	return before - p.Health
}

// Heal raises health by amount and returns how much was actually gained.
func (p *PlayerState) Heal(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := p.Health
	p.SetHealth(p.Health + amount)
	return p.Health - before
}

// Defeated reports whether the player has no IP left.
func (p *PlayerState) Defeated() bool {
	return p.Health <= 0
}

// CanAfford reports whether the player holds at least cost tokens.
func (p *PlayerState) CanAfford(cost int) bool {
	return p.Tokens >= cost
}

// SpendTokens removes cost tokens, never going below zero.
func (p *PlayerState) SpendTokens(cost int) {
	p.setTokens(p.Tokens - cost)
}

// GrantTokens adds n tokens, never exceeding MaxTokens.
func (p *PlayerState) GrantTokens(n int) {
	p.setTokens(p.Tokens + n)
}

func (p *PlayerState) setTokens(v int) {
	switch {
	case v < 0:
		v = 0
	case v > MaxTokens:
		v = MaxTokens
	}
	p.Tokens = v
}

// HandIndex returns the position of the instance in hand, or -1.
func (p *PlayerState) HandIndex(instanceID uuid.UUID) int {
	for i, c := range p.Hand {
		if c.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// TakeFromHand removes and returns the instance, preserving the order of the rest.
func (p *PlayerState) TakeFromHand(instanceID uuid.UUID) (*Card, bool) {
	idx := p.HandIndex(instanceID)
	if idx == -1 {
		return nil, false
	}
	card := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return card, true
}
