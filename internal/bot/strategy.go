// internal/bot/strategy.go
package bot

import (
	"math"

	"github.com/jason-s-yu/mathduel/internal/game"
	"github.com/jason-s-yu/mathduel/internal/handlers"
	"github.com/jason-s-yu/mathduel/internal/models"
)

// LowHealth is the IP at or below which the bot prefers healing.
const LowHealth = 40.0

// ChooseAction picks the next intent for the player the snapshot was built
// for. It reports false when it is not that player's move.
func ChooseAction(s game.Snapshot) (handlers.ClientMessage, bool) {
	if !s.Started || s.Over || s.CurrentRole != s.You {
		return handlers.ClientMessage{}, false
	}
	if s.Phase == game.PhaseDraw {
		return handlers.ClientMessage{Type: handlers.IntentDrawCard}, true
	}

	me, opp, ok := views(s)
	if !ok {
		return handlers.ClientMessage{}, false
	}
	if card := bestCard(me, opp); card != nil {
		return handlers.ClientMessage{Type: handlers.IntentPlayCard, InstanceID: card.InstanceID.String()}, true
	}
	return handlers.ClientMessage{Type: handlers.IntentEndTurn}, true
}

func views(s game.Snapshot) (me, opp game.PlayerView, ok bool) {
	var foundMe, foundOpp bool
	for _, p := range s.Players {
		if p.Role == s.You {
			me, foundMe = p, true
		} else {
			opp, foundOpp = p, true
		}
	}
	return me, opp, foundMe && foundOpp
}

// bestCard returns the affordable card worth the most right now, or nil if
// nothing is worth playing.
func bestCard(me, opp game.PlayerView) *models.Card {
	var best *models.Card
	bestScore := 0.0
	for _, c := range me.Hand {
		if c.Cost > me.Tokens {
			continue
		}
		if score := cardValue(c, me, opp); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// cardValue estimates the IP swing of playing c. Anything that finishes the
// opponent outranks everything else.
func cardValue(c *models.Card, me, opp game.PlayerView) float64 {
	damage := func(n int) float64 {
		d := float64(n)
		if me.DoubleDamage.Active && me.DoubleDamage.TurnsRemaining == 1 {
			d *= float64(me.DoubleDamage.Value)
		}
		d -= float64(opp.Block)
		if d <= 0 {
			return 0
		}
		if d >= opp.Health {
			return 1000
		}
		return d
	}
	heal := func(n int) float64 {
		if me.Health > LowHealth {
			return 0
		}
		return math.Min(float64(n), models.MaxHealth-me.Health)
	}

	switch c.Kind {
	case models.KindDamage:
		return damage(c.Magnitude)
	case models.KindHeal:
		return heal(c.Magnitude)
	case models.KindBlock:
		if me.Health > LowHealth {
			return 0
		}
		return float64(c.Magnitude) / 2
	case models.KindSpecial:
		switch c.Special {
		case models.SpecialSquareRoot:
			return opp.Health - math.Sqrt(opp.Health)
		case models.SpecialFactorial:
			return damage(c.Magnitude)
		case models.SpecialPoison:
			if opp.DamageOverTime.Active {
				return 0
			}
			return float64(c.Magnitude) * 3
		case models.SpecialRegenerate:
			if me.HealOverTime.Active {
				return 0
			}
			return heal(c.Magnitude * 3)
		case models.SpecialMirror:
			if me.Reflect.Active {
				return 0
			}
			return 1
		case models.SpecialAmplify:
			if me.DoubleDamage.Active {
				return 0
			}
			return 1
		}
	}
	return 0
}
