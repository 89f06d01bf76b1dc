// internal/game/effects.go
package game

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jason-s-yu/mathduel/internal/models"
)

// LogCategory groups game log lines for client styling.
type LogCategory string

const (
	LogDamage  LogCategory = "damage"
	LogHeal    LogCategory = "heal"
	LogDefense LogCategory = "defense"
	LogSpecial LogCategory = "special"
	LogStatus  LogCategory = "status"
	LogTurn    LogCategory = "turn"
)

// LogEntry is a human-readable line describing something that happened in a match.
type LogEntry struct {
	Message  string      `json:"message"`
	Category LogCategory `json:"category"`
}

const (
	statusDuration = 3 // poison and regenerate
	reflectTurns   = 1
	amplifyTurns   = 2 // armed on the owner's next turn, expires after it
)

// Resolve applies a played card's effect to the actor/opponent pair and returns
// the log lines describing it. The card must already have been paid for.
func Resolve(card *models.Card, actor, opponent *models.PlayerState) []LogEntry {
	switch card.Kind {
	case models.KindDamage:
		return dealDamage(card, actor, opponent, card.Magnitude*damageMultiplier(actor))

	case models.KindHeal:
		gained := actor.Heal(float64(card.Magnitude))
		return []LogEntry{{
			Message:  fmt.Sprintf("%s healed for %s IP!", actor.DisplayName, formatIP(gained)),
			Category: LogHeal,
		}}

	case models.KindBlock:
		actor.Block = card.Magnitude
		return []LogEntry{{
			Message:  fmt.Sprintf("%s gained %d block!", actor.DisplayName, card.Magnitude),
			Category: LogDefense,
		}}

	case models.KindSpecial:
		return resolveSpecial(card, actor, opponent)
	}

	return []LogEntry{{
		Message:  fmt.Sprintf("%s played %s, but nothing happened.", actor.DisplayName, card.Name),
		Category: LogSpecial,
	}}
}

func resolveSpecial(card *models.Card, actor, opponent *models.PlayerState) []LogEntry {
	switch card.Special {
	case models.SpecialSquareRoot:
		before := opponent.Health
		opponent.SetHealth(math.Sqrt(opponent.Health))
		return []LogEntry{{
			Message:  fmt.Sprintf("%s played %s! %s's IP drops from %s to %s.", actor.DisplayName, card.Name, opponent.DisplayName, formatIP(before), formatIP(opponent.Health)),
			Category: LogSpecial,
		}}

	case models.SpecialFactorial:
		return dealDamage(card, actor, opponent, card.Magnitude*damageMultiplier(actor))

	case models.SpecialPoison:
		opponent.DamageOverTime.Set(card.Magnitude, statusDuration)
		return []LogEntry{{
			Message:  fmt.Sprintf("%s poisoned %s for %d IP per turn over %d turns!", actor.DisplayName, opponent.DisplayName, card.Magnitude, statusDuration),
			Category: LogStatus,
		}}

	case models.SpecialRegenerate:
		actor.HealOverTime.Set(card.Magnitude, statusDuration)
		return []LogEntry{{
			Message:  fmt.Sprintf("%s will regenerate %d IP per turn over %d turns!", actor.DisplayName, card.Magnitude, statusDuration),
			Category: LogStatus,
		}}

	case models.SpecialMirror:
		actor.Reflect.Set(card.Magnitude, reflectTurns)
		return []LogEntry{{
			Message:  fmt.Sprintf("%s raised a mirror reflecting up to %d damage!", actor.DisplayName, card.Magnitude),
			Category: LogStatus,
		}}

	case models.SpecialAmplify:
		actor.DoubleDamage.Set(2, amplifyTurns)
		return []LogEntry{{
			Message:  fmt.Sprintf("%s amplified their next turn: damage is doubled!", actor.DisplayName),
			Category: LogStatus,
		}}
	}

	return []LogEntry{{
		Message:  fmt.Sprintf("%s played %s, but nothing happened.", actor.DisplayName, card.Name),
		Category: LogSpecial,
	}}
}

// dealDamage applies raw damage minus the target's block. Block is not consumed.
// An active reflect on the target returns part of the loss to the attacker and is used up.
func dealDamage(card *models.Card, attacker, target *models.PlayerState, raw int) []LogEntry {
	final := raw - target.Block
	if final < 0 {
		final = 0
	}
	lost := target.TakeDamage(float64(final))

	logs := []LogEntry{{
		Message:  fmt.Sprintf("%s played %s for %d damage!", attacker.DisplayName, card.Name, final),
		Category: LogDamage,
	}}

	if target.Reflect.Active && lost > 0 {
		back := math.Min(float64(target.Reflect.Value), lost)
		attacker.TakeDamage(back)
		target.Reflect = models.StatusEffect{}
		logs = append(logs, LogEntry{
			Message:  fmt.Sprintf("%s's mirror reflected %s damage back to %s!", target.DisplayName, formatIP(back), attacker.DisplayName),
			Category: LogStatus,
		})
	}
	return logs
}

// damageMultiplier is 2 while the actor's double-damage slot is armed.
// The slot is armed on its last remaining turn, i.e. the owner's turn after it was played.
func damageMultiplier(actor *models.PlayerState) int {
	dd := actor.DoubleDamage
	if dd.Active && dd.TurnsRemaining == 1 && dd.Value > 1 {
		return dd.Value
	}
	return 1
}

// TickStatus runs the owner's status slots at the start of their turn.
// Damage over time ignores block and reflect, and lands before any healing.
func TickStatus(owner *models.PlayerState) []LogEntry {
	var logs []LogEntry

	if owner.DamageOverTime.Active {
		lost := owner.TakeDamage(float64(owner.DamageOverTime.Value))
		logs = append(logs, LogEntry{
			Message:  fmt.Sprintf("%s takes %s poison damage.", owner.DisplayName, formatIP(lost)),
			Category: LogStatus,
		})
		owner.DamageOverTime.Tick()
		if owner.Defeated() {
			return logs
		}
	}

	if owner.HealOverTime.Active {
		gained := owner.Heal(float64(owner.HealOverTime.Value))
		logs = append(logs, LogEntry{
			Message:  fmt.Sprintf("%s regenerates %s IP.", owner.DisplayName, formatIP(gained)),
			Category: LogStatus,
		})
		owner.HealOverTime.Tick()
	}

	owner.Reflect.Tick()
	owner.DoubleDamage.Tick()
	return logs
}

// formatIP renders health amounts without trailing zeros (5, 3.16).
func formatIP(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
