// internal/game/errors.go
package game

import "errors"

var (
	// ErrInvalidSender means the identity has no resolvable match or role.
	ErrInvalidSender = errors.New("invalid sender")
	// ErrIllegalTransition means a turn, phase or role precondition failed.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrInsufficientResource means the player cannot pay the card's cost.
	ErrInsufficientResource = errors.New("insufficient resource")
	// ErrUnknownCard means the instance is not in the player's hand.
	ErrUnknownCard = errors.New("unknown card")
	// ErrEmptySupply means both deck piles are empty. Draws degrade to a no-op.
	ErrEmptySupply = errors.New("empty supply")
)

// RejectCode maps an error to the name sent back to clients in a rejection.
func RejectCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSender):
		return "InvalidSender"
	case errors.Is(err, ErrIllegalTransition):
		return "IllegalTransition"
	case errors.Is(err, ErrInsufficientResource):
		return "InsufficientResource"
	case errors.Is(err, ErrUnknownCard):
		return "UnknownCard"
	case errors.Is(err, ErrEmptySupply):
		return "EmptySupply"
	}
	return "Internal"
}
