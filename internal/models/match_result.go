package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchResult is the outcome of a finished or terminated match, kept for history.
// WinnerRole is empty when the match was terminated without a winner.
type MatchResult struct {
	MatchID    uuid.UUID `json:"matchId"`
	FirstID    uuid.UUID `json:"firstId"`
	FirstName  string    `json:"firstName"`
	SecondID   uuid.UUID `json:"secondId"`
	SecondName string    `json:"secondName"`
	WinnerRole string    `json:"winnerRole,omitempty"`
	Reason     string    `json:"reason"`
	Turns      int       `json:"turns"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
}

// Completed reports whether the match ended with a winner.
func (r MatchResult) Completed() bool {
	return r.WinnerRole != ""
}
