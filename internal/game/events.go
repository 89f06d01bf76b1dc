// internal/game/events.go
package game

import (
	"github.com/google/uuid"
)

// GameEventType is the "type" field of every server-to-client message.
type GameEventType string

const (
	EventWelcome              GameEventType = "welcome"
	EventWaiting              GameEventType = "waiting"
	EventMatched              GameEventType = "matched"
	EventBranchSelected       GameEventType = "branch_selected"
	EventMatchStarted         GameEventType = "match_started"
	EventStateUpdate          GameEventType = "state_update"
	EventGameLog              GameEventType = "game_log"
	EventGameOver             GameEventType = "game_over"
	EventChat                 GameEventType = "chat"
	EventOpponentDisconnected GameEventType = "opponent_disconnected"
	EventRejected             GameEventType = "rejected"
	EventPong                 GameEventType = "pong"
)

// GameEvent is the single outbound message shape. Only the fields relevant to
// Type are set; the rest are omitted from the JSON.
type GameEvent struct {
	Type GameEventType `json:"type"`

	// welcome
	Identity *uuid.UUID `json:"identity,omitempty"`
	Token    string     `json:"token,omitempty"`

	// matched
	MatchID      *uuid.UUID `json:"matchId,omitempty"`
	OpponentName string     `json:"opponentName,omitempty"`

	// matched, branch_selected, chat
	Role   Role   `json:"role,omitempty"`
	Branch string `json:"branch,omitempty"`

	// game_log
	Message  string      `json:"message,omitempty"`
	Category LogCategory `json:"category,omitempty"`

	// game_over
	WinnerRole Role   `json:"winnerRole,omitempty"`
	WinnerName string `json:"winnerName,omitempty"`

	// chat
	From      string `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// rejected
	Intent string `json:"intent,omitempty"`
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`

	// state_update
	State *Snapshot `json:"state,omitempty"`
}

// logEvent wraps a resolver log line for broadcast.
func logEvent(entry LogEntry) GameEvent {
	return GameEvent{
		Type:     EventGameLog,
		Message:  entry.Message,
		Category: entry.Category,
	}
}
