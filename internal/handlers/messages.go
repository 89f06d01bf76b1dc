// internal/handlers/messages.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/game"
)

// Inbound intent types.
const (
	IntentJoinQueue    = "join_queue"
	IntentSelectBranch = "select_branch"
	IntentDrawCard     = "draw_card"
	IntentPlayCard     = "play_card"
	IntentEndTurn      = "end_turn"
	IntentChat         = "chat"
	IntentPing         = "ping"
)

// Field limits, in characters.
const (
	MaxDisplayNameLen = 32
	MaxBranchLen      = 32
	MaxChatLen        = 512
)

// ErrMalformedIntent is returned for frames that fail structural validation.
var ErrMalformedIntent = errors.New("malformed intent")

// ClientMessage is an inbound websocket frame.
type ClientMessage struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName,omitempty"`
	Branch      string `json:"branch,omitempty"`
	InstanceID  string `json:"instanceId,omitempty"`
	Text        string `json:"text,omitempty"`

	cardID uuid.UUID
}

// DecodeClientMessage parses and validates a text frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: invalid JSON", ErrMalformedIntent)
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}

// Validate checks the fields each intent requires. It also parses the card
// instance id of play_card.
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case IntentJoinQueue:
		m.DisplayName = strings.TrimSpace(m.DisplayName)
		return checkLen("displayName", m.DisplayName, MaxDisplayNameLen)

	case IntentSelectBranch:
		m.Branch = strings.TrimSpace(m.Branch)
		if m.Branch == "" {
			return fmt.Errorf("%w: branch is required", ErrMalformedIntent)
		}
		return checkLen("branch", m.Branch, MaxBranchLen)

	case IntentPlayCard:
		if m.InstanceID == "" {
			return fmt.Errorf("%w: instanceId is required", ErrMalformedIntent)
		}
		id, err := uuid.Parse(m.InstanceID)
		if err != nil {
			return fmt.Errorf("%w: instanceId is not a UUID", ErrMalformedIntent)
		}
		m.cardID = id
		return nil

	case IntentChat:
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("%w: text is required", ErrMalformedIntent)
		}
		return checkLen("text", m.Text, MaxChatLen)

	case IntentDrawCard, IntentEndTurn, IntentPing:
		return nil

	case "":
		return fmt.Errorf("%w: type is required", ErrMalformedIntent)
	}
	return fmt.Errorf("%w: unknown type %q", ErrMalformedIntent, m.Type)
}

// CardID is the parsed instance id of a validated play_card intent.
func (m ClientMessage) CardID() uuid.UUID {
	return m.cardID
}

func checkLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s longer than %d characters", ErrMalformedIntent, field, max)
	}
	return nil
}

// rejectCode extends game.RejectCode with gateway-level errors.
func rejectCode(err error) string {
	if errors.Is(err, ErrMalformedIntent) {
		return "MalformedIntent"
	}
	return game.RejectCode(err)
}

// rejection builds the message sent back to the actor only.
func rejection(intent string, err error) game.GameEvent {
	return game.GameEvent{
		Type:   game.EventRejected,
		Intent: intent,
		Reason: err.Error(),
		Code:   rejectCode(err),
	}
}
