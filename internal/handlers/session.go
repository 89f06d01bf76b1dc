// internal/handlers/session.go
package handlers

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/game"
	"github.com/sirupsen/logrus"
)

// outBuffer is how many outbound events a slow client may fall behind by.
const outBuffer = 64

// Session is one live client connection. OutChan is drained by the write pump.
type Session struct {
	Identity    uuid.UUID
	DisplayName string
	Cancel      func()
	OutChan     chan game.GameEvent

	logger *logrus.Entry
}

// NewSession creates a session whose Cancel tears down the connection.
func NewSession(identity uuid.UUID, cancel func(), logger *logrus.Logger) *Session {
	return &Session{
		Identity: identity,
		Cancel:   cancel,
		OutChan:  make(chan game.GameEvent, outBuffer),
		logger:   logger.WithField("identity", identity),
	}
}

// Write pushes an event onto OutChan without blocking. Events for a client
// that is too far behind are dropped.
func (s *Session) Write(ev game.GameEvent) {
	select {
	case s.OutChan <- ev:
	default:
		s.logger.Warnf("OutChan full, dropped message type '%s'", ev.Type)
	}
}
