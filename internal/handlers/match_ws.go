// internal/handlers/match_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/auth"
	"github.com/jason-s-yu/mathduel/internal/game"
	"github.com/jason-s-yu/mathduel/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "mathduel"

// AuthCookieName holds the identity token between connections.
const AuthCookieName = "auth_token"

const readLimit = 8 << 10

// MatchWSHandler upgrades the connection, registers a session for the caller's
// identity and pumps messages between the socket and the dispatcher until
// either side goes away.
func MatchWSHandler(logger *logrus.Logger, gs *GameServer, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Identity must be settled before Accept so the cookie can be set.
		identity, token, err := ensureIdentity(w, r)
		if err != nil {
			logger.Errorf("issuing identity token: %v", err)
			http.Error(w, "could not issue identity", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("WebSocket accept error from %s: %v", r.RemoteAddr, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")
		c.SetReadLimit(readLimit)

		if c.Subprotocol() != Subprotocol {
			logger.Warnf("Client %s connected with invalid subprotocol: %q", r.RemoteAddr, c.Subprotocol())
			c.Close(BadSubprotocolError, fmt.Sprintf("Client must use the '%s' subprotocol.", Subprotocol))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := NewSession(identity, cancel, logger)
		if err := gs.Connect(ctx, sess); err != nil {
			if errors.Is(err, ErrDuplicateSession) {
				logger.Warnf("refusing second connection for %s", identity)
				c.Close(DuplicateSessionError, "This identity is already connected.")
			} else {
				c.Close(ServerShutdownError, "Server is shutting down.")
			}
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		id := identity
		sess.Write(game.GameEvent{Type: game.EventWelcome, Identity: &id, Token: token})

		// Stop the pumps when the dispatcher shuts down.
		go func() {
			select {
			case <-gs.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		go writePump(ctx, c, sess, logger)
		readErr := readPump(ctx, c, gs, sess, logger)

		gs.Disconnect(identity)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)

		select {
		case <-gs.Done():
			c.Close(ServerShutdownError, "Server is shutting down.")
		default:
			c.Close(websocket.StatusNormalClosure, "")
		}
	}
}

// ensureIdentity returns the caller's identity from a valid request token.
// Callers without one get a fresh identity and token, stored in the cookie.
func ensureIdentity(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, error) {
	if token := requestToken(r); token != "" {
		if identity, err := auth.ParseIdentityToken(token); err == nil {
			return identity, token, nil
		}
	}

	identity := uuid.New()
	token, err := auth.CreateIdentityToken(identity)
	if err != nil {
		return uuid.Nil, "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return identity, token, nil
}

// readPump decodes frames and submits them to the dispatcher. Malformed
// frames are rejected here and never reach a match. It returns the error that
// ended the connection, or nil on a normal close.
func readPump(ctx context.Context, c *websocket.Conn, gs *GameServer, sess *Session, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from %s. Ignoring.", msgType, sess.Identity)
			continue
		}

		msg, err := DecodeClientMessage(data)
		if err != nil {
			logger.Debugf("malformed frame from %s: %v", sess.Identity, err)
			sess.Write(rejection(msg.Type, err))
			continue
		}
		if err := gs.Handle(ctx, sess.Identity, msg); err != nil {
			return nil
		}
	}
}

// writePump drains the session's OutChan onto the socket and keeps the
// connection alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, sess *Session, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sess.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing %s for %s: %v", ev.Type, sess.Identity, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for %s: %v", sess.Identity, err)
				sess.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to send ping to %s: %v. Assuming disconnect.", sess.Identity, err)
				sess.Cancel()
				return
			}
		}
	}
}
