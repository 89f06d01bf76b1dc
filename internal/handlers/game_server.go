// internal/handlers/game_server.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/cache"
	"github.com/jason-s-yu/mathduel/internal/game"
	"github.com/jason-s-yu/mathduel/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrDuplicateSession is returned by Connect when the identity is already connected.
	ErrDuplicateSession = errors.New("identity already has a live session")
	// ErrServerClosed is returned once the dispatcher has stopped.
	ErrServerClosed = errors.New("game server stopped")
)

// ActionPublisher receives match actions for the history queue.
type ActionPublisher interface {
	Enqueue(rec cache.MatchActionRecord) bool
}

// Status is the read-only health surface.
type Status struct {
	Status            string `json:"status"`
	ActiveMatches     int    `json:"activeMatches"`
	QueuedPlayers     int    `json:"queuedPlayers"`
	ConnectedSessions int    `json:"connectedSessions"`
}

// GameServer owns the matchmaking queue, the live sessions and every match.
// All of that state is touched only by the goroutine running Run; other
// goroutines submit work through the inbox.
type GameServer struct {
	inbox chan func()
	done  chan struct{}

	queue    *game.Queue
	matches  *game.MatchStore
	sessions map[uuid.UUID]*Session
	logger   *logrus.Logger

	// Publisher, if set, receives every accepted match action. Set before Run.
	Publisher ActionPublisher
	// OnMatchResult, if set, is called on its own goroutine when a match ends. Set before Run.
	OnMatchResult func(models.MatchResult)
}

// NewGameServer builds a dispatcher whose matches are dealt from catalog.
func NewGameServer(logger *logrus.Logger, catalog game.Catalog, rng *rand.Rand) *GameServer {
	return &GameServer{
		inbox:    make(chan func(), 256),
		done:     make(chan struct{}),
		queue:    game.NewQueue(catalog, rng),
		matches:  game.NewMatchStore(),
		sessions: make(map[uuid.UUID]*Session),
		logger:   logger,
	}
}

// Run processes submitted work one item at a time until ctx is cancelled.
// On exit every live match is terminated.
func (gs *GameServer) Run(ctx context.Context) {
	defer close(gs.done)
	for {
		select {
		case <-ctx.Done():
			gs.shutdown()
			return
		case fn := <-gs.inbox:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (gs *GameServer) Done() <-chan struct{} {
	return gs.done
}

// submit queues fn for the dispatcher.
func (gs *GameServer) submit(ctx context.Context, fn func()) error {
	select {
	case gs.inbox <- fn:
		return nil
	case <-gs.done:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a new session. A second session for the same identity is refused.
func (gs *GameServer) Connect(ctx context.Context, sess *Session) error {
	reply := make(chan error, 1)
	err := gs.submit(ctx, func() {
		if _, exists := gs.sessions[sess.Identity]; exists {
			reply <- ErrDuplicateSession
			return
		}
		gs.sessions[sess.Identity] = sess
		reply <- nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-gs.done:
		return ErrServerClosed
	}
}

// Handle submits a validated intent from identity.
func (gs *GameServer) Handle(ctx context.Context, identity uuid.UUID, msg ClientMessage) error {
	return gs.submit(ctx, func() { gs.dispatch(identity, msg) })
}

// Disconnect removes the session of identity from the queue or its match.
// It is submitted even when the caller's context is already cancelled.
func (gs *GameServer) Disconnect(identity uuid.UUID) {
	_ = gs.submit(context.Background(), func() { gs.handleDisconnect(identity) })
}

// Status reports counts of live matches, waiting players and sessions.
func (gs *GameServer) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	err := gs.submit(ctx, func() {
		reply <- Status{
			Status:            "OK",
			ActiveMatches:     gs.matches.Len(),
			QueuedPlayers:     gs.queue.Len(),
			ConnectedSessions: len(gs.sessions),
		}
	})
	if err != nil {
		return Status{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-gs.done:
		return Status{}, ErrServerClosed
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// dispatch routes one intent. Runs on the dispatcher goroutine.
func (gs *GameServer) dispatch(identity uuid.UUID, msg ClientMessage) {
	sess, ok := gs.sessions[identity]
	if !ok {
		gs.logger.Debugf("dropping %s from unknown session %s", msg.Type, identity)
		return
	}

	switch msg.Type {
	case IntentPing:
		sess.Write(game.GameEvent{Type: game.EventPong})
		return
	case IntentJoinQueue:
		if err := gs.joinQueue(sess, msg.DisplayName); err != nil {
			sess.Write(rejection(msg.Type, err))
		}
		return
	}

	m, role, err := gs.matches.Resolve(identity)
	if err != nil {
		sess.Write(rejection(msg.Type, err))
		return
	}

	switch msg.Type {
	case IntentChat:
		gs.relayChat(m, role, msg.Text)
		return
	case IntentSelectBranch:
		err = m.SetReady(role, msg.Branch)
	case IntentDrawCard:
		err = m.Draw(role)
	case IntentPlayCard:
		err = m.PlayCard(role, msg.CardID())
	case IntentEndTurn:
		err = m.EndTurn(role)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrMalformedIntent, msg.Type)
	}
	if err != nil {
		m.Logger.WithField("identity", identity).Debugf("rejected %s: %v", msg.Type, err)
		sess.Write(rejection(msg.Type, err))
		return
	}

	gs.broadcastState(m)
	if m.Over {
		gs.destroy(m)
	}
}

// joinQueue puts sess in the queue, or pairs it and sets up the new match.
func (gs *GameServer) joinQueue(sess *Session, displayName string) error {
	if gs.queue.Contains(sess.Identity) {
		return fmt.Errorf("%w: already queued", game.ErrIllegalTransition)
	}
	if gs.matches.InMatch(sess.Identity) {
		return fmt.Errorf("%w: already in a match", game.ErrIllegalTransition)
	}
	if displayName == "" {
		displayName = DefaultDisplayName(sess.Identity)
	}
	sess.DisplayName = displayName

	m, paired := gs.queue.Enqueue(game.QueueEntry{Identity: sess.Identity, DisplayName: displayName})
	if !paired {
		gs.logger.WithField("identity", sess.Identity).Infof("%s is waiting for an opponent", displayName)
		sess.Write(game.GameEvent{Type: game.EventWaiting})
		return nil
	}

	gs.attach(m)
	gs.matches.Add(m)
	m.Logger.Infof("paired %s and %s", m.Players[game.RoleFirst].DisplayName, m.Players[game.RoleSecond].DisplayName)

	for _, role := range []game.Role{game.RoleFirst, game.RoleSecond} {
		matchID := m.ID
		gs.sendTo(m.Players[role].Identity, game.GameEvent{
			Type:         game.EventMatched,
			MatchID:      &matchID,
			Role:         role,
			OpponentName: m.Players[role.Opponent()].DisplayName,
		})
	}
	gs.broadcastState(m)
	return nil
}

// attach wires a new match's callbacks to this server.
func (gs *GameServer) attach(m *game.Match) {
	m.Logger = gs.logger.WithField("match", m.ID)
	m.BroadcastFn = func(ev game.GameEvent) {
		for _, p := range m.Players {
			gs.sendTo(p.Identity, ev)
		}
	}
	if gs.Publisher != nil {
		pub := gs.Publisher
		m.ActionSink = func(rec cache.MatchActionRecord) { pub.Enqueue(rec) }
	}
	if gs.OnMatchResult != nil {
		record := gs.OnMatchResult
		m.OnEnd = func(m *game.Match) {
			result := matchResult(m)
			go record(result)
		}
	}
}

func (gs *GameServer) relayChat(m *game.Match, role game.Role, text string) {
	ev := game.GameEvent{
		Type:      game.EventChat,
		From:      m.Players[role].DisplayName,
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, p := range m.Players {
		gs.sendTo(p.Identity, ev)
	}
}

// broadcastState sends each participant their own view of the match.
func (gs *GameServer) broadcastState(m *game.Match) {
	for role, p := range m.Players {
		snap := m.Snapshot(role)
		gs.sendTo(p.Identity, game.GameEvent{Type: game.EventStateUpdate, State: &snap})
	}
}

func (gs *GameServer) sendTo(identity uuid.UUID, ev game.GameEvent) {
	if sess, ok := gs.sessions[identity]; ok {
		sess.Write(ev)
	}
}

func (gs *GameServer) handleDisconnect(identity uuid.UUID) {
	if _, ok := gs.sessions[identity]; !ok {
		return
	}
	delete(gs.sessions, identity)

	if gs.queue.Remove(identity) {
		gs.logger.WithField("identity", identity).Info("removed disconnected player from the queue")
		return
	}

	m, role, err := gs.matches.Resolve(identity)
	if err != nil {
		return
	}
	gs.sendTo(m.Players[role.Opponent()].Identity, game.GameEvent{Type: game.EventOpponentDisconnected})
	m.Terminate(game.EndReasonDisconnected)
	gs.destroy(m)
}

// destroy forgets a finished match so both identities may queue again.
func (gs *GameServer) destroy(m *game.Match) {
	gs.matches.Delete(m.ID)
	m.Logger.Debug("match destroyed")
}

// shutdown terminates every live match and closes every session.
func (gs *GameServer) shutdown() {
	for _, m := range gs.matches.All() {
		m.Terminate(game.EndReasonShutdown)
		gs.destroy(m)
	}
	for id, sess := range gs.sessions {
		if sess.Cancel != nil {
			sess.Cancel()
		}
		delete(gs.sessions, id)
	}
	gs.logger.Info("game server stopped")
}

// DefaultDisplayName names a player who did not choose a name.
func DefaultDisplayName(identity uuid.UUID) string {
	return "Player_" + identity.String()[:6]
}

func matchResult(m *game.Match) models.MatchResult {
	first, second := m.Players[game.RoleFirst], m.Players[game.RoleSecond]
	return models.MatchResult{
		MatchID:    m.ID,
		FirstID:    first.Identity,
		FirstName:  first.DisplayName,
		SecondID:   second.Identity,
		SecondName: second.DisplayName,
		WinnerRole: string(m.Winner),
		Reason:     m.EndReason,
		Turns:      m.TurnNumber,
		StartedAt:  m.StartedAt,
		EndedAt:    m.EndedAt,
	}
}
