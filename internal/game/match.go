// internal/game/match.go
package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/cache"
	"github.com/jason-s-yu/mathduel/internal/models"
	"github.com/sirupsen/logrus"
)

// InitialHandSize is the number of cards dealt to each player at start.
const InitialHandSize = 5

// TokensPerTurn is granted to a player when their turn begins.
const TokensPerTurn = 2

// Role is a player's stable seat within a match.
type Role string

const (
	RoleFirst  Role = "first"
	RoleSecond Role = "second"
)

// Opponent returns the other seat.
func (r Role) Opponent() Role {
	if r == RoleFirst {
		return RoleSecond
	}
	return RoleFirst
}

// Phase is the step within the current turn.
type Phase string

const (
	PhaseDraw Phase = "draw"
	PhasePlay Phase = "play"
)

// Status is the coarse lifecycle state of a match.
type Status string

const (
	StatusLobby  Status = "lobby"
	StatusActive Status = "active"
	StatusOver   Status = "over"
)

// Reasons recorded in EndReason.
const (
	EndReasonDepleted     = "ip_depleted"
	EndReasonPoison       = "poison"
	EndReasonDisconnected = "disconnected"
	EndReasonShutdown     = "shutdown"
)

// Match holds the authoritative state of one two-player match. It is not safe
// for concurrent use; a single goroutine owns every match.
type Match struct {
	ID      uuid.UUID
	Players map[Role]*models.PlayerState
	Deck    *Deck

	CurrentRole         Role
	TurnNumber          int
	Phase               Phase
	CardsPlayedThisTurn []*models.Card

	Started   bool
	Over      bool
	Winner    Role
	EndReason string

	// TotalCards is the number of cards built at start; conserved until the match ends.
	TotalCards int

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	catalog     Catalog
	rng         *rand.Rand
	actionIndex int

	Logger *logrus.Entry

	// BroadcastFn sends an event to both participants. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// ActionSink receives every accepted action for the match history. Optional.
	ActionSink func(rec cache.MatchActionRecord)

	// OnEnd is invoked once when the match is over, by win or termination.
	OnEnd func(m *Match)
}

// NewMatch seats first and second in a match that waits in the lobby state
// until both have selected a branch.
func NewMatch(first, second *models.PlayerState, catalog Catalog, rng *rand.Rand) *Match {
	id := uuid.New()
	return &Match{
		ID: id,
		Players: map[Role]*models.PlayerState{
			RoleFirst:  first,
			RoleSecond: second,
		},
		CurrentRole:         RoleFirst,
		TurnNumber:          1,
		Phase:               PhaseDraw,
		CardsPlayedThisTurn: []*models.Card{},
		CreatedAt:           time.Now(),
		catalog:             catalog,
		rng:                 rng,
		Logger:              logrus.WithField("match", id),
	}
}

// Status reports the lifecycle state.
func (m *Match) Status() Status {
	switch {
	case m.Over:
		return StatusOver
	case m.Started:
		return StatusActive
	}
	return StatusLobby
}

// RoleOf returns the seat held by identity.
func (m *Match) RoleOf(identity uuid.UUID) (Role, bool) {
	for role, p := range m.Players {
		if p.Identity == identity {
			return role, true
		}
	}
	return "", false
}

// CardCount counts every card currently in the deck, discard or a hand.
func (m *Match) CardCount() int {
	n := 0
	if m.Deck != nil {
		n = m.Deck.Total()
	}
	for _, p := range m.Players {
		n += len(p.Hand)
	}
	return n
}

// SetReady records the branch choice for role. Both players being ready starts
// the match. Once started, the call is rejected and nothing changes.
func (m *Match) SetReady(role Role, branch string) error {
	if m.Over || m.Started {
		return fmt.Errorf("%w: match already %s", ErrIllegalTransition, m.Status())
	}
	p, ok := m.Players[role]
	if !ok {
		return fmt.Errorf("%w: no such role %q", ErrInvalidSender, role)
	}

	p.Branch = branch
	p.Ready = true
	m.logAction(p.Identity, "select_branch", map[string]interface{}{"role": role, "branch": branch})
	m.fireEvent(GameEvent{Type: EventBranchSelected, Role: role, Branch: branch})

	if m.Players[RoleFirst].Ready && m.Players[RoleSecond].Ready {
		m.start()
	}
	return nil
}

// start builds and shuffles the deck and deals the opening hands.
// Assumes both players are ready and the match has not started.
func (m *Match) start() {
	m.Deck = NewDeck(m.catalog.BuildCards(), m.rng)
	m.Deck.Shuffle()
	m.TotalCards = m.Deck.Total()

	first, second := m.Players[RoleFirst], m.Players[RoleSecond]
	for i := 0; i < InitialHandSize; i++ {
		first.Hand, _, _ = m.Deck.Draw(first.Hand)
		second.Hand, _, _ = m.Deck.Draw(second.Hand)
	}

	m.Started = true
	m.StartedAt = time.Now()
	m.CurrentRole = RoleFirst
	m.Phase = PhaseDraw
	m.TurnNumber = 1

	m.Logger.Infof("match started with %d cards, %s vs %s", m.TotalCards, first.DisplayName, second.DisplayName)
	m.logAction(uuid.Nil, "match_start", map[string]interface{}{"cards": m.TotalCards})
	m.fireEvent(GameEvent{Type: EventMatchStarted})
	m.fireLog(m.turnLog())
}

// checkTurn validates the common preconditions of every in-game operation.
func (m *Match) checkTurn(role Role) error {
	if m.Over {
		return fmt.Errorf("%w: match is over", ErrIllegalTransition)
	}
	if !m.Started {
		return fmt.Errorf("%w: match has not started", ErrIllegalTransition)
	}
	if _, ok := m.Players[role]; !ok {
		return fmt.Errorf("%w: no such role %q", ErrInvalidSender, role)
	}
	if role != m.CurrentRole {
		return fmt.Errorf("%w: not %s's turn", ErrIllegalTransition, role)
	}
	return nil
}

// Draw moves one card to the current player's hand and opens the play phase.
// An exhausted supply still opens the play phase.
func (m *Match) Draw(role Role) error {
	if err := m.checkTurn(role); err != nil {
		return err
	}
	if m.Phase != PhaseDraw {
		return fmt.Errorf("%w: already drew this turn", ErrIllegalTransition)
	}

	p := m.Players[role]
	var drawn *models.Card
	var err error
	p.Hand, drawn, err = m.Deck.Draw(p.Hand)
	m.Phase = PhasePlay

	payload := map[string]interface{}{"turn": m.TurnNumber}
	if err != nil {
		m.Logger.Debugf("%s drew from an empty supply", role)
		payload["empty"] = true
	} else {
		payload["card"] = drawn.ID
		payload["instance"] = drawn.InstanceID
	}
	m.logAction(p.Identity, "draw_card", payload)
	return nil
}

// PlayCard pays for and resolves a card from role's hand.
func (m *Match) PlayCard(role Role, instanceID uuid.UUID) error {
	if err := m.checkTurn(role); err != nil {
		return err
	}
	if m.Phase != PhasePlay {
		return fmt.Errorf("%w: draw before playing", ErrIllegalTransition)
	}
	actor, opponent := m.Players[role], m.Players[role.Opponent()]
	idx := actor.HandIndex(instanceID)
	if idx == -1 {
		return fmt.Errorf("%w: %s not in hand", ErrUnknownCard, instanceID)
	}
	card := actor.Hand[idx]
	if !actor.CanAfford(card.Cost) {
		return fmt.Errorf("%w: %s costs %d, have %d", ErrInsufficientResource, card.ID, card.Cost, actor.Tokens)
	}

	actor.SpendTokens(card.Cost)
	actor.TakeFromHand(instanceID)
	m.Deck.PutDiscard(card)
	m.CardsPlayedThisTurn = append(m.CardsPlayedThisTurn, card)

	logs := Resolve(card, actor, opponent)
	m.logAction(actor.Identity, "play_card", map[string]interface{}{
		"turn":     m.TurnNumber,
		"card":     card.ID,
		"instance": card.InstanceID,
		"cost":     card.Cost,
	})
	for _, entry := range logs {
		m.fireLog(entry)
	}

	switch {
	case opponent.Defeated():
		m.end(role, EndReasonDepleted)
	case actor.Defeated():
		m.end(role.Opponent(), EndReasonDepleted)
	}
	return nil
}

// EndTurn passes the turn to the opponent. The incoming player gets tokens,
// loses last turn's block, and has their status effects ticked.
func (m *Match) EndTurn(role Role) error {
	if err := m.checkTurn(role); err != nil {
		return err
	}

	next := role.Opponent()
	m.CurrentRole = next
	m.TurnNumber++
	m.Phase = PhaseDraw
	m.CardsPlayedThisTurn = []*models.Card{}

	incoming := m.Players[next]
	incoming.GrantTokens(TokensPerTurn)
	incoming.Block = 0

	m.logAction(m.Players[role].Identity, "end_turn", map[string]interface{}{"turn": m.TurnNumber})
	m.fireLog(m.turnLog())
	for _, entry := range TickStatus(incoming) {
		m.fireLog(entry)
	}

	if incoming.Defeated() {
		m.end(role, EndReasonPoison)
	}
	return nil
}

// Terminate force-ends the match without a winner. It is a no-op on a match
// that is already over.
func (m *Match) Terminate(reason string) {
	if m.Over {
		return
	}
	m.Over = true
	m.EndReason = reason
	m.EndedAt = time.Now()
	m.Logger.Infof("match terminated: %s", reason)
	m.logAction(uuid.Nil, "match_terminated", map[string]interface{}{"reason": reason})
	if m.OnEnd != nil {
		m.OnEnd(m)
	}
}

// end records a win and announces it.
// Assumes the match is not over.
func (m *Match) end(winner Role, reason string) {
	m.Over = true
	m.Winner = winner
	m.EndReason = reason
	m.EndedAt = time.Now()

	w := m.Players[winner]
	m.Logger.Infof("match over on turn %d, %s (%s) wins: %s", m.TurnNumber, w.DisplayName, winner, reason)
	m.logAction(w.Identity, "match_over", map[string]interface{}{
		"winner": winner,
		"reason": reason,
		"turn":   m.TurnNumber,
	})
	m.fireEvent(GameEvent{Type: EventGameOver, WinnerRole: winner, WinnerName: w.DisplayName})
	if m.OnEnd != nil {
		m.OnEnd(m)
	}
}

func (m *Match) turnLog() LogEntry {
	return LogEntry{
		Message:  fmt.Sprintf("Turn %d: %s's turn", m.TurnNumber, m.Players[m.CurrentRole].DisplayName),
		Category: LogTurn,
	}
}

func (m *Match) fireLog(entry LogEntry) {
	m.fireEvent(logEvent(entry))
}

// fireEvent broadcasts an event to both participants.
func (m *Match) fireEvent(ev GameEvent) {
	if m.BroadcastFn != nil {
		m.BroadcastFn(ev)
	}
}

// logAction hands the action to the history sink, if any.
func (m *Match) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	m.actionIndex++
	if m.ActionSink == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	m.ActionSink(cache.MatchActionRecord{
		MatchID:       m.ID,
		ActionIndex:   m.actionIndex,
		ActorID:       actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	})
}
