package game

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/cache"
	"github.com/jason-s-yu/mathduel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu      sync.Mutex
	events  []GameEvent
	actions []cache.MatchActionRecord
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = append(mb.events, ev)
}

func (mb *mockBroadcaster) actionSink(rec cache.MatchActionRecord) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.actions = append(mb.actions, rec)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = nil
}

func (mb *mockBroadcaster) ofType(typ GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// setupTestMatch seats two players in a lobby-state match with a seeded deck.
func setupTestMatch(t *testing.T, seed int64) (*Match, *mockBroadcaster) {
	t.Helper()
	m := NewMatch(
		models.NewPlayerState(uuid.New(), "Ada"),
		models.NewPlayerState(uuid.New(), "Bo"),
		DefaultCatalog(),
		rand.New(rand.NewSource(seed)),
	)
	mb := &mockBroadcaster{}
	m.BroadcastFn = mb.broadcastFn
	m.ActionSink = mb.actionSink
	return m, mb
}

// setupStartedMatch readies both players and clears setup events.
func setupStartedMatch(t *testing.T, seed int64) (*Match, *mockBroadcaster) {
	t.Helper()
	m, mb := setupTestMatch(t, seed)
	require.NoError(t, m.SetReady(RoleFirst, "algebra"))
	require.NoError(t, m.SetReady(RoleSecond, "geometry"))
	require.True(t, m.Started)
	mb.clear()
	return m, mb
}

// plant rewrites the first card in role's hand so tests control what is played.
func plant(m *Match, role Role, tmpl models.CardTemplate) *models.Card {
	c := m.Players[role].Hand[0]
	c.CardTemplate = tmpl
	return c
}

var add5 = models.CardTemplate{ID: "add_5", Name: "Add 5", Cost: 2, Kind: models.KindDamage, Magnitude: 5}

func TestMatchStartsWhenBothReady(t *testing.T) {
	m, mb := setupTestMatch(t, 1)
	assert.Equal(t, StatusLobby, m.Status())

	require.NoError(t, m.SetReady(RoleFirst, "algebra"))
	assert.False(t, m.Started)
	assert.Nil(t, m.Deck)

	require.NoError(t, m.SetReady(RoleSecond, "calculus"))
	assert.Equal(t, StatusActive, m.Status())
	assert.Len(t, m.Players[RoleFirst].Hand, InitialHandSize)
	assert.Len(t, m.Players[RoleSecond].Hand, InitialHandSize)
	assert.Equal(t, 1, m.TurnNumber)
	assert.Equal(t, RoleFirst, m.CurrentRole)
	assert.Equal(t, PhaseDraw, m.Phase)
	assert.Equal(t, len(DefaultCatalog())*Multiplicity, m.TotalCards)
	assert.Equal(t, m.TotalCards, m.CardCount())

	assert.Len(t, mb.ofType(EventBranchSelected), 2)
	assert.Len(t, mb.ofType(EventMatchStarted), 1)
	logs := mb.ofType(EventGameLog)
	require.NotEmpty(t, logs)
	assert.Equal(t, "Turn 1: Ada's turn", logs[len(logs)-1].Message)
}

func TestSetReadyAfterStartIsRejected(t *testing.T) {
	m, mb := setupStartedMatch(t, 2)

	err := m.SetReady(RoleFirst, "topology")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, "algebra", m.Players[RoleFirst].Branch)
	assert.Empty(t, mb.events)
}

func TestSetReadyBeforeStartOverwritesBranch(t *testing.T) {
	m, _ := setupTestMatch(t, 2)
	require.NoError(t, m.SetReady(RoleFirst, "algebra"))
	require.NoError(t, m.SetReady(RoleFirst, "logic"))
	assert.Equal(t, "logic", m.Players[RoleFirst].Branch)
	assert.False(t, m.Started)
}

func TestOperationsBeforeStartAreRejected(t *testing.T) {
	m, _ := setupTestMatch(t, 3)
	assert.ErrorIs(t, m.Draw(RoleFirst), ErrIllegalTransition)
	assert.ErrorIs(t, m.EndTurn(RoleFirst), ErrIllegalTransition)
	assert.ErrorIs(t, m.PlayCard(RoleFirst, uuid.New()), ErrIllegalTransition)
}

func TestDrawRules(t *testing.T) {
	m, _ := setupStartedMatch(t, 4)

	assert.ErrorIs(t, m.Draw(RoleSecond), ErrIllegalTransition, "not your turn")

	deckBefore := m.Deck.Size()
	require.NoError(t, m.Draw(RoleFirst))
	assert.Len(t, m.Players[RoleFirst].Hand, InitialHandSize+1)
	assert.Equal(t, deckBefore-1, m.Deck.Size())
	assert.Equal(t, PhasePlay, m.Phase)

	assert.ErrorIs(t, m.Draw(RoleFirst), ErrIllegalTransition, "one draw per turn")
	assert.Len(t, m.Players[RoleFirst].Hand, InitialHandSize+1)
}

func TestDrawWithEmptySupplyStillOpensPlay(t *testing.T) {
	m, _ := setupStartedMatch(t, 5)
	// Move every remaining card into the second player's hand.
	for m.Deck.Size() > 0 {
		m.Players[RoleSecond].Hand, _, _ = m.Deck.Draw(m.Players[RoleSecond].Hand)
	}
	handBefore := len(m.Players[RoleFirst].Hand)

	require.NoError(t, m.Draw(RoleFirst))
	assert.Equal(t, handBefore, len(m.Players[RoleFirst].Hand))
	assert.Equal(t, PhasePlay, m.Phase)
	assert.Equal(t, m.TotalCards, m.CardCount())
}

func TestPlayCardRequiresPlayPhase(t *testing.T) {
	m, _ := setupStartedMatch(t, 6)
	c := plant(m, RoleFirst, add5)

	err := m.PlayCard(RoleFirst, c.InstanceID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, 100.0, m.Players[RoleSecond].Health)
}

func TestPlayCardUnknownInstance(t *testing.T) {
	m, _ := setupStartedMatch(t, 6)
	require.NoError(t, m.Draw(RoleFirst))

	err := m.PlayCard(RoleFirst, uuid.New())
	assert.ErrorIs(t, err, ErrUnknownCard)

	// Another player's card is not in this hand either.
	theirs := m.Players[RoleSecond].Hand[0]
	assert.ErrorIs(t, m.PlayCard(RoleFirst, theirs.InstanceID), ErrUnknownCard)
}

func TestPlayCardInsufficientTokens(t *testing.T) {
	m, mb := setupStartedMatch(t, 7)
	require.NoError(t, m.Draw(RoleFirst))
	mb.clear()

	actor := m.Players[RoleFirst]
	actor.Tokens = 1
	c := plant(m, RoleFirst, models.CardTemplate{ID: "mult_2", Name: "Multiply by 2", Cost: 3, Kind: models.KindDamage, Magnitude: 8})
	hand := append([]*models.Card{}, actor.Hand...)
	discard := m.Deck.DiscardSize()

	err := m.PlayCard(RoleFirst, c.InstanceID)
	assert.ErrorIs(t, err, ErrInsufficientResource)
	assert.Equal(t, 1, actor.Tokens)
	assert.Equal(t, hand, actor.Hand)
	assert.Equal(t, discard, m.Deck.DiscardSize())
	assert.Empty(t, m.CardsPlayedThisTurn)
	assert.Empty(t, mb.events)
}

func TestPlayCardDamageAgainstBlock(t *testing.T) {
	m, mb := setupStartedMatch(t, 8)
	require.NoError(t, m.Draw(RoleFirst))
	m.Players[RoleSecond].Block = 2
	c := plant(m, RoleFirst, add5)

	require.NoError(t, m.PlayCard(RoleFirst, c.InstanceID))
	assert.Equal(t, 97.0, m.Players[RoleSecond].Health)
	assert.Equal(t, 10, m.Players[RoleFirst].Tokens)
	assert.Equal(t, -1, m.Players[RoleFirst].HandIndex(c.InstanceID))
	assert.Same(t, c, m.Deck.Discard[len(m.Deck.Discard)-1])
	assert.Equal(t, []*models.Card{c}, m.CardsPlayedThisTurn)
	assert.Equal(t, m.TotalCards, m.CardCount())

	logs := mb.ofType(EventGameLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "Ada played Add 5 for 3 damage!", logs[0].Message)
}

func TestPlayCardByWrongRoleChangesNothing(t *testing.T) {
	m, mb := setupStartedMatch(t, 9)
	require.NoError(t, m.Draw(RoleFirst))
	mb.clear()

	c := plant(m, RoleSecond, add5)
	before := [2]Snapshot{m.Snapshot(RoleFirst), m.Snapshot(RoleSecond)}
	deck, discard := m.Deck.Size(), m.Deck.DiscardSize()

	err := m.PlayCard(RoleSecond, c.InstanceID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, before, [2]Snapshot{m.Snapshot(RoleFirst), m.Snapshot(RoleSecond)})
	assert.Equal(t, deck, m.Deck.Size())
	assert.Equal(t, discard, m.Deck.DiscardSize())
	assert.Empty(t, mb.events)
}

func TestEndTurnFlipsRole(t *testing.T) {
	m, mb := setupStartedMatch(t, 10)
	require.NoError(t, m.Draw(RoleFirst))
	c := plant(m, RoleFirst, add5)
	require.NoError(t, m.PlayCard(RoleFirst, c.InstanceID))
	m.Players[RoleSecond].Tokens = 5
	m.Players[RoleSecond].Block = 4
	m.Players[RoleFirst].Block = 3
	mb.clear()

	assert.ErrorIs(t, m.EndTurn(RoleSecond), ErrIllegalTransition)

	require.NoError(t, m.EndTurn(RoleFirst))
	assert.Equal(t, RoleSecond, m.CurrentRole)
	assert.Equal(t, 2, m.TurnNumber)
	assert.Equal(t, PhaseDraw, m.Phase)
	assert.Empty(t, m.CardsPlayedThisTurn)
	assert.Equal(t, 7, m.Players[RoleSecond].Tokens)
	assert.Equal(t, 0, m.Players[RoleSecond].Block, "incoming player's block decays")
	assert.Equal(t, 3, m.Players[RoleFirst].Block, "outgoing player keeps block through the opponent's turn")

	logs := mb.ofType(EventGameLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "Turn 2: Bo's turn", logs[0].Message)
	assert.Equal(t, LogTurn, logs[0].Category)

	// End turn is legal straight from the draw phase.
	require.NoError(t, m.EndTurn(RoleSecond))
	assert.Equal(t, RoleFirst, m.CurrentRole)
	assert.Equal(t, 3, m.TurnNumber)
	assert.Equal(t, 12, m.Players[RoleFirst].Tokens, "tokens cap at 12")
}

func TestWinEndsMatch(t *testing.T) {
	m, mb := setupStartedMatch(t, 11)
	var ended int
	m.OnEnd = func(*Match) { ended++ }

	require.NoError(t, m.Draw(RoleFirst))
	m.Players[RoleSecond].SetHealth(4)
	c := plant(m, RoleFirst, add5)
	require.NoError(t, m.PlayCard(RoleFirst, c.InstanceID))

	assert.True(t, m.Over)
	assert.Equal(t, StatusOver, m.Status())
	assert.Equal(t, RoleFirst, m.Winner)
	assert.Equal(t, EndReasonDepleted, m.EndReason)
	assert.Equal(t, 0.0, m.Players[RoleSecond].Health)
	assert.Equal(t, 1, ended)

	over := mb.ofType(EventGameOver)
	require.Len(t, over, 1)
	assert.Equal(t, RoleFirst, over[0].WinnerRole)
	assert.Equal(t, "Ada", over[0].WinnerName)

	next := m.Players[RoleFirst].Hand[0]
	tokens := m.Players[RoleFirst].Tokens
	assert.ErrorIs(t, m.PlayCard(RoleFirst, next.InstanceID), ErrIllegalTransition)
	assert.ErrorIs(t, m.EndTurn(RoleFirst), ErrIllegalTransition)
	assert.ErrorIs(t, m.Draw(RoleFirst), ErrIllegalTransition)
	assert.Equal(t, tokens, m.Players[RoleFirst].Tokens)
	assert.Len(t, mb.ofType(EventGameOver), 1)
	assert.Equal(t, 1, ended)
}

func TestReflectedDamageCanDefeatAttacker(t *testing.T) {
	m, _ := setupStartedMatch(t, 12)
	require.NoError(t, m.Draw(RoleFirst))
	m.Players[RoleFirst].SetHealth(2)
	m.Players[RoleSecond].Reflect.Set(6, 1)
	c := plant(m, RoleFirst, add5)

	require.NoError(t, m.PlayCard(RoleFirst, c.InstanceID))
	assert.True(t, m.Over)
	assert.Equal(t, RoleSecond, m.Winner)
}

func TestPoisonAtTurnStartCanEndMatch(t *testing.T) {
	m, mb := setupStartedMatch(t, 13)
	m.Players[RoleSecond].SetHealth(3)
	m.Players[RoleSecond].DamageOverTime.Set(4, 3)

	require.NoError(t, m.EndTurn(RoleFirst))
	assert.True(t, m.Over)
	assert.Equal(t, RoleFirst, m.Winner)
	assert.Equal(t, EndReasonPoison, m.EndReason)
	assert.Len(t, mb.ofType(EventGameOver), 1)
}

func TestTerminate(t *testing.T) {
	m, mb := setupStartedMatch(t, 14)
	var ended int
	m.OnEnd = func(*Match) { ended++ }

	m.Terminate(EndReasonDisconnected)
	m.Terminate(EndReasonDisconnected)
	assert.True(t, m.Over)
	assert.Equal(t, Role(""), m.Winner)
	assert.Equal(t, 1, ended)
	assert.Empty(t, mb.ofType(EventGameOver))
	assert.ErrorIs(t, m.EndTurn(RoleFirst), ErrIllegalTransition)
}

func TestActionIndexesIncrease(t *testing.T) {
	m, mb := setupStartedMatch(t, 15)
	require.NoError(t, m.Draw(RoleFirst))
	require.NoError(t, m.EndTurn(RoleFirst))

	require.GreaterOrEqual(t, len(mb.actions), 5)
	for i, rec := range mb.actions {
		assert.Equal(t, i+1, rec.ActionIndex)
		assert.Equal(t, m.ID, rec.MatchID)
	}
	last := mb.actions[len(mb.actions)-1]
	assert.Equal(t, "end_turn", last.ActionType)
	assert.Equal(t, m.Players[RoleFirst].Identity, last.ActorID)
}

func TestSnapshotHidesOpponentHand(t *testing.T) {
	m, _ := setupStartedMatch(t, 16)
	s := m.Snapshot(RoleSecond)

	require.Len(t, s.Players, 2)
	first, second := s.Players[0], s.Players[1]
	assert.Equal(t, RoleSecond, s.You)
	assert.Nil(t, first.Hand)
	assert.Equal(t, InitialHandSize, first.HandSize)
	assert.Len(t, second.Hand, InitialHandSize)
	assert.True(t, first.IsCurrentTurn)
	assert.Equal(t, m.Deck.Size(), s.DeckSize)
}

// TestRandomPlayKeepsInvariants drives many matches with random legal and
// illegal intents and checks conservation and clamping after each step.
func TestRandomPlayKeepsInvariants(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		m, _ := setupStartedMatch(t, seed)
		r := rand.New(rand.NewSource(seed + 1000))

		for step := 0; step < 400 && !m.Over; step++ {
			role := m.CurrentRole
			if r.Intn(4) == 0 {
				role = role.Opponent()
			}
			prevRole, prevTurn := m.CurrentRole, m.TurnNumber

			switch r.Intn(3) {
			case 0:
				_ = m.Draw(role)
			case 1:
				hand := m.Players[role].Hand
				id := uuid.New()
				if len(hand) > 0 && r.Intn(5) > 0 {
					id = hand[r.Intn(len(hand))].InstanceID
				}
				_ = m.PlayCard(role, id)
			case 2:
				err := m.EndTurn(role)
				if err == nil {
					require.NotEqual(t, prevRole, m.CurrentRole)
					require.Equal(t, prevTurn+1, m.TurnNumber)
					require.Equal(t, PhaseDraw, m.Phase)
				}
			}

			require.Equal(t, m.TotalCards, m.CardCount(), "seed %d step %d", seed, step)
			for _, p := range m.Players {
				require.GreaterOrEqual(t, p.Health, 0.0)
				require.LessOrEqual(t, p.Health, models.MaxHealth)
				require.GreaterOrEqual(t, p.Tokens, 0)
				require.LessOrEqual(t, p.Tokens, models.MaxTokens)
			}
		}
	}
}
