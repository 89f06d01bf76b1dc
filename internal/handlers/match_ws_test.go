package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/mathduel/internal/auth"
	"github.com/jason-s-yu/mathduel/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T) (*GameServer, string) {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))
	gs, _ := startServer(t)

	mux := http.NewServeMux()
	mux.Handle("/match/ws", MatchWSHandler(quietLogger(), gs, nil))
	mux.Handle("/status", StatusHandler(gs))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return gs, srv.URL
}

func dial(t *testing.T, base, query string, subprotocols ...string) (*websocket.Conn, *http.Response) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(base, "http") + "/match/ws" + query
	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c, resp
}

func readEvent(t *testing.T, c *websocket.Conn) game.GameEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var ev game.GameEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func readUntil(t *testing.T, c *websocket.Conn, typ game.GameEventType) game.GameEvent {
	t.Helper()
	for {
		if ev := readEvent(t, c); ev.Type == typ {
			return ev
		}
	}
}

func writeJSON(t *testing.T, c *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func TestWelcomeIssuesIdentity(t *testing.T) {
	_, base := newWSServer(t)
	c, resp := dial(t, base, "", Subprotocol)

	ev := readEvent(t, c)
	assert.Equal(t, game.EventWelcome, ev.Type)
	require.NotNil(t, ev.Identity)
	require.NotEmpty(t, ev.Token)

	identity, err := auth.ParseIdentityToken(ev.Token)
	require.NoError(t, err)
	assert.Equal(t, *ev.Identity, identity)

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == AuthCookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, ev.Token, cookie.Value)
}

func TestReconnectKeepsIdentity(t *testing.T) {
	_, base := newWSServer(t)
	c, _ := dial(t, base, "", Subprotocol)
	first := readEvent(t, c)
	c.Close(websocket.StatusNormalClosure, "")

	// The first session may still be draining, so retry briefly.
	var again game.GameEvent
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		url := "ws" + strings.TrimPrefix(base, "http") + "/match/ws?token=" + first.Token
		c2, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
		if err != nil {
			return false
		}
		defer c2.Close(websocket.StatusNormalClosure, "")
		_, data, err := c2.Read(ctx)
		if err != nil {
			return false
		}
		return json.Unmarshal(data, &again) == nil && again.Type == game.EventWelcome
	}, 2*time.Second, 50*time.Millisecond)

	assert.Equal(t, *first.Identity, *again.Identity)
}

func TestBadSubprotocolClosed(t *testing.T) {
	_, base := newWSServer(t)
	c, _ := dial(t, base, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestSecondConnectionForIdentityClosed(t *testing.T) {
	_, base := newWSServer(t)
	c, _ := dial(t, base, "", Subprotocol)
	welcome := readEvent(t, c)

	dup, _ := dial(t, base, "?token="+welcome.Token, Subprotocol)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := dup.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(DuplicateSessionError), websocket.CloseStatus(err))
}

func TestMalformedFrameRejected(t *testing.T) {
	_, base := newWSServer(t)
	c, _ := dial(t, base, "", Subprotocol)
	readEvent(t, c)

	writeJSON(t, c, map[string]string{"type": "play_card", "instanceId": "not-a-uuid"})
	ev := readUntil(t, c, game.EventRejected)
	assert.Equal(t, "MalformedIntent", ev.Code)
	assert.Equal(t, IntentPlayCard, ev.Intent)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{")))
	ev = readUntil(t, c, game.EventRejected)
	assert.Equal(t, "MalformedIntent", ev.Code)
}

func TestTwoClientsPlayOverWebsocket(t *testing.T) {
	_, base := newWSServer(t)
	a, _ := dial(t, base, "", Subprotocol)
	b, _ := dial(t, base, "", Subprotocol)
	readEvent(t, a)
	readEvent(t, b)

	writeJSON(t, a, ClientMessage{Type: IntentJoinQueue, DisplayName: "Ada"})
	readUntil(t, a, game.EventWaiting)
	writeJSON(t, b, ClientMessage{Type: IntentJoinQueue, DisplayName: "Bo"})

	assert.Equal(t, "Bo", readUntil(t, a, game.EventMatched).OpponentName)
	assert.Equal(t, "Ada", readUntil(t, b, game.EventMatched).OpponentName)

	writeJSON(t, a, ClientMessage{Type: IntentSelectBranch, Branch: "algebra"})
	writeJSON(t, b, ClientMessage{Type: IntentSelectBranch, Branch: "calculus"})
	readUntil(t, a, game.EventMatchStarted)

	writeJSON(t, a, ClientMessage{Type: IntentDrawCard})
	for {
		st := readUntil(t, a, game.EventStateUpdate).State
		require.NotNil(t, st)
		if st.Phase == game.PhasePlay {
			assert.Len(t, st.Players[0].Hand, game.InitialHandSize+1)
			break
		}
	}

	a.Close(websocket.StatusNormalClosure, "")
	readUntil(t, b, game.EventOpponentDisconnected)
}

func TestStatusEndpoint(t *testing.T) {
	_, base := newWSServer(t)
	c, _ := dial(t, base, "", Subprotocol)
	readEvent(t, c)

	resp, err := http.Get(base + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "OK", st.Status)
	assert.Equal(t, 1, st.ConnectedSessions)
	assert.Equal(t, 0, st.ActiveMatches)

	post, err := http.Post(base+"/status", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}
