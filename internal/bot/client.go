// internal/bot/client.go
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/game"
	"github.com/jason-s-yu/mathduel/internal/handlers"
	"github.com/sirupsen/logrus"
)

// ErrOpponentLeft is returned by Play when the match was cut short by the
// other player disconnecting.
var ErrOpponentLeft = errors.New("opponent disconnected")

// Branches a bot picks from at random.
var Branches = []string{"algebra", "geometry", "calculus", "statistics"}

// Result describes a finished match from the bot's seat.
type Result struct {
	MatchID    uuid.UUID
	Role       game.Role
	Won        bool
	WinnerName string
	Turns      int
}

// Client is a scripted player that queues, plays one match and returns.
type Client struct {
	URL  string
	Name string

	// OnEvent, if set, sees every event the server sends.
	OnEvent func(ev game.GameEvent)

	rng    *rand.Rand
	logger *logrus.Entry
}

// NewClient builds a bot that connects to url as name.
func NewClient(url, name string, rng *rand.Rand, logger *logrus.Logger) *Client {
	return &Client{
		URL:    url,
		Name:   name,
		rng:    rng,
		logger: logger.WithField("bot", name),
	}
}

// Play connects, joins the queue and plays until the match ends or ctx is
// cancelled.
func (b *Client) Play(ctx context.Context) (Result, error) {
	c, _, err := websocket.Dial(ctx, b.URL, &websocket.DialOptions{
		Subprotocols: []string{handlers.Subprotocol},
	})
	if err != nil {
		return Result{}, fmt.Errorf("dial %s: %w", b.URL, err)
	}
	defer c.Close(websocket.StatusNormalClosure, "bye")
	c.SetReadLimit(1 << 20)

	var res Result
	var last game.Snapshot
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("read: %w", err)
		}
		var ev game.GameEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			b.logger.Warnf("undecodable frame: %v", err)
			continue
		}
		if b.OnEvent != nil {
			b.OnEvent(ev)
		}

		var reply *handlers.ClientMessage
		switch ev.Type {
		case game.EventWelcome:
			reply = &handlers.ClientMessage{Type: handlers.IntentJoinQueue, DisplayName: b.Name}

		case game.EventMatched:
			if ev.MatchID != nil {
				res.MatchID = *ev.MatchID
			}
			res.Role = ev.Role
			branch := Branches[b.rng.Intn(len(Branches))]
			reply = &handlers.ClientMessage{Type: handlers.IntentSelectBranch, Branch: branch}

		case game.EventStateUpdate:
			if ev.State == nil {
				continue
			}
			last = *ev.State
			res.Turns = last.TurnNumber
			if msg, ok := ChooseAction(last); ok {
				reply = &msg
			}

		case game.EventRejected:
			// A rejected move should never happen against a fresh snapshot;
			// give the turn away rather than stall.
			b.logger.Warnf("%s rejected: %s (%s)", ev.Intent, ev.Reason, ev.Code)
			if ev.Intent != handlers.IntentEndTurn && last.CurrentRole == last.You && !last.Over {
				reply = &handlers.ClientMessage{Type: handlers.IntentEndTurn}
			}

		case game.EventGameOver:
			res.Won = ev.WinnerRole == res.Role
			res.WinnerName = ev.WinnerName
			return res, nil

		case game.EventOpponentDisconnected:
			return res, ErrOpponentLeft
		}

		if reply != nil {
			if err := b.send(ctx, c, *reply); err != nil {
				return res, err
			}
		}
	}
}

func (b *Client) send(ctx context.Context, c *websocket.Conn, msg handlers.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}
