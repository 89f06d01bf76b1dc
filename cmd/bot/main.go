// cmd/bot/main.go plays scripted matches against a running server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jason-s-yu/mathduel/internal/bot"
	"github.com/jason-s-yu/mathduel/internal/config"
	"github.com/jason-s-yu/mathduel/internal/game"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	count := flag.Int("n", 2, "number of bots")
	url := flag.String("url", cfg.BotServerURL, "match websocket URL")
	verbose := flag.Bool("v", false, "print every game log line")
	flag.Parse()

	logger := cfg.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses, aborted := 0, 0, 0

	for i := 0; i < *count; i++ {
		name := fmt.Sprintf("%s_%d", cfg.BotName, i+1)
		c := bot.NewClient(*url, name, rand.New(rand.NewSource(time.Now().UnixNano()+int64(i))), logger)
		c.OnEvent = func(ev game.GameEvent) {
			switch ev.Type {
			case game.EventMatched:
				color.Cyan("%s matched against %s as %s", name, ev.OpponentName, ev.Role)
			case game.EventGameLog:
				if *verbose {
					fmt.Printf("  [%s] %s\n", name, ev.Message)
				}
			case game.EventRejected:
				color.Red("%s: %s rejected (%s)", name, ev.Intent, ev.Code)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Play(ctx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, bot.ErrOpponentLeft):
				aborted++
				color.Yellow("%s: opponent left on turn %d", name, res.Turns)
			case err != nil:
				aborted++
				color.Red("%s: %v", name, err)
			case res.Won:
				wins++
				color.Green("%s won on turn %d", name, res.Turns)
			default:
				losses++
				color.Yellow("%s lost to %s on turn %d", name, res.WinnerName, res.Turns)
			}
		}()
	}

	wg.Wait()
	color.Cyan("%d won, %d lost, %d aborted", wins, losses, aborted)
	if aborted > 0 {
		os.Exit(1)
	}
}
