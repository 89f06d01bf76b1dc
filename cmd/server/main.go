// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/mathduel/internal/auth"
	"github.com/jason-s-yu/mathduel/internal/cache"
	"github.com/jason-s-yu/mathduel/internal/config"
	"github.com/jason-s-yu/mathduel/internal/database"
	"github.com/jason-s-yu/mathduel/internal/game"
	"github.com/jason-s-yu/mathduel/internal/handlers"
	"github.com/jason-s-yu/mathduel/internal/middleware"
	"github.com/jason-s-yu/mathduel/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	if err := auth.Init(cfg.TokenTTL); err != nil {
		logger.Fatalf("auth: %v", err)
	}

	catalog := game.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = game.LoadCatalog(cfg.CatalogPath); err != nil {
			logger.Fatalf("catalog: %v", err)
		}
	}
	logger.Infof("catalog has %d cards (%d per match)", len(catalog), len(catalog)*game.Multiplicity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gs := handlers.NewGameServer(logger, catalog, rand.New(rand.NewSource(time.Now().UnixNano())))

	// The publisher outlives the dispatcher so terminations during shutdown
	// still reach the queue.
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		pub := cache.NewPublisher(rdb, cfg.QueueName, 0, logger)
		go pub.Run(pubCtx)
		gs.Publisher = pub
		logger.Infof("publishing match actions to %s/%s", cfg.RedisAddr, cfg.QueueName)
	}

	if cfg.DatabaseURL != "" {
		if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			logger.Fatalf("schema: %v", err)
		}
		gs.OnMatchResult = func(r models.MatchResult) {
			recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.RecordMatchResult(recCtx, r); err != nil {
				logger.WithField("match", r.MatchID).Errorf("recording result: %v", err)
			}
		}
	}

	go gs.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: newRouter(cfg, logger, gs),
	}
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	<-gs.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	// Give the publisher a moment to drain the final actions.
	time.Sleep(500 * time.Millisecond)
}

func newRouter(cfg *config.Config, logger *logrus.Logger, gs *handlers.GameServer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.LogMiddleware(logger))

	r.Get("/match/ws", handlers.MatchWSHandler(logger, gs, originPatterns(cfg.AllowedOrigins)))
	r.Get("/status", handlers.StatusHandler(gs))
	return r
}

// originPatterns converts CORS origins into host patterns for the websocket
// origin check.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		} else {
			out = append(out, o)
		}
	}
	return out
}
