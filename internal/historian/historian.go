// internal/historian/historian.go drains match actions from a Redis list and
// persists them in batches, marking matches abandoned after inactivity.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Store persists action batches and match status.
type Store interface {
	InsertMatchActions(ctx context.Context, records []cache.MatchActionRecord) error
	MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) (bool, error)
}

// ListPopper is the subset of the Redis client the historian reads with.
type ListPopper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Options tunes batching and the inactivity sweep.
type Options struct {
	QueueName     string
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration
}

// Service encapsulates the Redis + DB logic for capturing match actions.
type Service struct {
	rdb    ListPopper
	store  Store
	opts   Options
	logger *logrus.Entry
	now    func() time.Time

	mu           sync.Mutex
	batch        []cache.MatchActionRecord
	lastFlush    time.Time
	lastActivity map[uuid.UUID]time.Time
}

// New builds a Service, filling unset options with defaults.
func New(rdb ListPopper, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.QueueName == "" {
		opts.QueueName = cache.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	return &Service{
		rdb:          rdb,
		store:        store,
		opts:         opts,
		logger:       logger.WithField("component", "historian"),
		now:          time.Now,
		batch:        make([]cache.MatchActionRecord, 0, opts.BatchSize),
		lastFlush:    time.Now(),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run reads the queue until ctx is cancelled, then flushes what is pending.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.logger.Infof("historian started on queue %s", s.opts.QueueName)
	s.readLoop(ctx)
	wg.Wait()

	// Use a fresh context: ctx is already done.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("historian stopped")
}

// readLoop pops with a timeout of one flush delay so that partial batches are
// written even when the queue is quiet.
func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := s.rdb.BLPop(ctx, s.opts.FlushDelay, s.opts.QueueName).Result()
		switch {
		case err == nil && len(res) == 2:
			// res[0] is the queue name and res[1] the payload.
			s.Accept(ctx, res[1])
		case err == nil, errors.Is(err, redis.Nil):
		case ctx.Err() != nil:
			return
		default:
			s.logger.Errorf("BLPop: %v", err)
			// Avoid spinning on a dead connection.
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.FlushDelay):
			}
		}

		s.mu.Lock()
		due := len(s.batch) > 0 && s.now().Sub(s.lastFlush) >= s.opts.FlushDelay
		s.mu.Unlock()
		if due {
			s.Flush(ctx)
		}
	}
}

// Accept parses one queued payload and adds it to the batch, flushing when full.
func (s *Service) Accept(ctx context.Context, payload string) {
	var rec cache.MatchActionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.logger.Warnf("invalid action record: %v", err)
		return
	}

	s.mu.Lock()
	switch rec.ActionType {
	case "match_over", "match_terminated":
		delete(s.lastActivity, rec.MatchID)
	default:
		s.lastActivity[rec.MatchID] = s.now()
	}
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.opts.BatchSize
	s.mu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction. A failed batch is logged
// and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return
	}
	pending := make([]cache.MatchActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.lastFlush = s.now()
	s.mu.Unlock()

	if err := s.store.InsertMatchActions(ctx, pending); err != nil {
		s.logger.Errorf("flushing %d actions: %v", len(pending), err)
		return
	}
	s.logger.Debugf("flushed %d actions", len(pending))
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepInactive(ctx)
		}
	}
}

// SweepInactive marks every match idle longer than the inactivity threshold
// as abandoned and stops tracking it.
func (s *Service) SweepInactive(ctx context.Context) {
	now := s.now()
	var stale []uuid.UUID
	s.mu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.opts.Inactivity {
			stale = append(stale, id)
			delete(s.lastActivity, id)
		}
	}
	s.mu.Unlock()

	if len(stale) > 0 {
		// Pending actions for these matches must land before the status update.
		s.Flush(ctx)
	}
	for _, id := range stale {
		changed, err := s.store.MarkMatchAbandoned(ctx, id)
		if err != nil {
			s.logger.Errorf("%v", err)
			continue
		}
		if changed {
			s.logger.Infof("marked match %s as abandoned due to inactivity", id)
		}
	}
}
