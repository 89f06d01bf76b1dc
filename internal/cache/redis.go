// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "mathduel_actions"

// MatchActionRecord is one accepted match action, in the order it was applied.
type MatchActionRecord struct {
	MatchID       uuid.UUID              `json:"match_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorID       uuid.UUID              `json:"actor_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ListPusher is the subset of the Redis client used for publishing.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// PublishMatchAction serializes the record and pushes it onto the queue.
func PublishMatchAction(ctx context.Context, rdb ListPusher, queueName string, record MatchActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchActionRecord: %w", err)
	}
	if err := rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// Publisher forwards records to Redis from a single worker so that the list
// keeps the order records were enqueued in. Enqueue never blocks.
type Publisher struct {
	rdb       ListPusher
	queueName string
	records   chan MatchActionRecord
	logger    *logrus.Entry
}

// NewPublisher returns a publisher with room for buffer pending records.
func NewPublisher(rdb ListPusher, queueName string, buffer int, logger *logrus.Logger) *Publisher {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		records:   make(chan MatchActionRecord, buffer),
		logger:    logger.WithField("component", "publisher"),
	}
}

// Enqueue hands a record to the worker. A full buffer drops the record.
func (p *Publisher) Enqueue(record MatchActionRecord) bool {
	select {
	case p.records <- record:
		return true
	default:
		p.logger.Warnf("action buffer full, dropping action %d of match %s", record.ActionIndex, record.MatchID)
		return false
	}
}

// Run publishes records until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-p.records:
			pushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := PublishMatchAction(pushCtx, p.rdb, p.queueName, rec); err != nil {
				p.logger.Errorf("publishing action %d of match %s: %v", rec.ActionIndex, rec.MatchID, err)
			}
			cancel()
		}
	}
}
