// internal/game/queue.go
package game

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mathduel/internal/models"
)

// QueueEntry is a participant waiting for an opponent.
type QueueEntry struct {
	Identity    uuid.UUID
	DisplayName string
}

// Queue pairs waiting participants in strict arrival order.
// Like Match, it is owned by a single goroutine.
type Queue struct {
	waiting []QueueEntry
	catalog Catalog
	rng     *rand.Rand
}

// NewQueue returns an empty queue whose matches are built from catalog.
func NewQueue(catalog Catalog, rng *rand.Rand) *Queue {
	return &Queue{
		waiting: []QueueEntry{},
		catalog: catalog,
		rng:     rng,
	}
}

// Enqueue pairs entry with the oldest waiting participant and returns the new
// match, or appends entry and returns false. An identity already waiting is
// not added twice.
func (q *Queue) Enqueue(entry QueueEntry) (*Match, bool) {
	if q.Contains(entry.Identity) {
		return nil, false
	}
	if len(q.waiting) == 0 {
		q.waiting = append(q.waiting, entry)
		return nil, false
	}

	oldest := q.waiting[0]
	q.waiting = q.waiting[1:]
	m := NewMatch(
		models.NewPlayerState(oldest.Identity, oldest.DisplayName),
		models.NewPlayerState(entry.Identity, entry.DisplayName),
		q.catalog,
		q.rng,
	)
	return m, true
}

// Remove drops identity from the queue. It reports whether it was waiting.
func (q *Queue) Remove(identity uuid.UUID) bool {
	for i, e := range q.waiting {
		if e.Identity == identity {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether identity is waiting.
func (q *Queue) Contains(identity uuid.UUID) bool {
	for _, e := range q.waiting {
		if e.Identity == identity {
			return true
		}
	}
	return false
}

// Len is the number of waiting participants.
func (q *Queue) Len() int {
	return len(q.waiting)
}
