// internal/game/match_store.go
package game

import (
	"fmt"

	"github.com/google/uuid"
)

// MatchStore indexes live matches by id and by participant identity.
// It takes no locks: the dispatcher goroutine is its only user.
type MatchStore struct {
	matches    map[uuid.UUID]*Match
	byIdentity map[uuid.UUID]uuid.UUID
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches:    make(map[uuid.UUID]*Match),
		byIdentity: make(map[uuid.UUID]uuid.UUID),
	}
}

// Add registers the match and both of its participants.
func (s *MatchStore) Add(m *Match) {
	s.matches[m.ID] = m
	for _, p := range m.Players {
		s.byIdentity[p.Identity] = m.ID
	}
}

func (s *MatchStore) Get(id uuid.UUID) (*Match, bool) {
	m, ok := s.matches[id]
	return m, ok
}

// Resolve finds the live match and seat of identity.
func (s *MatchStore) Resolve(identity uuid.UUID) (*Match, Role, error) {
	id, ok := s.byIdentity[identity]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s is not in a match", ErrInvalidSender, identity)
	}
	m, ok := s.matches[id]
	if !ok {
		return nil, "", fmt.Errorf("%w: match %s no longer exists", ErrInvalidSender, id)
	}
	role, ok := m.RoleOf(identity)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s has no seat in match %s", ErrInvalidSender, identity, id)
	}
	return m, role, nil
}

// InMatch reports whether identity is seated in a live match.
func (s *MatchStore) InMatch(identity uuid.UUID) bool {
	_, ok := s.byIdentity[identity]
	return ok
}

// Delete destroys the match and frees both participants.
func (s *MatchStore) Delete(id uuid.UUID) {
	m, ok := s.matches[id]
	if !ok {
		return
	}
	for _, p := range m.Players {
		if s.byIdentity[p.Identity] == id {
			delete(s.byIdentity, p.Identity)
		}
	}
	delete(s.matches, id)
}

// Len is the number of live matches.
func (s *MatchStore) Len() int {
	return len(s.matches)
}

// All returns the live matches in no particular order.
func (s *MatchStore) All() []*Match {
	out := make([]*Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	return out
}
