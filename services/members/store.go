// Package members supplies the roster and each member's ranked session
// preferences to the monitor engine. The engine only ever reads it.
package members

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"courtwatch/models"
)

// ErrMemberNotFound is returned when the roster has no such member.
var ErrMemberNotFound = errors.New("member not found")

// Resolver supplies a member's ranked list of acceptable combinations
// together with their optional target hours and dates.
type Resolver interface {
	Get(memberID string) (models.Member, error)
	Preferences(memberID string) ([]models.SessionPreference, error)
}

// Store is a JSON-file backed roster. The file is loaded once; the
// monitor engine treats preferences as read-only, so there is no write
// path and no reload.
type Store struct {
	mu      sync.RWMutex
	members map[string]models.Member
	order   []string
}

// NewStore loads the roster file, a JSON array of members.
func NewStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	var roster []models.Member
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return NewStoreFromRoster(roster), nil
}

// NewStoreFromRoster builds a store from an in-memory roster.
func NewStoreFromRoster(roster []models.Member) *Store {
	s := &Store{members: make(map[string]models.Member, len(roster))}
	for _, m := range roster {
		if _, dup := s.members[m.ID]; !dup {
			s.order = append(s.order, m.ID)
		}
		s.members[m.ID] = m
	}
	return s
}

// Get returns one member by ID.
func (s *Store) Get(memberID string) (models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return models.Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	return m, nil
}

// Preferences returns the member's ranked preference list, highest
// priority first.
func (s *Store) Preferences(memberID string) ([]models.SessionPreference, error) {
	m, err := s.Get(memberID)
	if err != nil {
		return nil, err
	}
	return m.Preferences, nil
}

// List returns the roster in file order.
func (s *Store) List() []models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Member, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.members[id])
	}
	return out
}
