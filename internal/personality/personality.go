// Package personality persists short per-user descriptions that flavor the
// user context builder. The only file-backed state in the bot.
package personality

import (
	"encoding/json"
	"fmt"
	"sync"

	"roastbot/internal/storage"
)

const (
	minDescriptionLen = 3
	maxDescriptionLen = 400

	storeKey = "personality_descriptions"
)

// Result — validation outcome for Set. Never an error: bad input is a
// structured rejection, not a failure.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Store guards every read-modify-write cycle against the datastore with one
// mutex so concurrent sets cannot interleave across the load/merge/save
// sequence.
type Store struct {
	mu sync.Mutex
	ds *storage.DataStore
}

// New creates the store on top of an open datastore.
func New(ds *storage.DataStore) *Store {
	return &Store{ds: ds}
}

func (s *Store) load() map[string]string {
	out := make(map[string]string)
	raw, ok := s.ds.Get(storeKey)
	if !ok {
		return out
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return make(map[string]string)
	}
	return out
}

// Describe returns the user's description, or empty string when unset.
func (s *Store) Describe(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()[userID]
}

// Set validates and stores a description, merging into the existing map.
func (s *Store) Set(userID, description string) Result {
	if userID == "" {
		return Result{Message: "missing user id"}
	}
	if len(description) < minDescriptionLen {
		return Result{Message: fmt.Sprintf("description too short (min %d chars)", minDescriptionLen)}
	}
	if len(description) > maxDescriptionLen {
		return Result{Message: fmt.Sprintf("description too long (max %d chars)", maxDescriptionLen)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.load()
	m[userID] = description
	s.ds.Add(storeKey, m)
	return Result{Success: true, Message: "description saved"}
}

// Remove deletes a user's description.
func (s *Store) Remove(userID string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.load()
	if _, ok := m[userID]; !ok {
		return Result{Message: "no description on record"}
	}
	delete(m, userID)
	s.ds.Add(storeKey, m)
	return Result{Success: true, Message: "description removed"}
}
