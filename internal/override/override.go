// Package override keeps the per-user forced transcription language.
//
// A forced language biases speech recognition toward one language for every
// voice message a user sends until they switch back to automatic detection.
// State lives only in memory and is lost when the process restarts.
package override

import (
	"sync"

	"github.com/nadzzz/linguabridge/internal/language"
)

// Store records at most one forced language per user.
type Store interface {
	// Get returns the forced language for the user, if any.
	Get(user int64) (language.Tag, bool)

	// Set forces a language for the user, replacing any previous one.
	Set(user int64, lang language.Tag)

	// Clear returns the user to automatic detection. Clearing an unset user is a no-op.
	Clear(user int64)
}

// MemoryStore is a Store backed by a map guarded by a read/write mutex.
type MemoryStore struct {
	mu     sync.RWMutex
	forced map[int64]language.Tag
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{forced: make(map[int64]language.Tag)}
}

// Get implements Store.
func (s *MemoryStore) Get(user int64) (language.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lang, ok := s.forced[user]
	return lang, ok
}

// Set implements Store. Setting language.Unknown is the same as Clear.
func (s *MemoryStore) Set(user int64, lang language.Tag) {
	if lang == language.Unknown {
		s.Clear(user)
		return
	}
	s.mu.Lock()
	s.forced[user] = lang
	s.mu.Unlock()
}

// Clear implements Store.
func (s *MemoryStore) Clear(user int64) {
	s.mu.Lock()
	delete(s.forced, user)
	s.mu.Unlock()
}

// Len returns the number of users with a forced language.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forced)
}
