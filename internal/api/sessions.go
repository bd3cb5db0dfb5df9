package api

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/model"
)

// DefaultSessionCapacity bounds the number of listing sessions kept.
const DefaultSessionCapacity = 1024

// Sessions keeps one listing session per client session of a signed-in
// viewer, so only the newest request of each session is answered. The
// least recently used sessions are dropped once the capacity is reached.
type Sessions struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *catalog.Session]
}

// NewSessions returns an empty registry holding at most size sessions.
func NewSessions(size int) (*Sessions, error) {
	if size <= 0 {
		size = DefaultSessionCapacity
	}
	cache, err := lru.New[string, *catalog.Session](size)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &Sessions{cache: cache}, nil
}

// For returns the session sid of viewer. Anonymous viewers and requests
// without a session id get a fresh session.
func (s *Sessions) For(viewer model.Viewer, sid string) *catalog.Session {
	if viewer.Anonymous() || sid == "" {
		return &catalog.Session{}
	}
	key := viewer.ID + "\x00" + sid

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache.Get(key); ok {
		return sess
	}
	sess := &catalog.Session{}
	s.cache.Add(key, sess)
	return sess
}

// Len reports the number of sessions held.
func (s *Sessions) Len() int {
	return s.cache.Len()
}
