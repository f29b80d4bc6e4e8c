package crawler

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds the mutable state of one crawl run: the set of normalized
// URLs already claimed and the number of fetches dispatched so far.
//
// A Session is safe for concurrent use. It is created per run and never
// shared between runs.
type Session struct {
	id    string
	limit int

	mu         sync.Mutex
	visited    map[string]struct{}
	dispatched int
}

// NewSession creates a session that allows at most limit fetches.
// A limit below 1 allows none.
func NewSession(limit int) *Session {
	return &Session{
		id:      uuid.NewString(),
		limit:   limit,
		visited: make(map[string]struct{}),
	}
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.id
}

// Limit returns the fetch budget the session was created with.
func (s *Session) Limit() int {
	return s.limit
}

// Claim reserves normalizedURL for fetching. It returns false when the
// budget is exhausted or the URL was claimed before; otherwise it records
// the URL and charges one unit of budget in the same critical section.
func (s *Session) Claim(normalizedURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dispatched >= s.limit {
		return false
	}
	if _, ok := s.visited[normalizedURL]; ok {
		return false
	}
	s.visited[normalizedURL] = struct{}{}
	s.dispatched++
	return true
}

// Exhausted reports whether no further fetch may be dispatched.
func (s *Session) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched >= s.limit
}

// Dispatched returns the number of fetches charged to the budget.
func (s *Session) Dispatched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched
}

// Visited reports whether normalizedURL has been claimed.
func (s *Session) Visited(normalizedURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visited[normalizedURL]
	return ok
}
