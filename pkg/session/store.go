package session

import (
	"sort"
	"sync"
	"time"
)

// Store maps thread ids to sessions. Sessions live until Delete, PruneIdle
// or process exit.
type Store struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	attached     map[string]int
	systemPrompt string
	now          func() time.Time
}

// NewStore creates a store whose sessions start with systemPrompt.
func NewStore(systemPrompt string) *Store {
	return &Store{
		sessions:     make(map[string]*Session),
		attached:     make(map[string]int),
		systemPrompt: systemPrompt,
		now:          time.Now,
	}
}

// GetOrCreate returns the session for id, creating it on first use.
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, false
	}
	sess := newSession(id, s.systemPrompt, s.now)
	s.sessions[id] = sess
	return sess, true
}

// Attach returns the session for id like GetOrCreate and marks it in use
// until detach is called. PruneIdle never removes an attached session, so
// every holder of the same id keeps sharing one history.
func (s *Store) Attach(id string) (sess *Session, created bool, detach func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id, s.systemPrompt, s.now)
		s.sessions[id] = sess
	}
	s.attached[id]++

	var once sync.Once
	detach = func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.attached[id]--; s.attached[id] <= 0 {
				delete(s.attached, id)
			}
		})
	}
	return sess, !ok, detach
}

// Attached returns the number of live holders of id.
func (s *Store) Attached(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached[id]
}

// Get returns an existing session.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete forgets a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// IDs returns the live thread ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PruneIdle removes sessions not updated since before the cutoff that are
// neither attached nor in the middle of a turn. It returns the number
// removed.
func (s *Store) PruneIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.attached[id] > 0 || !sess.UpdatedAt().Before(cutoff) {
			continue
		}
		release, err := sess.Acquire()
		if err != nil {
			continue
		}
		delete(s.sessions, id)
		release()
		removed++
	}
	return removed
}
