package memory

import (
	"context"
	"sync"
	"time"

	"quiz-retry-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Records are copied on the way in and out, so a caller never holds a live reference to stored state.
// Only suitable for a single server process.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.RWMutex
	sessions  map[string]storedSession
	lastSweep time.Time
}

type storedSession struct {
	rec       domain.SessionRecord
	expiresAt time.Time
}

// NewSessionStore builds a store; a ttl <= 0 keeps sessions until deleted.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.SessionRecord, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	if s.expired(entry, s.clock()) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	return copyRecord(entry.rec), nil
}

func (s *SessionStore) Save(_ context.Context, rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(copyRecord(rec))
	return nil
}

// Update applies fn to a copy of the stored record and writes it back, all under the store lock.
// When fn returns an error the stored record is left as it was.
func (s *SessionStore) Update(_ context.Context, sessionID string, fn func(rec *domain.SessionRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok || s.expired(entry, s.clock()) {
		delete(s.sessions, sessionID)
		return domain.ErrSessionNotFound
	}
	rec := copyRecord(entry.rec)
	if err := fn(&rec); err != nil {
		return err
	}
	rec.ID = sessionID
	s.putLocked(rec)
	return nil
}

// putLocked stores rec and, at most once per ttl, drops every expired session.
func (s *SessionStore) putLocked(rec domain.SessionRecord) {
	now := s.clock()
	entry := storedSession{rec: rec}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
		if now.Sub(s.lastSweep) >= s.ttl {
			for id, e := range s.sessions {
				if s.expired(e, now) {
					delete(s.sessions, id)
				}
			}
			s.lastSweep = now
		}
	}
	s.sessions[rec.ID] = entry
}

func (s *SessionStore) expired(e storedSession, now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copyRecord(rec domain.SessionRecord) domain.SessionRecord {
	out := rec
	out.Quiz = rec.Quiz.Clone()
	out.State.RoundQueue = append([]int(nil), rec.State.RoundQueue...)
	out.State.MissedQueue = append([]int{}, rec.State.MissedQueue...)
	out.State.Answers = make(map[int]domain.AnswerRecord, len(rec.State.Answers))
	for k, v := range rec.State.Answers {
		v.Selected = append([]string(nil), v.Selected...)
		v.Correct = append([]string(nil), v.Correct...)
		out.State.Answers[k] = v
	}
	return out
}
