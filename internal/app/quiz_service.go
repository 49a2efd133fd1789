package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quiz-retry-service/internal/domain"
	"quiz-retry-service/internal/logger"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
// Update must apply fn atomically with respect to every other writer of the same session,
// including writers in other processes, and must not store anything when fn fails.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (domain.SessionRecord, error)
	Save(ctx context.Context, rec domain.SessionRecord) error
	Update(ctx context.Context, sessionID string, fn func(rec *domain.SessionRecord) error) error
	Delete(ctx context.Context, sessionID string) error
}

// errUnchanged aborts an update whose session state did not move, so nothing is written.
var errUnchanged = errors.New("session unchanged")

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// ServiceConfig carries the tunables of QuizService. Zero values pick defaults.
type ServiceConfig struct {
	MaxRetryRounds int
	Rand           RandFactory
	Now            func() time.Time
	Logger         *logger.Logger
}

// QuizService contains the quiz use cases for one browser session at a time.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	locks    *keyedMutex
	newRand  RandFactory
	opts     SessionOptions
	log      *logger.Logger
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, cfg ServiceConfig) *QuizService {
	if cfg.Rand == nil {
		cfg.Rand = NewTimeSeededRand
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &QuizService{
		sessions: store,
		quizzes:  quizzes,
		locks:    newKeyedMutex(),
		newRand:  cfg.Rand,
		opts:     SessionOptions{MaxRetryRounds: cfg.MaxRetryRounds, Now: cfg.Now},
		log:      cfg.Logger,
	}
}

// ListQuizzes returns the catalog.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	return s.quizzes.ListQuizzes(ctx)
}

// Start discards whatever the session held and begins a freshly shuffled run of quizID.
func (s *QuizService) Start(ctx context.Context, sessionID, quizID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.startLocked(ctx, sessionID, quizID)
}

func (s *QuizService) startLocked(ctx context.Context, sessionID, quizID string) error {
	def, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if err := def.Validate(); err != nil {
		s.log.Warn("quiz definition rejected", "quiz_id", quizID, "error", err)
		return err
	}
	session, err := NewSession(sessionID, def, s.newRand(), s.opts)
	if err != nil {
		s.log.Warn("quiz shuffle failed", "quiz_id", quizID, "error", err)
		return err
	}
	if err := s.sessions.Save(ctx, session.Record()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.log.Info("quiz started", "session_id", sessionID, "quiz_id", quizID, "questions", len(def.Questions))
	return nil
}

// Current returns the question to show next, or a Done view once the run is over.
func (s *QuizService) Current(ctx context.Context, sessionID string) (domain.QuestionView, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var (
		view   domain.QuestionView
		after  domain.SessionState
		quizID string
	)
	err := s.update(ctx, sessionID, func(session *Session) error {
		before := session.State()
		v, err := session.Current()
		if err != nil {
			return err
		}
		view, after, quizID = v, session.State(), session.QuizID()
		if before.RetryRound == after.RetryRound && before.CurrentIndex == after.CurrentIndex && before.Completed == after.Completed {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return view, nil
	}
	if err != nil {
		return domain.QuestionView{}, err
	}
	if after.Completed {
		s.log.Info("quiz completed", "session_id", sessionID, "quiz_id", quizID, "score", after.Score, "retry_round", after.RetryRound)
	} else {
		s.log.Debug("retry round started", "session_id", sessionID, "round", after.RetryRound, "questions", len(after.RoundQueue))
	}
	return view, nil
}

// SubmitAnswer judges answer for the current question and records the outcome.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID string, answer domain.Answer) (domain.Verdict, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var verdict domain.Verdict
	err := s.update(ctx, sessionID, func(session *Session) error {
		v, err := session.Submit(answer)
		verdict = v
		return err
	})
	if err != nil {
		return domain.Verdict{}, err
	}
	return verdict, nil
}

// Advance moves to the next question of the current phase.
func (s *QuizService) Advance(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	return s.update(ctx, sessionID, func(session *Session) error {
		return session.Advance()
	})
}

// Results summarizes the session's run.
func (s *QuizService) Results(ctx context.Context, sessionID string) (domain.Results, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.Results{}, err
	}
	return session.Summary(), nil
}

// WorkingQuiz returns the shuffled quiz the session is running.
func (s *QuizService) WorkingQuiz(ctx context.Context, sessionID string) (domain.Quiz, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return session.Quiz(), nil
}

// Restart drops the session's run. With keepQuiz the same quiz is reshuffled and started again.
func (s *QuizService) Restart(ctx context.Context, sessionID string, keepQuiz bool) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var quizID string
	if keepQuiz {
		rec, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return missingQuizData(err)
		}
		quizID = rec.QuizID
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !keepQuiz {
		s.log.Info("quiz cleared", "session_id", sessionID)
		return nil
	}
	return s.startLocked(ctx, sessionID, quizID)
}

func (s *QuizService) load(ctx context.Context, sessionID string) (*Session, error) {
	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, missingQuizData(err)
	}
	if len(rec.Quiz.Questions) == 0 && rec.QuizID == "" {
		return nil, domain.ErrMissingQuizData
	}
	return RestoreSession(rec, s.opts), nil
}

// update runs fn on the stored session through the repository's atomic Update.
// fn may run more than once when another process writes the session meanwhile.
func (s *QuizService) update(ctx context.Context, sessionID string, fn func(session *Session) error) error {
	err := s.sessions.Update(ctx, sessionID, func(rec *domain.SessionRecord) error {
		if len(rec.Quiz.Questions) == 0 && rec.QuizID == "" {
			return domain.ErrMissingQuizData
		}
		session := RestoreSession(*rec, s.opts)
		if err := fn(session); err != nil {
			return err
		}
		*rec = session.Record()
		return nil
	})
	return missingQuizData(err)
}

func missingQuizData(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrMissingQuizData, err)
	}
	return err
}

// keyedMutex serializes work per session id inside one process; entries are dropped once nobody
// holds or waits on them. Writers in other processes are handled by SessionRepository.Update.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
