package app

import (
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"time"

	"quiz-retry-service/internal/domain"
)

// Session drives one quiz run: the main pass over every question, then retry rounds over the
// questions still missed, until all are answered correctly or the round cap is hit.
// Its methods are the only writers of the run's state.
type Session struct {
	id        string
	quizID    string
	quiz      domain.Quiz
	state     domain.SessionState
	maxRounds int
	now       func() time.Time
}

// SessionOptions tunes a Session. Zero values mean unlimited retry rounds and the wall clock.
type SessionOptions struct {
	MaxRetryRounds int
	Now            func() time.Time
}

func (o SessionOptions) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

// NewSession shuffles def into a fresh working quiz and starts the main pass.
func NewSession(id string, def domain.Quiz, rnd *rand.Rand, opts SessionOptions) (*Session, error) {
	working, err := Shuffle(def, rnd)
	if err != nil {
		return nil, err
	}
	now := opts.clock()
	return &Session{
		id:     id,
		quizID: def.ID,
		quiz:   working,
		state: domain.SessionState{
			Answers:     make(map[int]domain.AnswerRecord),
			MissedQueue: []int{},
			StartedAt:   now(),
		},
		maxRounds: opts.MaxRetryRounds,
		now:       now,
	}, nil
}

// RestoreSession rebuilds a Session from a stored record.
func RestoreSession(rec domain.SessionRecord, opts SessionOptions) *Session {
	state := cloneState(rec.State)
	if state.Answers == nil {
		state.Answers = make(map[int]domain.AnswerRecord)
	}
	return &Session{
		id:        rec.ID,
		quizID:    rec.QuizID,
		quiz:      rec.Quiz.Clone(),
		state:     state,
		maxRounds: opts.MaxRetryRounds,
		now:       opts.clock(),
	}
}

// Record returns a storable copy of the session.
func (s *Session) Record() domain.SessionRecord {
	return domain.SessionRecord{
		ID:     s.id,
		QuizID: s.quizID,
		Quiz:   s.quiz.Clone(),
		State:  cloneState(s.state),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// QuizID returns the id of the definition the working quiz was built from.
func (s *Session) QuizID() string { return s.quizID }

// Quiz returns a copy of the working quiz.
func (s *Session) Quiz() domain.Quiz { return s.quiz.Clone() }

// State returns a copy of the current state.
func (s *Session) State() domain.SessionState { return cloneState(s.state) }

// Current applies any pending phase rollover and describes the question to show next.
// Calling it repeatedly without Submit or Advance in between returns the same view.
func (s *Session) Current() (domain.QuestionView, error) {
	s.state = resolvePhase(s.state, len(s.quiz.Questions), s.maxRounds)
	if s.state.Completed {
		return domain.QuestionView{Done: true, Phase: s.state.PhaseLabel()}, nil
	}

	idx, err := s.actualIndex()
	if err != nil {
		return domain.QuestionView{}, err
	}
	total := len(s.quiz.Questions)
	if s.state.RetryRound > 0 {
		total = len(s.state.RoundQueue)
	}
	q := s.quiz.Questions[idx]
	return domain.QuestionView{
		Question: &domain.PublicQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Options: append([]domain.Option(nil), q.Options...),
		},
		QuestionNum:    s.state.CurrentIndex + 1,
		TotalQuestions: total,
		Phase:          s.state.PhaseLabel(),
		QuestionType:   q.Type,
		IsInlineBlank:  q.IsInlineBlank(),
	}, nil
}

// Submit judges answer for the question at the current position and folds the verdict into the
// score, the answer log and the missed queue. It does not move the position.
func (s *Session) Submit(answer domain.Answer) (domain.Verdict, error) {
	idx, err := s.actualIndex()
	if err != nil {
		return domain.Verdict{}, err
	}
	q := s.quiz.Questions[idx]
	eval, err := Evaluate(q, answer)
	if err != nil {
		return domain.Verdict{}, err
	}

	existing, answeredBefore := s.state.Answers[idx]
	firstAttempt := !answeredBefore
	record := domain.AnswerRecord{
		Index:        idx,
		Question:     q.Text,
		QuestionType: q.Type,
		Selected:     append([]string(nil), answer.Values...),
		SelectedText: eval.SelectedDisplay,
		Correct:      append([]string(nil), q.CorrectAnswer...),
		CorrectText:  eval.CorrectDisplay,
		IsCorrect:    eval.IsCorrect,
		WasRetried:   existing.WasRetried || s.state.RetryRound > 0,
	}
	if firstAttempt {
		record.FirstAttemptCorrect = eval.IsCorrect
	} else {
		record.FirstAttemptCorrect = existing.FirstAttemptCorrect
	}
	s.state.Answers[idx] = record

	switch {
	case firstAttempt && eval.IsCorrect:
		s.state.Score++
	case !eval.IsCorrect:
		if !slices.Contains(s.state.MissedQueue, idx) {
			s.state.MissedQueue = append(s.state.MissedQueue, idx)
		}
	default:
		s.state.MissedQueue = slices.DeleteFunc(s.state.MissedQueue, func(i int) bool { return i == idx })
	}

	return domain.Verdict{
		IsCorrect:          eval.IsCorrect,
		CorrectAnswers:     append([]string(nil), q.CorrectAnswer...),
		CorrectAnswerText:  eval.CorrectDisplay,
		SelectedAnswerText: eval.SelectedDisplay,
	}, nil
}

// Advance moves to the next position of the current phase. Rollover into the next phase is left
// to the following Current call.
func (s *Session) Advance() error {
	if _, err := s.actualIndex(); err != nil {
		return err
	}
	s.state.CurrentIndex++
	return nil
}

// Summary aggregates the run as it stands.
func (s *Session) Summary() domain.Results {
	return Summarize(s.quiz, s.state, s.now())
}

// actualIndex maps the current position to a working-quiz question index.
func (s *Session) actualIndex() (int, error) {
	st := s.state
	if st.Completed {
		return 0, domain.ErrQuizAlreadyComplete
	}
	idx := st.CurrentIndex
	if st.RetryRound > 0 {
		if st.CurrentIndex >= len(st.RoundQueue) {
			return 0, domain.ErrQuizAlreadyComplete
		}
		idx = st.RoundQueue[st.CurrentIndex]
	} else if st.CurrentIndex >= len(s.quiz.Questions) {
		return 0, domain.ErrQuizAlreadyComplete
	}
	if idx < 0 || idx >= len(s.quiz.Questions) {
		return 0, fmt.Errorf("%w: question index %d out of range", domain.ErrMissingQuizData, idx)
	}
	return idx, nil
}

// resolvePhase performs the lazy end-of-phase transitions. It is a pure function and
// resolvePhase(resolvePhase(st)) equals resolvePhase(st).
func resolvePhase(st domain.SessionState, total, maxRounds int) domain.SessionState {
	for !st.Completed {
		if st.RetryRound == 0 {
			if st.CurrentIndex < total {
				return st
			}
			if len(st.MissedQueue) == 0 {
				st.Completed = true
				return st
			}
			st = enterRetryRound(st, 1)
			continue
		}

		if st.CurrentIndex < len(st.RoundQueue) {
			return st
		}
		if roundResolved(st) || len(st.MissedQueue) == 0 || (maxRounds > 0 && st.RetryRound >= maxRounds) {
			st.Completed = true
			return st
		}
		st = enterRetryRound(st, st.RetryRound+1)
	}
	return st
}

// enterRetryRound starts a round over the missed queue as it stands at round entry.
func enterRetryRound(st domain.SessionState, round int) domain.SessionState {
	st.RetryRound = round
	st.CurrentIndex = 0
	st.RoundQueue = append([]int(nil), st.MissedQueue...)
	return st
}

func roundResolved(st domain.SessionState) bool {
	for _, idx := range st.RoundQueue {
		if !st.Answers[idx].IsCorrect {
			return false
		}
	}
	return true
}

func cloneState(st domain.SessionState) domain.SessionState {
	out := st
	out.RoundQueue = slices.Clone(st.RoundQueue)
	out.MissedQueue = slices.Clone(st.MissedQueue)
	if out.MissedQueue == nil {
		out.MissedQueue = []int{}
	}
	out.Answers = maps.Clone(st.Answers)
	for k, rec := range out.Answers {
		rec.Selected = slices.Clone(rec.Selected)
		rec.Correct = slices.Clone(rec.Correct)
		out.Answers[k] = rec
	}
	return out
}
