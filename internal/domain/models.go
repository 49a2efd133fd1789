package domain

import (
	"fmt"
	"strings"
	"time"
)

// QuestionType tags the variant of a Question.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	MultipleAnswer QuestionType = "multiple_answer"
	FillInTheBlank QuestionType = "fill_in_the_blank"
)

// BlankMarker is the inline-blank placeholder a fill-in-the-blank prompt may embed.
const BlankMarker = "___"

// Option is one selectable answer of a choice-style question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is a tagged union keyed by Type.
//   - multiple_choice: Options plus exactly one key in CorrectAnswer.
//   - multiple_answer: Options plus the set of correct keys in CorrectAnswer.
//   - fill_in_the_blank: no Options; CorrectAnswer holds the accepted strings.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer []string     `json:"correctAnswer"`
}

// OptionText resolves an option key to its display text.
func (q Question) OptionText(key string) (string, bool) {
	for _, opt := range q.Options {
		if opt.Key == key {
			return opt.Text, true
		}
	}
	return "", false
}

// IsChoice reports whether the question carries selectable options.
func (q Question) IsChoice() bool {
	return q.Type == MultipleChoice || q.Type == MultipleAnswer
}

// IsTrueFalse reports whether a choice question has exactly the two options "true" and "false".
func (q Question) IsTrueFalse() bool {
	if !q.IsChoice() || len(q.Options) != 2 {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(q.Options[0].Text))
	b := strings.ToLower(strings.TrimSpace(q.Options[1].Text))
	return (a == "true" && b == "false") || (a == "false" && b == "true")
}

// IsInlineBlank reports whether a fill-in-the-blank prompt embeds the blank marker.
func (q Question) IsInlineBlank() bool {
	return q.Type == FillInTheBlank && strings.Contains(q.Text, BlankMarker)
}

// Validate checks that the variant-specific fields are present and consistent.
func (q Question) Validate() error {
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %q has no options", ErrDataIntegrity, q.ID)
		}
		if len(q.CorrectAnswer) != 1 {
			return fmt.Errorf("%w: question %q needs exactly one correct option", ErrDataIntegrity, q.ID)
		}
	case MultipleAnswer:
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %q has no options", ErrDataIntegrity, q.ID)
		}
		if len(q.CorrectAnswer) == 0 {
			return fmt.Errorf("%w: question %q has no correct options", ErrDataIntegrity, q.ID)
		}
	case FillInTheBlank:
		if len(q.CorrectAnswer) == 0 {
			return fmt.Errorf("%w: question %q has no accepted answers", ErrDataIntegrity, q.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedQuestionType, q.Type)
	}

	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if _, dup := seen[opt.Key]; dup {
			return fmt.Errorf("%w: question %q repeats option key %q", ErrDataIntegrity, q.ID, opt.Key)
		}
		seen[opt.Key] = struct{}{}
	}
	for _, key := range q.CorrectAnswer {
		if _, ok := seen[key]; !ok {
			return fmt.Errorf("%w: question %q correct answer %q matches no option", ErrDataIntegrity, q.ID, key)
		}
	}
	return nil
}

// Quiz is an immutable quiz definition, or a per-session working copy of one.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Validate checks every question of the quiz.
func (q Quiz) Validate() error {
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy that shares no slices with q.
func (q Quiz) Clone() Quiz {
	out := Quiz{ID: q.ID, Title: q.Title, Questions: make([]Question, len(q.Questions))}
	for i, question := range q.Questions {
		question.Options = append([]Option(nil), question.Options...)
		question.CorrectAnswer = append([]string(nil), question.CorrectAnswer...)
		out.Questions[i] = question
	}
	return out
}

// QuizSummary is a catalog entry.
type QuizSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// AnswerRecord is the review-log entry for one question index.
type AnswerRecord struct {
	Index               int          `json:"index"`
	Question            string       `json:"question"`
	QuestionType        QuestionType `json:"questionType"`
	Selected            []string     `json:"selected"`
	SelectedText        string       `json:"selectedText"`
	Correct             []string     `json:"correct"`
	CorrectText         string       `json:"correctText"`
	IsCorrect           bool         `json:"isCorrect"`
	WasRetried          bool         `json:"wasRetried"`
	FirstAttemptCorrect bool         `json:"firstAttemptCorrect"`
}

// SessionState is the mutable progress of one quiz run. Only the session state machine writes it.
type SessionState struct {
	CurrentIndex int                  `json:"currentIndex"`
	RetryRound   int                  `json:"retryRound"` // 0 during the main pass
	RoundQueue   []int                `json:"roundQueue,omitempty"`
	Completed    bool                 `json:"completed"`
	Score        int                  `json:"score"`
	Answers      map[int]AnswerRecord `json:"answers"`
	MissedQueue  []int                `json:"missedQueue"`
	StartedAt    time.Time            `json:"startedAt"`
}

// PhaseLabel names the current phase for display.
func (s SessionState) PhaseLabel() string {
	if s.Completed {
		return "Results"
	}
	if s.RetryRound > 0 {
		return fmt.Sprintf("Retry #%d", s.RetryRound)
	}
	return "Main"
}

// SessionRecord is what a session store persists for one session id.
type SessionRecord struct {
	ID     string       `json:"id"`
	QuizID string       `json:"quizId"`
	Quiz   Quiz         `json:"quiz"`
	State  SessionState `json:"state"`
}

// PublicQuestion is a question as shown to the user, without its answer.
type PublicQuestion struct {
	ID      string       `json:"id"`
	Text    string       `json:"question"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options,omitempty"`
}

// QuestionView tells the caller what to show next.
type QuestionView struct {
	Done           bool            `json:"done"`
	Question       *PublicQuestion `json:"question,omitempty"`
	QuestionNum    int             `json:"questionNum,omitempty"`
	TotalQuestions int             `json:"totalQuestions,omitempty"`
	Phase          string          `json:"phase"`
	QuestionType   QuestionType    `json:"questionType,omitempty"`
	IsInlineBlank  bool            `json:"isInlineBlank"`
}

// Verdict is returned for one answer submission.
type Verdict struct {
	IsCorrect          bool     `json:"isCorrect"`
	CorrectAnswers     []string `json:"correctAnswers"`
	CorrectAnswerText  string   `json:"correctAnswerText"`
	SelectedAnswerText string   `json:"selectedAnswerText"`
}

// Results summarizes a finished (or abandoned) run.
type Results struct {
	QuizID         string         `json:"quizId"`
	Title          string         `json:"title"`
	Score          int            `json:"score"`
	Total          int            `json:"total"`
	Percentage     float64        `json:"percentage"`
	Answers        []AnswerRecord `json:"perQuestionLog"`
	ElapsedSeconds *float64       `json:"elapsedSeconds,omitempty"`
	RetryRound     int            `json:"retryRound"`
}
