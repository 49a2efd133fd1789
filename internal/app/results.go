package app

import (
	"math"
	"sort"
	"time"

	"quiz-retry-service/internal/domain"
)

// Summarize derives the results view from a working quiz and its state. It does not modify state.
func Summarize(quiz domain.Quiz, state domain.SessionState, now time.Time) domain.Results {
	total := len(quiz.Questions)
	percentage := 0.0
	if total > 0 {
		percentage = math.Round(1000*float64(state.Score)/float64(total)) / 10
	}

	indices := make([]int, 0, len(state.Answers))
	for idx := range state.Answers {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	answers := make([]domain.AnswerRecord, 0, len(indices))
	for _, idx := range indices {
		answers = append(answers, state.Answers[idx])
	}

	res := domain.Results{
		QuizID:     quiz.ID,
		Title:      quiz.Title,
		Score:      state.Score,
		Total:      total,
		Percentage: percentage,
		Answers:    answers,
		RetryRound: state.RetryRound,
	}
	if !state.StartedAt.IsZero() && !now.Before(state.StartedAt) {
		elapsed := math.Round(now.Sub(state.StartedAt).Seconds()*10) / 10
		res.ElapsedSeconds = &elapsed
	}
	return res
}
