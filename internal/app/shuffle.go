package app

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"quiz-retry-service/internal/domain"
)

// RandFactory hands out a fresh generator per shuffle so concurrent sessions never share one.
type RandFactory func() *rand.Rand

// NewTimeSeededRand is the default RandFactory.
func NewTimeSeededRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Shuffle builds a working copy of def with questions and choice options reordered.
// The correct answer of every choice question is remapped so it still denotes the same text.
// True/false questions keep their option order; fill-in-the-blank questions are copied as-is.
func Shuffle(def domain.Quiz, rnd *rand.Rand) (domain.Quiz, error) {
	working := def.Clone()

	rnd.Shuffle(len(working.Questions), func(i, j int) {
		working.Questions[i], working.Questions[j] = working.Questions[j], working.Questions[i]
	})

	for i := range working.Questions {
		q := &working.Questions[i]
		if !q.IsChoice() || q.IsTrueFalse() {
			continue
		}
		if err := shuffleOptions(q, rnd); err != nil {
			return domain.Quiz{}, err
		}
	}
	return working, nil
}

func shuffleOptions(q *domain.Question, rnd *rand.Rand) error {
	correct := make(map[string]bool, len(q.CorrectAnswer))
	for _, key := range q.CorrectAnswer {
		if _, ok := q.OptionText(key); !ok {
			return fmt.Errorf("%w: question %q correct answer %q matches no option", domain.ErrDataIntegrity, q.ID, key)
		}
		correct[key] = true
	}

	rnd.Shuffle(len(q.Options), func(i, j int) {
		q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
	})

	remapped := make([]string, 0, len(correct))
	for i := range q.Options {
		newKey := strconv.Itoa(i)
		if correct[q.Options[i].Key] {
			remapped = append(remapped, newKey)
		}
		q.Options[i].Key = newKey
	}
	if len(remapped) == 0 || (q.Type == domain.MultipleChoice && len(remapped) != 1) {
		return fmt.Errorf("%w: question %q lost its correct answer while shuffling", domain.ErrDataIntegrity, q.ID)
	}
	q.CorrectAnswer = remapped
	return nil
}
