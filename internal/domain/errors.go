package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no quiz session exists for a session id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrMissingQuizData indicates the working quiz or its definition is gone for the session.
	ErrMissingQuizData = errors.New("quiz data not found")
	// ErrDataIntegrity marks a quiz definition whose answers do not resolve to its options.
	ErrDataIntegrity = errors.New("quiz data integrity error")
	// ErrUnsupportedQuestionType is returned for an unrecognized question type tag.
	ErrUnsupportedQuestionType = errors.New("unsupported question type")
	// ErrQuizAlreadyComplete is returned when an operation targets a position past the end of the current phase.
	ErrQuizAlreadyComplete = errors.New("quiz already complete")
	// ErrSessionConflict is returned when a session kept changing under a write and the update gave up.
	ErrSessionConflict = errors.New("quiz session changed concurrently")
)
