package postgres

import (
	"context"
	"errors"
	"fmt"

	"quiz-retry-service/internal/catalog"
	"quiz-retry-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizLoader loads quiz JSON documents from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return catalog.Parse(quizID, raw)
}

func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, title FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizSummary
	for rows.Next() {
		var s domain.QuizSummary
		if err := rows.Scan(&s.ID, &s.Title); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
