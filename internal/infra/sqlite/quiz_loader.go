package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quiz-retry-service/internal/catalog"
	"quiz-retry-service/internal/domain"
	_ "modernc.org/sqlite" // driver: sqlite
)

const schema = `
CREATE TABLE IF NOT EXISTS quizzes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);`

// QuizLoader serves the quiz catalog out of a single SQLite file.
type QuizLoader struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite catalog at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*QuizLoader, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &QuizLoader{db: db}, nil
}

func (l *QuizLoader) Close() error {
	return l.db.Close()
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw string
	err := l.db.QueryRowContext(ctx, `SELECT data FROM quizzes WHERE id = ?`, quizID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return catalog.Parse(quizID, []byte(raw))
}

func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, title FROM quizzes ORDER BY id`)
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

// Import upserts documents in one transaction.
func (l *QuizLoader) Import(ctx context.Context, docs []catalog.Document) (int, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quizzes (id, title, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, data = excluded.data,
			updated_at = strftime('%s','now')`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Title, string(doc.Data)); err != nil {
			return 0, fmt.Errorf("import quiz %q: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(docs), nil
}
