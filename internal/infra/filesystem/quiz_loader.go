package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"quiz-retry-service/internal/catalog"
	"quiz-retry-service/internal/domain"
	"quiz-retry-service/internal/logger"
)

// DefaultPattern matches quiz_data.json, quiz_data1.json, quiz_data_js.json, ...
const DefaultPattern = "quiz_data*.json"

// QuizLoader reads quiz documents from a directory. A quiz id is its file name without ".json".
type QuizLoader struct {
	dir     string
	pattern string
	log     *logger.Logger
}

func NewQuizLoader(dir, pattern string, log *logger.Logger) *QuizLoader {
	if dir == "" {
		dir = "."
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	if log == nil {
		log = logger.Nop()
	}
	return &QuizLoader{dir: dir, pattern: pattern, log: log}
}

func (l *QuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	path, ok := l.pathFor(quizID)
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("read quiz %q: %w", quizID, err)
	}
	return catalog.Parse(quizID, data)
}

// ListQuizzes lists every matching file sorted by id. Unreadable or malformed files are skipped.
func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	docs, err := l.Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.QuizSummary{ID: doc.ID, Title: doc.Title})
	}
	return out, nil
}

// Documents returns the raw, validated documents of the directory, sorted by id.
func (l *QuizLoader) Documents(_ context.Context) ([]catalog.Document, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, l.pattern))
	if err != nil {
		return nil, fmt.Errorf("glob quizzes: %w", err)
	}
	sort.Strings(matches)

	docs := make([]catalog.Document, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		data, err := os.ReadFile(path)
		if err != nil {
			l.log.Warn("skipping unreadable quiz file", "path", path, "error", err)
			continue
		}
		quiz, err := catalog.Parse(id, data)
		if err != nil {
			l.log.Warn("skipping invalid quiz file", "path", path, "error", err)
			continue
		}
		docs = append(docs, catalog.Document{ID: id, Title: quiz.Title, Data: data})
	}
	return docs, nil
}

func (l *QuizLoader) pathFor(quizID string) (string, bool) {
	if quizID == "" || strings.ContainsAny(quizID, `/\`) || strings.Contains(quizID, "..") {
		return "", false
	}
	name := quizID + ".json"
	if ok, _ := filepath.Match(l.pattern, name); !ok {
		return "", false
	}
	return filepath.Join(l.dir, name), true
}
