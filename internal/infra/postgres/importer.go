package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"quiz-retry-service/internal/catalog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID    string `bun:"id,pk"`
	Title string `bun:"title"`
	Data  string `bun:"data,type:json"`
}

// OpenBun opens a bun handle over the pgdriver connector.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Import upserts quiz documents into the quizzes table.
func Import(ctx context.Context, db *bun.DB, docs []catalog.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	rows := make([]quizRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, quizRow{ID: doc.ID, Title: doc.Title, Data: string(doc.Data)})
	}
	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("import quizzes: %w", err)
	}
	return len(rows), nil
}
