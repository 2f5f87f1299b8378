package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Log struct {
	ID        int64
	CreatedAt time.Time
	Url       *string
	Selector  *string
	Path      *string
	Message   *string
	Err       *string
}

type InsertLogParams struct {
	Url      *string
	Selector *string
	Path     *string
	Message  *string
	Err      *string
}

const insertLog = `
INSERT INTO logs (url, selector, path, message, err)
VALUES ($1, $2, $3, $4, $5)
`

func (q *Queries) InsertLog(ctx context.Context, arg InsertLogParams) error {
	_, err := q.db.Exec(ctx, insertLog,
		arg.Url,
		arg.Selector,
		arg.Path,
		arg.Message,
		arg.Err,
	)
	return err
}

const getRecentLogs = `
SELECT id, created_at, url, selector, path, message, err
FROM logs
ORDER BY created_at DESC, id DESC
LIMIT $1
`

// GetRecentLogs returns the newest log rows first. Not used by the CLI itself; it lets tests (and
// operators) read back what [Queries.InsertLog] wrote.
func (q *Queries) GetRecentLogs(ctx context.Context, limit int32) ([]Log, error) {
	rows, err := q.db.Query(ctx, getRecentLogs, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Log, error) {
		var l Log
		err := row.Scan(&l.ID, &l.CreatedAt, &l.Url, &l.Selector, &l.Path, &l.Message, &l.Err)
		return l, err
	})
}
