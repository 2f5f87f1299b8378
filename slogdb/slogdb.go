package slogdb

import (
	"context"
	"log/slog"
	"sync"

	"chimbori.dev/calshot/db"
)

// DBHandler is a slog.Handler that copies error-level logs into the PostgreSQL `logs` table.
// It wraps another handler to maintain normal console logging.
type DBHandler struct {
	parent  slog.Handler
	queries *db.Queries
	attrs   []slog.Attr
	mu      *sync.Mutex
}

// NewDBHandler creates a new database logging handler that wraps the parent handler.
// Only ERROR level logs are written to the database; all logs are passed to the parent.
func NewDBHandler(parent slog.Handler, conn db.DBTX) *DBHandler {
	return &DBHandler{
		parent:  parent,
		queries: db.New(conn),
		mu:      &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level. It delegates to the parent handler.
func (h *DBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.parent.Enabled(ctx, level)
}

// Handle writes error-level logs to the database, then delegates to the parent handler.
func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		h.writeToDatabase(ctx, r)
	}
	return h.parent.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes added.
// They are remembered here too, so that e.g. a logger-scoped “url” still reaches the database.
func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DBHandler{
		parent:  h.parent.WithAttrs(attrs),
		queries: h.queries,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
		mu:      h.mu,
	}
}

// WithGroup returns a new handler with the given group added.
func (h *DBHandler) WithGroup(name string) slog.Handler {
	return &DBHandler{
		parent:  h.parent.WithGroup(name),
		queries: h.queries,
		attrs:   h.attrs,
		mu:      h.mu,
	}
}

// writeToDatabase extracts relevant information from the log record and writes it to the `logs` table.
func (h *DBHandler) writeToDatabase(ctx context.Context, r slog.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	params := paramsFromRecord(r, h.attrs)
	// Use context.Background() so that a cancelled run still records why it failed.
	err := h.queries.InsertLog(context.Background(), params)
	// If we fail to write to the database, log it to the parent handler,
	// but don’t propagate the error to avoid infinite loops.
	if err != nil {
		_ = h.parent.Handle(ctx, slog.NewRecord(r.Time, slog.LevelWarn, "Failed to write log to database", r.PC))
	}
}

// paramsFromRecord maps well-known attribute keys onto `logs` columns.
func paramsFromRecord(r slog.Record, scoped []slog.Attr) db.InsertLogParams {
	var params db.InsertLogParams
	message := r.Message
	params.Message = &message

	collect := func(a slog.Attr) bool {
		s := a.Value.String()
		if s == "" {
			return true
		}
		switch a.Key {
		case "err":
			params.Err = &s
		case "url":
			params.Url = &s
		case "selector":
			params.Selector = &s
		case "path", "archive", "dir":
			params.Path = &s
		}
		return true
	}
	for _, a := range scoped {
		collect(a)
	}
	r.Attrs(collect)
	return params
}
