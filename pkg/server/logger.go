package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mikeboe/research-bot/pkg/database"
)

// DBLogHandler is a slog.Handler that writes records to research_logs.
type DBLogHandler struct {
	DB    database.DBTX
	JobID string
	Level slog.Leveler

	attrs []slog.Attr
	group string
}

func NewDBLogHandler(db database.DBTX, jobID string) *DBLogHandler {
	return &DBLogHandler{
		DB:    db,
		JobID: jobID,
		Level: slog.LevelInfo,
	}
}

func (h *DBLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.Level.Level()
}

func (h *DBLogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		v := a.Value.Resolve().Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		attrs[key] = v
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO research_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Logs outlive the request that started the job.
	_, err = h.DB.Exec(context.Background(), query, h.JobID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}
