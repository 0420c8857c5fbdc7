package audit

import (
	"context"
	"log/slog"
)

// LogRepo writes events as structured log records on a dedicated logger.
// Denials are logged at warning level, everything else at info.
type LogRepo struct {
	log *slog.Logger
}

func NewLogRepo(l *slog.Logger) *LogRepo {
	return &LogRepo{log: l.With("component", "audit")}
}

func (r *LogRepo) Append(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	switch e.Type {
	case EventTypeAccessDenied, EventTypeLoginFailed:
		level = slog.LevelWarn
	}
	r.log.LogAttrs(ctx, level, "audit",
		slog.String("event_id", e.ID),
		slog.String("type", string(e.Type)),
		slog.String("user_id", e.ActorUserID),
		slog.String("role", e.ActorRole),
		slog.String("username", e.Username),
		slog.String("ip", e.IPAddress),
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.String("reason", e.Reason),
		slog.String("message", e.Message),
		slog.Time("created_at", e.CreatedAt),
	)
	return nil
}
