package orm

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to Logger. Queries are logged at debug
// level under the "orm" group.
type SlogLogger struct {
	L *slog.Logger
}

// Log implements Logger.
func (s SlogLogger) Log(ctx context.Context, query string, args ...any) {
	l := s.L
	if l == nil {
		l = slog.Default()
	}
	l.DebugContext(ctx, "query", slog.Group("orm",
		slog.String("sql", query),
		slog.Any("args", args),
	))
}

var _ Logger = SlogLogger{}
