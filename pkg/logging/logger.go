package logging

import (
	"context"
	"log/slog"
)

type ctxLoggerKey struct {
	Key string
}

var (
	cKey   = ctxLoggerKey{Key: "logger"}
	reqKey = ctxLoggerKey{Key: "request_id"}
)

func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(cKey).(*slog.Logger)
	if !ok {
		l = slog.Default()
	}

	// Always attach request ID from context if available
	if requestID := GetRequestIDFromCtx(ctx); requestID != "" {
		l = l.With(slog.String("request_id", requestID))
	}

	return l
}

// Returns logger from context and attaches operation name
func GetLoggerFromContextWithOp(ctx context.Context, op string) *slog.Logger {
	return GetLoggerFromContext(ctx).With(slog.String("op", op))
}

func MakeContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, cKey, logger)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
