package obs

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "req_id"
	loggerKey    ctxKey = "logger"
)

// WithLogger stores l in ctx for downstream FromContext calls.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the request-scoped logger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithRequestID tags ctx and its logger with a request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, RequestIDKey, id)
	return WithLogger(ctx, FromContext(ctx).With("req_id", id))
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time logs the duration of an operation. Use as
//
//	defer obs.Time(ctx, "op")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)
		l := FromContext(ctx)

		if errp != nil && *errp != nil {
			l.WarnContext(ctx, "op failed", "op", name, "dur_ms", dur.Milliseconds(), "err", *errp)
			return
		}
		l.DebugContext(ctx, "op done", "op", name, "dur_ms", dur.Milliseconds())
	}
}
