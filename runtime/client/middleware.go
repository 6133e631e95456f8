// Package client provides middleware support for query hooks.
package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/expreql/expreql/internal/debug"
	"github.com/expreql/expreql/query/executor"
)

// LoggingMiddleware creates a middleware that logs statements. A nil logger
// uses the debug logger.
func LoggingMiddleware(logger *slog.Logger) executor.Middleware {
	return func(ctx context.Context, event *executor.QueryEvent, next func() error) error {
		l := logger
		if l == nil {
			l = debug.Logger()
		}
		l.DebugContext(ctx, "executing statement", "id", event.ID, "kind", event.Kind, "sql", event.Query, "args", event.Args)
		err := next()
		if err != nil {
			l.ErrorContext(ctx, "statement failed", "id", event.ID, "sql", event.Query, "error", err)
		} else {
			l.InfoContext(ctx, "statement completed",
				"id", event.ID,
				"sql", event.Query,
				"rows", event.RowsAffected,
				"duration", event.Duration,
			)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures statement execution time
func TimingMiddleware(onTiming func(query string, duration time.Duration)) executor.Middleware {
	return func(ctx context.Context, event *executor.QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(query string, err error)) executor.Middleware {
	return func(ctx context.Context, event *executor.QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Query, err)
		}
		return err
	}
}
