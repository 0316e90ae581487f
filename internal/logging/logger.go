// Package logging defines the minimal structured-logging interface the
// application is written against. The concrete implementation wraps slog.
package logging

import "context"

// Logger is a context-aware, structured logger. Variadic args are
// interpreted as alternating key-value pairs:
//
//	log.Info(ctx, "consumer started", "topics", topics, "group", groupID)
type Logger interface {
	// Debug logs fine-grained diagnostic detail.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs normal operational events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
