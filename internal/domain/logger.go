package domain

import (
	"context"
)

// Logger is the structured logging interface used across the service.
// Implementations (e.g. the Zap adapter) are expected to emit JSON and to
// enrich every entry with fields carried in the context, such as the request
// id or the user id of the resolution being processed. The variadic `fields`
// argument takes alternating key/value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...any)
	Info(ctx context.Context, msg string, fields ...any)
	Warn(ctx context.Context, msg string, fields ...any)
	Error(ctx context.Context, msg string, fields ...any)
	Fatal(ctx context.Context, msg string, fields ...any) // logs, then os.Exit(1)

	// With returns a child logger that always carries the given fields.
	With(fields ...any) Logger
}
