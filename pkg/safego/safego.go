package safego

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/konnexhq/identity-service/internal/domain"
)

// Execute runs fn in a new goroutine, recovering any panic and logging it
// with the goroutine's name and a stack trace instead of crashing the
// process.
func Execute(ctx context.Context, logger domain.Logger, goroutineName string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				// Fall back to a fresh context so the panic is still
				// logged when the original one is already done.
				logCtx := ctx
				if ctx.Err() != nil {
					logCtx = context.Background()
				}
				logger.Error(logCtx, fmt.Sprintf("Panic recovered in goroutine: %s", goroutineName),
					"panic_info", fmt.Sprintf("%v", r),
					"stacktrace", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
