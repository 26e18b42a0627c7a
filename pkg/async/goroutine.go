package async

import (
	"context"
	"time"

	"github.com/platinummonkey/accounts/pkg/observability"
)

// SafeGo executes fn in a goroutine with panic recovery, a timeout and error
// logging. The goroutine is detached from parentCtx cancellation, so work
// started by a request handler survives the response being written, but it
// keeps parentCtx values (request id, trace).
//
// Example:
//
//	async.SafeGo(r.Context(), logger, 2*time.Second, "audit write", func(ctx context.Context) error {
//	    return sink.Log(ctx, event)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("Background task failed")
		}
	}()
}
