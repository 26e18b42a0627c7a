package audit

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/accounts/pkg/async"
	"github.com/platinummonkey/accounts/pkg/observability"
)

// AsyncLogger moves audit writes off the request path. Each event is written
// by a background goroutine with its own timeout; failures are logged.
type AsyncLogger struct {
	next    Logger
	timeout time.Duration
	logger  *observability.Logger
	wg      sync.WaitGroup
}

// NewAsyncLogger wraps next
func NewAsyncLogger(next Logger, timeout time.Duration, logger *observability.Logger) *AsyncLogger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncLogger{next: next, timeout: timeout, logger: logger}
}

// Log schedules the write and returns immediately
func (a *AsyncLogger) Log(ctx context.Context, event *Event) error {
	a.wg.Add(1)
	async.SafeGo(ctx, a.logger, a.timeout, "audit "+string(event.EventType), func(ctx context.Context) error {
		defer a.wg.Done()
		return a.next.Log(ctx, event)
	})
	return nil
}

// Close waits for pending writes and closes the wrapped logger
func (a *AsyncLogger) Close() error {
	a.wg.Wait()
	return a.next.Close()
}
