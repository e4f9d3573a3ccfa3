package gate

import (
	"context"
	"sync"
	"time"

	"github.com/viant/fleetsched/internal/logging"
)

// OpenFunc decides whether a pending request can be opened.
type OpenFunc func(r *Request) (open bool, reason string)

// AutoOpen starts a goroutine that polls ListPending and opens every request
// accepted by fn. It returns stop(), which waits for the goroutine to
// exit; call it or cancel ctx.
func AutoOpen(ctx context.Context, m *Module, fn OpenFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	if fn == nil {
		fn = func(*Request) (bool, string) { return true, "auto" }
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				requests, err := m.ListPending(ctx)
				if err != nil {
					m.logger.Error(err, "failed to list pending gate requests")
					continue
				}
				for _, r := range requests {
					if open, reason := fn(r); open {
						if _, err = m.Open(ctx, r.ID, reason); err != nil {
							m.logger.V(logging.VERBOSE).Info("failed to open gate request", "id", r.ID, "error", err.Error())
						}
					}
				}
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
		<-finished
	}
}
