package lifecycle

import (
	"context"
	"time"
)

// Handle is given to one background service by a Manager.
type Handle struct {
	name string
	ctx  context.Context
	// Close tells the Manager the service has stopped. Call it with defer
	// before the service goroutine returns; extra calls are ignored.
	Close func()
}

// Name is the name the service registered under.
func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done is closed when the Manager broadcasts shutdown.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep waits for duration and returns early with the context error if
// shutdown starts first.
func (h *Handle) Sleep(duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}
