package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/lifecycle"
)

const (
	httpTimeout     = 15 * time.Second
	gracefulTimeout = 30 * time.Second
	forcefulTimeout = 1 * time.Second
)

// Coordinator runs the shutdown sequence: stop the HTTP server, stop the
// background services in two phases, then run the final hooks.
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager
	log             *logger.Logger
	finals          []func(ctx context.Context) error
}

func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
		log:             log,
	}
}

// OnFinal registers a hook run after every background service stopped,
// e.g. flushing pending session writes.
func (c *Coordinator) OnFinal(fn func(ctx context.Context) error) {
	c.finals = append(c.finals, fn)
}

// ListenForSignalsAndShutdown blocks until SIGINT or SIGTERM and then shuts down.
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	c.log.Info("shutdown signal received")
	c.Shutdown(server)
}

// Shutdown runs the sequence without waiting for a signal.
func (c *Coordinator) Shutdown(server *http.Server) {
	// 1. Stop accepting requests and let in-flight ones finish
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		if err := server.Shutdown(ctx); err != nil {
			c.log.Error("http server shutdown failed", "error", err)
		} else {
			c.log.Info("http server stopped")
		}
		cancel()
	}

	// 2. Graceful phase
	c.GracefulManager.Shutdown()
	remaining := c.GracefulManager.WaitWithTimeout(gracefulTimeout)
	if len(remaining) > 0 {
		// 3. Forceful phase
		c.log.Warn("services still running, forcing shutdown", "services", remaining)
		c.ForcefulManager.Shutdown()
		c.ForcefulManager.WaitWithTimeout(forcefulTimeout)
	}

	// 4. Final hooks
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	for _, fn := range c.finals {
		if err := fn(ctx); err != nil {
			c.log.Error("final shutdown step failed", "error", err)
		}
	}
	c.log.Info("shutdown complete")
}
