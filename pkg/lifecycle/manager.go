package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager hands out Handles to background services and waits for them
// to stop after Shutdown.
type Manager struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	services map[string]bool
	log      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager returns a Manager. A nil log discards output.
func NewManager(log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Manager{
		services: make(map[string]bool),
		log:      log,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// NewServiceHandle registers name and returns its Handle. Names are unique.
func (m *Manager) NewServiceHandle(name string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.services[name] {
		return nil, fmt.Errorf("lifecycle: service %q already registered", name)
	}
	m.services[name] = true
	m.wg.Add(1)
	m.log.Debugw("service registered", "service", name)

	return &Handle{
		name: name,
		ctx:  m.ctx,
		Close: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, exists := m.services[name]; !exists {
				return
			}
			delete(m.services, name)
			m.wg.Done()
		},
	}, nil
}

// Go registers name and runs fn in a goroutine, closing the handle when fn returns.
func (m *Manager) Go(name string, fn func(h *Handle)) error {
	h, err := m.NewServiceHandle(name)
	if err != nil {
		return err
	}
	go func() {
		defer h.Close()
		fn(h)
	}()
	return nil
}

// Shutdown cancels every Handle's context.
func (m *Manager) Shutdown() {
	m.log.Infow("broadcasting shutdown to background services")
	m.cancel()
}

// WaitWithTimeout waits for every registered service to close. It returns
// the names still running when the timeout hits, sorted.
func (m *Manager) WaitWithTimeout(timeout time.Duration) []string {
	doneChan := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(doneChan)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-doneChan:
		return nil
	case <-timer.C:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.remainingServices()
	}
}

func (m *Manager) remainingServices() []string {
	remaining := make([]string, 0, len(m.services))
	for name := range m.services {
		remaining = append(remaining, name)
	}
	sort.Strings(remaining)
	return remaining
}
