// Package lifecycle owns deterministic startup and shutdown ordering for
// the orchestration server's background services (spec.md §4.J), plus the
// HTTP health surface the process exposes to its caller.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
)

// Service is a lifecycle-managed background component. Every long-running
// collaborator the server starts (the write queue, the RAG scheduler, the
// session monitor, the HTTP/WS listeners) implements this so the Manager
// can start and stop it deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ReadyChecker is the optional extension a Service implements when it has
// a meaningful notion of "not yet ready to serve traffic" beyond having
// started (e.g. the RAG indexer hasn't completed its first hydration
// pass). The /ready endpoint polls every registered ReadyChecker.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Manager starts registered services in registration order and stops them
// in reverse order, rolling back a partial start on first failure.
type Manager struct {
	mu        sync.Mutex
	services  []Service
	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager creates an empty lifecycle manager.
func NewManager() *Manager {
	return &Manager{services: make([]Service, 0)}
}

// Register appends svc to the startup queue. Registration after Start has
// run returns an error; order matters, since Stop runs in reverse.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return fmt.Errorf("lifecycle: cannot register a nil service")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("lifecycle: service %q registered after manager start", svc.Name())
	}
	m.services = append(m.services, svc)
	return nil
}

// Start runs Start on every registered service in order. If one fails, the
// already-started services are stopped in reverse order before the error
// is returned, so a failed boot never leaves half-started infrastructure
// behind for the caller to track down.
func (m *Manager) Start(ctx context.Context) error {
	var startErr error
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		services := append([]Service(nil), m.services...)
		m.mu.Unlock()

		for idx, svc := range services {
			if err := svc.Start(ctx); err != nil {
				startErr = fmt.Errorf("lifecycle: start %s: %w", svc.Name(), err)
				for i := idx - 1; i >= 0; i-- {
					_ = services[i].Stop(ctx)
				}
				break
			}
		}
	})
	return startErr
}

// Stop runs Stop on every registered service in reverse order. It is
// idempotent and returns the first error encountered.
func (m *Manager) Stop(ctx context.Context) error {
	var stopErr error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		services := append([]Service(nil), m.services...)
		m.mu.Unlock()

		for i := len(services) - 1; i >= 0; i-- {
			if err := services[i].Stop(ctx); err != nil && stopErr == nil {
				stopErr = fmt.Errorf("lifecycle: stop %s: %w", services[i].Name(), err)
			}
		}
	})
	return stopErr
}

// Ready reports the first error returned by any registered ReadyChecker,
// or nil once every service that has an opinion on readiness agrees.
func (m *Manager) Ready(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	for _, svc := range services {
		if rc, ok := svc.(ReadyChecker); ok {
			if err := rc.Ready(ctx); err != nil {
				return fmt.Errorf("lifecycle: %s not ready: %w", svc.Name(), err)
			}
		}
	}
	return nil
}

// Names returns the registered service names in startup order, used by
// /health to report which services are under management.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.services))
	for i, svc := range m.services {
		names[i] = svc.Name()
	}
	return names
}
