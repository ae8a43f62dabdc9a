package lifecycle

import (
	"context"
	"time"

	"github.com/conclave-mcp/orchestrator/internal/agents"
	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

// SessionMonitor is the background loop spec.md §4.J names: it prunes
// stale tokens and detects abandoned agents, so a worker that crashed
// without calling terminate_agent doesn't hold its file claims and
// in-progress tasks forever.
type SessionMonitor struct {
	agents   *agents.Manager
	tokens   *auth.Registry
	stores   storage.Stores
	timeout  time.Duration
	interval time.Duration
	log      *logger.Logger
	metrics  *Metrics

	stop chan struct{}
	done chan struct{}
}

// NewSessionMonitor builds a monitor that considers an agent abandoned
// once its last update exceeds timeout, sweeping every interval. metrics
// may be nil.
func NewSessionMonitor(agentMgr *agents.Manager, tokens *auth.Registry, stores storage.Stores, timeout, interval time.Duration, log *logger.Logger, metrics *Metrics) *SessionMonitor {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionMonitor{agents: agentMgr, tokens: tokens, stores: stores, timeout: timeout, interval: interval, log: log, metrics: metrics}
}

func (s *SessionMonitor) Name() string { return "session-monitor" }

// Start launches the sweep loop in the background and returns immediately;
// each sweep uses its own background context so a slow pass never ties up
// the caller's startup context.
func (s *SessionMonitor) Start(ctx context.Context) error {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run()
	return nil
}

func (s *SessionMonitor) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *SessionMonitor) sweep(ctx context.Context) {
	s.terminateAbandonedAgents(ctx)
	s.revokeOrphanedTokens(ctx)
}

func (s *SessionMonitor) terminateAbandonedAgents(ctx context.Context) {
	list, err := s.stores.Agents.List(ctx)
	if err != nil {
		s.log.WithField("error", err).Warn("session monitor: list agents failed")
		return
	}
	now := time.Now()
	for _, a := range list {
		if a.AgentID == domain.AdminAgentID || a.Status == domain.AgentTerminated {
			continue
		}
		if now.Sub(a.UpdatedAt) < s.timeout {
			continue
		}
		if err := s.agents.Terminate(ctx, "admin", a.AgentID); err != nil {
			s.log.WithFields(map[string]any{"agent_id": a.AgentID, "error": err}).Warn("session monitor: terminate abandoned agent failed")
			continue
		}
		if s.metrics != nil {
			s.metrics.StaleAgentsTotal.Inc()
		}
		s.log.WithField("agent_id", a.AgentID).Info("session monitor: terminated abandoned agent")
	}
}

func (s *SessionMonitor) revokeOrphanedTokens(ctx context.Context) {
	records, err := s.stores.Tokens.All(ctx)
	if err != nil {
		s.log.WithField("error", err).Warn("session monitor: list tokens failed")
		return
	}
	for _, rec := range records {
		if rec.Revoked {
			continue
		}
		if _, ok, err := s.stores.Agents.Get(ctx, rec.AgentID); err == nil && !ok {
			if err := s.tokens.Revoke(ctx, rec.Token); err != nil {
				s.log.WithFields(map[string]any{"agent_id": rec.AgentID, "error": err}).Warn("session monitor: revoke orphaned token failed")
				continue
			}
			s.log.WithField("agent_id", rec.AgentID).Info("session monitor: revoked orphaned token")
		}
	}
}

// Stop signals the sweep loop to exit and waits for it, bounded by ctx.
func (s *SessionMonitor) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
