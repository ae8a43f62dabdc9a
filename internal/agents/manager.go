// Package agents implements the agent lifecycle operations of spec.md
// §4.E: creation, termination (with claim release and task reassignment),
// listing, and token issuance, all behind the admin-role perimeter.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/platform/writequeue"
	"github.com/conclave-mcp/orchestrator/internal/realtime"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// Manager implements the agent-management tool group. Every mutating
// method is submitted to queue so it serializes against every other
// durable write in the system, per spec.md §4.A; Terminate additionally
// runs its claim-release and task-reassignment fan-out inside a single
// transaction, per spec.md §5.
type Manager struct {
	stores    storage.Stores
	tokens    *auth.Registry
	hub       *realtime.Hub
	queue     *writequeue.Queue
	maxAgents int
}

// New builds a Manager bounded to at most maxAgents live (non-terminated)
// agents, per spec.md §4.E's "global max-agents bound". queue may be nil
// in tests, in which case mutations run inline instead of through the
// serializer.
func New(stores storage.Stores, tokens *auth.Registry, hub *realtime.Hub, queue *writequeue.Queue, maxAgents int) *Manager {
	if maxAgents <= 0 {
		maxAgents = 64
	}
	return &Manager{stores: stores, tokens: tokens, hub: hub, queue: queue, maxAgents: maxAgents}
}

// submit runs job through the write queue when one is configured, or
// inline otherwise.
func (m *Manager) submit(ctx context.Context, job writequeue.Job) error {
	if m.queue == nil {
		return job(ctx)
	}
	return m.queue.SubmitWait(ctx, job)
}

const adminRole = "admin"

func requireAdmin(role string) error {
	if role != adminRole {
		return apperrors.New(apperrors.PermissionDenied, "admin role required")
	}
	return nil
}

// CreateParams are the validated arguments to Create.
type CreateParams struct {
	AgentID      string
	Capabilities []string
	WorkingDir   string
	Role         string
}

// Create mints a token and a durable Agent row for a new identity.
func (m *Manager) Create(ctx context.Context, callerRole string, p CreateParams) (domain.Agent, error) {
	if err := requireAdmin(callerRole); err != nil {
		return domain.Agent{}, err
	}
	if p.AgentID == "" {
		return domain.Agent{}, apperrors.FieldError("agent_id", "required")
	}

	var agent domain.Agent
	err := m.submit(ctx, func(ctx context.Context) error {
		a, err := m.createLocked(ctx, p)
		agent = a
		return err
	})
	if err != nil {
		return domain.Agent{}, err
	}

	m.broadcast(realtime.ChannelAgents, realtime.Event{
		Type:     "agent.created",
		EntityID: agent.AgentID,
		Ts:       agent.CreatedAt,
	})
	return agent, nil
}

func (m *Manager) createLocked(ctx context.Context, p CreateParams) (domain.Agent, error) {
	if _, exists, err := m.stores.Agents.Get(ctx, p.AgentID); err != nil {
		return domain.Agent{}, apperrors.Wrap(apperrors.Internal, "look up agent", err)
	} else if exists {
		return domain.Agent{}, apperrors.New(apperrors.AlreadyExists, fmt.Sprintf("agent %q already exists", p.AgentID))
	}

	existing, err := m.stores.Agents.List(ctx)
	if err != nil {
		return domain.Agent{}, apperrors.Wrap(apperrors.Internal, "list agents", err)
	}
	live := 0
	for _, a := range existing {
		if a.Status != domain.AgentTerminated {
			live++
		}
	}
	if live >= m.maxAgents {
		return domain.Agent{}, apperrors.New(apperrors.ResourceExhausted, "max agent bound reached")
	}

	role := p.Role
	if role == "" {
		role = "worker"
	}
	token, err := m.tokens.Issue(ctx, p.AgentID, role)
	if err != nil {
		return domain.Agent{}, err
	}

	now := time.Now()
	agent := domain.Agent{
		AgentID:      p.AgentID,
		Token:        token,
		Capabilities: p.Capabilities,
		Status:       domain.AgentCreated,
		WorkingDir:   p.WorkingDir,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.stores.Agents.Create(ctx, agent); err != nil {
		_ = m.tokens.Revoke(ctx, token)
		return domain.Agent{}, apperrors.Wrap(apperrors.Internal, "persist agent", err)
	}
	return agent, nil
}

// Terminate transitions agent to terminated, revokes its token, releases
// its file claims, and reassigns its in-progress tasks back to pending.
// Idempotent: terminating an already-terminated agent is a no-op success.
// Token revocation happens before the transaction opens: auth.Registry
// keeps its own mutex outside storage.Stores, and a revoke failure here
// returns before any storage row is touched, so the transaction itself
// only ever needs to cover the storage writes named in spec.md §5 (claim
// release, task reassignment, agent status).
func (m *Manager) Terminate(ctx context.Context, callerRole, agentID string) error {
	if err := requireAdmin(callerRole); err != nil {
		return err
	}
	agent, ok, err := m.stores.Agents.Get(ctx, agentID)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "look up agent", err)
	}
	if !ok {
		return apperrors.New(apperrors.NotFound, fmt.Sprintf("agent %q not found", agentID))
	}
	if agent.Status == domain.AgentTerminated {
		return nil
	}

	var reassigned []domain.Task
	err = m.submit(ctx, func(ctx context.Context) error {
		if err := m.tokens.Revoke(ctx, agent.Token); err != nil {
			return err
		}
		return m.withTx(ctx, func(ctx context.Context, stores storage.Stores) error {
			var terr error
			reassigned, terr = terminateLocked(ctx, stores, agent)
			return terr
		})
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, t := range reassigned {
		m.broadcast(realtime.ChannelTasks, realtime.Event{
			Type:     "task.status_changed",
			EntityID: t.TaskID,
			Changes:  map[string]any{"status": domain.TaskPending, "assigned_to": nil},
			Ts:       t.UpdatedAt,
		})
	}
	m.broadcast(realtime.ChannelAgents, realtime.Event{
		Type:     "agent.terminated",
		EntityID: agentID,
		Ts:       now,
	})
	return nil
}

// withTx runs fn inside a transaction when one is configured, or against
// the plain store bundle otherwise (tests construct a Manager with a nil
// storage.Stores.Tx).
func (m *Manager) withTx(ctx context.Context, fn func(ctx context.Context, stores storage.Stores) error) error {
	if m.stores.Tx == nil {
		return fn(ctx, m.stores)
	}
	return m.stores.Tx.WithinTx(ctx, fn)
}

// terminateLocked applies the claim-release and task-reassignment fan-out
// plus the final agent status update against stores, returning the tasks
// it reassigned so the caller can broadcast once outside the transaction.
func terminateLocked(ctx context.Context, stores storage.Stores, agent domain.Agent) ([]domain.Task, error) {
	claims, err := stores.Claims.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list claims", err)
	}
	for _, c := range claims {
		if c.AgentID == agent.AgentID {
			if err := stores.Claims.Release(ctx, c.FilePath, agent.AgentID); err != nil {
				return nil, apperrors.Wrap(apperrors.Internal, "release claim", err)
			}
		}
	}

	tasks, err := stores.Tasks.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list tasks", err)
	}
	var reassigned []domain.Task
	for _, t := range tasks {
		if t.AssignedTo != nil && *t.AssignedTo == agent.AgentID && !t.Status.Terminal() {
			t.Status = domain.TaskPending
			t.AssignedTo = nil
			t.UpdatedAt = time.Now()
			if err := stores.Tasks.Update(ctx, t); err != nil {
				return nil, apperrors.Wrap(apperrors.Internal, "reassign task", err)
			}
			reassigned = append(reassigned, t)
		}
	}

	agent.Status = domain.AgentTerminated
	agent.CurrentTask = nil
	agent.UpdatedAt = time.Now()
	if err := stores.Agents.Update(ctx, agent); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "persist agent", err)
	}
	return reassigned, nil
}

// List returns every known agent, admin and worker alike.
func (m *Manager) List(ctx context.Context) ([]domain.Agent, error) {
	agents, err := m.stores.Agents.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list agents", err)
	}
	return agents, nil
}

// Tokens returns the (agent_id, token) pairs an admin is allowed to see,
// used by get_agent_tokens. Workers may only see their own token.
func (m *Manager) Tokens(ctx context.Context, callerRole, callerAgentID string) ([]domain.Agent, error) {
	agents, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if callerRole == adminRole {
		return agents, nil
	}
	for _, a := range agents {
		if a.AgentID == callerAgentID {
			return []domain.Agent{a}, nil
		}
	}
	return nil, apperrors.New(apperrors.NotFound, "agent not found")
}

func (m *Manager) broadcast(channel string, event realtime.Event) {
	if m.hub != nil {
		m.hub.Broadcast(channel, event)
	}
}

// ClaimResult is the outcome of ClaimFile.
type ClaimResult struct {
	Claimed bool
	Holder  string
}

// ClaimFile performs an atomic insert-if-absent claim on filePath, per
// spec.md §4.E. Re-claiming a path already held by the same agent
// succeeds (idempotent); held by a different agent returns Claimed=false
// with the current holder. The existence check and the claim write run
// as one queued unit so a second ClaimFile racing for the same path
// cannot observe the pre-claim state and also win.
func (m *Manager) ClaimFile(ctx context.Context, agentID, filePath string) (ClaimResult, error) {
	if filePath == "" {
		return ClaimResult{}, apperrors.FieldError("file_path", "required")
	}
	var result ClaimResult
	err := m.submit(ctx, func(ctx context.Context) error {
		r, err := m.claimFileLocked(ctx, agentID, filePath)
		result = r
		return err
	})
	return result, err
}

func (m *Manager) claimFileLocked(ctx context.Context, agentID, filePath string) (ClaimResult, error) {
	existing, ok, err := m.stores.Claims.Get(ctx, filePath)
	if err != nil {
		return ClaimResult{}, apperrors.Wrap(apperrors.Internal, "look up claim", err)
	}
	if ok && existing.AgentID != agentID {
		return ClaimResult{Claimed: false, Holder: existing.AgentID}, nil
	}
	if err := m.stores.Claims.Claim(ctx, domain.FileClaim{FilePath: filePath, AgentID: agentID, ClaimedAt: time.Now()}); err != nil {
		return ClaimResult{}, apperrors.Wrap(apperrors.Internal, "claim file", err)
	}
	return ClaimResult{Claimed: true}, nil
}

// ReleaseFile releases filePath, allowed only by its holder or an admin.
func (m *Manager) ReleaseFile(ctx context.Context, callerRole, callerAgentID, filePath string) error {
	return m.submit(ctx, func(ctx context.Context) error {
		existing, ok, err := m.stores.Claims.Get(ctx, filePath)
		if err != nil {
			return apperrors.Wrap(apperrors.Internal, "look up claim", err)
		}
		if !ok {
			return nil
		}
		if existing.AgentID != callerAgentID && callerRole != adminRole {
			return apperrors.New(apperrors.PermissionDenied, "only the claim holder or an admin may release this file")
		}
		if err := m.stores.Claims.Release(ctx, filePath, existing.AgentID); err != nil {
			return apperrors.Wrap(apperrors.Internal, "release claim", err)
		}
		return nil
	})
}

// FileMetadata returns the current claim, if any, for filePath.
func (m *Manager) FileMetadata(ctx context.Context, filePath string) (domain.FileClaim, bool, error) {
	claim, ok, err := m.stores.Claims.Get(ctx, filePath)
	if err != nil {
		return domain.FileClaim{}, false, apperrors.Wrap(apperrors.Internal, "look up claim", err)
	}
	return claim, ok, nil
}

// SendMessage persists a point-to-point message from fromAgent to toAgent.
func (m *Manager) SendMessage(ctx context.Context, fromAgent, toAgent, payload string) (domain.AgentMessage, error) {
	if payload == "" {
		return domain.AgentMessage{}, apperrors.FieldError("payload", "required")
	}
	if toAgent == "" {
		return domain.AgentMessage{}, apperrors.FieldError("to_agent", "required")
	}
	msg := domain.AgentMessage{
		MessageID: uuid.NewString(),
		FromAgent: fromAgent,
		ToAgent:   &toAgent,
		Payload:   payload,
		SentAt:    time.Now(),
	}
	err := m.submit(ctx, func(ctx context.Context) error {
		return m.stores.Messages.Append(ctx, msg)
	})
	if err != nil {
		return domain.AgentMessage{}, apperrors.Wrap(apperrors.Internal, "persist message", err)
	}
	return msg, nil
}

// BroadcastMessage persists a message addressed to every agent.
func (m *Manager) BroadcastMessage(ctx context.Context, fromAgent, payload string) (domain.AgentMessage, error) {
	if payload == "" {
		return domain.AgentMessage{}, apperrors.FieldError("payload", "required")
	}
	msg := domain.AgentMessage{
		MessageID: uuid.NewString(),
		FromAgent: fromAgent,
		ToAgent:   nil,
		Payload:   payload,
		SentAt:    time.Now(),
	}
	err := m.submit(ctx, func(ctx context.Context) error {
		return m.stores.Messages.Append(ctx, msg)
	})
	if err != nil {
		return domain.AgentMessage{}, apperrors.Wrap(apperrors.Internal, "persist broadcast message", err)
	}
	return msg, nil
}

// Messages returns the messages addressed to agentID (including
// broadcasts) with sequence index greater than since.
func (m *Manager) Messages(ctx context.Context, agentID string, since int) ([]domain.AgentMessage, error) {
	msgs, err := m.stores.Messages.ListFor(ctx, agentID, since)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list messages", err)
	}
	return msgs, nil
}
