// Package auth implements the opaque bearer-token registry (spec.md §4.B).
// Tokens are random, revocable, and never JWTs: the server is the sole
// verifier and callers never need to decode a token's contents.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// Principal is the identity resolved from a verified bearer token.
type Principal struct {
	AgentID string
	Role    string
}

// Registry is the in-memory token index, rebuilt from storage on Hydrate and
// kept in sync with every Issue/Revoke.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]Principal
	store  storage.TokenStore
	audit  storage.AuditStore
}

// New constructs an empty Registry backed by store for durability.
func New(store storage.TokenStore, audit storage.AuditStore) *Registry {
	return &Registry{
		tokens: make(map[string]Principal),
		store:  store,
		audit:  audit,
	}
}

// Hydrate rebuilds the in-memory token index from the durable store. Call
// once at startup before serving any dispatch calls.
func (r *Registry) Hydrate(ctx context.Context) error {
	records, err := r.store.All(ctx)
	if err != nil {
		return fmt.Errorf("auth: hydrate: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = make(map[string]Principal, len(records))
	for _, rec := range records {
		if rec.Revoked {
			continue
		}
		r.tokens[rec.Token] = Principal{AgentID: rec.AgentID, Role: rec.Role}
	}
	return nil
}

// Issue mints a new opaque token for agentID and persists it.
func (r *Registry) Issue(ctx context.Context, agentID, role string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "generate token", err)
	}
	if err := r.store.Issue(ctx, storage.TokenRecord{Token: token, AgentID: agentID, Role: role}); err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "persist token", err)
	}
	r.mu.Lock()
	r.tokens[token] = Principal{AgentID: agentID, Role: role}
	r.mu.Unlock()
	return token, nil
}

// Revoke invalidates token immediately, both in memory and durably.
func (r *Registry) Revoke(ctx context.Context, token string) error {
	if err := r.store.Revoke(ctx, token); err != nil {
		return apperrors.Wrap(apperrors.Internal, "revoke token", err)
	}
	r.mu.Lock()
	delete(r.tokens, token)
	r.mu.Unlock()
	return nil
}

// Verify resolves token to its Principal, or a typed Unauthenticated error.
func (r *Registry) Verify(token string) (Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.tokens[token]
	if !ok {
		return Principal{}, apperrors.New(apperrors.Unauthenticated, "unknown or revoked token")
	}
	return p, nil
}

// RecordAudit appends one row to the audit trail via the audit store.
// requestID correlates the row back to the CallResult the dispatcher
// returns for the same invocation, per spec.md §4.B.
func (r *Registry) RecordAudit(ctx context.Context, subject, tool, outcome, detail, requestID string) {
	if r.audit == nil {
		return
	}
	_ = r.audit.Append(ctx, storage.AuditEntry{Subject: subject, Tool: tool, Outcome: outcome, Detail: detail, RequestID: requestID})
}

func randomToken() (string, error) {
	buf := make([]byte, 24) // 192 bits
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
