// Package contextstore implements the project context key/value store of
// spec.md §4.G: update-with-history semantics and two query modes for
// query_project_context (plain substring match, and JSONPath over stored
// values). Named contextstore rather than context to avoid shadowing the
// standard library's context package at every call site.
package contextstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/platform/writequeue"
	"github.com/conclave-mcp/orchestrator/internal/realtime"
	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// Store implements the context tool group. Update is submitted to queue
// and runs inside tx so the current-row write and the history append
// land atomically, per spec.md §4.A and §4.G.
type Store struct {
	entries storage.ContextEntryStore
	tx      storage.Transactor
	queue   *writequeue.Queue
	hub     *realtime.Hub
}

// New builds a Store over entries, broadcasting on hub (nil disables it).
// queue may be nil in tests, in which case mutations run inline instead
// of through the serializer.
func New(entries storage.ContextEntryStore, tx storage.Transactor, queue *writequeue.Queue, hub *realtime.Hub) *Store {
	return &Store{entries: entries, tx: tx, queue: queue, hub: hub}
}

// Update validates value's serialized size and writes both the current
// row and an append-only history entry, per spec.md §4.G.
func (s *Store) Update(ctx context.Context, key string, value any, description, updatedBy string) (domain.ContextEntry, error) {
	if key == "" {
		return domain.ContextEntry{}, apperrors.FieldError("key", "required")
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return domain.ContextEntry{}, apperrors.FieldError("value", "not serializable to JSON")
	}
	if len(encoded) > domain.MaxContextValueBytes {
		return domain.ContextEntry{}, apperrors.FieldError("value", "exceeds maximum size")
	}

	now := time.Now()
	entry := domain.ContextEntry{
		ContextKey:  key,
		Value:       value,
		Description: description,
		UpdatedBy:   updatedBy,
		UpdatedAt:   now,
	}

	job := func(ctx context.Context) error {
		return s.withTx(ctx, func(ctx context.Context, entries storage.ContextEntryStore) error {
			if err := entries.Put(ctx, entry); err != nil {
				return apperrors.Wrap(apperrors.Internal, "persist context entry", err)
			}
			if err := entries.AppendHistory(ctx, domain.ContextHistoryEntry{
				ContextKey: key, Value: value, UpdatedBy: updatedBy, UpdatedAt: now,
			}); err != nil {
				return apperrors.Wrap(apperrors.Internal, "append context history", err)
			}
			return nil
		})
	}
	if s.queue == nil {
		err = job(ctx)
	} else {
		err = s.queue.SubmitWait(ctx, job)
	}
	if err != nil {
		return domain.ContextEntry{}, err
	}

	if s.hub != nil {
		s.hub.Broadcast(realtime.ChannelContext, realtime.Event{
			Type: "context.updated", EntityID: key, Ts: now,
		})
	}
	return entry, nil
}

// withTx runs fn inside a transaction when one is configured, or against
// the plain entry store otherwise (tests construct a Store with a nil
// storage.Transactor).
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, entries storage.ContextEntryStore) error) error {
	if s.tx == nil {
		return fn(ctx, s.entries)
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		return fn(ctx, tx.Context)
	})
}

// View returns a single entry when key is non-empty, or every entry
// otherwise.
func (s *Store) View(ctx context.Context, key string) ([]domain.ContextEntry, error) {
	if key == "" {
		all, err := s.entries.List(ctx)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, "list context entries", err)
		}
		return all, nil
	}
	entry, ok, err := s.entries.Get(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "get context entry", err)
	}
	if !ok {
		return nil, apperrors.New(apperrors.NotFound, "context key not found")
	}
	return []domain.ContextEntry{entry}, nil
}

// History returns the append-only change log for key.
func (s *Store) History(ctx context.Context, key string) ([]domain.ContextHistoryEntry, error) {
	history, err := s.entries.History(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "get context history", err)
	}
	return history, nil
}

// Query implements query_project_context: a JSONPath expression (patterns
// starting with "$") is evaluated against every entry's value, collecting
// matches; anything else is treated as a case-insensitive substring match
// on context_key.
func (s *Store) Query(ctx context.Context, pattern string) ([]domain.ContextEntry, error) {
	all, err := s.entries.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list context entries", err)
	}

	if strings.HasPrefix(strings.TrimSpace(pattern), "$") {
		return s.queryJSONPath(all, pattern)
	}

	needle := strings.ToLower(pattern)
	var out []domain.ContextEntry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.ContextKey), needle) {
			out = append(out, e)
		}
	}
	return out, nil
}

// queryJSONPath evaluates pattern against every entry's value, collecting
// the entries where it resolves to something. A pattern that cannot even
// parse fails identically against every entry, so the first attempt
// doubles as validation.
func (s *Store) queryJSONPath(all []domain.ContextEntry, pattern string) ([]domain.ContextEntry, error) {
	var out []domain.ContextEntry
	for i, e := range all {
		_, err := jsonpath.Get(pattern, e.Value)
		if err != nil && i == 0 && isMalformedJSONPath(err) {
			return nil, apperrors.FieldError("pattern", "invalid JSONPath expression: "+err.Error())
		}
		if err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// isMalformedJSONPath distinguishes a syntax error in the expression
// itself from a well-formed expression that simply doesn't resolve
// against a particular document (e.g. a missing key).
func isMalformedJSONPath(err error) bool {
	return strings.Contains(err.Error(), "unexpected") || strings.Contains(err.Error(), "invalid")
}
