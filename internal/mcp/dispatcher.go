package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/realtime"
	"github.com/conclave-mcp/orchestrator/internal/security"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

// ContentItem is one item of a tools/call response, per spec.md §6.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallRequest is the decoded body of a tools/call RPC.
type CallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CallResult is what a successful dispatch returns to the transport layer.
type CallResult struct {
	RequestID string        `json:"request_id"`
	Content   []ContentItem `json:"content"`
}

// Dispatcher implements the ten-step tools/call contract (spec.md §4.D):
// decode, authenticate, validate, input-scan, lookup, invoke with a
// request-scoped context, output-scan, audit, emit change events, return.
type Dispatcher struct {
	registry     *Registry
	tokens       *auth.Registry
	hub          *realtime.Hub
	log          *logger.Logger
	inputPolicy  security.Policy
	outputPolicy security.Policy
	alerts       security.AlertSink
	callTimeout  time.Duration
}

// Option configures optional Dispatcher behavior.
type Option func(*Dispatcher)

// WithTimeout bounds every tool invocation's request-scoped context.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.callTimeout = d }
}

// WithAlertSink wires a security.AlertSink notified on every finding.
func WithAlertSink(sink security.AlertSink) Option {
	return func(disp *Dispatcher) { disp.alerts = sink }
}

// WithSecurityPolicies sets the remove/neutralize/block policy applied to
// input arguments and output content respectively.
func WithSecurityPolicies(input, output security.Policy) Option {
	return func(disp *Dispatcher) {
		disp.inputPolicy = input
		disp.outputPolicy = output
	}
}

// NewDispatcher wires a Registry to the auth/hub/logging collaborators it
// needs to satisfy every step of the dispatch contract.
func NewDispatcher(registry *Registry, tokens *auth.Registry, hub *realtime.Hub, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:     registry,
		tokens:       tokens,
		hub:          hub,
		log:          log,
		inputPolicy:  security.PolicyBlock,
		outputPolicy: security.PolicyNeutralize,
		callTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ChangeEvent is announced by a tool handler through an optional
// `ChangeEvent() *ChangeEvent` method on its result, and fanned out as a
// realtime.Event after a successful call. Handlers that have no side effect
// to announce return nil or omit the method.
type ChangeEvent struct {
	Channel  string
	Type     string
	EntityID string
	Changes  any
}

// Call runs the full ten-step contract for one tools/call invocation, given
// the bearer token presented by the caller (already stripped of any
// "Bearer " prefix by the transport).
func (d *Dispatcher) Call(ctx context.Context, token string, req CallRequest) (result *CallResult, callErr error) {
	requestID := uuid.NewString()
	var audit func(outcome, detail string) // set once the caller is authenticated

	defer func() {
		if r := recover(); r != nil {
			d.log.WithRequest(requestID, req.Name, "").
				WithField("panic", fmt.Sprintf("%v", r)).
				Error("tool handler panicked")
			if audit != nil {
				audit("error", "internal error")
			}
			callErr = apperrors.New(apperrors.Internal, "internal error")
			result = nil
		}
	}()

	// Step 1: decode (already done by the transport into CallRequest, but
	// the name must be present).
	if req.Name == "" {
		return nil, apperrors.FieldError("name", "tool name required")
	}

	// Step 2: authenticate.
	principal, err := d.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	audit = func(outcome, detail string) {
		d.tokens.RecordAudit(ctx, principal.AgentID, req.Name, outcome, detail, requestID)
	}

	// Step 5 (lookup performed early so role checks and schema validation
	// use the tool's declared schema; invocation itself stays step 6).
	tool, ok := d.registry.Lookup(req.Name)
	if !ok {
		audit("error", "unknown tool")
		return nil, apperrors.New(apperrors.NotFound, fmt.Sprintf("unknown tool %q", req.Name))
	}
	if tool.RequiredRole != "" && principal.Role != tool.RequiredRole && principal.Role != "admin" {
		audit("error", "permission denied")
		return nil, apperrors.New(apperrors.PermissionDenied, fmt.Sprintf("tool %q requires role %q", req.Name, tool.RequiredRole))
	}

	// Step 3: validate arguments against the declared input schema.
	args := map[string]any{}
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			audit("error", "malformed arguments")
			return nil, apperrors.FieldError("arguments", "malformed JSON: "+err.Error())
		}
	}
	if fieldErr := tool.InputSchema.Validate(args); fieldErr != nil {
		audit("error", "invalid arguments")
		return nil, apperrors.FieldError(fieldErr.Field, fieldErr.Message)
	}

	// Step 4: input-scan and sanitize.
	findings, err := security.ScanValue(args)
	if err != nil {
		audit("error", "scan arguments failed")
		return nil, apperrors.Wrap(apperrors.Internal, "scan arguments", err)
	}
	if len(findings) > 0 {
		if d.alerts != nil {
			d.alerts.Notify(ctx, principal.AgentID, req.Name, findings)
		}
		sanitized, outcome, err := d.sanitizeArgs(args, findings)
		if err != nil {
			d.tokens.RecordAudit(ctx, principal.AgentID, req.Name, "blocked", err.Error(), requestID)
			return nil, err
		}
		args = sanitized
		_ = outcome
	}

	// Step 6: invoke with a request-scoped context.
	callCtx := ctx
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}
	callCtx = WithRequestID(callCtx, requestID)
	callCtx = WithPrincipal(callCtx, principal)

	raw, err := tool.Handler(callCtx, args)
	if err != nil {
		d.tokens.RecordAudit(ctx, principal.AgentID, req.Name, "error", err.Error(), requestID)
		return nil, err
	}

	// Step 7: output-scan and sanitize.
	text, err := encodeContent(raw)
	if err != nil {
		audit("error", "encode result failed")
		return nil, apperrors.Wrap(apperrors.Internal, "encode result", err)
	}
	outFindings := security.Scan([]byte(jsonStringOrRaw(text)))
	if len(outFindings) > 0 {
		if d.alerts != nil {
			d.alerts.Notify(ctx, principal.AgentID, req.Name, outFindings)
		}
		sanitizedText, _, err := security.Apply(d.outputPolicy, outFindings, text)
		if err != nil {
			d.tokens.RecordAudit(ctx, principal.AgentID, req.Name, "blocked", err.Error(), requestID)
			return nil, err
		}
		text = sanitizedText
	}

	// Step 8: audit.
	d.tokens.RecordAudit(ctx, principal.AgentID, req.Name, "ok", "", requestID)

	// Step 9: emit change events, if the handler produced one via the
	// result's optional ChangeEvent field.
	if ev, ok := raw.(interface{ ChangeEvent() *ChangeEvent }); ok {
		if ce := ev.ChangeEvent(); ce != nil && d.hub != nil {
			d.hub.Broadcast(ce.Channel, realtime.Event{
				Type:     ce.Type,
				EntityID: ce.EntityID,
				Changes:  ce.Changes,
				Ts:       time.Now(),
			})
		}
	}

	// Step 10: return.
	return &CallResult{
		RequestID: requestID,
		Content:   []ContentItem{{Type: "text", Text: text}},
	}, nil
}

func (d *Dispatcher) sanitizeArgs(args map[string]any, findings []security.Finding) (map[string]any, security.Outcome, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, security.Outcome{}, apperrors.Wrap(apperrors.Internal, "marshal arguments", err)
	}
	text, outcome, err := security.Apply(d.inputPolicy, findings, string(raw))
	if err != nil {
		return nil, outcome, err
	}
	var sanitized map[string]any
	if err := json.Unmarshal([]byte(text), &sanitized); err != nil {
		// Remove/neutralize policies can break JSON structure by editing
		// inside string literals; fall back to rejecting instead of
		// silently passing malformed arguments through.
		return nil, outcome, apperrors.New(apperrors.SecurityError, "sanitized arguments are no longer valid JSON")
	}
	return sanitized, outcome, nil
}

func encodeContent(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func jsonStringOrRaw(text string) string {
	// Scan expects a JSON document; plain-string handler results are not
	// valid JSON on their own, so wrap them as a JSON string literal.
	if len(text) == 0 {
		return `""`
	}
	if text[0] == '{' || text[0] == '[' || text[0] == '"' {
		return text
	}
	b, err := json.Marshal(text)
	if err != nil {
		return `""`
	}
	return string(b)
}
