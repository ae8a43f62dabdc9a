package mcp

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

// rpcRequest is the JSON-RPC 2.0 envelope accepted on both transports.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func errorToRPC(err error) *rpcError {
	appErr, ok := apperrors.As(err)
	if !ok {
		return &rpcError{Code: apperrors.Internal.RPCCode(), Message: "internal error"}
	}
	return &rpcError{Code: appErr.RPCCode(), Message: appErr.Message}
}

// HTTPHandler serves the framed JSON-RPC `tools/call` method (and a
// `tools/list` catalogue method) over a single HTTP endpoint, per spec.md
// §6's "JSON-RPC framed over a bidirectional streaming HTTP endpoint".
type HTTPHandler struct {
	dispatcher *Dispatcher
	log        *logger.Logger
}

// NewHTTPHandler builds the HTTP transport around dispatcher.
func NewHTTPHandler(dispatcher *Dispatcher, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{dispatcher: dispatcher, log: log}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, &rpcError{Code: apperrors.ValidationError.RPCCode(), Message: "malformed JSON-RPC envelope"})
		return
	}

	token := bearerToken(r.Header.Get("Authorization"))

	switch req.Method {
	case "tools/list":
		names := h.dispatcher.registry.Names()
		writeRPCResult(w, req.ID, map[string]any{"tools": names})
	case "tools/call":
		var call CallRequest
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &call); err != nil {
				writeRPCError(w, req.ID, &rpcError{Code: apperrors.ValidationError.RPCCode(), Message: "malformed params"})
				return
			}
		}
		result, err := h.dispatcher.Call(r.Context(), token, call)
		if err != nil {
			writeRPCError(w, req.ID, errorToRPC(err))
			return
		}
		writeRPCResult(w, req.ID, result)
	default:
		writeRPCError(w, req.ID, &rpcError{Code: apperrors.NotFound.RPCCode(), Message: "unknown method " + req.Method})
	}
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, rpcErr *rpcError) {
	status := apperrors.Internal.HTTPStatus()
	if k := rpcCodeToKind(rpcErr.Code); k != "" {
		status = k.HTTPStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func rpcCodeToKind(code int) apperrors.Kind {
	for _, k := range apperrors.AllKinds {
		if k.RPCCode() == code {
			return k
		}
	}
	return ""
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return header
}
