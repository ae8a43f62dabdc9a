package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

// StdioServer serves the line-delimited JSON-RPC stream spec.md §6
// describes for subprocess hosting. The connection's subject is established
// by the first message, which carries {"token": "..."}; every subsequent
// line on the same connection reuses that token.
type StdioServer struct {
	dispatcher *Dispatcher
	log        *logger.Logger
}

// NewStdioServer builds the stdio transport around dispatcher.
func NewStdioServer(dispatcher *Dispatcher, log *logger.Logger) *StdioServer {
	return &StdioServer{dispatcher: dispatcher, log: log}
}

type stdioHandshake struct {
	Token string `json:"token"`
}

// Serve reads newline-delimited JSON-RPC requests from r and writes
// newline-delimited responses to w until r is exhausted or ctx is
// cancelled. The first line must be a handshake carrying the bearer token.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var token string
	first := true
	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if first {
			first = false
			var hs stdioHandshake
			if err := json.Unmarshal(line, &hs); err == nil && hs.Token != "" {
				token = hs.Token
				continue
			}
			// Not a handshake: fall through and process it as a request
			// with no token (authentication will fail per-call instead).
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			_ = encoder.Encode(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
			continue
		}

		switch req.Method {
		case "tools/list":
			_ = encoder.Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"tools": s.dispatcher.registry.Names()}})
		case "tools/call":
			var call CallRequest
			if len(req.Params) > 0 {
				if err := json.Unmarshal(req.Params, &call); err != nil {
					_ = encoder.Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "malformed params"}})
					continue
				}
			}
			result, err := s.dispatcher.Call(ctx, token, call)
			if err != nil {
				_ = encoder.Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: errorToRPC(err)})
				continue
			}
			_ = encoder.Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
		default:
			_ = encoder.Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "unknown method " + req.Method}})
		}
	}
	return scanner.Err()
}
