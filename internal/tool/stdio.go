// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Request is one line of the newline-delimited JSON protocol.
type Request struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Method    string          `json:"method"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response is the reply line for a Request. Exactly one of Result and Error
// is set.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

// ResponseError carries the error code and message over the wire.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"
)

// maxLineBytes bounds a single request line. Memory content is capped far
// below this by practical model output sizes.
const maxLineBytes = 4 << 20

// Runner serves the tool protocol over a byte stream, one JSON request per
// line, one JSON response per line. Responses are written in request order.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
}

func NewRunner(registry *Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{registry: registry, logger: logger.With("component", "tool")}
}

// Run reads requests from r until EOF or context cancellation, writing one
// response per request to w. A malformed line produces an error response and
// processing continues.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			if werr := enc.Encode(errorResponse(nil,
				memerr.Wrapf(err, memerr.CodeToolArgumentsInvalid, "malformed request line"))); werr != nil {
				return werr
			}
			continue
		}

		if err := enc.Encode(r.handle(ctx, req)); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return memerr.Wrapf(err, memerr.CodeServerInternalFailure, "reading tool requests")
	}
	return nil
}

func (r *Runner) handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodListTools:
		return Response{ID: req.ID, Result: map[string]any{"tools": r.registry.Definitions()}}

	case MethodCallTool:
		result, err := r.registry.Dispatch(ctx, req.Tool, req.Arguments)
		if err != nil {
			r.logger.Warn("tool call failed", "tool", req.Tool, "error", err)
			return errorResponse(req.ID, err)
		}
		return Response{ID: req.ID, Result: result}

	default:
		return errorResponse(req.ID,
			memerr.Errorf(memerr.CodeToolArgumentsInvalid, "unknown method %q", req.Method))
	}
}

func errorResponse(id json.RawMessage, err error) Response {
	code := memerr.CodeOf(err)
	if code == "" {
		code = memerr.CodeServerInternalFailure
	}
	return Response{ID: id, Error: &ResponseError{Code: string(code), Message: err.Error()}}
}
