// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
	"github.com/teradata-labs/skyloom/pkg/types"
	"go.uber.org/zap"
)

// RouterExecutor runs tool calls by dispatching the tool's method through
// the router. It implements types.ToolExecutor and never fails: every error
// is reported inside the returned ToolResult.
type RouterExecutor struct {
	router  *router.Router
	catalog *Catalog
	logger  *zap.Logger
}

// NewRouterExecutor creates an executor for the tools in catalog.
func NewRouterExecutor(r *router.Router, catalog *Catalog, logger *zap.Logger) *RouterExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterExecutor{router: r, catalog: catalog, logger: logger}
}

// Execute validates the call's arguments and dispatches it.
func (e *RouterExecutor) Execute(ctx context.Context, call types.ToolCall) types.ToolResult {
	result := types.ToolResult{ToolCallID: call.ID, ToolName: call.Name}

	def, ok := e.catalog.Get(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("unknown tool: %s", call.Name)
		return result
	}

	args := call.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	violations, err := e.catalog.validate(call.Name, args)
	if err != nil {
		result.Error = fmt.Sprintf("failed to validate arguments: %v", err)
		return result
	}
	if len(violations) > 0 {
		result.Error = formatViolations(violations)
		return result
	}

	value, err := e.router.Dispatch(ctx, router.Method(def.Method), args, nil)
	if err != nil {
		result.Error = errorText(err)
		e.logger.Debug("tool call failed",
			zap.String("tool", call.Name),
			zap.String("method", def.Method),
			zap.String("error", result.Error),
		)
		return result
	}

	result.Result = value
	return result
}

func formatViolations(violations []protocol.FieldViolation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// errorText renders a dispatch error for the LLM. Internal errors carry the
// original message in their data.
func errorText(err error) string {
	rpcErr := protocol.FromError(err)
	if rpcErr.Code == protocol.InternalError && len(rpcErr.Data) > 0 {
		var detail string
		if jsonErr := json.Unmarshal(rpcErr.Data, &detail); jsonErr == nil && detail != "" {
			return detail
		}
	}
	return rpcErr.Message
}
