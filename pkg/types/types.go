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
// Package types holds the LLM and tool types shared by the agent loop, the
// LLM providers and the tool executor.
package types

import (
	"context"
	"time"
)

// ============================================================================
// Message Types
// ============================================================================

// Role identifies the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Name is the tool name
	Name string `json:"name"`

	// Arguments contains the tool parameters
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult is the outcome of one tool call. Exactly one of Result and
// Error is meaningful: a failed call has a nil Result and a non-empty Error.
type ToolResult struct {
	// ToolCallID is the ID of the ToolCall this result answers
	ToolCallID string `json:"toolCallId"`

	// ToolName is the tool that ran
	ToolName string `json:"toolName"`

	// Result is the tool output (nil on failure)
	Result interface{} `json:"result"`

	// Error describes the failure, if any
	Error string `json:"error,omitempty"`
}

// Failed reports whether the tool call failed.
func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message sender
	Role Role `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// ToolCalls contains tool invocations (if role is assistant)
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// ToolCallID is the ToolCall this message answers (if role is tool)
	ToolCallID string `json:"toolCallId,omitempty"`

	// ToolName is the tool that produced this message (if role is tool)
	ToolName string `json:"toolName,omitempty"`

	// Timestamp when the message was created
	Timestamp time.Time `json:"timestamp"`
}

// HasToolCalls reports whether an assistant message requests tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// ============================================================================
// LLM Types
// ============================================================================

// ToolSchema describes a tool to the LLM.
type ToolSchema struct {
	// Name is the tool name the LLM calls it by
	Name string `json:"name" yaml:"name"`

	// Description tells the LLM when to use the tool
	Description string `json:"description" yaml:"description"`

	// InputSchema is the JSON Schema for the tool's arguments
	InputSchema map[string]interface{} `json:"inputSchema" yaml:"input_schema"`
}

// Usage tracks LLM token usage.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// LLMResponse represents a response from the LLM.
type LLMResponse struct {
	// Content is the text response
	Content string

	// ToolCalls contains requested tool executions
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped
	StopReason string

	// Usage tracks token usage
	Usage Usage
}

// LLMProvider defines the interface for LLM providers.
type LLMProvider interface {
	// Chat sends a conversation to the LLM and returns the response
	Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*LLMResponse, error)

	// Name returns the provider name
	Name() string

	// Model returns the model identifier
	Model() string
}

// ToolExecutor runs tool calls. Execute never fails: errors are reported in
// the returned ToolResult.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) ToolResult
}

// ============================================================================
// Progress Types
// ============================================================================

// ExecutionStage represents the current stage of agent execution.
type ExecutionStage string

const (
	StageThinking   ExecutionStage = "thinking"
	StageToolCall   ExecutionStage = "tool_call"
	StageToolResult ExecutionStage = "tool_result"
	StageCompleted  ExecutionStage = "completed"
)

// ProgressEvent represents a progress update during agent execution.
type ProgressEvent struct {
	// Stage is the current execution stage
	Stage ExecutionStage `json:"stage"`

	// Iteration is the zero-based loop iteration
	Iteration int `json:"iteration"`

	// ToolName is the tool being executed (if applicable)
	ToolName string `json:"tool,omitempty"`

	// ToolCallID identifies the call (if applicable)
	ToolCallID string `json:"toolCallId,omitempty"`

	// Error is set when a tool result reports a failure
	Error string `json:"error,omitempty"`

	// Message is a human-readable description of current activity
	Message string `json:"message,omitempty"`

	// Timestamp when this event occurred
	Timestamp time.Time `json:"timestamp"`
}

// ProgressCallback is called when agent execution progress occurs.
type ProgressCallback func(event ProgressEvent)
