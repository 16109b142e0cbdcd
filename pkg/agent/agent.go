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
// Package agent runs the bounded tool-calling loop that drives an LLM through
// iterative tool invocations and keeps per-conversation history.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/teradata-labs/skyloom/pkg/observability"
	"github.com/teradata-labs/skyloom/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxIterations is the default cap on LLM round trips per chat turn.
const DefaultMaxIterations = 5

// DefaultFallbackMessage is returned when the iteration cap is reached
// without a final answer.
const DefaultFallbackMessage = "I wasn't able to finish working through that request. " +
	"Please try rephrasing it or breaking it into smaller steps."

var (
	// ErrEmptyMessage is returned when the user message is blank.
	ErrEmptyMessage = errors.New("message is required")
	// ErrEmptyConversation is returned when no conversation id is given.
	ErrEmptyConversation = errors.New("conversation id is required")
)

// Config holds the loop bounds and prompts.
type Config struct {
	// MaxIterations caps LLM calls per chat turn (default 5)
	MaxIterations int

	// SystemPrompt seeds new conversations (empty = no system message)
	SystemPrompt string

	// FallbackMessage is returned when MaxIterations is reached
	FallbackMessage string
}

// ToolSource lists the tools offered to the LLM.
type ToolSource interface {
	Schemas() []types.ToolSchema
}

// Reply is the outcome of one chat turn.
type Reply struct {
	// Message is the final assistant message
	Message types.Message `json:"message"`

	// Iterations is the number of LLM calls made
	Iterations int `json:"iterations"`

	// ToolResults holds every tool result produced during the turn, in order
	ToolResults []types.ToolResult `json:"toolResults"`

	// Truncated is true when the iteration cap ended the turn
	Truncated bool `json:"truncated"`
}

// Agent drives an LLM through tool calls against a conversation store.
type Agent struct {
	llm      types.LLMProvider
	store    *ConversationStore
	tools    ToolSource
	executor types.ToolExecutor
	config   Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	turns    *turnLocks
}

// Option configures an Agent.
type Option func(*Agent)

// WithConfig sets the loop configuration.
func WithConfig(config Config) Option {
	return func(a *Agent) {
		a.config = config
	}
}

// WithTools sets the tool catalog offered to the LLM and the executor that
// runs the calls it makes.
func WithTools(tools ToolSource, executor types.ToolExecutor) Option {
	return func(a *Agent) {
		a.tools = tools
		a.executor = executor
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithMetrics records loop metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(a *Agent) {
		a.metrics = metrics
	}
}

// WithClock sets the clock used for message timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(a *Agent) {
		a.clock = clock
	}
}

// New creates an agent backed by llm that keeps history in store.
func New(llm types.LLMProvider, store *ConversationStore, opts ...Option) *Agent {
	a := &Agent{
		llm:   llm,
		store: store,
		turns: newTurnLocks(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		a.store = NewConversationStore(DefaultMaxHistory)
	}
	if a.config.MaxIterations <= 0 {
		a.config.MaxIterations = DefaultMaxIterations
	}
	if a.config.FallbackMessage == "" {
		a.config.FallbackMessage = DefaultFallbackMessage
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	return a
}

// Store returns the agent's conversation store.
func (a *Agent) Store() *ConversationStore {
	return a.store
}

// Chat runs one user turn. The loop asks the LLM, runs any requested tools
// concurrently, feeds their results back and repeats until the LLM answers
// without tool calls or MaxIterations is reached, in which case the fallback
// message is returned. Every message is appended to the conversation.
// Turns on the same conversation run one at a time so tool calls and their
// results stay adjacent in history. progress may be nil.
func (a *Agent) Chat(ctx context.Context, conversationID, userMessage string, progress types.ProgressCallback) (*Reply, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversation
	}
	if strings.TrimSpace(userMessage) == "" {
		return nil, ErrEmptyMessage
	}
	if progress == nil {
		progress = func(types.ProgressEvent) {}
	}

	logger := a.logger.With(zap.String("conversation_id", conversationID))

	release := a.turns.lock(conversationID)
	defer release()

	if a.config.SystemPrompt != "" {
		a.store.Seed(conversationID, a.message(types.RoleSystem, a.config.SystemPrompt))
	}
	a.store.Append(conversationID, a.message(types.RoleUser, userMessage))

	var schemas []types.ToolSchema
	if a.tools != nil {
		schemas = a.tools.Schemas()
	}

	reply := &Reply{}
	for iteration := 0; iteration < a.config.MaxIterations; iteration++ {
		reply.Iterations = iteration + 1
		progress(types.ProgressEvent{Stage: types.StageThinking, Iteration: iteration, Timestamp: a.clock.Now()})

		resp, err := a.llm.Chat(ctx, a.store.Messages(conversationID), schemas)
		if err != nil {
			return nil, fmt.Errorf("llm chat failed (iteration %d): %w", iteration, err)
		}

		logger.Debug("llm responded",
			zap.Int("iteration", iteration),
			zap.Int("tool_calls", len(resp.ToolCalls)),
			zap.String("stop_reason", resp.StopReason),
		)

		if len(resp.ToolCalls) == 0 {
			final := a.message(types.RoleAssistant, resp.Content)
			a.store.Append(conversationID, final)
			reply.Message = final
			a.metrics.ObserveAgentIterations(reply.Iterations)
			progress(types.ProgressEvent{Stage: types.StageCompleted, Iteration: iteration, Timestamp: a.clock.Now()})
			return reply, nil
		}

		calls := make([]types.ToolCall, len(resp.ToolCalls))
		for i, call := range resp.ToolCalls {
			if call.ID == "" {
				call.ID = uuid.NewString()
			}
			if call.Arguments == nil {
				call.Arguments = map[string]interface{}{}
			}
			calls[i] = call
		}

		// The assistant message with its tool calls must precede the results.
		assistant := a.message(types.RoleAssistant, resp.Content)
		assistant.ToolCalls = calls
		a.store.Append(conversationID, assistant)

		results := a.executeTools(ctx, iteration, calls, progress)
		toolMessages := make([]types.Message, len(results))
		for i, result := range results {
			msg := a.message(types.RoleTool, formatToolResult(result))
			msg.ToolCallID = result.ToolCallID
			msg.ToolName = result.ToolName
			toolMessages[i] = msg
		}
		a.store.Append(conversationID, toolMessages...)
		reply.ToolResults = append(reply.ToolResults, results...)
	}

	logger.Warn("iteration cap reached", zap.Int("max_iterations", a.config.MaxIterations))
	fallback := a.message(types.RoleAssistant, a.config.FallbackMessage)
	a.store.Append(conversationID, fallback)
	reply.Message = fallback
	reply.Truncated = true
	a.metrics.ObserveAgentIterations(reply.Iterations)
	progress(types.ProgressEvent{Stage: types.StageCompleted, Iteration: reply.Iterations - 1, Timestamp: a.clock.Now()})
	return reply, nil
}

// executeTools runs every call concurrently and returns results in call
// order. A failing or panicking tool never affects its siblings.
func (a *Agent) executeTools(ctx context.Context, iteration int, calls []types.ToolCall, progress types.ProgressCallback) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = a.executeTool(ctx, iteration, call, progress)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Agent) executeTool(ctx context.Context, iteration int, call types.ToolCall, progress types.ProgressCallback) (result types.ToolResult) {
	start := a.clock.Now()
	progress(types.ProgressEvent{
		Stage:      types.StageToolCall,
		Iteration:  iteration,
		ToolName:   call.Name,
		ToolCallID: call.ID,
		Timestamp:  start,
	})

	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("tool panicked", zap.String("tool", call.Name), zap.Any("panic", p))
			result = types.ToolResult{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Error:      fmt.Sprintf("tool %s panicked: %v", call.Name, p),
			}
		}

		a.metrics.ObserveToolCall(call.Name, result.Failed())
		a.logger.Debug("tool executed",
			zap.String("tool", call.Name),
			zap.Bool("failed", result.Failed()),
			zap.Duration("duration", a.clock.Since(start)),
		)
		progress(types.ProgressEvent{
			Stage:      types.StageToolResult,
			Iteration:  iteration,
			ToolName:   call.Name,
			ToolCallID: call.ID,
			Error:      result.Error,
			Timestamp:  a.clock.Now(),
		})
	}()

	if a.executor == nil {
		return types.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Error: "no tool executor configured"}
	}

	result = a.executor.Execute(ctx, call)
	result.ToolCallID = call.ID
	result.ToolName = call.Name
	return result
}

func (a *Agent) message(role types.Role, content string) types.Message {
	return types.Message{Role: role, Content: content, Timestamp: a.clock.Now()}
}

// formatToolResult renders a tool result as the content of a tool message.
func formatToolResult(result types.ToolResult) string {
	if result.Failed() {
		return "Error: " + result.Error
	}
	if s, ok := result.Result.(string); ok {
		return s
	}
	data, err := json.Marshal(result.Result)
	if err != nil {
		return fmt.Sprintf("%v", result.Result)
	}
	return string(data)
}
