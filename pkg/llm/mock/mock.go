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
// Package mock provides LLM providers that answer without a network call,
// for tests and for running the gateway offline.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/teradata-labs/skyloom/pkg/types"
)

// ErrNoResponses is returned by a scripted provider with an empty script.
var ErrNoResponses = errors.New("mock provider has no scripted responses")

// Step is one scripted reply: a response or an error.
type Step struct {
	Response *types.LLMResponse
	Err      error
}

// Provider replays a script of responses. Once the script is exhausted the
// last step repeats, so a single tool-call step models an LLM that never
// stops calling tools.
type Provider struct {
	mu       sync.Mutex
	model    string
	steps    []Step
	respond  func([]types.Message) *types.LLMResponse
	requests [][]types.Message
	tools    [][]types.ToolSchema
}

// NewScripted creates a provider that returns responses in order.
func NewScripted(responses ...*types.LLMResponse) *Provider {
	steps := make([]Step, len(responses))
	for i, r := range responses {
		steps[i] = Step{Response: r}
	}
	return &Provider{model: "scripted", steps: steps}
}

// NewSteps creates a provider from steps, allowing scripted errors.
func NewSteps(steps ...Step) *Provider {
	return &Provider{model: "scripted", steps: steps}
}

// NewEcho creates a provider that answers every turn by echoing the latest
// user message. It never requests tools.
func NewEcho() *Provider {
	return &Provider{
		model: "echo",
		respond: func(messages []types.Message) *types.LLMResponse {
			for i := len(messages) - 1; i >= 0; i-- {
				if messages[i].Role == types.RoleUser {
					return &types.LLMResponse{Content: fmt.Sprintf("You said: %s", messages[i].Content), StopReason: "end_turn"}
				}
			}
			return &types.LLMResponse{Content: "Hello.", StopReason: "end_turn"}
		},
	}
}

// Text is a final answer with no tool calls.
func Text(content string) *types.LLMResponse {
	return &types.LLMResponse{Content: content, StopReason: "end_turn"}
}

// ToolCalls is a response requesting the given calls.
func ToolCalls(calls ...types.ToolCall) *types.LLMResponse {
	return &types.LLMResponse{ToolCalls: calls, StopReason: "tool_use"}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// Model returns the provider's mode, "scripted" or "echo".
func (p *Provider) Model() string {
	return p.model
}

// Chat returns the next scripted step.
func (p *Provider) Chat(ctx context.Context, messages []types.Message, tools []types.ToolSchema) (*types.LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	call := len(p.requests)
	p.requests = append(p.requests, append([]types.Message(nil), messages...))
	p.tools = append(p.tools, tools)

	if p.respond != nil {
		return p.respond(messages), nil
	}
	if len(p.steps) == 0 {
		return nil, ErrNoResponses
	}
	if call >= len(p.steps) {
		call = len(p.steps) - 1
	}
	step := p.steps[call]
	if step.Err != nil {
		return nil, step.Err
	}
	return cloneResponse(step.Response), nil
}

// Calls returns how many times Chat was called.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Request returns the messages sent on the n-th call.
func (p *Provider) Request(n int) []types.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 0 || n >= len(p.requests) {
		return nil
	}
	return p.requests[n]
}

// Tools returns the tool schemas offered on the n-th call.
func (p *Provider) Tools(n int) []types.ToolSchema {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 0 || n >= len(p.tools) {
		return nil
	}
	return p.tools[n]
}

// cloneResponse copies the tool-call slice so callers may modify it.
func cloneResponse(r *types.LLMResponse) *types.LLMResponse {
	if r == nil {
		return &types.LLMResponse{}
	}
	out := *r
	out.ToolCalls = append([]types.ToolCall(nil), r.ToolCalls...)
	return &out
}
