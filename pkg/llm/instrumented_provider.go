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
// Package llm holds provider-independent helpers shared by the LLM providers.
package llm

import (
	"context"
	"time"

	"github.com/teradata-labs/skyloom/pkg/observability"
	"github.com/teradata-labs/skyloom/pkg/types"
	"go.uber.org/zap"
)

// InstrumentedProvider wraps any LLMProvider with logging and metrics for
// every call: latency, token usage, tool calls requested and errors.
type InstrumentedProvider struct {
	provider types.LLMProvider
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewInstrumentedProvider wraps provider. logger and metrics may be nil.
func NewInstrumentedProvider(provider types.LLMProvider, logger *zap.Logger, metrics *observability.Metrics) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{
		provider: provider,
		logger:   logger.With(zap.String("provider", provider.Name()), zap.String("model", provider.Model())),
		metrics:  metrics,
	}
}

// Name returns the underlying provider name.
func (p *InstrumentedProvider) Name() string {
	return p.provider.Name()
}

// Model returns the underlying model identifier.
func (p *InstrumentedProvider) Model() string {
	return p.provider.Model()
}

// Chat calls the underlying provider and records the outcome.
func (p *InstrumentedProvider) Chat(ctx context.Context, messages []types.Message, tools []types.ToolSchema) (*types.LLMResponse, error) {
	start := time.Now()
	resp, err := p.provider.Chat(ctx, messages, tools)
	duration := time.Since(start)

	if err != nil {
		p.logger.Warn("llm call failed",
			zap.Int("messages", len(messages)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		p.metrics.ObserveLLMCall(p.provider.Name(), p.provider.Model(), duration, true, 0, 0)
		return nil, err
	}

	p.logger.Debug("llm call completed",
		zap.Int("messages", len(messages)),
		zap.Int("tools", len(tools)),
		zap.Int("tool_calls", len(resp.ToolCalls)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.String("stop_reason", resp.StopReason),
		zap.Duration("duration", duration),
	)
	p.metrics.ObserveLLMCall(p.provider.Name(), p.provider.Model(), duration, false, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}
