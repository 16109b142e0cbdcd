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

package main

import (
	"context"
	"fmt"

	"github.com/teradata-labs/skyloom/internal/version"
	"github.com/teradata-labs/skyloom/pkg/agent"
	"github.com/teradata-labs/skyloom/pkg/config"
	"github.com/teradata-labs/skyloom/pkg/gateway"
	"github.com/teradata-labs/skyloom/pkg/llm"
	"github.com/teradata-labs/skyloom/pkg/llm/factory"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
	"github.com/teradata-labs/skyloom/pkg/mcp/server"
	"github.com/teradata-labs/skyloom/pkg/mcp/transport"
	"github.com/teradata-labs/skyloom/pkg/observability"
	"github.com/teradata-labs/skyloom/pkg/tools"
	"go.uber.org/zap"
)

// buildGateway constructs every service once and wires them together.
// Background work such as the tool catalog watcher stops with ctx.
func buildGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gateway.Gateway, error) {
	metrics := observability.NewMetrics()
	r := router.New(logger)

	if err := server.RegisterBuiltins(r, nil); err != nil {
		return nil, err
	}

	catalog := tools.NewCatalog()
	if cfg.Agent.ToolsFile != "" {
		loaded, err := tools.LoadCatalog(cfg.Agent.ToolsFile)
		if err != nil {
			return nil, err
		}
		catalog = loaded
		logger.Info("loaded tool catalog", zap.String("path", cfg.Agent.ToolsFile), zap.Int("tools", catalog.Len()))

		if cfg.Agent.WatchTools {
			w, err := tools.NewWatcher(catalog, cfg.Agent.ToolsFile, tools.WatchConfig{Logger: logger})
			if err != nil {
				return nil, err
			}
			go w.Run(ctx)
		}
	}
	if err := catalog.RegisterMethods(r); err != nil {
		return nil, err
	}

	f := factory.NewProviderFactory(factory.FactoryConfig{
		DefaultProvider:  cfg.LLM.Provider,
		DefaultModel:     cfg.LLM.Model,
		AnthropicAPIKey:  cfg.LLM.APIKey,
		AnthropicBaseURL: cfg.LLM.BaseURL,

		BedrockRegion:          cfg.LLM.BedrockRegion,
		BedrockModelID:         cfg.LLM.BedrockModelID,
		BedrockProfile:         cfg.LLM.BedrockProfile,
		BedrockAccessKeyID:     cfg.LLM.BedrockAccessKeyID,
		BedrockSecretAccessKey: cfg.LLM.BedrockSecretAccessKey,
		BedrockSessionToken:    cfg.LLM.BedrockSessionToken,

		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	provider, err := f.CreateProvider(cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	logger.Info("using LLM provider", zap.String("provider", provider.Name()), zap.String("model", provider.Model()))

	a := agent.New(
		llm.NewInstrumentedProvider(provider, logger, metrics),
		agent.NewConversationStore(cfg.Agent.MaxHistory),
		agent.WithConfig(agent.Config{
			MaxIterations: cfg.Agent.MaxIterations,
			SystemPrompt:  cfg.Agent.SystemPrompt,
		}),
		agent.WithTools(catalog, tools.NewRouterExecutor(r, catalog, logger)),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
	)
	if err := a.RegisterMethods(r); err != nil {
		return nil, err
	}

	// Domain handlers are registered by embedding applications; until then
	// a catalog tool without a handler fails at call time.
	for _, schema := range catalog.Schemas() {
		def, _ := catalog.Get(schema.Name)
		if !r.Has(router.Method(def.Method)) {
			logger.Warn("tool has no registered method", zap.String("tool", def.Name), zap.String("method", def.Method))
		}
	}

	manager := transport.NewConnectionManager(logger, metrics)
	stream := server.NewStreamHandler(r, manager, server.StreamConfig{
		Timeout: cfg.Streaming.Timeout,
		Logger:  logger,
		Metrics: metrics,
	})

	return gateway.New(gateway.Config{
		Addr:              cfg.Server.Addr(),
		CORSOrigins:       cfg.Server.CORSOrigins,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		KeepAlive:         cfg.Streaming.KeepAlive,
		Version:           version.Get(),
	}, gateway.Deps{
		Router:  r,
		Manager: manager,
		Stream:  stream,
		Metrics: metrics,
		Logger:  logger,
	})
}
