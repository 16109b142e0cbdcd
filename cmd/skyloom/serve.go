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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/teradata-labs/skyloom/internal/log"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Run the gateway HTTP server.

Endpoints:
  POST /mcp/message   JSON-RPC calls (add ?streaming=true and a client id to stream)
  GET  /mcp/events    per-client event channel
  GET  /mcp/status    active connections and registered methods
  GET  /healthz       liveness
  GET  /metrics       Prometheus metrics
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "Listen host")
	serveCmd.Flags().Int("port", 8765, "Listen port")
	serveCmd.Flags().String("llm-provider", "anthropic", "LLM provider (anthropic, bedrock, mock)")
	serveCmd.Flags().String("model", "", "LLM model (default: provider default)")
	serveCmd.Flags().String("anthropic-key", "", "Anthropic API key (or SKYLOOM_LLM_API_KEY / ANTHROPIC_API_KEY)")
	serveCmd.Flags().String("tools-file", "", "YAML tool catalog")
	serveCmd.Flags().Bool("watch-tools", false, "Reload the tool catalog when the file changes")
	serveCmd.Flags().String("bedrock-region", "", "AWS region for the bedrock provider")
	serveCmd.Flags().Duration("stream-timeout", 0, "Streaming request timeout (default: 5m)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("llm.provider", serveCmd.Flags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", serveCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("llm.api_key", serveCmd.Flags().Lookup("anthropic-key"))
	_ = viper.BindPFlag("agent.tools_file", serveCmd.Flags().Lookup("tools-file"))
	_ = viper.BindPFlag("agent.watch_tools", serveCmd.Flags().Lookup("watch-tools"))
	_ = viper.BindPFlag("llm.bedrock_region", serveCmd.Flags().Lookup("bedrock-region"))
	_ = viper.BindPFlag("streaming.timeout", serveCmd.Flags().Lookup("stream-timeout"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := log.Build(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- gw.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	stop()

	logger.Info("shutting down gracefully", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("shutdown timed out, abandoning in-flight requests")
			return nil
		}
		return err
	}
	return <-errc
}
