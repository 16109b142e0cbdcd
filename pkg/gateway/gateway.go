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
// Package gateway exposes the protocol engine over HTTP: JSON-RPC calls on
// POST /mcp/message, per-client event channels on GET /mcp/events, plus
// status, health and metrics endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
	"github.com/teradata-labs/skyloom/pkg/mcp/server"
	"github.com/teradata-labs/skyloom/pkg/mcp/transport"
	"github.com/teradata-labs/skyloom/pkg/observability"
	"go.uber.org/zap"
)

// MaxBodyBytes caps the size of a POST /mcp/message body.
const MaxBodyBytes = 10 << 20

// Config holds listener settings.
type Config struct {
	Addr              string
	CORSOrigins       []string      // default ["*"]
	ReadHeaderTimeout time.Duration // default 10s
	KeepAlive         time.Duration // event channel keep-alive, 0 disables
	Version           string        // reported by /mcp/status
}

// Deps are the services the gateway serves. Router and Manager are
// required; Stream defaults to a handler sending through Manager.
type Deps struct {
	Router  *router.Router
	Manager *transport.ConnectionManager
	Stream  *server.StreamHandler
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Gateway is the HTTP front end.
type Gateway struct {
	config  Config
	router  *router.Router
	manager *transport.ConnectionManager
	sync    *server.SyncHandler
	stream  *server.StreamHandler
	metrics *observability.Metrics
	logger  *zap.Logger

	handler    http.Handler
	httpServer *http.Server
}

// New builds the gateway and its routes.
func New(config Config, deps Deps) (*Gateway, error) {
	if deps.Router == nil {
		return nil, errors.New("gateway: router is required")
	}
	if deps.Manager == nil {
		return nil, errors.New("gateway: connection manager is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Stream == nil {
		deps.Stream = server.NewStreamHandler(deps.Router, deps.Manager, server.StreamConfig{
			Logger:  deps.Logger,
			Metrics: deps.Metrics,
		})
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = 10 * time.Second
	}

	g := &Gateway{
		config:  config,
		router:  deps.Router,
		manager: deps.Manager,
		sync:    server.NewSyncHandler(deps.Router, deps.Logger, deps.Metrics),
		stream:  deps.Stream,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	g.handler = g.routes()

	g.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           g.handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      0, // No timeout for SSE
		IdleTimeout:       120 * time.Second,
	}
	// Event channels never go idle on their own; closing them lets
	// Shutdown finish.
	g.httpServer.RegisterOnShutdown(g.manager.CloseAll)

	return g, nil
}

func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(g.recoverer)
	r.Use(g.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: g.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID", clientIDHeader, streamingHeader},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:         86400,
	}))

	r.Post("/mcp/message", g.handleMessage)
	r.Get("/mcp/events", g.handleEvents)
	r.Get("/mcp/status", g.handleStatus)
	r.Get("/healthz", g.handleHealth)
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	return r
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// ListenAndServe listens on the configured address. It returns nil after a
// graceful Shutdown.
func (g *Gateway) ListenAndServe() error {
	g.logger.Info("starting gateway", zap.String("addr", g.config.Addr))
	if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Serve serves on an existing listener.
func (g *Gateway) Serve(l net.Listener) error {
	g.logger.Info("starting gateway", zap.String("addr", l.Addr().String()))
	if err := g.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every event channel, then waits
// for in-flight streaming requests until ctx is done.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("stopping gateway")

	if err := g.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	if err := g.stream.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for streaming requests: %w", err)
	}

	g.logger.Info("gateway stopped")
	return nil
}
