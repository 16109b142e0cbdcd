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
// Package server executes validated JSON-RPC requests against the method
// router, either synchronously or as an event-streamed background operation.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
	"github.com/teradata-labs/skyloom/pkg/observability"
	"go.uber.org/zap"
)

// Delivery modes used as metric labels.
const (
	modeSync   = "sync"
	modeStream = "stream"
)

// SyncHandler answers one request with one response.
type SyncHandler struct {
	router  *router.Router
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSyncHandler creates a synchronous handler. logger and metrics may be nil.
func NewSyncHandler(r *router.Router, logger *zap.Logger, metrics *observability.Metrics) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{router: r, logger: logger, metrics: metrics}
}

// Handle validates raw, dispatches it and wraps the outcome. It always
// returns a well-formed response, even when a handler panics.
func (h *SyncHandler) Handle(ctx context.Context, raw []byte) (resp *protocol.Response) {
	start := time.Now()

	v := protocol.Validate(raw)
	if !v.OK() {
		h.logger.Debug("rejected request", zap.Int("code", v.Err.Code), zap.String("message", v.Err.Message))
		h.metrics.ObserveRequest("", modeSync, "invalid")
		return protocol.NewResponse(v.ID, nil, v.Err)
	}
	req := v.Request
	method := router.Method(req.Method)

	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("sync request panicked", zap.String("method", req.Method), zap.Any("panic", p))
			h.metrics.ObserveRequest(h.methodLabel(method), modeSync, "error")
			resp = protocol.NewResponse(req.ID, nil, protocol.Internal("Internal error", fmt.Sprint(p)))
		}
	}()

	h.logger.Debug("handling request", zap.String("method", req.Method), zap.Stringer("id", req.ID))

	result, err := h.router.Dispatch(ctx, method, req.Params, nil)
	duration := time.Since(start)
	if err != nil {
		rpcErr := protocol.FromError(err)
		h.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.Int("code", rpcErr.Code),
			zap.Duration("duration", duration),
		)
		h.metrics.ObserveRequest(h.methodLabel(method), modeSync, "error")
		return protocol.NewResponse(req.ID, nil, rpcErr)
	}

	h.logger.Debug("request handled", zap.String("method", req.Method), zap.Duration("duration", duration))
	h.metrics.ObserveRequest(string(method), modeSync, "ok")
	return protocol.NewResponse(req.ID, result, nil)
}

func (h *SyncHandler) methodLabel(m router.Method) string {
	return methodLabel(h.router, m)
}

// methodLabel keeps unregistered names out of metric labels.
func methodLabel(r *router.Router, m router.Method) string {
	if r.Has(m) {
		return string(m)
	}
	return "unknown"
}
