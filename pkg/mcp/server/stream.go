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

package server

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/teradata-labs/skyloom/pkg/mcp/router"
	"github.com/teradata-labs/skyloom/pkg/mcp/transport"
	"github.com/teradata-labs/skyloom/pkg/observability"
	"go.uber.org/zap"
)

// Event names sent over a client's channel.
const (
	EventConnected          = "connected"
	EventProcessingStarted  = "processing_started"
	EventProgress           = "progress"
	EventProcessingComplete = "processing_complete"
	EventProcessingError    = "processing_error"
)

// DefaultStreamTimeout bounds how long a streamed request is awaited.
const DefaultStreamTimeout = 5 * time.Minute

// EventSender delivers events to a client's channel.
type EventSender interface {
	SendToClient(clientID string, event transport.Event) transport.Delivery
}

// StreamConfig configures a StreamHandler. Zero values get defaults.
type StreamConfig struct {
	Timeout time.Duration
	Clock   clockwork.Clock
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Outcome is how a streamed request ended.
type Outcome int

const (
	// OutcomeInvalid means the request failed validation.
	OutcomeInvalid Outcome = iota
	// OutcomeAborted means processing_started could not be delivered, so
	// nothing was dispatched.
	OutcomeAborted
	// OutcomeComplete means the handler returned a result.
	OutcomeComplete
	// OutcomeFailed means the handler returned an error.
	OutcomeFailed
	// OutcomeTimedOut means the handler did not settle in time.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeAborted:
		return "aborted"
	case OutcomeComplete:
		return "complete"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Ack is the immediate result of a streaming request.
type Ack struct {
	Status    string `json:"status"`
	ClientID  string `json:"clientId"`
	Streaming bool   `json:"streaming"`
}

// StreamHandler runs requests in the background and reports their progress
// and outcome as events on the caller's channel.
type StreamHandler struct {
	router  *router.Router
	sender  EventSender
	timeout time.Duration
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics

	wg sync.WaitGroup
}

// NewStreamHandler creates a streaming handler that sends events through sender.
func NewStreamHandler(r *router.Router, sender EventSender, cfg StreamConfig) *StreamHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultStreamTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &StreamHandler{
		router:  r,
		sender:  sender,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Handle acknowledges the request at once and processes it in the
// background. The work is detached from ctx, so a finished HTTP request or a
// dropped channel does not cancel it.
func (h *StreamHandler) Handle(ctx context.Context, clientID string, raw []byte) *protocol.Response {
	id := protocol.SalvageID(raw)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run(ctx, clientID, raw)
	}()

	return protocol.NewResponse(id, Ack{Status: "accepted", ClientID: clientID, Streaming: true}, nil)
}

// Wait blocks until every background request has finished or ctx is done.
func (h *StreamHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type dispatchResult struct {
	value interface{}
	err   error
}

// Run processes one streamed request to its terminal event and reports how
// it ended. Events for the request are sent in order: processing_started,
// any progress, then exactly one of processing_complete or processing_error.
func (h *StreamHandler) Run(ctx context.Context, clientID string, raw []byte) (outcome Outcome) {
	start := h.clock.Now()
	logger := h.logger.With(zap.String("client_id", clientID))

	v := protocol.Validate(raw)
	if !v.OK() {
		logger.Debug("rejected streaming request", zap.Int("code", v.Err.Code))
		h.emitTerminal(clientID, nil, EventProcessingError, errorPayload(v.ID, v.Err))
		h.observe("", OutcomeInvalid)
		return OutcomeInvalid
	}
	req := v.Request
	method := router.Method(req.Method)
	logger = logger.With(zap.String("method", req.Method), zap.Stringer("request_id", req.ID))

	started := transport.NewEvent(EventProcessingStarted, map[string]interface{}{
		"requestId": req.ID,
		"method":    req.Method,
	})
	if d := h.sender.SendToClient(clientID, started); !d.OK() {
		logger.Info("client unreachable, request not dispatched", zap.Stringer("delivery", d))
		h.observe(methodLabel(h.router, method), OutcomeAborted)
		return OutcomeAborted
	}

	// The mutex orders progress against the terminal event; progress from a
	// handler that outlives its timeout is dropped.
	s := &stream{}
	call := &router.CallContext{
		ClientID:  clientID,
		Streaming: true,
		OnProgress: func(progress interface{}) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.finished {
				return
			}
			ev := transport.NewEvent(EventProgress, map[string]interface{}{
				"requestId": req.ID,
				"progress":  progress,
			})
			if d := h.sender.SendToClient(clientID, ev); !d.OK() {
				logger.Debug("progress not delivered", zap.Stringer("delivery", d))
			}
		},
	}

	done := make(chan dispatchResult, 1)
	go func() {
		value, err := h.router.Dispatch(context.WithoutCancel(ctx), method, req.Params, call)
		done <- dispatchResult{value: value, err: err}
	}()

	timer := h.clock.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			rpcErr := protocol.FromError(res.err)
			h.emitTerminal(clientID, s, EventProcessingError, errorPayload(req.ID, rpcErr))
			outcome = OutcomeFailed
		} else {
			h.emitTerminal(clientID, s, EventProcessingComplete, map[string]interface{}{
				"requestId": req.ID,
				"result":    res.value,
			})
			outcome = OutcomeComplete
		}
	case <-timer.Chan():
		logger.Warn("streaming request timed out", zap.Duration("timeout", h.timeout))
		rpcErr := protocol.Internal("Request timed out", map[string]interface{}{
			"timeoutMs": h.timeout.Milliseconds(),
		})
		h.emitTerminal(clientID, s, EventProcessingError, errorPayload(req.ID, rpcErr))
		outcome = OutcomeTimedOut
	}

	logger.Debug("streaming request finished",
		zap.Stringer("outcome", outcome),
		zap.Duration("duration", h.clock.Since(start)),
	)
	h.observe(methodLabel(h.router, method), outcome)
	return outcome
}

type stream struct {
	mu       sync.Mutex
	finished bool
}

func (h *StreamHandler) emitTerminal(clientID string, s *stream, name string, data interface{}) {
	if s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.finished = true
	}
	if d := h.sender.SendToClient(clientID, transport.NewEvent(name, data)); !d.OK() {
		h.logger.Debug("terminal event not delivered",
			zap.String("client_id", clientID),
			zap.String("event", name),
			zap.Stringer("delivery", d),
		)
	}
}

func (h *StreamHandler) observe(method string, outcome Outcome) {
	h.metrics.ObserveStreamOutcome(outcome.String())
	result := "ok"
	if outcome != OutcomeComplete {
		result = outcome.String()
	}
	h.metrics.ObserveRequest(method, modeStream, result)
}

func errorPayload(id *protocol.RequestID, rpcErr *protocol.Error) map[string]interface{} {
	return map[string]interface{}{
		"requestId": id,
		"error":     rpcErr,
	}
}
