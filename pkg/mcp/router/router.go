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

// Package router maps JSON-RPC method names to handlers and dispatches calls.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// Method is a registered JSON-RPC method name.
type Method string

// Methods built into the gateway. Domain methods are registered at runtime
// by the surrounding application under their own names.
const (
	MethodPing              Method = "ping"
	MethodChat              Method = "chat"
	MethodListMethods       Method = "methods/list"
	MethodListTools         Method = "tools/list"
	MethodClearConversation Method = "conversation/clear"
)

// ErrEmptyMethod is returned when registering a handler without a name.
var ErrEmptyMethod = errors.New("method name is required")

// CallContext describes how a method is being invoked. It is nil for plain
// synchronous calls.
type CallContext struct {
	ClientID   string
	Streaming  bool
	OnProgress func(progress interface{})
}

// Progress forwards a progress payload when the caller is listening.
func (c *CallContext) Progress(progress interface{}) {
	if c == nil || c.OnProgress == nil {
		return
	}
	c.OnProgress(progress)
}

// IsStreaming reports whether the call is running in streaming mode.
func (c *CallContext) IsStreaming() bool {
	return c != nil && c.Streaming
}

// Handler processes a method call. params is never nil.
type Handler func(ctx context.Context, params map[string]interface{}, call *CallContext) (interface{}, error)

// Option configures a registration.
type Option func(*entry) error

// WithParamsSchema validates params against a JSON Schema before the handler runs.
func WithParamsSchema(schema map[string]interface{}) Option {
	return func(e *entry) error {
		compiled, err := protocol.CompileSchema(schema)
		if err != nil {
			return err
		}
		e.schema = compiled
		return nil
	}
}

type entry struct {
	handler Handler
	schema  *gojsonschema.Schema
}

// Router is the method registry.
type Router struct {
	mu      sync.RWMutex
	entries map[Method]entry
	logger  *zap.Logger
}

// New creates an empty router.
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		entries: make(map[Method]entry),
		logger:  logger,
	}
}

// Register binds a handler to a method name. Registering a name twice
// replaces the previous handler and logs a warning.
func (r *Router) Register(name Method, handler Handler, opts ...Option) error {
	if name == "" {
		return ErrEmptyMethod
	}
	if handler == nil {
		return fmt.Errorf("register %s: handler is nil", name)
	}

	e := entry{handler: handler}
	for _, opt := range opts {
		if err := opt(&e); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	r.mu.Lock()
	_, exists := r.entries[name]
	r.entries[name] = e
	r.mu.Unlock()

	if exists {
		r.logger.Warn("overwriting method handler", zap.String("method", string(name)))
	} else {
		r.logger.Debug("registered method", zap.String("method", string(name)))
	}
	return nil
}

// Unregister removes a method. Unknown names are ignored.
func (r *Router) Unregister(name Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Has reports whether a method is registered.
func (r *Router) Has(name Method) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// ListMethods returns the registered method names in sorted order.
func (r *Router) ListMethods() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, string(name))
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Dispatch looks up and runs the handler for name. Unknown methods fail with
// a MethodNotFound protocol error without running anything. Handler errors
// are logged and returned unchanged; a panicking handler is reported as an
// error instead of unwinding into the caller.
func (r *Router) Dispatch(ctx context.Context, name Method, params map[string]interface{}, call *CallContext) (result interface{}, err error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, protocol.NewMethodNotFound(string(name))
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	if e.schema != nil {
		violations, verr := protocol.ValidateAgainstSchema(e.schema, params)
		if verr != nil {
			return nil, protocol.NewInvalidParams("Invalid params", verr.Error())
		}
		if len(violations) > 0 {
			return nil, protocol.NewInvalidParams("Invalid params", map[string]interface{}{"violations": violations})
		}
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("method handler panicked",
				zap.String("method", string(name)),
				zap.Any("panic", p),
			)
			result = nil
			err = fmt.Errorf("method %s panicked: %v", name, p)
		}
	}()

	result, err = e.handler(ctx, params, call)
	if err != nil {
		r.logger.Warn("method handler failed",
			zap.String("method", string(name)),
			zap.Duration("duration", time.Since(start)),
			zap.Bool("streaming", call.IsStreaming()),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Debug("method handled",
		zap.String("method", string(name)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
