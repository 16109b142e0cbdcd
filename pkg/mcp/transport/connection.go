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

package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Connection is one client's open event channel. It starts open and moves to
// closed exactly once, either through Close or because the underlying HTTP
// request ended. A closed connection never reopens.
type Connection struct {
	clientID    string
	lastEventID string
	w           io.Writer
	flush       func()
	logger      *zap.Logger

	mu        sync.Mutex // serializes frame writes
	active    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection sends the event-stream headers and returns an open connection
// bound to the request. The connection closes itself when the request context
// is cancelled.
func NewConnection(w http.ResponseWriter, r *http.Request, clientID string, logger *zap.Logger) (*Connection, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := newConnection(clientID, w, flusher.Flush, logger)
	c.lastEventID = r.Header.Get("Last-Event-ID")

	go func() {
		select {
		case <-r.Context().Done():
			c.Close()
		case <-c.done:
		}
	}()

	return c, nil
}

func newConnection(clientID string, w io.Writer, flush func(), logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	if flush == nil {
		flush = func() {}
	}
	c := &Connection{
		clientID: clientID,
		w:        w,
		flush:    flush,
		logger:   logger.With(zap.String("client_id", clientID)),
		done:     make(chan struct{}),
	}
	c.active.Store(true)
	return c
}

// ClientID returns the identifier the connection was opened with.
func (c *Connection) ClientID() string {
	return c.clientID
}

// LastEventID returns the Last-Event-ID header sent when the channel was
// opened. Missed events are not replayed.
func (c *Connection) LastEventID() string {
	return c.lastEventID
}

// IsActive reports whether the connection is still open.
func (c *Connection) IsActive() bool {
	return c.active.Load()
}

// Done is closed once the connection closes.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection closed. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.active.Store(false)
		close(c.done)
		c.logger.Debug("connection closed")
	})
}

// Send writes one event frame. It never returns an error: a closed channel
// reports ClientGone and a failed write reports WriteFailed and closes the
// connection.
func (c *Connection) Send(event Event) Delivery {
	if !c.IsActive() {
		return ClientGone
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		c.logger.Warn("failed to encode event data", zap.String("event", event.Name), zap.Error(err))
		return WriteFailed
	}

	var frame bytes.Buffer
	if event.ID != "" {
		fmt.Fprintf(&frame, "id: %s\n", event.ID)
	}
	fmt.Fprintf(&frame, "event: %s\n", event.Name)
	fmt.Fprintf(&frame, "data: %s\n\n", data)

	return c.write(frame.Bytes(), event.Name)
}

func (c *Connection) write(frame []byte, name string) (delivery Delivery) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the lock: Close may have raced with us.
	if !c.IsActive() {
		return ClientGone
	}

	defer func() {
		// Writers backed by a finished response can panic instead of erroring.
		if p := recover(); p != nil {
			c.logger.Warn("event write panicked", zap.String("event", name), zap.Any("panic", p))
			c.Close()
			delivery = WriteFailed
		}
	}()

	if _, err := c.w.Write(frame); err != nil {
		c.logger.Debug("event write failed", zap.String("event", name), zap.Error(err))
		c.Close()
		return WriteFailed
	}
	c.flush()
	return Delivered
}

// Serve blocks until the connection closes, writing a keep-alive comment every
// interval. A failed keep-alive closes the connection. An interval of zero
// disables keep-alives.
func (c *Connection) Serve(keepAlive time.Duration) {
	defer func() {
		// Wait out any in-flight write before the caller releases the writer.
		c.mu.Lock()
		c.mu.Unlock() //nolint:staticcheck // empty critical section is the barrier
	}()

	if keepAlive <= 0 {
		<-c.done
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if d := c.write([]byte(": keep-alive\n\n"), "keep-alive"); d == WriteFailed {
				return
			}
		}
	}
}
