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
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// lockedBuffer is a goroutine-safe writer for tests that read while a
// connection is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

type panickingWriter struct{}

func (panickingWriter) Write([]byte) (int, error) { panic("write after handler returned") }

func TestConnection_SendFrameFormat(t *testing.T) {
	buf := &lockedBuffer{}
	flushed := 0
	conn := newConnection("c1", buf, func() { flushed++ }, zaptest.NewLogger(t))

	d := conn.Send(Event{Name: "progress", Data: map[string]interface{}{"step": 1}, ID: "evt-1"})
	assert.Equal(t, Delivered, d)
	assert.True(t, d.OK())
	assert.Equal(t, "id: evt-1\nevent: progress\ndata: {\"step\":1}\n\n", buf.String())
	assert.Equal(t, 1, flushed)
}

func TestConnection_SendWithoutID(t *testing.T) {
	buf := &lockedBuffer{}
	conn := newConnection("c1", buf, nil, nil)

	require.Equal(t, Delivered, conn.Send(Event{Name: "connected", Data: "hi"}))
	assert.Equal(t, "event: connected\ndata: \"hi\"\n\n", buf.String())
}

func TestConnection_SendAfterClose(t *testing.T) {
	buf := &lockedBuffer{}
	conn := newConnection("c1", buf, nil, zaptest.NewLogger(t))

	conn.Close()
	conn.Close() // second close is a no-op

	assert.False(t, conn.IsActive())
	assert.Equal(t, ClientGone, conn.Send(NewEvent("progress", nil)))
	assert.Empty(t, buf.String())

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestConnection_WriteFailures(t *testing.T) {
	tests := []struct {
		name string
		conn *Connection
	}{
		{name: "error", conn: newConnection("c1", failingWriter{}, nil, zaptest.NewLogger(t))},
		{name: "panic", conn: newConnection("c1", panickingWriter{}, nil, zaptest.NewLogger(t))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Delivery
			require.NotPanics(t, func() { d = tt.conn.Send(NewEvent("progress", 1)) })
			assert.Equal(t, WriteFailed, d)
			assert.False(t, d.OK())
			assert.False(t, tt.conn.IsActive())
			assert.Equal(t, ClientGone, tt.conn.Send(NewEvent("progress", 2)))
		})
	}
}

func TestConnection_UnencodableData(t *testing.T) {
	conn := newConnection("c1", &lockedBuffer{}, nil, zaptest.NewLogger(t))
	assert.Equal(t, WriteFailed, conn.Send(Event{Name: "bad", Data: make(chan int)}))
	assert.True(t, conn.IsActive())
}

func TestConnection_ConcurrentSendsDoNotInterleave(t *testing.T) {
	buf := &lockedBuffer{}
	conn := newConnection("c1", buf, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Send(Event{Name: "progress", Data: "x"})
		}()
	}
	wg.Wait()

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 50)
	for _, f := range frames {
		assert.Equal(t, "event: progress\ndata: \"x\"", f)
	}
}

func TestConnection_ServeKeepAlive(t *testing.T) {
	buf := &lockedBuffer{}
	conn := newConnection("c1", buf, nil, zaptest.NewLogger(t))

	served := make(chan struct{})
	go func() {
		conn.Serve(5 * time.Millisecond)
		close(served)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), ": keep-alive\n\n")
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestConnection_ServeClosesOnFailedKeepAlive(t *testing.T) {
	conn := newConnection("c1", failingWriter{}, nil, zaptest.NewLogger(t))

	served := make(chan struct{})
	go func() {
		conn.Serve(time.Millisecond)
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after a failed keep-alive")
	}
	assert.False(t, conn.IsActive())
}

func TestNewConnection_Headers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/mcp/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "evt-41")
	rec := httptest.NewRecorder()

	conn, err := NewConnection(rec, req, "c1", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "evt-41", conn.LastEventID())
	assert.Equal(t, "c1", conn.ClientID())

	cancel()
	assert.Eventually(t, func() bool { return !conn.IsActive() }, time.Second, time.Millisecond)
}

type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewConnection_RequiresFlusher(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/mcp/events", nil)
	_, err := NewConnection(noFlushWriter{httptest.NewRecorder()}, req, "c1", nil)
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}
