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
// Package client talks to a running gateway: synchronous calls over
// POST /mcp/message and streaming calls that pair the POST with a
// subscription to GET /mcp/events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/teradata-labs/skyloom/pkg/mcp/server"
	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

const (
	messagePath = "/mcp/message"
	eventsPath  = "/mcp/events"
	statusPath  = "/mcp/status"

	// ClientIDHeader names the streaming channel a request belongs to.
	ClientIDHeader = "X-Client-ID"
	// StreamingHeader switches a POST into streaming mode.
	StreamingHeader = "X-MCP-Streaming"
)

// ErrStreamClosed is returned when the event channel ends before the
// terminal event arrives.
var ErrStreamClosed = errors.New("event stream closed before the call finished")

// Config configures the client
type Config struct {
	// BaseURL is the gateway root, e.g. http://127.0.0.1:8765
	BaseURL string

	// ClientID names this client's event channel (default: random uuid)
	ClientID string

	// Timeout bounds synchronous calls (default: 30s). Streaming calls are
	// bounded by their context only.
	Timeout time.Duration

	// Transport overrides the HTTP round tripper (tests)
	Transport http.RoundTripper

	Logger *zap.Logger
}

// Client is a gateway client. Safe for concurrent use, except that streaming
// calls sharing one ClientID must not overlap.
type Client struct {
	baseURL  string
	clientID string
	sync     *http.Client
	stream   *http.Client
	logger   *zap.Logger
	nextID   atomic.Int64
}

// Event is one server-sent event.
type Event struct {
	Name string
	ID   string
	Data json.RawMessage
}

// StreamResult is the outcome of a streaming call.
type StreamResult struct {
	// Result is set when the call completed
	Result json.RawMessage
	// Error is set when the call failed
	Error *protocol.Error
	// Events holds every event of the call in arrival order, terminal included
	Events []Event
}

// Status is the gateway status document.
type Status struct {
	ActiveConnections int      `json:"activeConnections"`
	ProtocolVersion   string   `json:"protocolVersion"`
	Methods           []string `json:"methods"`
	Version           string   `json:"version"`
}

// New creates a client.
func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ClientID == "" {
		config.ClientID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		clientID: config.ClientID,
		sync:     &http.Client{Timeout: config.Timeout, Transport: config.Transport},
		stream:   &http.Client{Transport: config.Transport},
		logger:   config.Logger,
	}
}

// ClientID returns the id used for streaming calls.
func (c *Client) ClientID() string {
	return c.clientID
}

// Call invokes method synchronously. A protocol-level failure is reported in
// the response's Error, not as a Go error.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	id := c.nextID.Add(1)
	return c.post(ctx, c.sync, newRequest(id, method, params), nil)
}

// CallInto invokes method synchronously and decodes the result into out.
// Protocol errors are returned as *protocol.Error.
func (c *Client) CallInto(ctx context.Context, method string, params interface{}, out interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Methods lists the methods registered on the gateway.
func (c *Client) Methods(ctx context.Context) ([]string, error) {
	var result struct {
		Methods []string `json:"methods"`
	}
	if err := c.CallInto(ctx, "methods/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Methods, nil
}

// Status fetches the gateway status document.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.sync.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, body)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Stream invokes method in streaming mode. It opens the event channel, waits
// for the connected event, posts the request and collects events until the
// call's terminal event. onEvent, when set, sees every event of the call as
// it arrives.
func (c *Client) Stream(ctx context.Context, method string, params interface{}, onEvent func(Event)) (*StreamResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, errc := c.subscribe(ctx)

	if err := c.awaitConnected(ctx, events, errc); err != nil {
		return nil, err
	}

	id := c.nextID.Add(1)
	resp, err := c.post(ctx, c.sync, newRequest(id, method, params), map[string]string{
		ClientIDHeader:  c.clientID,
		StreamingHeader: "true",
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	requestID := fmt.Sprintf("%d", id)
	result := &StreamResult{}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-errc:
			if err == nil {
				err = ErrStreamClosed
			}
			return nil, fmt.Errorf("event stream: %w", err)
		case ev := <-events:
			if !belongsTo(ev, requestID) {
				continue
			}
			result.Events = append(result.Events, ev)
			if onEvent != nil {
				onEvent(ev)
			}

			switch ev.Name {
			case server.EventProcessingComplete:
				var payload struct {
					Result json.RawMessage `json:"result"`
				}
				if err := json.Unmarshal(ev.Data, &payload); err != nil {
					return nil, fmt.Errorf("decode %s: %w", ev.Name, err)
				}
				result.Result = payload.Result
				return result, nil
			case server.EventProcessingError:
				var payload struct {
					Error *protocol.Error `json:"error"`
				}
				if err := json.Unmarshal(ev.Data, &payload); err != nil {
					return nil, fmt.Errorf("decode %s: %w", ev.Name, err)
				}
				result.Error = payload.Error
				return result, nil
			}
		}
	}
}

// subscribe opens the event channel in the background. Events and the
// subscription's exit error are delivered on the returned channels.
func (c *Client) subscribe(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event, 64)
	errc := make(chan error, 1)

	sseClient := sse.NewClient(c.baseURL + eventsPath + "?clientId=" + url.QueryEscape(c.clientID))
	sseClient.Connection = c.stream
	sseClient.Headers[ClientIDHeader] = c.clientID
	// One attempt only: a dropped channel fails the call instead of
	// silently reconnecting and missing events.
	sseClient.ReconnectStrategy = &backoff.StopBackOff{}

	go func() {
		err := sseClient.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			ev := Event{
				Name: string(msg.Event),
				ID:   string(msg.ID),
				Data: append(json.RawMessage(nil), msg.Data...),
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		if ctx.Err() == nil {
			c.logger.Debug("event stream ended", zap.String("client_id", c.clientID), zap.Error(err))
		}
		errc <- err
	}()

	return events, errc
}

func (c *Client) awaitConnected(ctx context.Context, events <-chan Event, errc <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if err == nil {
				err = ErrStreamClosed
			}
			return fmt.Errorf("open event stream: %w", err)
		case ev := <-events:
			if ev.Name == server.EventConnected {
				return nil
			}
		}
	}
}

func (c *Client) post(ctx context.Context, hc *http.Client, body interface{}, headers map[string]string) (*protocol.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagePath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", messagePath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out protocol.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("HTTP %d: invalid response body: %s", resp.StatusCode, raw)
	}
	return &out, nil
}

func newRequest(id int64, method string, params interface{}) map[string]interface{} {
	req := map[string]interface{}{
		"jsonrpc": protocol.JSONRPCVersion,
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	return req
}

// belongsTo reports whether ev carries the given request id.
func belongsTo(ev Event, requestID string) bool {
	var payload struct {
		RequestID *protocol.RequestID `json:"requestId"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return false
	}
	return payload.RequestID.String() == requestID
}
