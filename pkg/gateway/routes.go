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

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/teradata-labs/skyloom/pkg/mcp/protocol"
	"github.com/teradata-labs/skyloom/pkg/mcp/server"
	"github.com/teradata-labs/skyloom/pkg/mcp/transport"
	"go.uber.org/zap"
)

const (
	clientIDHeader  = "X-Client-ID"
	streamingHeader = "X-MCP-Streaming"
)

// envelopeHints are the transport fields a client may put next to the
// JSON-RPC members of the body.
type envelopeHints struct {
	Streaming bool   `json:"streaming"`
	ClientID  string `json:"clientId"`
}

func (g *Gateway) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, protocol.NewResponse(nil, nil,
				protocol.NewError(protocol.InvalidRequest, "Request body too large", map[string]int64{"limit": tooLarge.Limit})))
			return
		}
		writeJSON(w, http.StatusBadRequest, protocol.NewResponse(nil, nil, protocol.NewParseError(err.Error())))
		return
	}

	// Malformed bodies leave the hints empty; the handlers report them.
	var hints envelopeHints
	_ = json.Unmarshal(body, &hints)

	streaming := hints.Streaming ||
		isTrue(r.URL.Query().Get("streaming")) ||
		isTrue(r.Header.Get(streamingHeader))

	if !streaming {
		writeJSON(w, http.StatusOK, g.sync.Handle(r.Context(), body))
		return
	}

	clientID := firstNonEmpty(r.Header.Get(clientIDHeader), r.URL.Query().Get("clientId"), hints.ClientID)
	if clientID == "" {
		writeJSON(w, http.StatusOK, protocol.NewResponse(protocol.SalvageID(body), nil,
			protocol.NewInvalidRequest([]protocol.FieldViolation{{
				Field:   "clientId",
				Message: "clientId is required for streaming requests",
			}})))
		return
	}

	writeJSON(w, http.StatusOK, g.stream.Handle(r.Context(), clientID, body))
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	clientID := firstNonEmpty(r.URL.Query().Get("clientId"), r.Header.Get(clientIDHeader))
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := transport.NewConnection(w, r, clientID, g.logger)
	if err != nil {
		g.logger.Error("cannot open event channel", zap.String("client_id", clientID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	g.manager.Add(conn)
	defer g.manager.Release(conn)

	if id := conn.LastEventID(); id != "" {
		g.logger.Debug("client resumed without replay",
			zap.String("client_id", clientID),
			zap.String("last_event_id", id),
		)
	}

	conn.Send(transport.NewEvent(server.EventConnected, map[string]string{"clientId": clientID}))
	conn.Serve(g.config.KeepAlive)
}

type statusResponse struct {
	ActiveConnections int      `json:"activeConnections"`
	ProtocolVersion   string   `json:"protocolVersion"`
	Methods           []string `json:"methods"`
	Version           string   `json:"version"`
}

func (g *Gateway) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		ActiveConnections: g.manager.Count(),
		ProtocolVersion:   protocol.JSONRPCVersion,
		Methods:           g.router.ListMethods(),
		Version:           g.config.Version,
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
