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
	"sort"
	"sync"

	"github.com/teradata-labs/skyloom/pkg/observability"
	"go.uber.org/zap"
)

// ConnectionManager tracks one open connection per client id.
type ConnectionManager struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewConnectionManager creates an empty manager. metrics may be nil.
func NewConnectionManager(logger *zap.Logger, metrics *observability.Metrics) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{
		conns:   make(map[string]*Connection),
		logger:  logger,
		metrics: metrics,
	}
}

// Add registers a connection. A previous connection for the same client is
// closed and replaced.
func (m *ConnectionManager) Add(conn *Connection) {
	m.mu.Lock()
	prev := m.conns[conn.ClientID()]
	m.conns[conn.ClientID()] = conn
	count := len(m.conns)
	m.mu.Unlock()

	if prev != nil && prev != conn {
		prev.Close()
		m.logger.Info("replaced existing connection", zap.String("client_id", conn.ClientID()))
	} else {
		m.logger.Info("client connected", zap.String("client_id", conn.ClientID()))
	}
	m.metrics.SetActiveConnections(count)
}

// Remove closes and forgets the client's connection. Removing an unknown
// client is a no-op.
func (m *ConnectionManager) Remove(clientID string) {
	m.mu.Lock()
	conn, ok := m.conns[clientID]
	if ok {
		conn.Close()
		delete(m.conns, clientID)
	}
	count := len(m.conns)
	m.mu.Unlock()

	if ok {
		m.logger.Info("client disconnected", zap.String("client_id", clientID))
		m.metrics.SetActiveConnections(count)
	}
}

// Release removes conn only if it is still the registered connection for its
// client, so a handler tearing down a replaced channel cannot evict the new one.
func (m *ConnectionManager) Release(conn *Connection) {
	conn.Close()

	m.mu.Lock()
	current, ok := m.conns[conn.ClientID()]
	if ok && current == conn {
		delete(m.conns, conn.ClientID())
	}
	count := len(m.conns)
	m.mu.Unlock()

	if ok && current == conn {
		m.logger.Info("client disconnected", zap.String("client_id", conn.ClientID()))
		m.metrics.SetActiveConnections(count)
	}
}

// Get returns the client's connection if one is registered.
func (m *ConnectionManager) Get(clientID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[clientID]
	return conn, ok
}

// SendToClient delivers an event to one client.
func (m *ConnectionManager) SendToClient(clientID string, event Event) Delivery {
	conn, ok := m.Get(clientID)
	if !ok || !conn.IsActive() {
		return ClientGone
	}
	return conn.Send(event)
}

// Broadcast sends an event to every client and returns how many received it.
// Connections that fail to receive are removed.
func (m *ConnectionManager) Broadcast(event Event) int {
	m.mu.RLock()
	targets := make([]*Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	sent := 0
	for _, conn := range targets {
		if conn.Send(event).OK() {
			sent++
			continue
		}
		m.logger.Debug("pruning unreachable connection", zap.String("client_id", conn.ClientID()))
		m.Release(conn)
	}
	return sent
}

// Count returns the number of registered connections.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// ClientIDs returns the registered client ids in sorted order.
func (m *ConnectionManager) ClientIDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// CloseAll closes every connection, used on shutdown.
func (m *ConnectionManager) CloseAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*Connection)
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	m.metrics.SetActiveConnections(0)
	if len(conns) > 0 {
		m.logger.Info("closed all connections", zap.Int("count", len(conns)))
	}
}
