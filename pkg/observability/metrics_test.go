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

package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("ping", "sync", "ok")
	m.SetActiveConnections(3)
	m.ObserveStreamOutcome("complete")
	m.ObserveAgentIterations(2)
	m.ObserveToolCall("geocode", false)
	m.ObserveLLMCall("mock", "scripted", time.Second, false, 1, 2)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("ping", "sync", "ok")
	m.ObserveRequest("ping", "sync", "ok")
	m.SetActiveConnections(2)
	m.ObserveStreamOutcome("timed_out")
	m.ObserveToolCall("geocode", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("ping", "sync", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamOutcomes.WithLabelValues("timed_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("geocode", "error")))

	m.ObserveLLMCall("anthropic", "claude", 2*time.Second, false, 100, 20)
	m.ObserveLLMCall("anthropic", "claude", time.Second, true, 0, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("anthropic", "claude", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("anthropic", "claude", "error")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.llmTokens.WithLabelValues("anthropic", "claude", "input")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.SetActiveConnections(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skyloom_active_connections 1")
}
