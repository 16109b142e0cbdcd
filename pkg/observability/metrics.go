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
// Package observability exposes Prometheus metrics for the gateway.
// All methods are safe to call on a nil *Metrics, which records nothing.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skyloom"

// Metrics holds the gateway's collectors and the registry they live in.
type Metrics struct {
	registry          *prometheus.Registry
	requests          *prometheus.CounterVec
	activeConnections prometheus.Gauge
	streamOutcomes    *prometheus.CounterVec
	agentIterations   prometheus.Histogram
	toolCalls         *prometheus.CounterVec
	llmCalls          *prometheus.CounterVec
	llmLatency        *prometheus.HistogramVec
	llmTokens         *prometheus.CounterVec
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "JSON-RPC requests handled, by method, delivery mode and outcome.",
		}, []string{"method", "mode", "outcome"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Open streaming channels.",
		}),
		streamOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_outcomes_total",
			Help:      "Terminal states of streaming invocations.",
		}, []string{"outcome"}),
		agentIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_iterations",
			Help:      "LLM round trips per chat turn.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls executed by the agent loop, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM completion calls, by provider, model and outcome.",
		}, []string{"provider", "model", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM completion latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider", "model"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "LLM tokens consumed, by provider, model and direction.",
		}, []string{"provider", "model", "direction"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.activeConnections,
		m.streamOutcomes,
		m.agentIterations,
		m.toolCalls,
		m.llmCalls,
		m.llmLatency,
		m.llmTokens,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest counts one handled request.
func (m *Metrics) ObserveRequest(method, mode, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, mode, outcome).Inc()
}

// SetActiveConnections records the number of open channels.
func (m *Metrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(n))
}

// ObserveStreamOutcome counts a streaming invocation's terminal state.
func (m *Metrics) ObserveStreamOutcome(outcome string) {
	if m == nil {
		return
	}
	m.streamOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveAgentIterations records how many LLM calls a chat turn needed.
func (m *Metrics) ObserveAgentIterations(n int) {
	if m == nil {
		return
	}
	m.agentIterations.Observe(float64(n))
}

// ObserveToolCall counts one tool execution.
func (m *Metrics) ObserveToolCall(tool string, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveLLMCall records one completion call and its token usage.
func (m *Metrics) ObserveLLMCall(provider, model string, duration time.Duration, failed bool, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.llmCalls.WithLabelValues(provider, model, outcome).Inc()
	m.llmLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
	if failed {
		return
	}
	m.llmTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	m.llmTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}
