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

package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/skyloom/pkg/types"
)

func TestNewClient(t *testing.T) {
	t.Setenv("ANTHROPIC_DEFAULT_MODEL", "")
	client, err := NewClient(Config{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, "anthropic", client.Name())
	assert.Equal(t, DefaultAnthropicModel, client.Model())
	assert.Equal(t, int64(DefaultMaxTokens), client.maxTokens)
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

// newTestServer answers every request with body and records the last request.
func newTestServer(t *testing.T, body string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if captured != nil {
			assert.NoError(t, json.Unmarshal(raw, captured))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: url, Model: "claude-test", MaxRetries: -1})
	require.NoError(t, err)
	return client
}

func TestClient_Chat_SimpleText(t *testing.T) {
	var req map[string]interface{}
	server := newTestServer(t, `{
		"id": "msg_123",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"stop_reason": "end_turn",
		"stop_sequence": null,
		"content": [{"type": "text", "text": "Hello! How can I help you?"}],
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`, &req)
	client := newTestClient(t, server.URL)

	resp, err := client.Chat(context.Background(), []types.Message{
		{Role: types.RoleSystem, Content: "You are a satellite imagery assistant."},
		{Role: types.RoleUser, Content: "Hello"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help you?", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 30, resp.Usage.TotalTokens)

	assert.Equal(t, "claude-test", req["model"])
	system := req["system"].([]interface{})
	require.Len(t, system, 1)
	assert.Equal(t, "You are a satellite imagery assistant.", system[0].(map[string]interface{})["text"])
	assert.Len(t, req["messages"], 1)
}

func TestClient_Chat_ToolUse(t *testing.T) {
	var req map[string]interface{}
	server := newTestServer(t, `{
		"id": "msg_456",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"stop_reason": "tool_use",
		"stop_sequence": null,
		"content": [
			{"type": "text", "text": "Let me search."},
			{"type": "tool_use", "id": "toolu_1", "name": "imagery_search", "input": {"location": "Paris"}}
		],
		"usage": {"input_tokens": 50, "output_tokens": 12}
	}`, &req)
	client := newTestClient(t, server.URL)

	tools := []types.ToolSchema{{
		Name:        "imagery/search",
		Description: "Search the imagery archive",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"location": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"location"},
		},
	}}
	resp, err := client.Chat(context.Background(), []types.Message{{Role: types.RoleUser, Content: "Find Paris"}}, tools)
	require.NoError(t, err)

	assert.Equal(t, "Let me search.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, types.ToolCall{
		ID:        "toolu_1",
		Name:      "imagery/search",
		Arguments: map[string]interface{}{"location": "Paris"},
	}, resp.ToolCalls[0])

	sentTools := req["tools"].([]interface{})
	require.Len(t, sentTools, 1)
	assert.Equal(t, "imagery_search", sentTools[0].(map[string]interface{})["name"])
}

func TestClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer server.Close()
	client := newTestClient(t, server.URL)

	_, err := client.Chat(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic messages request failed")
}

func TestClient_Chat_NoMessages(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	_, err := client.Chat(context.Background(), []types.Message{{Role: types.RoleSystem, Content: "only system"}}, nil)
	assert.ErrorIs(t, err, ErrNoMessages)
}

// encodeMessages renders converted messages as generic JSON for inspection.
func encodeMessages(t *testing.T, messages []types.Message) (string, []map[string]interface{}) {
	t.Helper()
	system, sdkMessages := convertMessages(messages)
	data, err := json.Marshal(sdkMessages)
	require.NoError(t, err)
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return system, out
}

func blockTypes(msg map[string]interface{}) []string {
	var out []string
	for _, b := range msg["content"].([]interface{}) {
		out = append(out, b.(map[string]interface{})["type"].(string))
	}
	return out
}

func TestConvertMessages_ParallelToolResultsShareOneTurn(t *testing.T) {
	system, msgs := encodeMessages(t, []types.Message{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleUser, Content: "Compare Paris and Rome"},
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{
			{ID: "a", Name: "geocode", Arguments: map[string]interface{}{"q": "Paris"}},
			{ID: "b", Name: "geocode", Arguments: map[string]interface{}{"q": "Rome"}},
		}},
		{Role: types.RoleTool, ToolCallID: "a", Content: `{"lat":48.8}`},
		{Role: types.RoleTool, ToolCallID: "b", Content: "Error: not found"},
		{Role: types.RoleAssistant, Content: "Done"},
	})

	assert.Equal(t, "sys", system)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, []string{"tool_use", "tool_use"}, blockTypes(msgs[1]))
	assert.Equal(t, "user", msgs[2]["role"])
	assert.Equal(t, []string{"tool_result", "tool_result"}, blockTypes(msgs[2]))
	second := msgs[2]["content"].([]interface{})[1].(map[string]interface{})
	assert.Equal(t, true, second["is_error"])
	assert.Equal(t, "assistant", msgs[3]["role"])
}

func TestConvertMessages_DropsTrimmedPrefix(t *testing.T) {
	// History trimming removed the user turn and the assistant tool_use.
	_, msgs := encodeMessages(t, []types.Message{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleTool, ToolCallID: "gone", Content: "stale"},
		{Role: types.RoleAssistant, Content: "orphaned answer"},
		{Role: types.RoleUser, Content: "next question"},
	})

	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, []string{"text"}, blockTypes(msgs[0]))
}
