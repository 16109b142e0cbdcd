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
// Package anthropic implements types.LLMProvider on Anthropic's Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/teradata-labs/skyloom/pkg/llm"
	"github.com/teradata-labs/skyloom/pkg/types"
)

const (
	// DefaultAnthropicModel is the default Claude model
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	// DefaultMaxTokens is the default maximum tokens per request
	DefaultMaxTokens = 4096
	// DefaultTemperature is the default LLM temperature
	DefaultTemperature = 1.0
	// DefaultTimeout is the default per-request timeout
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is the SDK retry budget for transient failures
	DefaultMaxRetries = 2
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("anthropic API key is required (set llm.api_key or ANTHROPIC_API_KEY)")
	// ErrNoMessages is returned when nothing sendable is left after conversion.
	ErrNoMessages = errors.New("no valid messages to send (messages may be empty)")
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	Model       string // Default: claude-sonnet-4-5-20250929
	BaseURL     string // Default: SDK default (https://api.anthropic.com)
	Timeout     time.Duration
	MaxTokens   int     // Default: 4096
	Temperature float64 // Default: 1.0
	MaxRetries  int     // Default: 2; negative disables retries
}

// Client implements the LLMProvider interface for Anthropic's Claude API.
type Client struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient creates a new Anthropic client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.Model == "" {
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultAnthropicModel
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(config.Timeout),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client:      sdk.NewClient(opts...),
		model:       config.Model,
		maxTokens:   int64(config.MaxTokens),
		temperature: config.Temperature,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Claude and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []types.ToolSchema) (*types.LLMResponse, error) {
	params, nameMap, err := BuildParams(c.model, c.maxTokens, c.temperature, messages, tools)
	if err != nil {
		return nil, err
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages request failed: %w", err)
	}

	return ConvertResponse(message, nameMap), nil
}

// BuildParams converts a conversation and its tools to Messages API request
// parameters. The returned map restores tool names sanitized for the API and
// is passed to ConvertResponse.
func BuildParams(model string, maxTokens int64, temperature float64, messages []types.Message, tools []types.ToolSchema) (sdk.MessageNewParams, map[string]string, error) {
	systemPrompt, sdkMessages := convertMessages(messages)
	if len(sdkMessages) == 0 {
		return sdk.MessageNewParams{}, nil, ErrNoMessages
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		Messages:    sdkMessages,
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(temperature),
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	var nameMap map[string]string
	if len(tools) > 0 {
		var sdkTools []sdk.ToolParam
		sdkTools, nameMap = convertTools(tools)
		toolUnions := make([]sdk.ToolUnionParam, len(sdkTools))
		for i := range sdkTools {
			toolUnions[i] = sdk.ToolUnionParam{OfTool: &sdkTools[i]}
		}
		params.Tools = toolUnions
	}

	return params, nameMap, nil
}

// convertMessages converts conversation messages to the SDK format and
// returns the combined system prompt separately.
//
// The API requires the conversation to open with a user turn, every tool_use
// to be answered in the next user turn, and every tool_result to answer a
// tool_use from the turn before. History trimming can break these rules at
// the front of a conversation, so leading non-user turns and orphaned tool
// results are dropped. Consecutive tool messages are merged into one user
// turn.
func convertMessages(messages []types.Message) (string, []sdk.MessageParam) {
	var (
		systemPrompts []string
		sdkMessages   []sdk.MessageParam
		pendingIDs    map[string]bool // tool_use ids awaiting results
		toolResults   []sdk.ContentBlockParamUnion
	)

	flushResults := func() {
		if len(toolResults) > 0 {
			sdkMessages = append(sdkMessages, sdk.NewUserMessage(toolResults...))
			toolResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}

		case types.RoleUser:
			flushResults()
			pendingIDs = nil
			if msg.Content != "" {
				sdkMessages = append(sdkMessages, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
			}

		case types.RoleAssistant:
			flushResults()
			if len(sdkMessages) == 0 {
				// Cannot open with an assistant turn.
				pendingIDs = nil
				continue
			}

			var content []sdk.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, sdk.NewTextBlock(msg.Content))
			}
			pendingIDs = make(map[string]bool, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				var input interface{} = tc.Arguments
				if tc.Arguments == nil {
					input = map[string]interface{}{}
				}
				content = append(content, sdk.NewToolUseBlock(tc.ID, input, llm.SanitizeToolName(tc.Name)))
				pendingIDs[tc.ID] = true
			}
			if len(content) > 0 {
				sdkMessages = append(sdkMessages, sdk.NewAssistantMessage(content...))
			}

		case types.RoleTool:
			if !pendingIDs[msg.ToolCallID] {
				continue
			}
			delete(pendingIDs, msg.ToolCallID)
			isError := strings.HasPrefix(msg.Content, "Error: ")
			toolResults = append(toolResults, sdk.NewToolResultBlock(msg.ToolCallID, msg.Content, isError))
		}
	}
	flushResults()

	return strings.Join(systemPrompts, "\n\n"), sdkMessages
}

// convertTools converts tool schemas to the SDK format. Tool names are
// sanitized and the returned map restores the originals.
func convertTools(tools []types.ToolSchema) ([]sdk.ToolParam, map[string]string) {
	names := make([]string, 0, len(tools))
	sdkTools := make([]sdk.ToolParam, 0, len(tools))

	for _, tool := range tools {
		names = append(names, tool.Name)
		sdkTool := sdk.ToolParam{
			Name:        llm.SanitizeToolName(tool.Name),
			Description: sdk.String(tool.Description),
		}

		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}
		// Round-trip through JSON to get a proper sdk.ToolInputSchemaParam
		schemaJSON, _ := json.Marshal(schema)
		var inputSchema sdk.ToolInputSchemaParam
		_ = json.Unmarshal(schemaJSON, &inputSchema)
		sdkTool.InputSchema = inputSchema

		sdkTools = append(sdkTools, sdkTool)
	}

	return sdkTools, llm.BuildToolNameMap(names)
}

// ConvertResponse converts an SDK response to the provider-neutral format.
func ConvertResponse(message *sdk.Message, nameMap map[string]string) *types.LLMResponse {
	resp := &types.LLMResponse{
		StopReason: string(message.StopReason),
		Usage: types.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			var input map[string]interface{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &input)
			}
			if input == nil {
				input = map[string]interface{}{}
			}
			resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
				ID:        block.ID,
				Name:      llm.ReverseToolName(nameMap, block.Name),
				Arguments: input,
			})
		}
	}

	return resp
}
