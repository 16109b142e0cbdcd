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
// Package factory creates LLM providers from configuration.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/skyloom/pkg/llm/anthropic"
	"github.com/teradata-labs/skyloom/pkg/llm/bedrock"
	"github.com/teradata-labs/skyloom/pkg/llm/mock"
	"github.com/teradata-labs/skyloom/pkg/types"
)

// Provider names accepted by CreateProvider.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderMock      = "mock"
)

// ProviderFactory creates LLM providers dynamically based on configuration.
type ProviderFactory struct {
	config FactoryConfig
}

// FactoryConfig holds configuration for creating LLM providers.
type FactoryConfig struct {
	// Default provider to use
	DefaultProvider string
	DefaultModel    string

	// Anthropic configuration
	AnthropicAPIKey  string
	AnthropicBaseURL string

	// Bedrock configuration
	BedrockRegion          string
	BedrockModelID         string
	BedrockProfile         string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string

	// Common settings
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.DefaultProvider == "" {
		config.DefaultProvider = ProviderAnthropic
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = anthropic.DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = anthropic.DefaultTemperature
	}
	if config.Timeout == 0 {
		config.Timeout = anthropic.DefaultTimeout
	}
	return &ProviderFactory{config: config}
}

// CreateProvider creates an LLM provider for the specified provider type and
// model. Empty arguments fall back to the configured defaults.
func (f *ProviderFactory) CreateProvider(provider, model string) (types.LLMProvider, error) {
	if provider == "" {
		provider = f.config.DefaultProvider
	}
	if model == "" {
		model = f.config.DefaultModel
	}

	switch provider {
	case ProviderAnthropic:
		client, err := anthropic.NewClient(anthropic.Config{
			APIKey:      f.config.AnthropicAPIKey,
			Model:       model,
			BaseURL:     f.config.AnthropicBaseURL,
			Timeout:     f.config.Timeout,
			MaxTokens:   f.config.MaxTokens,
			Temperature: f.config.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("create anthropic provider: %w", err)
		}
		return client, nil
	case ProviderBedrock:
		return f.createBedrockProvider(model)
	case ProviderMock:
		return mock.NewEcho(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// createBedrockProvider prefers BedrockModelID over the shared default model,
// whose Anthropic API name is not a valid Bedrock model id.
func (f *ProviderFactory) createBedrockProvider(model string) (types.LLMProvider, error) {
	if model == "" || model == f.config.DefaultModel {
		if f.config.BedrockModelID != "" {
			model = f.config.BedrockModelID
		}
	}

	client, err := bedrock.NewClient(context.Background(), bedrock.Config{
		Region:          f.config.BedrockRegion,
		ModelID:         model,
		Profile:         f.config.BedrockProfile,
		AccessKeyID:     f.config.BedrockAccessKeyID,
		SecretAccessKey: f.config.BedrockSecretAccessKey,
		SessionToken:    f.config.BedrockSessionToken,
		Timeout:         f.config.Timeout,
		MaxTokens:       f.config.MaxTokens,
		Temperature:     f.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create bedrock provider: %w", err)
	}
	return client, nil
}

// IsProviderAvailable checks if a provider is available (credentials/config present).
func (f *ProviderFactory) IsProviderAvailable(provider string) bool {
	_, err := f.CreateProvider(provider, "")
	return err == nil
}
