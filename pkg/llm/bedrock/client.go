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
// Package bedrock implements types.LLMProvider for Claude models hosted on
// AWS Bedrock. Requests go through the Anthropic SDK's Bedrock transport,
// which signs them with SigV4 credentials from the AWS SDK.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	sdkbedrock "github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/teradata-labs/skyloom/pkg/llm/anthropic"
	"github.com/teradata-labs/skyloom/pkg/types"
)

const (
	// DefaultBedrockModelID is the default cross-region inference profile
	DefaultBedrockModelID = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	// DefaultBedrockRegion is the default AWS region
	DefaultBedrockRegion = "us-west-2"
)

// ErrPartialCredentials is returned when only one half of a static key pair is set.
var ErrPartialCredentials = errors.New("bedrock access key id and secret access key must be set together")

// Config holds configuration for the Bedrock client.
type Config struct {
	Region  string // Default: AWS_REGION, AWS_DEFAULT_REGION, then us-west-2
	ModelID string // Default: AWS_BEDROCK_MODEL_ID, then DefaultBedrockModelID

	// Static credentials take precedence over Profile. With neither set the
	// default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string

	// BaseURL overrides the regional bedrock-runtime endpoint (VPC endpoints, tests)
	BaseURL string

	Timeout     time.Duration
	MaxTokens   int     // Default: 4096
	Temperature float64 // Default: 1.0
	MaxRetries  int     // Default: 2; negative disables retries
}

// Client implements the LLMProvider interface for Claude on Bedrock.
type Client struct {
	client      sdk.Client
	modelID     string
	region      string
	maxTokens   int64
	temperature float64
}

// NewClient creates a new Bedrock client. AWS configuration is resolved once,
// here; credentials are fetched lazily on the first request.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = firstNonEmpty(os.Getenv("AWS_BEDROCK_MODEL_ID"), DefaultBedrockModelID)
	}
	if cfg.Region == "" {
		cfg.Region = firstNonEmpty(os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION"), DefaultBedrockRegion)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = anthropic.DefaultTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = anthropic.DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = anthropic.DefaultTemperature
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = anthropic.DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, ErrPartialCredentials
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	switch {
	case cfg.AccessKeyID != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	case cfg.Profile != "":
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newClient(awsCfg, cfg), nil
}

func newClient(awsCfg aws.Config, cfg Config) *Client {
	opts := []option.RequestOption{
		sdkbedrock.WithConfig(awsCfg),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      sdk.NewClient(opts...),
		modelID:     cfg.ModelID,
		region:      awsCfg.Region,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "bedrock"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.modelID
}

// Region returns the AWS region requests are sent to.
func (c *Client) Region() string {
	return c.region
}

// Chat sends a conversation to Bedrock and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []types.ToolSchema) (*types.LLMResponse, error) {
	params, nameMap, err := anthropic.BuildParams(c.modelID, c.maxTokens, c.temperature, messages, tools)
	if err != nil {
		return nil, err
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed (region %s): %w", c.region, err)
	}

	return anthropic.ConvertResponse(message, nameMap), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
