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

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override (SKYLOOM_SERVER_PORT).
	EnvPrefix = "SKYLOOM"
	// DefaultConfigFileName is the config file name without extension.
	DefaultConfigFileName = "skyloom"
)

// Config holds all configuration for the gateway.
// Priority: flags > env vars > config file > defaults
type Config struct {
	// DataDir is computed from SKYLOOM_DATA_DIR and never read from file.
	DataDir string `mapstructure:"-"`

	Server    ServerConfig    `mapstructure:"server"`
	Streaming StreamingConfig `mapstructure:"streaming"`
	Agent     AgentConfig     `mapstructure:"agent"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`        // default ["*"]
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"` // default 10s
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`    // default 30s
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StreamingConfig bounds streaming invocations.
type StreamingConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`    // default 5m
	KeepAlive time.Duration `mapstructure:"keep_alive"` // default 15s, 0 disables
}

// AgentConfig holds the tool-calling loop settings.
type AgentConfig struct {
	MaxIterations int    `mapstructure:"max_iterations"`
	MaxHistory    int    `mapstructure:"max_history"`
	SystemPrompt  string `mapstructure:"system_prompt"`

	// ToolsFile is a YAML tool catalog (optional)
	ToolsFile string `mapstructure:"tools_file"`

	// WatchTools reloads ToolsFile when it changes on disk
	WatchTools bool `mapstructure:"watch_tools"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // anthropic, bedrock, mock
	APIKey      string        `mapstructure:"api_key"`  // from env or flag only
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`

	// AWS Bedrock configuration. Credentials fall back to the default AWS
	// chain (environment, shared config, instance role) when unset.
	BedrockRegion          string `mapstructure:"bedrock_region"`
	BedrockModelID         string `mapstructure:"bedrock_model_id"`
	BedrockProfile         string `mapstructure:"bedrock_profile"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id"`
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key"`
	BedrockSessionToken    string `mapstructure:"bedrock_session_token"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
	File   string `mapstructure:"file"`   // optional, defaults to stderr
}

// SetDefaults registers every key with its default. Keys must be known to v
// for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Streaming defaults
	v.SetDefault("streaming.timeout", 5*time.Minute)
	v.SetDefault("streaming.keep_alive", 15*time.Second)

	// Agent defaults
	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("agent.max_history", 50)
	v.SetDefault("agent.system_prompt", "You are a helpful assistant. Use the available tools when they help answer the user.")
	v.SetDefault("agent.tools_file", "")
	v.SetDefault("agent.watch_tools", false)

	// LLM defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.bedrock_region", "us-west-2")
	v.SetDefault("llm.bedrock_model_id", "us.anthropic.claude-sonnet-4-5-20250929-v1:0")
	v.SetDefault("llm.bedrock_profile", "")
	v.SetDefault("llm.bedrock_access_key_id", "")
	v.SetDefault("llm.bedrock_secret_access_key", "")
	v.SetDefault("llm.bedrock_session_token", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// Load reads configuration into v and unmarshals it. cfgFile overrides the
// search path (data dir, then the working directory). A missing config file
// is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DataDir())
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = DataDir()

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &cfg, nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Streaming.Timeout <= 0 {
		return fmt.Errorf("streaming.timeout must be positive, got %s", c.Streaming.Timeout)
	}
	if c.Streaming.KeepAlive < 0 {
		return fmt.Errorf("streaming.keep_alive must not be negative, got %s", c.Streaming.KeepAlive)
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxHistory < 1 {
		return fmt.Errorf("agent.max_history must be at least 1, got %d", c.Agent.MaxHistory)
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("anthropic API key is required (set SKYLOOM_LLM_API_KEY or ANTHROPIC_API_KEY)")
		}
	case "bedrock":
		if c.LLM.BedrockRegion == "" {
			return fmt.Errorf("llm.bedrock_region is required for the bedrock provider")
		}
		if c.LLM.BedrockModelID == "" {
			return fmt.Errorf("llm.bedrock_model_id is required for the bedrock provider")
		}
		if (c.LLM.BedrockAccessKeyID == "") != (c.LLM.BedrockSecretAccessKey == "") {
			return fmt.Errorf("llm.bedrock_access_key_id and llm.bedrock_secret_access_key must be set together")
		}
	case "mock":
	case "":
		return fmt.Errorf("llm.provider is required")
	default:
		return fmt.Errorf("unsupported LLM provider: %s (must be anthropic, bedrock or mock)", c.LLM.Provider)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "console", "json":
	default:
		return fmt.Errorf("unsupported logging format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}
