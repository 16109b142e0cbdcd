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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the data dir at an empty temp dir and clears API key env.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(DataDirEnv, dir)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Streaming.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Streaming.KeepAlive)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 50, cfg.Agent.MaxHistory)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "us-west-2", cfg.LLM.BedrockRegion)
	assert.NotEmpty(t, cfg.LLM.BedrockModelID)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileFromDataDir(t *testing.T) {
	dir := isolate(t)
	yaml := `
server:
  port: 9000
streaming:
  timeout: 30s
agent:
  max_iterations: 3
  tools_file: /etc/skyloom/tools.yaml
llm:
  provider: mock
logging:
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skyloom.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Streaming.Timeout)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, "/etc/skyloom/tools.yaml", cfg.Agent.ToolsFile)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 50, cfg.Agent.MaxHistory, "unset keys keep defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("SKYLOOM_SERVER_PORT", "9100")
	t.Setenv("SKYLOOM_LLM_API_KEY", "sk-test")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoad_AnthropicKeyFallback(t *testing.T) {
	isolate(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(viper.New(), path)
	assert.ErrorContains(t, err, "error reading config file")
}

func bedrock(region, model string) func(*Config) {
	return func(c *Config) {
		c.LLM.Provider = "bedrock"
		c.LLM.BedrockRegion = region
		c.LLM.BedrockModelID = model
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 8765},
			Streaming: StreamingConfig{Timeout: time.Minute},
			Agent:     AgentConfig{MaxIterations: 5, MaxHistory: 50},
			LLM:       LLMConfig{Provider: "mock"},
			Logging:   LoggingConfig{Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid port"},
		{name: "timeout", mutate: func(c *Config) { c.Streaming.Timeout = 0 }, wantErr: "streaming.timeout"},
		{name: "keep alive", mutate: func(c *Config) { c.Streaming.KeepAlive = -time.Second }, wantErr: "streaming.keep_alive"},
		{name: "iterations", mutate: func(c *Config) { c.Agent.MaxIterations = 0 }, wantErr: "agent.max_iterations"},
		{name: "history", mutate: func(c *Config) { c.Agent.MaxHistory = 0 }, wantErr: "agent.max_history"},
		{name: "anthropic without key", mutate: func(c *Config) { c.LLM.Provider = "anthropic" }, wantErr: "API key is required"},
		{name: "anthropic with key", mutate: func(c *Config) { c.LLM.Provider = "anthropic"; c.LLM.APIKey = "k" }},
		{name: "bedrock defaults", mutate: bedrock("us-west-2", "us.anthropic.claude-test-v1:0")},
		{name: "bedrock without region", mutate: bedrock("", "us.anthropic.claude-test-v1:0"), wantErr: "llm.bedrock_region"},
		{name: "bedrock without model", mutate: bedrock("us-west-2", ""), wantErr: "llm.bedrock_model_id"},
		{name: "bedrock half a key pair", mutate: func(c *Config) {
			bedrock("us-west-2", "m")(c)
			c.LLM.BedrockAccessKeyID = "AKIDTEST"
		}, wantErr: "must be set together"},
		{name: "empty provider", mutate: func(c *Config) { c.LLM.Provider = "" }, wantErr: "llm.provider is required"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "ollama" }, wantErr: "unsupported LLM provider"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "unsupported logging format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
