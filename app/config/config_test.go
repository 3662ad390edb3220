package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
telegram:
  token: "123:abc"
agent:
  name: Morty
openai:
  decision:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
  reply:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "Morty", cfg.Agent.Name)
	assert.Equal(t, 20, cfg.Interest.HistorySize)
	assert.Equal(t, 5*time.Minute, cfg.Interest.DecayTime)
	assert.Equal(t, 0.3, cfg.Interest.SimilarityThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Interest.IdleTTL)
	assert.Equal(t, 64, cfg.Dispatch.QueueSize)
	assert.Equal(t, 16, cfg.Dispatch.MaxConcurrency)
	assert.Equal(t, "openai", cfg.Generator.Provider)
	assert.Equal(t, "file", cfg.Memory.Backend)
	assert.Equal(t, "data/memory.jsonl", cfg.Memory.Path)
	assert.Equal(t, 60, cfg.Telegram.PollTimeout)
	assert.False(t, cfg.OpenAI.Vision.Enabled())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + `
interest:
  history_size: 5
  decay_time: 90s
  similarity_threshold: 0.5
memory:
  backend: mcp
generator:
  provider: langchain
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Interest.HistorySize)
	assert.Equal(t, 90*time.Second, cfg.Interest.DecayTime)
	assert.Equal(t, 0.5, cfg.Interest.SimilarityThreshold)
	assert.Equal(t, "mcp", cfg.Memory.Backend)
	assert.Equal(t, "docker", cfg.Memory.MCP.Command)
	assert.Equal(t, "langchain", cfg.Generator.Provider)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing token",
			yaml: "agent:\n  name: Morty\n",
		},
		{
			name: "unknown backend",
			yaml: minimalConfig + "memory:\n  backend: redis\n",
		},
		{
			name: "threshold out of range",
			yaml: minimalConfig + "interest:\n  similarity_threshold: 1.5\n",
		},
		{
			name: "missing reply model",
			yaml: `
telegram:
  token: "123:abc"
agent:
  name: Morty
openai:
  decision:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
`,
		},
		{
			name: "broken yaml",
			yaml: "telegram: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv(pathEnv, t.TempDir()+"/missing.yaml")

	_, err := Load()
	assert.Error(t, err)
}
