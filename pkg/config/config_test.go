package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "openai"
  base_url: "https://llm.example.com/v1"
  model: "qwen-turbo"
  max_tokens: 1000
  temperature: 0.5

embedding:
  provider: "openai"
  model: "text-embedding-v2"
  dimension: 1536
  batch_size: 10
  rate_limit: 4

store:
  driver: "memory"
  collection: "papers"
  top_k: 5

processor:
  mode: "structured"
  chunk_size: 1024
  chunk_overlap: 64
  markers:
    - "^Chapter \\d+"

ranking:
  profile: "cross-lingual"

retry:
  strategy: "exponential"
  attempts: 3
  delay: 2s
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "qwen-turbo", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 10, config.Embedding.BatchSize)
	assert.Equal(t, 2048, config.Embedding.MaxInputLength)
	assert.Equal(t, "papers", config.Store.Collection)
	assert.Equal(t, 5, config.Store.TopK)
	assert.Equal(t, "structured", config.Processor.Mode)
	assert.Equal(t, []string{`^Chapter \d+`}, config.Processor.Markers)
	assert.Equal(t, "cross-lingual", config.Ranking.Profile)
	assert.Equal(t, "exponential", config.Retry.Strategy)
	assert.Equal(t, 2*time.Second, config.Retry.Delay)
	assert.Empty(t, config.Validate())
}

func TestDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, 2048, config.Processor.ChunkSize)
	assert.Equal(t, 25, config.Embedding.BatchSize)
	assert.Equal(t, 1536, config.Embedding.Dimension)
	assert.Equal(t, 3, config.Store.TopK)
	assert.Equal(t, "native", config.Ranking.Profile)
	assert.Equal(t, "none", config.Retry.Strategy)
	assert.Equal(t, 1, config.Ingest.Workers)
	assert.Equal(t, 5, config.Translation.Workers)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		c.Store.Driver = "memory"
		return c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.LLM.Provider = "bogus"
				c.LLM.Temperature = 3.0
				c.Embedding.BatchSize = 0
				c.Store.Driver = "pgvector"
				c.Store.URL = ""
				c.Processor.ChunkOverlap = c.Processor.ChunkSize
				c.Ranking.Profile = "best"
			},
			errorMessages: []string{
				"llm.provider: unknown provider",
				"llm.temperature: temperature must be between 0 and 2",
				"embedding.batch_size: batch_size must be positive",
				"store.url: database URL is required",
				"processor.chunk_overlap: chunk_overlap must be non-negative",
				"ranking.profile: unknown profile",
			},
		},
		{
			name: "chunk larger than embedding input",
			mutate: func(c *Config) {
				c.Processor.ChunkSize = 4096
			},
			errorMessages: []string{
				"processor.chunk_size: chunk_size must not exceed embedding.max_input_length",
			},
		},
		{
			name: "bad marker pattern",
			mutate: func(c *Config) {
				c.Processor.Markers = []string{"(unclosed"}
			},
			errorMessages: []string{
				"processor.markers: invalid marker pattern",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("EMBEDDING_API_KEY", "sk-test")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
	assert.Equal(t, "sk-test", config.Embedding.APIKey)
}
