package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	Provider       string  `yaml:"provider"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	SecondaryModel string  `yaml:"secondary_model"`
	Dimension      int     `yaml:"dimension"`
	BatchSize      int     `yaml:"batch_size"`
	MaxInputLength int     `yaml:"max_input_length"`
	RateLimit      float64 `yaml:"rate_limit"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	TopK       int    `yaml:"top_k"`
}

type ProcessorConfig struct {
	Mode         string   `yaml:"mode"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Markers      []string `yaml:"markers"`
}

type WeightsConfig struct {
	Vector float64 `yaml:"vector"`
	TFIDF  float64 `yaml:"tfidf"`
	BM25   float64 `yaml:"bm25"`
}

type RankingConfig struct {
	Profile string         `yaml:"profile"`
	Weights *WeightsConfig `yaml:"weights,omitempty"`
}

type TranslationConfig struct {
	Language string `yaml:"language"`
	Workers  int    `yaml:"workers"`
}

type RetryConfig struct {
	Strategy string        `yaml:"strategy"`
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

type IngestConfig struct {
	Workers int `yaml:"workers"`
	StartID int `yaml:"start_id"`
	Topics  int `yaml:"topics"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Ingest         bool     `yaml:"ingest"`
	IngestRoot     string   `yaml:"ingest_root"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Store       StoreConfig       `yaml:"store"`
	Processor   ProcessorConfig   `yaml:"processor"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Translation TranslationConfig `yaml:"translation"`
	Retry       RetryConfig       `yaml:"retry"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/hybridrag/config.yaml"),
			"/etc/hybridrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "qwen2.5"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "openai"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "text-embedding-3-small"
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 1536
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 25
	}
	if config.Embedding.MaxInputLength == 0 {
		config.Embedding.MaxInputLength = 2048
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}

	if config.Store.Driver == "" {
		config.Store.Driver = "pgvector"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "default_collection"
	}
	if config.Store.TopK == 0 {
		config.Store.TopK = 3
	}

	if config.Processor.Mode == "" {
		config.Processor.Mode = "simple"
	}
	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 2048
	}

	if config.Ranking.Profile == "" {
		config.Ranking.Profile = "native"
	}

	if config.Translation.Language == "" {
		config.Translation.Language = "en"
	}
	if config.Translation.Workers == 0 {
		config.Translation.Workers = 5
	}

	if config.Retry.Strategy == "" {
		config.Retry.Strategy = "none"
	}
	if config.Retry.Attempts == 0 {
		config.Retry.Attempts = 1
	}
	if config.Retry.Delay == 0 {
		config.Retry.Delay = 500 * time.Millisecond
	}
	if config.Retry.MaxDelay == 0 {
		config.Retry.MaxDelay = 10 * time.Second
	}

	if config.Ingest.Workers == 0 {
		config.Ingest.Workers = 1
	}
	if config.Ingest.Topics == 0 {
		config.Ingest.Topics = 12
	}

	if config.Server.Addr == "" {
		config.Server.Addr = "localhost:8080"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
}
