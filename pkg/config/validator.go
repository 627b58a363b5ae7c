package config

import (
	"fmt"
	"net/url"
	"regexp"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// LLM
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Embedding
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q", c.Embedding.Provider),
		})
	}

	if c.Embedding.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimension",
			Message: "dimension must be positive",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedding.MaxInputLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.max_input_length",
			Message: "max_input_length must be positive",
		})
	}

	if c.Embedding.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	// Store
	switch c.Store.Driver {
	case "memory":
	case "pgvector":
		if c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "database URL is required for the pgvector driver",
			})
		} else if _, err := url.Parse(c.Store.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.driver",
			Message: fmt.Sprintf("unknown driver %q", c.Store.Driver),
		})
	}

	if c.Store.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.top_k",
			Message: "top_k must be positive",
		})
	}

	// Processor
	switch c.Processor.Mode {
	case "simple", "structured":
	default:
		errors = append(errors, ValidationError{
			Field:   "processor.mode",
			Message: fmt.Sprintf("unknown mode %q", c.Processor.Mode),
		})
	}

	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	} else if c.Processor.ChunkSize > c.Embedding.MaxInputLength {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must not exceed embedding.max_input_length",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	for _, m := range c.Processor.Markers {
		if _, err := regexp.Compile(m); err != nil {
			errors = append(errors, ValidationError{
				Field:   "processor.markers",
				Message: fmt.Sprintf("invalid marker pattern %q", m),
			})
		}
	}

	// Ranking
	switch c.Ranking.Profile {
	case "native", "cross-lingual":
	default:
		errors = append(errors, ValidationError{
			Field:   "ranking.profile",
			Message: fmt.Sprintf("unknown profile %q", c.Ranking.Profile),
		})
	}

	if w := c.Ranking.Weights; w != nil && (w.Vector < 0 || w.TFIDF < 0 || w.BM25 < 0) {
		errors = append(errors, ValidationError{
			Field:   "ranking.weights",
			Message: "weights must not be negative",
		})
	}

	if c.Translation.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "translation.workers",
			Message: "workers must be positive",
		})
	}

	// Retry
	switch c.Retry.Strategy {
	case "none", "fixed", "exponential":
	default:
		errors = append(errors, ValidationError{
			Field:   "retry.strategy",
			Message: fmt.Sprintf("unknown strategy %q", c.Retry.Strategy),
		})
	}

	if c.Retry.Attempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.attempts",
			Message: "attempts must be positive",
		})
	}

	if c.Ingest.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.workers",
			Message: "workers must be positive",
		})
	}

	if c.Ingest.StartID < 0 {
		errors = append(errors, ValidationError{
			Field:   "ingest.start_id",
			Message: "start_id must not be negative",
		})
	}

	return errors
}
