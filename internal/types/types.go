package types

import (
	"context"

	"github.com/xhad/hybridrag/internal/models"
)

// Core interfaces

// EmbeddingClient is satisfied by langchaingo's ollama and openai clients.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	Create(ctx context.Context, name string, dim int) (Collection, error)
	Get(ctx context.Context, name string) (Collection, error)
	Close()
}

type Collection interface {
	Name() string
	Upsert(ctx context.Context, records []models.IndexedRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]models.Candidate, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, messages []models.Message) (models.Message, error)
}

type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

type Translator interface {
	TranslateAll(ctx context.Context, texts []string, lang string) []string
}
