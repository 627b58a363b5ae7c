package embedder

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/retry"
)

const (
	DefaultBatchSize      = 25
	DefaultMaxInputLength = 2048
	DefaultDimension      = 1536
)

var (
	ErrEmptyBatch        = errors.New("empty batch")
	ErrBatchTooLarge     = errors.New("batch exceeds maximum size")
	ErrInputTooLong      = errors.New("input exceeds maximum length")
	ErrCountMismatch     = errors.New("embedding count does not match input count")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// BatchError reports a batch the embedding service could not embed. The
// caller is expected to skip the batch rather than abort.
type BatchError struct {
	Size int
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("failed to embed batch of %d: %v", e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

type EmbedderConfig struct {
	BatchSize      int
	MaxInputLength int
	Dimension      int
	RateLimit      float64 // requests per second, 0 for unlimited
	Retry          retry.Policy
}

type BatchEmbedder struct {
	config  EmbedderConfig
	client  types.EmbeddingClient
	limiter *rate.Limiter
}

func NewWithConfig(client types.EmbeddingClient, config EmbedderConfig) *BatchEmbedder {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.MaxInputLength <= 0 {
		config.MaxInputLength = DefaultMaxInputLength
	}
	if config.Dimension <= 0 {
		config.Dimension = DefaultDimension
	}
	if config.Retry == nil {
		config.Retry = retry.None
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &BatchEmbedder{
		config:  config,
		client:  client,
		limiter: limiter,
	}
}

func (e *BatchEmbedder) BatchSize() int { return e.config.BatchSize }

func (e *BatchEmbedder) Dimension() int { return e.config.Dimension }

// Batches groups adjacent chunks from seq into slices of at most size
// chunks. Order is preserved and only the final batch may be short.
// Chunks are pulled from seq lazily, one batch at a time.
func Batches(seq iter.Seq[models.Chunk], size int) iter.Seq[[]models.Chunk] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return func(yield func([]models.Chunk) bool) {
		batch := make([]models.Chunk, 0, size)
		for c := range seq {
			batch = append(batch, c)
			if len(batch) == size {
				if !yield(batch) {
					return
				}
				batch = make([]models.Chunk, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}

func PrepareBatches(chunks []models.Chunk, size int) iter.Seq[[]models.Chunk] {
	return Batches(slices.Values(chunks), size)
}

// Embed makes one embedding call for the batch. Any failure is logged and
// returned as a *BatchError.
func (e *BatchEmbedder) Embed(ctx context.Context, batch []models.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := e.EmbedTexts(ctx, texts)
	if err != nil {
		log.Warn().Err(err).Int("size", len(batch)).Msg("embedding batch failed")
		return nil, &BatchError{Size: len(batch), Err: err}
	}
	return vectors, nil
}

// EmbedQuery embeds a single question.
func (e *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(texts) > e.config.BatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(texts), e.config.BatchSize)
	}
	for i, t := range texts {
		if len(t) > e.config.MaxInputLength {
			return nil, fmt.Errorf("%w: input %d has %d bytes", ErrInputTooLong, i, len(t))
		}
	}

	var vectors [][]float32
	err := retry.Do(ctx, e.config.Retry, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		vectors, err = e.client.CreateEmbedding(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.config.Dimension {
			return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensionMismatch, i, len(v), e.config.Dimension)
		}
	}

	return vectors, nil
}
