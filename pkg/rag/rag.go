// Package rag answers questions from the contents of a vector collection.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/llm"
	"github.com/xhad/hybridrag/pkg/ranker"
	"github.com/xhad/hybridrag/pkg/store"
)

// ErrNoMatch means the collection returned nothing to ground an answer on.
var ErrNoMatch = errors.New("no matching context found")

type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Retriever struct {
	embedder queryEmbedder
	store    types.VectorStore
	ranker   *ranker.Ranker
	topK     int
}

func NewRetriever(emb queryEmbedder, vs types.VectorStore, r *ranker.Ranker, topK int) *Retriever {
	if topK <= 0 {
		topK = store.DefaultTopK
	}
	return &Retriever{embedder: emb, store: vs, ranker: r, topK: topK}
}

// Retrieve fetches the top-k candidates for question and returns the one
// the hybrid ranker prefers.
func (r *Retriever) Retrieve(ctx context.Context, collection, question string) (*models.RankedResult, error) {
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	coll, err := r.store.Get(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	candidates, err := coll.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	best, err := r.ranker.Rank(ctx, question, candidates)
	if errors.Is(err, ranker.ErrNoCandidates) {
		return nil, fmt.Errorf("%w in collection %s", ErrNoMatch, collection)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}
	return best, nil
}

type Answerer struct {
	retriever *Retriever
	generator types.Generator
}

func NewAnswerer(retriever *Retriever, gen types.Generator) *Answerer {
	return &Answerer{retriever: retriever, generator: gen}
}

// Answer grounds the question in the best matching chunk and asks the
// model to answer it.
func (a *Answerer) Answer(ctx context.Context, collection, question string) (string, error) {
	best, err := a.retriever.Retrieve(ctx, collection, question)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("collection", collection).
		Str("id", best.Candidate.ID).
		Float64("combined", best.Combined).
		Msg("answering from best match")

	return a.generator.Generate(ctx, llm.AnswerPrompt(best.Candidate.Raw, question))
}
