package main

import (
	"context"
	"fmt"

	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/embedder"
	"github.com/xhad/hybridrag/pkg/ingest"
	"github.com/xhad/hybridrag/pkg/llm"
	"github.com/xhad/hybridrag/pkg/loader"
	"github.com/xhad/hybridrag/pkg/processor"
	"github.com/xhad/hybridrag/pkg/rag"
	"github.com/xhad/hybridrag/pkg/ranker"
	"github.com/xhad/hybridrag/pkg/retry"
	"github.com/xhad/hybridrag/pkg/session"
	"github.com/xhad/hybridrag/pkg/store"
)

// app holds the components shared by the subcommands.
type app struct {
	chat      *llm.ChatEngine
	store     types.VectorStore
	ranker    *ranker.Ranker
	retriever *rag.Retriever
	answerer  *rag.Answerer
	ingestor  *ingest.Ingestor
}

func newApp(ctx context.Context) (*app, error) {
	if err := store.ValidateName(cfg.Store.Collection); err != nil {
		return nil, err
	}

	policy, err := retry.FromConfig(cfg.Retry.Strategy, cfg.Retry.Attempts, cfg.Retry.Delay, cfg.Retry.MaxDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to build retry policy: %w", err)
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		SystemPrompt: llm.SystemPrompt,
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		Retry:        policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	client, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	emb := embedder.NewWithConfig(client, embedder.EmbedderConfig{
		BatchSize:      cfg.Embedding.BatchSize,
		MaxInputLength: cfg.Embedding.MaxInputLength,
		Dimension:      cfg.Embedding.Dimension,
		RateLimit:      cfg.Embedding.RateLimit,
		Retry:          policy,
	})

	rk, err := newRanker(chat)
	if err != nil {
		return nil, err
	}

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		Mode:         cfg.Processor.Mode,
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
		Markers:      cfg.Processor.Markers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	vs, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	retriever := rag.NewRetriever(emb, vs, rk, cfg.Store.TopK)

	return &app{
		chat:      chat,
		store:     vs,
		ranker:    rk,
		retriever: retriever,
		answerer:  rag.NewAnswerer(retriever, chat),
		ingestor: ingest.NewWithConfig(ingest.IngestorConfig{
			Workers: cfg.Ingest.Workers,
			StartID: cfg.Ingest.StartID,
		}, loader.NewRegistry(), proc, emb, vs),
	}, nil
}

func newRanker(chat *llm.ChatEngine) (*ranker.Ranker, error) {
	p, err := ranker.ProfileByName(cfg.Ranking.Profile)
	if err != nil {
		return nil, err
	}
	if w := cfg.Ranking.Weights; w != nil {
		p.Weights = ranker.Weights{Vector: w.Vector, TFIDF: w.TFIDF, BM25: w.BM25}
	}

	var opts []ranker.Option
	if p.CrossLingual {
		model := cfg.Embedding.SecondaryModel
		if model == "" {
			model = cfg.Embedding.Model
		}
		secondary, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
			Provider: cfg.Embedding.Provider,
			Model:    model,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize secondary embedding client: %w", err)
		}
		opts = append(opts,
			ranker.WithTranslator(llm.NewTranslator(chat, cfg.Translation.Workers)),
			ranker.WithSecondaryEmbedder(secondary),
		)
	}

	return ranker.NewWithConfig(ranker.RankerConfig{Profile: p, Language: cfg.Translation.Language}, opts...)
}

func (a *app) newSession() *session.Session {
	s := session.New(a.chat, a.answerer)
	// Name was validated in newApp.
	_ = s.SetCollection(cfg.Store.Collection)
	return s
}

func (a *app) Close() {
	a.store.Close()
}
