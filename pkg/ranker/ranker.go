package ranker

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
)

var ErrNoCandidates = errors.New("no candidates to rank")

type Weights struct {
	Vector float64
	TFIDF  float64
	BM25   float64
}

// Profile selects the weights and where the vector signal comes from.
type Profile struct {
	Name         string
	Weights      Weights
	CrossLingual bool
}

var (
	// NativeProfile trusts the store similarity; lexical signals break near ties.
	NativeProfile = Profile{
		Name:    "native",
		Weights: Weights{Vector: 0.9, TFIDF: 0.05, BM25: 0.05},
	}

	// CrossLingualProfile translates question and candidates first and
	// recomputes vector similarity from a secondary embedding model.
	CrossLingualProfile = Profile{
		Name:         "cross-lingual",
		Weights:      Weights{Vector: 0.4, TFIDF: 0.3, BM25: 0.3},
		CrossLingual: true,
	}
)

func ProfileByName(name string) (Profile, error) {
	switch name {
	case "", NativeProfile.Name:
		return NativeProfile, nil
	case CrossLingualProfile.Name:
		return CrossLingualProfile, nil
	default:
		return Profile{}, fmt.Errorf("unknown ranking profile %q", name)
	}
}

// Combine returns w.Vector*v + w.TFIDF*t + w.BM25*b per position. The
// three slices must have equal length.
func Combine(vector, tfidf, bm25 []float64, w Weights) []float64 {
	combined := make([]float64, len(vector))
	for i := range vector {
		combined[i] = w.Vector*vector[i] + w.TFIDF*tfidf[i] + w.BM25*bm25[i]
	}
	return combined
}

// Select returns the index of the highest score, the first one on ties,
// or -1 for an empty slice.
func Select(scores []float64) int {
	best := -1
	for i, s := range scores {
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}

// Scores holds each signal per candidate, in candidate order.
type Scores struct {
	Vector   []float64
	TFIDF    []float64
	BM25     []float64
	Combined []float64
}

type RankerConfig struct {
	Profile  Profile
	Language string
}

type Option func(*Ranker)

func WithTranslator(t types.Translator) Option {
	return func(r *Ranker) { r.translator = t }
}

// WithSecondaryEmbedder sets the client used for the cross-lingual vector
// signal.
func WithSecondaryEmbedder(c types.EmbeddingClient) Option {
	return func(r *Ranker) { r.secondary = c }
}

type Ranker struct {
	config     RankerConfig
	translator types.Translator
	secondary  types.EmbeddingClient
}

func NewWithConfig(config RankerConfig, opts ...Option) (*Ranker, error) {
	if config.Profile.Name == "" {
		config.Profile = NativeProfile
	}
	if config.Language == "" {
		config.Language = "en"
	}

	r := &Ranker{config: config}
	for _, opt := range opts {
		opt(r)
	}

	if config.Profile.CrossLingual && (r.translator == nil || r.secondary == nil) {
		return nil, fmt.Errorf("profile %s requires a translator and a secondary embedder", config.Profile.Name)
	}
	return r, nil
}

func (r *Ranker) Profile() Profile { return r.config.Profile }

// Rank scores the candidates and returns the best one. The returned
// candidate keeps its original text even when ranking used translations.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []models.Candidate) (*models.RankedResult, error) {
	scores, err := r.Score(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	best := Select(scores.Combined)
	result := &models.RankedResult{
		Index:     best,
		Candidate: candidates[best],
		Vector:    scores.Vector[best],
		TFIDF:     scores.TFIDF[best],
		BM25:      scores.BM25[best],
		Combined:  scores.Combined[best],
	}

	log.Debug().
		Str("profile", r.config.Profile.Name).
		Int("candidates", len(candidates)).
		Int("index", best).
		Float64("combined", result.Combined).
		Msg("ranked candidates")

	return result, nil
}

// Score computes every signal for the candidates. Signals are independent
// and run concurrently over the same read-only inputs.
func (r *Ranker) Score(ctx context.Context, query string, candidates []models.Candidate) (*Scores, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Raw
	}

	if r.config.Profile.CrossLingual {
		translated := r.translator.TranslateAll(ctx, append(docs[:len(docs):len(docs)], query), r.config.Language)
		docs, query = translated[:len(docs)], translated[len(docs)]
	}

	scores := &Scores{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if !r.config.Profile.CrossLingual {
			scores.Vector = make([]float64, len(candidates))
			for i, c := range candidates {
				scores.Vector[i] = c.Score
			}
			return nil
		}
		v, err := r.secondarySimilarities(ctx, query, docs)
		if err != nil {
			return err
		}
		scores.Vector = v
		return nil
	})
	g.Go(func() error {
		scores.TFIDF = TFIDFSimilarities(query, docs)
		return nil
	})
	g.Go(func() error {
		scores.BM25 = BM25Scores(query, docs)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores.Combined = Combine(scores.Vector, scores.TFIDF, scores.BM25, r.config.Profile.Weights)
	return scores, nil
}

func (r *Ranker) secondarySimilarities(ctx context.Context, query string, docs []string) ([]float64, error) {
	texts := append(docs[:len(docs):len(docs)], query)
	vectors, err := r.secondary.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create secondary embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("secondary embeddings: got %d vectors, want %d", len(vectors), len(texts))
	}

	q := vectors[len(docs)]
	sims := make([]float64, len(docs))
	for i := range docs {
		sims[i] = Cosine(q, vectors[i])
	}
	return sims, nil
}
