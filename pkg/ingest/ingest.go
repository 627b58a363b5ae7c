// Package ingest turns a folder of documents into embedded records in a
// vector collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/embedder"
	"github.com/xhad/hybridrag/pkg/loader"
	"github.com/xhad/hybridrag/pkg/processor"
	"github.com/xhad/hybridrag/pkg/topics"
)

const (
	StageLoad  = "load"
	StageEmbed = "embed"
)

type Progress struct {
	Stage string
	Done  int
	Total int
	Item  string
}

type Unsupported struct {
	Path   string
	Reason string
}

// SkippedBatch records a batch whose embedding failed. Its ids were
// assigned and are not reused.
type SkippedBatch struct {
	Index   int
	FirstID int
	Size    int
	Err     error
}

type Summary struct {
	Collection     string
	Documents      int
	Unsupported    []Unsupported
	Topics         map[string][]string
	Chunks         int
	Batches        int
	Upserted       int
	SkippedBatches []SkippedBatch
	NextID         int
	Duration       time.Duration
}

// Complete reports whether every chunk reached the store.
func (s *Summary) Complete() bool {
	return len(s.SkippedBatches) == 0
}

type IngestorConfig struct {
	Workers    int
	StartID    int
	TopicCount int // 0 disables topic extraction
	OnProgress func(Progress)
}

type Ingestor struct {
	config    IngestorConfig
	loaders   *loader.Registry
	processor *processor.Processor
	embedder  *embedder.BatchEmbedder
	store     types.VectorStore
}

func NewWithConfig(config IngestorConfig, loaders *loader.Registry, proc *processor.Processor, emb *embedder.BatchEmbedder, vs types.VectorStore) *Ingestor {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.OnProgress == nil {
		config.OnProgress = func(Progress) {}
	}
	return &Ingestor{
		config:    config,
		loaders:   loaders,
		processor: proc,
		embedder:  emb,
		store:     vs,
	}
}

// WithProgress returns a copy of the ingestor reporting to fn.
func (in *Ingestor) WithProgress(fn func(Progress)) *Ingestor {
	cp := *in
	cp.config.OnProgress = fn
	if fn == nil {
		cp.config.OnProgress = func(Progress) {}
	}
	return &cp
}

// WithTopics returns a copy of the ingestor that extracts n topic words per
// document. n <= 0 disables extraction.
func (in *Ingestor) WithTopics(n int) *Ingestor {
	cp := *in
	cp.config.TopicCount = n
	return &cp
}

// IngestFolder loads every file directly inside folder, chunks and embeds
// the text and upserts it into collection. Unsupported files and failed
// embedding batches are recorded in the summary without stopping the run;
// store failures abort it.
func (in *Ingestor) IngestFolder(ctx context.Context, folder, collection string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Collection: collection}

	docs, err := in.loadFolder(ctx, folder, summary)
	if err != nil {
		return nil, err
	}

	chunks, err := in.processor.Process(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to process documents: %w", err)
	}

	if err := in.ingestChunks(ctx, collection, chunks, summary); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	log.Info().
		Str("collection", collection).
		Int("documents", summary.Documents).
		Int("chunks", summary.Chunks).
		Int("upserted", summary.Upserted).
		Int("skipped_batches", len(summary.SkippedBatches)).
		Dur("duration", summary.Duration).
		Msg("ingestion finished")

	return summary, nil
}

// IngestDocuments runs the pipeline on already loaded documents.
func (in *Ingestor) IngestDocuments(ctx context.Context, collection string, docs []models.Document) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Collection: collection, Documents: len(docs)}
	in.extractTopics(docs, summary)

	chunks, err := in.processor.Process(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to process documents: %w", err)
	}
	if err := in.ingestChunks(ctx, collection, chunks, summary); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func (in *Ingestor) loadFolder(ctx context.Context, folder string, summary *Summary) ([]models.Document, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(folder, e.Name()))
		}
	}

	var docs []models.Document
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := in.loaders.Load(ctx, path)
		in.config.OnProgress(Progress{Stage: StageLoad, Done: i + 1, Total: len(files), Item: filepath.Base(path)})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("file", path).Msg("skipping document")
			summary.Unsupported = append(summary.Unsupported, Unsupported{Path: path, Reason: err.Error()})
			continue
		}
		docs = append(docs, *doc)
	}

	summary.Documents = len(docs)
	in.extractTopics(docs, summary)
	return docs, nil
}

func (in *Ingestor) extractTopics(docs []models.Document, summary *Summary) {
	if in.config.TopicCount <= 0 {
		return
	}
	summary.Topics = make(map[string][]string, len(docs))
	for _, doc := range docs {
		summary.Topics[doc.ID] = topics.Extract(doc.Content, in.config.TopicCount)
	}
}

type job struct {
	index   int
	firstID int
	batch   []models.Chunk
}

func (in *Ingestor) ingestChunks(ctx context.Context, collection string, chunks []models.Chunk, summary *Summary) error {
	if _, err := in.store.Create(ctx, collection, in.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	coll, err := in.store.Get(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to get collection: %w", err)
	}

	size := in.embedder.BatchSize()
	total := (len(chunks) + size - 1) / size
	summary.Chunks = len(chunks)
	summary.Batches = total
	summary.NextID = in.config.StartID + len(chunks)

	var (
		mu   sync.Mutex
		done int
	)
	run := func(ctx context.Context, j job) error {
		upserted, skipped, err := in.ingestBatch(ctx, coll, j)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		summary.Upserted += upserted
		if skipped != nil {
			summary.SkippedBatches = append(summary.SkippedBatches, *skipped)
		}
		done++
		in.config.OnProgress(Progress{Stage: StageEmbed, Done: done, Total: total})
		return nil
	}

	// Ids are fixed before any batch is embedded so a skipped batch leaves
	// a gap instead of shifting later ids.
	jobs := func(yield func(job) bool) {
		next := in.config.StartID
		index := 0
		for batch := range embedder.PrepareBatches(chunks, size) {
			if !yield(job{index: index, firstID: next, batch: batch}) {
				return
			}
			next += len(batch)
			index++
		}
	}

	if in.config.Workers == 1 {
		for j := range jobs {
			if err := run(ctx, j); err != nil {
				return err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(in.config.Workers)
		for j := range jobs {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error { return run(gctx, j) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	slices.SortFunc(summary.SkippedBatches, func(a, b SkippedBatch) int { return a.Index - b.Index })
	return nil
}

func (in *Ingestor) ingestBatch(ctx context.Context, coll types.Collection, j job) (int, *SkippedBatch, error) {
	vectors, err := in.embedder.Embed(ctx, j.batch)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		var batchErr *embedder.BatchError
		if !errors.As(err, &batchErr) {
			return 0, nil, err
		}
		log.Warn().
			Err(err).
			Int("batch", j.index).
			Int("first_id", j.firstID).
			Int("size", len(j.batch)).
			Msg("skipping batch")
		return 0, &SkippedBatch{Index: j.index, FirstID: j.firstID, Size: len(j.batch), Err: err}, nil
	}

	records := make([]models.IndexedRecord, len(j.batch))
	for i, c := range j.batch {
		records[i] = models.IndexedRecord{
			ID:     strconv.Itoa(j.firstID + i),
			Vector: vectors[i],
			Raw:    c.Text,
		}
	}

	if err := coll.Upsert(ctx, records); err != nil {
		return 0, nil, fmt.Errorf("failed to upsert batch %d: %w", j.index, err)
	}
	return len(records), nil, nil
}
