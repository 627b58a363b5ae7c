package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/embedder"
	"github.com/xhad/hybridrag/pkg/ingest"
	"github.com/xhad/hybridrag/pkg/loader"
	"github.com/xhad/hybridrag/pkg/processor"
	"github.com/xhad/hybridrag/pkg/store"
)

const dim = 4

// failingClient fails every request whose first text starts with prefix.
type failingClient struct {
	mu     sync.Mutex
	prefix string
	calls  int
}

func (f *failingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.prefix != "" && strings.HasPrefix(texts[0], f.prefix) {
		return nil, errors.New("embedding service returned 503")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(t[0]), 1, 0, 0}
	}
	return out, nil
}

type failingStore struct {
	types.VectorStore
	getErr error
}

func (f failingStore) Get(ctx context.Context, name string) (types.Collection, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.VectorStore.Get(ctx, name)
}

func setup(t *testing.T, client types.EmbeddingClient, vs types.VectorStore, config ingest.IngestorConfig) *ingest.Ingestor {
	t.Helper()
	proc, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 10})
	require.NoError(t, err)
	emb := embedder.NewWithConfig(client, embedder.EmbedderConfig{BatchSize: 2, Dimension: dim})
	return ingest.NewWithConfig(config, loader.NewRegistry(), proc, emb, vs)
}

// folder holds one document that splits into six 10-byte chunks, i.e.
// three batches of two, plus files the loaders cannot use.
func folder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 10) +
		strings.Repeat("d", 10) + strings.Repeat("e", 10) + strings.Repeat("f", 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.txt"), []byte("   "), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	return dir
}

func storedIDs(t *testing.T, vs types.VectorStore, collection string) []string {
	t.Helper()
	coll, err := vs.Get(context.Background(), collection)
	require.NoError(t, err)
	hits, err := coll.Query(context.Background(), []float32{1, 1, 0, 0}, 100)
	require.NoError(t, err)

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	slices.Sort(ids)
	return ids
}

func TestIngestFolder(t *testing.T) {
	vs := store.NewMemoryStore()
	var progress []ingest.Progress
	in := setup(t, &failingClient{}, vs, ingest.IngestorConfig{
		TopicCount: 3,
		OnProgress: func(p ingest.Progress) { progress = append(progress, p) },
	})

	summary, err := in.IngestFolder(context.Background(), folder(t), "docs")

	require.NoError(t, err)
	assert.True(t, summary.Complete())
	assert.Equal(t, 1, summary.Documents)
	assert.Len(t, summary.Unsupported, 2)
	assert.Equal(t, 6, summary.Chunks)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 6, summary.Upserted)
	assert.Equal(t, 6, summary.NextID)
	assert.Contains(t, summary.Topics, "doc.txt")
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5"}, storedIDs(t, vs, "docs"))

	last := progress[len(progress)-1]
	assert.Equal(t, ingest.Progress{Stage: ingest.StageEmbed, Done: 3, Total: 3}, last)
}

func TestIngestFolder_FailedBatchLeavesGap(t *testing.T) {
	for _, workers := range []int{1, 3} {
		vs := store.NewMemoryStore()
		client := &failingClient{prefix: "c"}
		in := setup(t, client, vs, ingest.IngestorConfig{Workers: workers})

		summary, err := in.IngestFolder(context.Background(), folder(t), "docs")

		require.NoError(t, err, "workers=%d", workers)
		assert.False(t, summary.Complete())
		assert.Equal(t, 4, summary.Upserted)
		require.Len(t, summary.SkippedBatches, 1)
		skipped := summary.SkippedBatches[0]
		assert.Equal(t, 1, skipped.Index)
		assert.Equal(t, 2, skipped.FirstID)
		assert.Equal(t, 2, skipped.Size)
		assert.ErrorContains(t, skipped.Err, "503")
		assert.Equal(t, []string{"0", "1", "4", "5"}, storedIDs(t, vs, "docs"))
		assert.Equal(t, 3, client.calls, "no retry by default")
	}
}

func TestIngestFolder_StartID(t *testing.T) {
	vs := store.NewMemoryStore()
	in := setup(t, &failingClient{}, vs, ingest.IngestorConfig{StartID: 100})

	summary, err := in.IngestFolder(context.Background(), folder(t), "docs")

	require.NoError(t, err)
	assert.Equal(t, 106, summary.NextID)
	assert.Contains(t, storedIDs(t, vs, "docs"), "105")
}

func TestIngestFolder_StoreFailureIsFatal(t *testing.T) {
	vs := failingStore{VectorStore: store.NewMemoryStore(), getErr: errors.New("connection refused")}
	in := setup(t, &failingClient{}, vs, ingest.IngestorConfig{})

	_, err := in.IngestFolder(context.Background(), folder(t), "docs")

	assert.ErrorContains(t, err, "connection refused")
}

func TestIngestFolder_DimensionConflictIsFatal(t *testing.T) {
	vs := store.NewMemoryStore()
	_, err := vs.Create(context.Background(), "docs", dim+1)
	require.NoError(t, err)
	in := setup(t, &failingClient{}, vs, ingest.IngestorConfig{})

	_, err = in.IngestFolder(context.Background(), folder(t), "docs")

	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestIngestFolder_MissingFolder(t *testing.T) {
	in := setup(t, &failingClient{}, store.NewMemoryStore(), ingest.IngestorConfig{})

	_, err := in.IngestFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), "docs")

	assert.Error(t, err)
}

func TestIngestDocuments(t *testing.T) {
	vs := store.NewMemoryStore()
	in := setup(t, &failingClient{}, vs, ingest.IngestorConfig{})

	summary, err := in.IngestDocuments(context.Background(), "notes", []models.Document{
		{ID: "n1", Content: "short note"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Upserted)
	assert.Equal(t, []string{"0"}, storedIDs(t, vs, "notes"))
}

func TestWithTopicsAndProgress(t *testing.T) {
	base := setup(t, &failingClient{}, store.NewMemoryStore(), ingest.IngestorConfig{})
	var stages []string
	in := base.WithTopics(2).WithProgress(func(p ingest.Progress) {
		if len(stages) == 0 || stages[len(stages)-1] != p.Stage {
			stages = append(stages, p.Stage)
		}
	})

	summary, err := in.IngestFolder(context.Background(), folder(t), "docs")

	require.NoError(t, err)
	assert.Len(t, summary.Topics["doc.txt"], 1, "the single long word is the only topic")
	assert.Equal(t, []string{ingest.StageLoad, ingest.StageEmbed}, stages)

	plain, err := base.IngestFolder(context.Background(), folder(t), "other")
	require.NoError(t, err)
	assert.Nil(t, plain.Topics, "copies do not change the original")
}

func TestIngestFolder_StructuredOverlapFitsEmbedder(t *testing.T) {
	const limit = 256
	dir := t.TempDir()
	var sections []string
	for i := range 10 {
		sections = append(sections, "## Section "+strconv.Itoa(i)+"\n"+strings.Repeat("word ", 48))
	}
	sections = append(sections, "## Appendix\n"+strings.Repeat("long ", 120))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.txt"), []byte(strings.Join(sections, "\n")), 0o644))

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		Mode:         processor.ModeStructured,
		ChunkSize:    limit,
		ChunkOverlap: 25,
	})
	require.NoError(t, err)
	emb := embedder.NewWithConfig(&failingClient{}, embedder.EmbedderConfig{
		BatchSize:      2,
		Dimension:      dim,
		MaxInputLength: limit,
	})
	in := ingest.NewWithConfig(ingest.IngestorConfig{}, loader.NewRegistry(), proc, emb, store.NewMemoryStore())

	summary, err := in.IngestFolder(context.Background(), dir, "docs")

	require.NoError(t, err)
	assert.Empty(t, summary.SkippedBatches)
	assert.Greater(t, summary.Chunks, 10)
	assert.Equal(t, summary.Chunks, summary.Upserted)
}
