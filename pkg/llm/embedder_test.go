package llm_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/hybridrag/pkg/llm"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: llm.ProviderOllama})
	require.NoError(t, err)
	assert.NotNil(t, emb)

	emb, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: llm.ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, emb)

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestCreateEmbedding(t *testing.T) {
	// Requires a running Ollama server with the embedding model pulled.
	url := os.Getenv("TEST_OLLAMA_URL")
	if url == "" {
		t.Skip("TEST_OLLAMA_URL not set")
	}

	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: llm.ProviderOllama, BaseURL: url})
	require.NoError(t, err)

	embeddings, err := emb.CreateEmbedding(context.Background(), []string{"This is the first chunk.", "And this is the second chunk."})
	require.NoError(t, err)

	require.Len(t, embeddings, 2)
	assert.Equal(t, len(embeddings[0]), len(embeddings[1]))
}

type fakeGenerator struct {
	mu      sync.Mutex
	fail    map[string]bool
	prompts int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts++
	f.mu.Unlock()

	text := prompt[strings.LastIndex(prompt, "\n")+1:]
	if f.fail[text] {
		return "", errors.New("translation service unavailable")
	}
	return strings.ToUpper(text), nil
}

func TestTranslator_TranslateAll(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]bool{"second": true}}
	tr := llm.NewTranslator(gen, 2)

	out := tr.TranslateAll(context.Background(), []string{"first", "second", "", "fourth"}, "en")

	assert.Equal(t, []string{"FIRST", "second", "", "FOURTH"}, out)
	assert.Equal(t, 3, gen.prompts, "empty texts are not sent")
}
