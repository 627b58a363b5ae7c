package llm

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

const DefaultTranslationWorkers = 5

type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Translator translates texts with the chat model, a bounded number at a
// time. A text that fails to translate is returned unchanged.
type Translator struct {
	gen     generator
	workers int
}

func NewTranslator(gen generator, workers int) *Translator {
	if workers <= 0 {
		workers = DefaultTranslationWorkers
	}
	return &Translator{gen: gen, workers: workers}
}

func (t *Translator) TranslateAll(ctx context.Context, texts []string, lang string) []string {
	out := make([]string, len(texts))

	g := new(errgroup.Group)
	g.SetLimit(t.workers)
	for i, text := range texts {
		g.Go(func() error {
			out[i] = t.translate(ctx, text, lang)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (t *Translator) translate(ctx context.Context, text, lang string) string {
	if text == "" {
		return text
	}
	translated, err := t.gen.Generate(ctx, TranslatePrompt(text, lang))
	if err != nil || translated == "" {
		log.Warn().Err(err).Str("text", preview(text, 30)).Msg("translation failed, keeping original")
		return text
	}
	return translated
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n]))
}
