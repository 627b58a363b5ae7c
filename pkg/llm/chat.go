package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/pkg/retry"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaURL = "http://localhost:11434"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider     string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	BaseURL      string // Ollama server or OpenAI-compatible endpoint
	APIKey       string
	Retry        retry.Policy
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "qwen2.5"
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = DefaultOllamaURL
		}
		model, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(config.Model), openai.WithToken(config.APIKey)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(model, config)
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Retry == nil {
		config.Retry = retry.None
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// Generate answers a single prompt.
func (ce *ChatEngine) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	text, err := ce.generate(ctx, content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Chat continues a multi-turn conversation and returns the assistant reply.
func (ce *ChatEngine) Chat(ctx context.Context, messages []models.Message) (models.Message, error) {
	content := make([]llms.MessageContent, 0, len(messages)+1)
	if ce.config.SystemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemPrompt))
	}
	for _, m := range messages {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}

	text, err := ce.generate(ctx, content)
	if err != nil {
		return models.Message{}, err
	}
	return models.Message{Role: models.RoleAssistant, Content: text}, nil
}

func (ce *ChatEngine) generate(ctx context.Context, content []llms.MessageContent) (string, error) {
	var response *llms.ContentResponse
	err := retry.Do(ctx, ce.config.Retry, func(ctx context.Context) error {
		var err error
		response, err = ce.llm.GenerateContent(ctx, content,
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithTemperature(ce.config.Temperature),
		)
		return err
	})
	if err != nil {
		genErr := newGenerationError(err)
		log.Error().
			Str("request_id", genErr.RequestID).
			Int("status_code", genErr.StatusCode).
			Str("code", genErr.Code).
			Msg(genErr.Message)
		return "", genErr
	}

	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", newGenerationError(ErrEmptyResponse)
	}
	return response.Choices[0].Content, nil
}

func messageType(role string) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
