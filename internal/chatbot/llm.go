package chatbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultLLMBaseURL = "https://api.groq.com/openai/v1"
	DefaultLLMModel   = "llama3-8b-8192"

	llmTemperature = 0.5
	llmMaxTokens   = 300
)

var ErrNoAPIKey = errors.New("llm api key is required")

type LLMConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// LLMBot answers through an OpenAI-compatible chat completion endpoint,
// grounding the model in the FAQ context.
type LLMBot struct {
	client openai.Client
	model  string
	kb     *KnowledgeBase
}

func NewLLMBot(cfg LLMConfig, kb *KnowledgeBase) (*LLMBot, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(1),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &LLMBot{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		kb:     kb,
	}, nil
}

func (b *LLMBot) Name() string { return "llm" }

func (b *LLMBot) Reply(ctx context.Context, message string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(b.systemPrompt()),
			openai.UserMessage(message),
		},
		Model:       openai.ChatModel(b.model),
		Temperature: openai.Float(llmTemperature),
		MaxTokens:   openai.Int(llmMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *LLMBot) systemPrompt() string {
	return "Anda adalah asisten CS '" + BusinessName + "' yang ramah dan membantu. " +
		"Gunakan Bahasa Indonesia yang sopan. " +
		"Jawab pertanyaan pelanggan HANYA berdasarkan informasi berikut ini. " +
		"Jika informasi tidak ada di konteks, arahkan ke Admin WhatsApp " + AdminWhatsApp + ". " +
		"Jangan mengarang harga atau layanan yang tidak tertulis.\n\n" +
		b.kb.Context()
}
