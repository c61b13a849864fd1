package inference

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"rash-identifier/internal/intake"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI talks to any OpenAI-compatible chat completions endpoint with vision support.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAI(apiKey, endpoint, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = strings.TrimRight(endpoint, "/")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: 2048,
	}
}

func (o *OpenAI) Name() string  { return "openai" }
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Submit(ctx context.Context, image intake.EncodedImage, prompt string) (string, error) {
	if image.IsZero() {
		return "", fmt.Errorf("openai: no image")
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    image.String(),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens: o.maxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
