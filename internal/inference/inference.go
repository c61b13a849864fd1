// Package inference submits an encoded image and an instruction prompt to a
// multimodal model and returns its free-text answer.
package inference

import (
	"context"
	"errors"
	"strings"

	"rash-identifier/internal/config"
	"rash-identifier/internal/intake"
)

var (
	// ErrUnavailable is returned when no inference provider is configured.
	ErrUnavailable = errors.New("image analysis is not configured")
	// ErrEmptyResponse is returned when the provider answers without any text.
	ErrEmptyResponse = errors.New("the analysis service returned an empty response")
)

// Client is the opaque inference boundary: image and prompt in, text out.
type Client interface {
	Name() string
	Model() string
	Submit(ctx context.Context, image intake.EncodedImage, prompt string) (string, error)
}

// New picks the provider named in cfg. Without a key for it, the returned client
// fails every call with ErrUnavailable.
func New(cfg config.Config) Client {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return Unavailable{Provider: config.ProviderOpenAI}
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAIModel)
	default:
		if cfg.GeminiKey == "" {
			return Unavailable{Provider: config.ProviderGemini}
		}
		return NewGemini(cfg.GeminiKey, cfg.GeminiModel)
	}
}

// Unavailable stands in for a provider that has no credentials.
type Unavailable struct {
	Provider string
}

func (u Unavailable) Name() string  { return u.Provider }
func (u Unavailable) Model() string { return "" }

func (u Unavailable) Submit(context.Context, intake.EncodedImage, string) (string, error) {
	return "", ErrUnavailable
}
