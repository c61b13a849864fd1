package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"rash-identifier/internal/intake"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini sends the image as an inline blob to the Gemini API.
type Gemini struct {
	APIKey string
	model  string
	opts   []option.ClientOption
}

func NewGemini(apiKey, model string, opts ...option.ClientOption) *Gemini {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		APIKey: strings.TrimSpace(apiKey),
		model:  model,
		opts:   opts,
	}
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Submit(ctx context.Context, image intake.EncodedImage, prompt string) (string, error) {
	if g.APIKey == "" {
		return "", ErrUnavailable
	}
	parts, err := geminiParts(image, prompt)
	if err != nil {
		return "", err
	}

	opts := append([]option.ClientOption{option.WithAPIKey(g.APIKey)}, g.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.SetTemperature(0.4)

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	txt := responseText(resp)
	if strings.TrimSpace(txt) == "" {
		return "", ErrEmptyResponse
	}
	return txt, nil
}

func geminiParts(image intake.EncodedImage, prompt string) ([]genai.Part, error) {
	data, mimeType, err := image.Decode()
	if err != nil {
		return nil, fmt.Errorf("gemini: bad image: %w", err)
	}
	if mimeType == "" {
		return nil, errors.New("gemini: image has no mime type")
	}
	return []genai.Part{
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(prompt),
	}, nil
}

// responseText joins the text parts of the first candidate that has any.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
