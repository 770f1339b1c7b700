// Package synth generates product imagery from text descriptions with the
// Gemini image models.
package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-image"

// ErrNoImage is returned when the model answers without image data.
var ErrNoImage = errors.New("no image in response")

// generator is the part of genai.Models the synthesizer calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements exporter.Synthesizer.
type Gemini struct {
	models generator
	model  string
	style  string
	logger *log.Logger
}

// Option configures Gemini.
type Option func(*Gemini)

// WithModel selects the model.
func WithModel(m string) Option {
	return func(g *Gemini) {
		if m != "" {
			g.model = m
		}
	}
}

// WithStyle appends a fixed style instruction to every prompt.
func WithStyle(s string) Option {
	return func(g *Gemini) { g.style = strings.TrimSpace(s) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Gemini) { g.logger = l }
}

// New connects to the Gemini API with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("synth: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("synth: create client: %w", err)
	}
	return newGemini(client.Models, opts...), nil
}

func newGemini(m generator, opts ...Option) *Gemini {
	g := &Gemini{models: m, model: DefaultModel}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.New(io.Discard)
	}
	return g
}

// Synthesize returns the bytes of one generated image.
func (g *Gemini) Synthesize(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("synth: empty prompt")
	}
	if g.style != "" {
		prompt += "\n\n" + g.style
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("synth: generate: %w", err)
	}
	data, mime, err := firstImage(resp)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("image generated", "model", g.model, "mime", mime, "bytes", len(data))
	return data, nil
}

// firstImage returns the first inline image of the first candidate.
func firstImage(resp *genai.GenerateContentResponse) ([]byte, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, "", fmt.Errorf("synth: %w: no candidates", ErrNoImage)
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = http.DetectContentType(part.InlineData.Data)
			}
			if !strings.HasPrefix(mime, "image/") {
				continue
			}
			return part.InlineData.Data, mime, nil
		}
	}
	if cand.FinishReason != genai.FinishReasonUnspecified && cand.FinishReason != genai.FinishReasonStop {
		return nil, "", fmt.Errorf("synth: %w: finish reason %s", ErrNoImage, cand.FinishReason)
	}
	return nil, "", fmt.Errorf("synth: %w", ErrNoImage)
}
