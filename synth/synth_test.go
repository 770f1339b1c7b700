package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func imageResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content:      &genai.Content{Parts: parts},
		FinishReason: genai.FinishReasonStop,
	}}}
}

func TestSynthesize(t *testing.T) {
	f := &fakeModels{resp: imageResponse(
		&genai.Part{Text: "Here is your image"},
		&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("png")}},
	)}
	g := newGemini(f, WithModel("imagen-test"), WithStyle("Studio lighting, white background."))

	b, err := g.Synthesize(context.Background(), "  a red rain jacket ")
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))
	assert.Equal(t, "imagen-test", f.model)
	assert.Equal(t, "a red rain jacket\n\nStudio lighting, white background.", f.prompt)
	assert.Contains(t, f.config.ResponseModalities, "IMAGE")
}

func TestSynthesizeDefaults(t *testing.T) {
	f := &fakeModels{resp: imageResponse(&genai.Part{InlineData: &genai.Blob{Data: []byte("\x89PNG\r\n\x1a\n0000")}})}
	g := newGemini(f, WithModel(""))

	_, err := g.Synthesize(context.Background(), "jacket")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, f.model)
}

func TestSynthesizeErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newGemini(&fakeModels{}).Synthesize(ctx, " ")
	assert.Error(t, err)

	_, err = newGemini(&fakeModels{err: errors.New("quota")}).Synthesize(ctx, "x")
	assert.ErrorContains(t, err, "quota")

	_, err = newGemini(&fakeModels{resp: &genai.GenerateContentResponse{}}).Synthesize(ctx, "x")
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = newGemini(&fakeModels{resp: imageResponse(&genai.Part{Text: "sorry"})}).Synthesize(ctx, "x")
	assert.ErrorIs(t, err, ErrNoImage)

	blocked := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}
	_, err = newGemini(&fakeModels{resp: blocked}).Synthesize(ctx, "x")
	assert.ErrorIs(t, err, ErrNoImage)
	assert.ErrorContains(t, err, "SAFETY")
}

func TestNewNeedsKey(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}
