package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/spigell/resume-tailor/internal/ai"

	"google.golang.org/genai"
)

type stubModels struct {
	contents []*genai.Content
	config   *genai.EmbedContentConfig
	resp     *genai.EmbedContentResponse
	err      error
}

func (s *stubModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	s.contents = contents
	s.config = config
	return s.resp, s.err
}

func TestEmbedderEmbed(t *testing.T) {
	stub := &stubModels{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 2}}, {Values: []float32{3, 4}}},
	}}
	e := newEmbedder(stub, "", 2, nil)

	vectors, err := e.Embed(context.Background(), []string{"python", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vectors[1][0] != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}

	if e.Model() != defaultEmbeddingModel {
		t.Fatalf("expected default model, got %q", e.Model())
	}

	if got := stub.contents[1].Parts[0].Text; got != " " {
		t.Fatalf("expected empty text replaced by a space, got %q", got)
	}

	if stub.config.OutputDimensionality == nil || *stub.config.OutputDimensionality != 2 {
		t.Fatalf("expected output dimensionality 2")
	}
}

func TestEmbedderCountMismatch(t *testing.T) {
	stub := &stubModels{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 2}}},
	}}

	if _, err := newEmbedder(stub, "m", 2, nil).Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error on embedding count mismatch")
	}
}

func TestEmbedderClassifiesServerErrors(t *testing.T) {
	stub := &stubModels{err: genai.APIError{Code: http.StatusServiceUnavailable}}

	_, err := newEmbedder(stub, "m", 2, nil).Embed(context.Background(), []string{"a"})
	if !errors.Is(err, ai.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
