package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-tailor/internal/logger"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultEmbeddingModel      = "gemini-embedding-001"
	defaultEmbeddingDimensions = 768
	embeddingTaskType          = "SEMANTIC_SIMILARITY"
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces text embeddings through the Gemini embedding models.
type Embedder struct {
	models contentEmbedder
	model  string
	dims   int
	logger *zap.Logger
}

// NewEmbedder wraps client. Vectors are requested with dims output dimensions.
func NewEmbedder(client *genai.Client, model string, dims int, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newEmbedder(client.Models, model, dims, log), nil
}

func newEmbedder(models contentEmbedder, model string, dims int, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	if dims <= 0 {
		dims = defaultEmbeddingDimensions
	}
	return &Embedder{models: models, model: model, dims: dims, logger: logger.WithModel(log, provider, model)}
}

func (e *Embedder) Dimensions() int { return e.dims }

func (e *Embedder) Model() string { return e.model }

// Embed sends all texts in one request. Empty texts are sent as a single
// space because the API rejects empty parts.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			text = " "
		}
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	dims := int32(e.dims)
	resp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             embeddingTaskType,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("embed content: %w", err))
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", got, len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range resp.Embeddings {
		if embedding == nil {
			return nil, fmt.Errorf("gemini returned empty embedding at %d", i)
		}
		vectors[i] = embedding.Values
	}

	e.logger.Debug("gemini embed content",
		zap.String("model", e.model),
		zap.Int("texts", len(texts)),
	)

	return vectors, nil
}
