package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/resume-tailor/internal/ai/gemini"
	"github.com/spigell/resume-tailor/internal/embedding"
	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/secrets"
	"github.com/spigell/resume-tailor/internal/session"
	"github.com/spigell/resume-tailor/internal/tailor"
	"github.com/spigell/resume-tailor/internal/vectorstore/qdrant"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	embeddingProviderGemini  = "gemini"
	embeddingProviderHashing = "hashing"
)

// service bundles the tailoring service with the resources it holds.
type service struct {
	*tailor.Service
	mirror *qdrant.Mirror
}

func (s *service) Close() {
	if s.mirror != nil {
		_ = s.mirror.Close()
	}
}

func newService(ctx context.Context, config *Config, logger *zap.Logger) (*service, error) {
	if config.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  config.Gemini.APIKeyFile,
		Value: config.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(client, config.Gemini.Model, config.Gemini.MaxLogLength, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(client, config, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewRegistry(embedder.Dimensions(), config.Sessions.TTL, logger)

	svc := &service{}
	deps := tailor.Deps{
		Embedder: embedder,
		Sessions: sessions,
		Gateway:  gateway.New(generator, config.Gateway, logger),
		Logger:   logger,
	}

	if config.Qdrant.Enabled {
		mirror, err := newMirror(ctx, config.Qdrant, embedder.Dimensions(), logger)
		if err != nil {
			logger.Warn("continuing without qdrant mirror", zap.Error(err))
		} else {
			svc.mirror = mirror
			deps.Mirror = mirror
		}
	}

	svc.Service, err = tailor.New(tailor.Config{
		TopK:         config.Retrieval.TopK,
		ChunkSize:    config.Retrieval.ChunkSize,
		ChunkOverlap: config.Retrieval.ChunkOverlap,
		MinJobLength: config.Retrieval.MinJobLength,
		IntentMode:   config.Intent.Mode,
	}, deps)
	if err != nil {
		svc.Close()
		return nil, err
	}

	return svc, nil
}

func newEmbedder(client *genai.Client, config *Config, logger *zap.Logger) (*embedding.Client, error) {
	cfg := embedding.Config{
		BatchSize:         config.Embedding.BatchSize,
		RetryDelay:        config.Embedding.RetryDelay,
		RequestsPerMinute: config.Embedding.RequestsPerMinute,
	}

	provider := strings.TrimSpace(strings.ToLower(config.Embedding.Provider))
	switch provider {
	case "", embeddingProviderGemini:
		embedder, err := gemini.NewEmbedder(client, config.Gemini.EmbeddingModel, config.Gemini.EmbeddingDimensions, logger)
		if err != nil {
			return nil, err
		}
		return embedding.NewClient(embedder, cfg, logger), nil
	case embeddingProviderHashing:
		return embedding.NewClient(embedding.NewHashingEmbedder(config.Gemini.EmbeddingDimensions), cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Embedding.Provider)
	}
}

func newMirror(ctx context.Context, cfg qdrant.Config, dims int, logger *zap.Logger) (*qdrant.Mirror, error) {
	mirror, err := qdrant.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := mirror.EnsureCollection(ctx, dims); err != nil {
		_ = mirror.Close()
		return nil, err
	}

	return mirror, nil
}

func readSource(name, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%s file is required", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s file: %w", name, err)
	}

	return string(data), nil
}
