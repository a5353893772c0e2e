// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/resume-tailor/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBatchSize  = 100
	defaultRetryDelay = 500 * time.Millisecond
)

// Embedder converts texts to vectors, one per input, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// ServiceError reports an embedding call that failed after its retry.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("embedding service: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Config tunes the Client.
type Config struct {
	BatchSize         int           `mapstructure:"batch-size"`
	RetryDelay        time.Duration `mapstructure:"retry-delay"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute"`
}

// Client wraps an Embedder with batching, pacing, validation and a single retry.
type Client struct {
	embedder   Embedder
	batchSize  int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger

	wait func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client around embedder.
func NewClient(embedder Embedder, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		embedder:   embedder,
		batchSize:  batchSize,
		retryDelay: retryDelay,
		limiter:    limiter,
		logger:     logger,
		wait:       utils.WaitFor,
	}
}

// Dimensions returns the vector size of the wrapped embedder.
func (c *Client) Dimensions() int {
	return c.embedder.Dimensions()
}

// Model returns the model name of the wrapped embedder.
func (c *Client) Model() string {
	return c.embedder.Model()
}

// Embed returns one vector per text. Each batch is attempted at most twice;
// a second failure is returned as *ServiceError.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c == nil || c.embedder == nil {
		return nil, &ServiceError{Op: "embed", Err: errors.New("embedder is not initialized")}
	}

	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedOne embeds a single text.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			c.logger.Warn("retrying embedding batch",
				zap.String("model", c.embedder.Model()),
				zap.Int("batch_size", len(texts)),
				zap.Duration("delay", c.retryDelay),
				zap.Error(lastErr),
			)
			if err := c.wait(ctx, c.retryDelay); err != nil {
				return nil, &ServiceError{Op: "embed", Err: err}
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &ServiceError{Op: "embed", Err: err}
			}
		}

		vectors, err := c.embedder.Embed(ctx, texts)
		if err == nil {
			err = c.validate(texts, vectors)
		}
		if err == nil {
			return vectors, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, &ServiceError{Op: "embed", Err: lastErr}
}

func (c *Client) validate(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors))
	}

	dims := c.embedder.Dimensions()
	for i, vector := range vectors {
		if len(vector) != dims {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vector), dims)
		}
	}

	return nil
}
