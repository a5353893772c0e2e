// Package retriever answers semantic queries against a session's chunks.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/session"
	"github.com/spigell/resume-tailor/internal/vectorindex"

	"go.uber.org/zap"
)

// ErrEmptyIndex is a warning: the session has nothing indexed, so the caller
// proceeds without retrieved context. It is always returned together with an
// empty, non-nil result slice.
var ErrEmptyIndex = errors.New("retrieval: session index is empty")

const defaultTopK = 5

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Sessions looks up existing sessions without creating them.
type Sessions interface {
	Get(id string) (*session.Session, bool)
}

// Options configures retrieval defaults.
type Options struct {
	TopK int `mapstructure:"top-k"`
}

// DefaultOptions returns sensible retrieval defaults.
func DefaultOptions() Options {
	return Options{TopK: defaultTopK}
}

type Retriever struct {
	embedder QueryEmbedder
	sessions Sessions
	opts     Options
	logger   *zap.Logger
}

func New(embedder QueryEmbedder, sessions Sessions, opts Options, logger *zap.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, sessions: sessions, opts: opts, logger: logger}
}

// Retrieve returns at most k chunks of sessionID most similar to query,
// best first. A k of zero or less uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string, k int) ([]vectorindex.Result, error) {
	if k <= 0 {
		k = r.opts.TopK
	}

	log := logger.WithSession(r.logger, sessionID)

	s, ok := r.sessions.Get(sessionID)
	if !ok || s.Index.Len() == 0 {
		log.Info("nothing to retrieve", zap.Bool("session_exists", ok))
		return []vectorindex.Result{}, ErrEmptyIndex
	}

	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query must not be empty")
	}

	started := time.Now()
	vector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.Index.Query(vector, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	log.Debug("retrieved context",
		zap.Int("requested", k),
		zap.Int("returned", len(results)),
		zap.Duration("took", time.Since(started)),
	)

	return results, nil
}
