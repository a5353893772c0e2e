// Package tailor is the entry point of the resume tailoring service: it
// ingests sources into per-session indexes, runs the stage pipeline and
// answers free-form instructions with retrieved context.
package tailor

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/resume-tailor/internal/agents"
	"github.com/spigell/resume-tailor/internal/chunker"
	"github.com/spigell/resume-tailor/internal/feedback"
	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/retriever"
	"github.com/spigell/resume-tailor/internal/session"
	"github.com/spigell/resume-tailor/internal/vectorindex"

	"go.uber.org/zap"
)

const (
	IntentModeModel     = "model"
	IntentModeHeuristic = "heuristic"

	defaultMinJobLength = 50
)

// Config holds the orchestration settings.
type Config struct {
	TopK         int    `mapstructure:"top-k"`
	ChunkSize    int    `mapstructure:"chunk-size"`
	ChunkOverlap int    `mapstructure:"chunk-overlap"`
	MinJobLength int    `mapstructure:"min-job-length"`
	IntentMode   string `mapstructure:"intent-mode"`
}

// Embedder embeds chunk texts and queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Gateway is the model gateway.
type Gateway interface {
	Generate(ctx context.Context, req gateway.Request, schema gateway.Schema) error
}

// Mirror receives a durable copy of every index write.
type Mirror interface {
	Replace(ctx context.Context, sessionID string, batch map[vectorindex.SourceTag][]vectorindex.Chunk) error
	Append(ctx context.Context, chunks []vectorindex.Chunk) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Deps aggregates the collaborators of the Service. Mirror and Logger are optional.
type Deps struct {
	Embedder Embedder
	Sessions *session.Registry
	Gateway  Gateway
	Mirror   Mirror
	Logger   *zap.Logger
}

// Status is carried by every result so that callers always get an explicit
// outcome, even when an error is returned as well.
type Status struct {
	Success  bool
	Message  string
	Err      error
	Warnings []string
}

func ok(message string) Status {
	return Status{Success: true, Message: message}
}

func failed(message string, err error) Status {
	return Status{Success: false, Message: message + ": " + err.Error(), Err: err}
}

func (s *Status) warn(message string) {
	s.Warnings = append(s.Warnings, message)
}

type Service struct {
	cfg       Config
	chunker   *chunker.Chunker
	embedder  Embedder
	sessions  *session.Registry
	retriever *retriever.Retriever
	gw        Gateway
	mirror    Mirror
	feedback  *feedback.Store
	logger    *zap.Logger
	now       func() time.Time

	jobAnalyzer     *agents.JobAnalyzer
	resumeAnalyzer  *agents.ResumeAnalyzer
	strategyCreator *agents.StrategyCreator
	resumeGenerator *agents.ResumeGenerator
}

func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session registry is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("gateway is required")
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.MinJobLength <= 0 {
		cfg.MinJobLength = defaultMinJobLength
	}
	switch cfg.IntentMode {
	case "":
		cfg.IntentMode = IntentModeModel
	case IntentModeModel, IntentModeHeuristic:
	default:
		return nil, errors.New("intent mode must be model or heuristic, got " + cfg.IntentMode)
	}

	s := &Service{
		cfg:             cfg,
		chunker:         newChunker(cfg),
		embedder:        deps.Embedder,
		sessions:        deps.Sessions,
		retriever:       retriever.New(deps.Embedder, deps.Sessions, retriever.Options{TopK: cfg.TopK}, log),
		gw:              deps.Gateway,
		mirror:          deps.Mirror,
		logger:          log,
		now:             time.Now,
		jobAnalyzer:     agents.NewJobAnalyzer(deps.Gateway),
		resumeAnalyzer:  agents.NewResumeAnalyzer(deps.Gateway),
		strategyCreator: agents.NewStrategyCreator(deps.Gateway),
		resumeGenerator: agents.NewResumeGenerator(deps.Gateway),
	}

	var mirror feedback.Mirror
	if deps.Mirror != nil {
		mirror = deps.Mirror
	}
	s.feedback = feedback.NewStore(deps.Embedder, deps.Sessions, s, mirror, log)

	return s, nil
}

// newChunker applies the configured window; zero values keep the chunker defaults.
func newChunker(cfg Config) *chunker.Chunker {
	var opts []chunker.Option
	if cfg.ChunkSize > 0 {
		opts = append(opts, chunker.WithSize(cfg.ChunkSize))
	}
	if cfg.ChunkOverlap > 0 {
		opts = append(opts, chunker.WithOverlap(cfg.ChunkOverlap))
	}
	return chunker.New(opts...)
}
