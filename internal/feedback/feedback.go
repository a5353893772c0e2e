// Package feedback turns user ratings into retrievable context. Every
// submission is indexed as a feedback chunk; low ratings also trigger one
// refinement of the rated content.
package feedback

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

const (
	MinRating = 1
	MaxRating = 5
	// RefineThreshold is the highest rating that still triggers a refinement.
	RefineThreshold = 3
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRating   = fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
)

type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

type Sessions interface {
	Get(id string) (*session.Session, bool)
}

// Refiner regenerates content for a session from an amended instruction.
type Refiner interface {
	Refine(ctx context.Context, sessionID, instruction string) (string, error)
}

// Mirror receives a copy of every stored feedback chunk.
type Mirror interface {
	Append(ctx context.Context, chunks []vectorindex.Chunk) error
}

// Submission is one rated generation.
type Submission struct {
	SessionID   string
	Instruction string
	Generated   string
	Rating      int
	Comment     string
}

type Result struct {
	ChunkID string
	// Refined is set when the rating asked for a refinement and it succeeded.
	Refined string
	// RefineErr is set when the refinement was attempted and failed. The
	// feedback itself is stored either way.
	RefineErr error
}

// Refinement reports whether a refinement was attempted.
func (r *Result) Refinement() bool {
	return r.Refined != "" || r.RefineErr != nil
}

type Store struct {
	embedder Embedder
	sessions Sessions
	refiner  Refiner
	mirror   Mirror
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore creates a Store. refiner and mirror may be nil.
func NewStore(embedder Embedder, sessions Sessions, refiner Refiner, mirror Mirror, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		embedder: embedder,
		sessions: sessions,
		refiner:  refiner,
		mirror:   mirror,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit stores the feedback in the session index and refines the content
// when the rating is at or below RefineThreshold.
func (s *Store) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if sub.Rating < MinRating || sub.Rating > MaxRating {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, sub.Rating)
	}

	sess, ok := s.sessions.Get(sub.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sub.SessionID)
	}

	// The registry normalises ids; chunks must carry the same one.
	sub.SessionID = sess.ID
	log := logger.WithSession(s.logger, sub.SessionID).With(zap.Int("rating", sub.Rating))

	vector, err := s.embedder.EmbedOne(ctx, strings.TrimSpace(sub.Instruction+" "+sub.Comment))
	if err != nil {
		return nil, fmt.Errorf("embed feedback: %w", err)
	}

	chunks, err := vectorindex.NewChunks(sub.SessionID, vectorindex.SourceFeedback, []string{Document(sub)}, [][]float32{vector}, s.now())
	if err != nil {
		return nil, err
	}
	if err := sess.Index.Add(chunks); err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}

	log.Info("feedback stored", zap.String("chunk_id", chunks[0].ID))

	if s.mirror != nil {
		if err := s.mirror.Append(ctx, chunks); err != nil {
			log.Warn("mirroring feedback failed", zap.Error(err))
		}
	}

	result := &Result{ChunkID: chunks[0].ID}
	if sub.Rating > RefineThreshold || s.refiner == nil {
		return result, nil
	}

	refined, err := s.refiner.Refine(ctx, sub.SessionID, RefineInstruction(sub.Instruction, sub.Comment))
	if err != nil {
		log.Warn("refinement failed", zap.Error(err))
		result.RefineErr = err
		return result, nil
	}

	log.Info("content refined from feedback")
	result.Refined = refined
	return result, nil
}

// Document is the text stored for a submission.
func Document(sub Submission) string {
	return fmt.Sprintf("INSTRUCTION: %s\nGENERATED: %s\nUSER FEEDBACK: %s\nRATING: %d/%d",
		sub.Instruction, sub.Generated, sub.Comment, sub.Rating, MaxRating)
}

// RefineInstruction amends instruction with the user's comment.
func RefineInstruction(instruction, comment string) string {
	return fmt.Sprintf("%s\n\nUser Feedback: %s\n\nPlease improve based on this feedback.", instruction, comment)
}
