package tailor

import (
	"context"
	"fmt"

	"github.com/spigell/resume-tailor/internal/feedback"
	"github.com/spigell/resume-tailor/internal/integrity"
	"github.com/spigell/resume-tailor/internal/logger"

	"go.uber.org/zap"
)

type FeedbackResult struct {
	Status
	ChunkID string
	// Refined holds the regenerated content for ratings of 3 or less.
	Refined string
	// Risks is the integrity check of Refined.
	Risks []integrity.Risk
}

// SubmitFeedback stores a rating for generated content as retrievable
// context. Low ratings also regenerate the content once.
func (s *Service) SubmitFeedback(ctx context.Context, sub feedback.Submission) (*FeedbackResult, error) {
	stored, err := s.feedback.Submit(ctx, sub)
	if err != nil {
		return &FeedbackResult{Status: failed("feedback rejected", err)}, err
	}

	result := &FeedbackResult{
		Status:  ok("Feedback stored"),
		ChunkID: stored.ChunkID,
		Refined: stored.Refined,
	}
	switch {
	case stored.RefineErr != nil:
		result.warn("feedback stored but refinement failed: " + stored.RefineErr.Error())
	case stored.Refined != "":
		result.Message = "Feedback stored and content refined"
		result.Risks = integrity.Check(s.sourceResume(sub.SessionID), stored.Refined)
		log := logger.WithSession(s.logger, sub.SessionID)
		result.Warnings = append(result.Warnings, riskWarnings(log, result.Risks)...)
	}

	return result, nil
}

type DropResult struct {
	Status
	Existed bool
}

// DropSession forgets everything indexed for sessionID.
func (s *Service) DropSession(ctx context.Context, sessionID string) *DropResult {
	log := logger.WithSession(s.logger, sessionID)

	result := &DropResult{Existed: s.sessions.Drop(sessionID)}
	if result.Existed {
		result.Status = ok(fmt.Sprintf("Session %s dropped", sessionID))
	} else {
		result.Status = ok(fmt.Sprintf("Session %s did not exist", sessionID))
	}

	if s.mirror != nil {
		if err := s.mirror.DeleteSession(ctx, sessionID); err != nil {
			log.Warn("deleting mirrored session failed", zap.Error(err))
			result.warn("session dropped but mirror cleanup failed: " + err.Error())
		}
	}

	log.Info("session dropped", zap.Bool("existed", result.Existed))
	return result
}
