package tailor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/vectorindex"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type IngestInput struct {
	// SessionID is generated when empty.
	SessionID  string
	ResumeText string
	JobText    string
}

type IngestResult struct {
	Status
	SessionID         string
	ChunksCreated     int
	HasJobDescription bool
}

// Ingest chunks and embeds the resume and, when it is long enough, the job
// description, then replaces the session's chunks for those sources in one
// step. Nothing is written if any embedding call fails.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result := &IngestResult{SessionID: sessionID}
	log := logger.WithSession(s.logger, sessionID)

	if strings.TrimSpace(in.ResumeText) == "" {
		err := errors.New("resume text is empty")
		result.Status = failed("ingestion failed", err)
		return result, err
	}

	texts := map[vectorindex.SourceTag]string{vectorindex.SourceResume: in.ResumeText}
	if s.meaningfulJob(in.JobText) {
		texts[vectorindex.SourceJob] = in.JobText
		result.HasJobDescription = true
	}

	batch, err := s.embedSources(ctx, sessionID, texts)
	if err != nil {
		log.Error("ingestion failed", zap.Error(err))
		result.Status = failed("ingestion failed", err)
		return result, err
	}

	sess := s.sessions.GetOrCreate(sessionID)
	if err := sess.Index.Replace(batch); err != nil {
		result.Status = failed("ingestion failed", err)
		return result, err
	}
	for tag, text := range texts {
		sess.SetSource(tag, text)
	}

	for tag, chunks := range batch {
		result.ChunksCreated += len(chunks)
		logger.With(log, logger.FieldSourceTag, string(tag)).Debug("source indexed", zap.Int("chunks", len(chunks)))
	}

	var warnings []string
	if s.mirror != nil {
		if err := s.mirror.Replace(ctx, sessionID, batch); err != nil {
			log.Warn("mirroring ingested chunks failed", zap.Error(err))
			warnings = append(warnings, "chunks were indexed but not mirrored: "+err.Error())
		}
	}

	log.Info("sources ingested",
		zap.Int("chunks", result.ChunksCreated),
		zap.Bool("has_job_description", result.HasJobDescription),
	)

	message := fmt.Sprintf("Indexed %d chunks from the resume", result.ChunksCreated)
	if result.HasJobDescription {
		message = fmt.Sprintf("Indexed %d chunks from the resume and the job description", result.ChunksCreated)
	}
	result.Status = ok(message)
	result.Warnings = warnings

	return result, nil
}

// embedSources embeds every source concurrently and returns the chunks
// grouped by tag.
func (s *Service) embedSources(ctx context.Context, sessionID string, texts map[vectorindex.SourceTag]string) (map[vectorindex.SourceTag][]vectorindex.Chunk, error) {
	now := s.now()
	batch := make(map[vectorindex.SourceTag][]vectorindex.Chunk, len(texts))
	results := make([][]vectorindex.Chunk, 0, len(texts))
	tags := make([]vectorindex.SourceTag, 0, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	for tag, text := range texts {
		parts := s.chunker.Split(text)
		idx := len(results)
		results = append(results, nil)
		tags = append(tags, tag)

		g.Go(func() error {
			vectors, err := s.embedder.Embed(gctx, parts)
			if err != nil {
				return fmt.Errorf("embed %s: %w", tag, err)
			}

			chunks, err := vectorindex.NewChunks(sessionID, tag, parts, vectors, now)
			if err != nil {
				return fmt.Errorf("build %s chunks: %w", tag, err)
			}
			results[idx] = chunks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, tag := range tags {
		batch[tag] = results[i]
	}
	return batch, nil
}

func (s *Service) meaningfulJob(text string) bool {
	return len([]rune(strings.TrimSpace(text))) > s.cfg.MinJobLength
}
