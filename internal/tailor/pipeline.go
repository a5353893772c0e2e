package tailor

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/resume-tailor/internal/agents"
	"github.com/spigell/resume-tailor/internal/integrity"
	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/retriever"
	"github.com/spigell/resume-tailor/internal/vectorindex"

	"go.uber.org/zap"
)

// Input is the input of a pipeline run. SessionID and Instruction are
// optional: together they add retrieved context to the generation stage.
type Input struct {
	SessionID   string
	JobText     string
	ResumeText  string
	Instruction string
}

// RunResult holds whatever the run produced before it finished or failed.
type RunResult struct {
	Status
	Job      *agents.JobAnalysis
	Resume   *agents.ResumeAnalysis
	Strategy *agents.Strategy
	Document *agents.GeneratedDocument
	Stages   []agents.StageRun
	// Risks lists facts in the generated document the resume does not back. Advisory.
	Risks []integrity.Risk
}

type RetrieveResult struct {
	Status
	Results []vectorindex.Result
}

// Retrieve returns at most k chunks of the session most similar to query.
// An empty or unknown session yields no results and a warning.
func (s *Service) Retrieve(ctx context.Context, sessionID, query string, k int) (*RetrieveResult, error) {
	results, err := s.retriever.Retrieve(ctx, sessionID, query, k)
	switch {
	case errors.Is(err, retriever.ErrEmptyIndex):
		status := ok("No indexed content for this session")
		status.warn(err.Error())
		return &RetrieveResult{Status: status, Results: results}, nil
	case err != nil:
		return &RetrieveResult{Status: failed("retrieval failed", err), Results: []vectorindex.Result{}}, err
	}

	return &RetrieveResult{Status: ok(fmt.Sprintf("Retrieved %d chunks", len(results))), Results: results}, nil
}

// RunFull executes all four stages in order. The first failure stops the
// run; the result then carries the outputs of the stages that succeeded.
func (s *Service) RunFull(ctx context.Context, in Input) (*RunResult, error) {
	return s.run(ctx, in, true)
}

// RunQuick stops after the strategy stage.
func (s *Service) RunQuick(ctx context.Context, in Input) (*RunResult, error) {
	return s.run(ctx, in, false)
}

func (s *Service) run(ctx context.Context, in Input, full bool) (*RunResult, error) {
	stages := []string{agents.StageJobAnalyzer, agents.StageResumeAnalyzer, agents.StageStrategyCreator}
	if full {
		stages = append(stages, agents.StageResumeGenerator)
	}

	tracker := agents.NewTracker(stages...)
	result := &RunResult{}
	log := s.logger
	if in.SessionID != "" {
		log = logger.WithSession(log, in.SessionID)
	}

	finish := func(err error) (*RunResult, error) {
		result.Stages = tracker.Runs()
		warnings := result.Warnings

		if err != nil {
			stage := failedStage(result.Stages)
			log.Error("pipeline aborted", zap.String("stage", stage), zap.Error(err))
			result.Status = failed(stage+" failed", err)
			result.Warnings = warnings
			return result, err
		}

		result.Status = ok(fmt.Sprintf("Completed %d stages, match score %d", len(stages), result.Strategy.MatchScore))
		result.Warnings = warnings
		return result, nil
	}

	err := tracker.Run(agents.StageJobAnalyzer, func() error {
		job, err := s.jobAnalyzer.Analyze(ctx, in.JobText)
		result.Job = job
		return err
	})
	if err != nil {
		return finish(err)
	}
	log.Info("stage finished", zap.String("stage", agents.StageJobAnalyzer),
		zap.Int("required_skills", len(result.Job.RequiredSkills)))

	err = tracker.Run(agents.StageResumeAnalyzer, func() error {
		resume, err := s.resumeAnalyzer.Analyze(ctx, in.ResumeText)
		result.Resume = resume
		return err
	})
	if err != nil {
		return finish(err)
	}
	log.Info("stage finished", zap.String("stage", agents.StageResumeAnalyzer),
		zap.Int("skills", len(result.Resume.Skills)))

	err = tracker.Run(agents.StageStrategyCreator, func() error {
		strategy, err := s.strategyCreator.Create(ctx, result.Job, result.Resume, nil)
		result.Strategy = strategy
		return err
	})
	if err != nil {
		return finish(err)
	}
	log.Info("stage finished", zap.String("stage", agents.StageStrategyCreator),
		zap.Int("match_score", result.Strategy.MatchScore),
		zap.Int("gaps", len(result.Strategy.Gaps)))

	if !full {
		return finish(nil)
	}

	var excerpts []vectorindex.Result
	if in.SessionID != "" && in.Instruction != "" {
		retrieved, err := s.Retrieve(ctx, in.SessionID, in.Instruction, 0)
		if err != nil {
			result.warn("generating without retrieved context: " + err.Error())
		}
		result.Warnings = append(result.Warnings, retrieved.Warnings...)
		excerpts = retrieved.Results
	}

	err = tracker.Run(agents.StageResumeGenerator, func() error {
		doc, err := s.resumeGenerator.Generate(ctx, agents.GenerateInput{
			Strategy:    result.Strategy,
			Job:         result.Job,
			ResumeText:  in.ResumeText,
			Excerpts:    excerpts,
			Instruction: in.Instruction,
		})
		result.Document = doc
		return err
	})
	if err != nil {
		return finish(err)
	}
	log.Info("stage finished", zap.String("stage", agents.StageResumeGenerator),
		zap.Int("document_length", len(result.Document.Body)))

	result.Risks = integrity.Check(in.ResumeText, result.Document.Content)
	result.Warnings = append(result.Warnings, riskWarnings(log, result.Risks)...)

	return finish(nil)
}

func failedStage(runs []agents.StageRun) string {
	for _, run := range runs {
		if run.State == agents.StateFailed {
			return run.Stage
		}
	}
	return "pipeline"
}

type JobResult struct {
	Status
	Job *agents.JobAnalysis
}

// AnalyzeJob runs the job analysis stage on its own.
func (s *Service) AnalyzeJob(ctx context.Context, jobText string) (*JobResult, error) {
	job, err := s.jobAnalyzer.Analyze(ctx, jobText)
	if err != nil {
		return &JobResult{Status: failed(agents.StageJobAnalyzer+" failed", err)}, err
	}
	return &JobResult{Status: ok("Job description analyzed"), Job: job}, nil
}

type ResumeResult struct {
	Status
	Resume *agents.ResumeAnalysis
}

// AnalyzeResume runs the resume analysis stage on its own.
func (s *Service) AnalyzeResume(ctx context.Context, resumeText string) (*ResumeResult, error) {
	resume, err := s.resumeAnalyzer.Analyze(ctx, resumeText)
	if err != nil {
		return &ResumeResult{Status: failed(agents.StageResumeAnalyzer+" failed", err)}, err
	}
	return &ResumeResult{Status: ok("Resume analyzed"), Resume: resume}, nil
}
