package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/resume-tailor/internal/gateway"
)

const jobAnalyzerSystem = "You are an expert recruiter and job market analyst. You read job descriptions precisely and report only what they say."

// JobAnalyzer extracts requirements from a job description.
type JobAnalyzer struct {
	gw Gateway
}

func NewJobAnalyzer(gw Gateway) *JobAnalyzer {
	return &JobAnalyzer{gw: gw}
}

func (a *JobAnalyzer) Name() string { return StageJobAnalyzer }

func (a *JobAnalyzer) Analyze(ctx context.Context, jobText string) (*JobAnalysis, error) {
	if strings.TrimSpace(jobText) == "" {
		return nil, errors.New("job description is empty")
	}

	var out JobAnalysis
	req := gateway.Request{
		Name:     a.Name(),
		System:   jobAnalyzerSystem,
		Template: Prompt(StageJobAnalyzer),
		Vars:     map[string]string{"JOB_DESCRIPTION": jobText},
	}
	if err := a.gw.Generate(ctx, req, gateway.JSON(&out)); err != nil {
		return nil, err
	}

	return &out, nil
}
