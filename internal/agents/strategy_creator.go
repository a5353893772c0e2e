package agents

import (
	"context"
	"errors"

	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/vectorindex"
)

const strategyCreatorSystem = "You are a career coach who matches candidates to roles. You are honest about gaps and precise about strengths."

// StrategyCreator scores the fit between a resume and a job and plans the edits.
type StrategyCreator struct {
	gw Gateway
}

func NewStrategyCreator(gw Gateway) *StrategyCreator {
	return &StrategyCreator{gw: gw}
}

func (a *StrategyCreator) Name() string { return StageStrategyCreator }

// Create builds a Strategy. excerpts are optional retrieved chunks.
func (a *StrategyCreator) Create(ctx context.Context, job *JobAnalysis, resume *ResumeAnalysis, excerpts []vectorindex.Result) (*Strategy, error) {
	if job == nil || resume == nil {
		return nil, errors.New("job and resume analyses are required")
	}

	var out Strategy
	req := gateway.Request{
		Name:     a.Name(),
		System:   strategyCreatorSystem,
		Template: Prompt(StageStrategyCreator),
		Vars: map[string]string{
			"JOB_ANALYSIS":    toJSON(job),
			"RESUME_ANALYSIS": toJSON(resume),
		},
		Context: excerpts,
	}
	if err := a.gw.Generate(ctx, req, gateway.JSON(&out)); err != nil {
		return nil, err
	}

	return &out, nil
}
