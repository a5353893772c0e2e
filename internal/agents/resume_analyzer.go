package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/resume-tailor/internal/gateway"
)

const resumeAnalyzerSystem = "You are an expert resume reviewer. You extract resume content faithfully and never add facts that are not in the text."

// ResumeAnalyzer extracts the structured content of a resume.
type ResumeAnalyzer struct {
	gw Gateway
}

func NewResumeAnalyzer(gw Gateway) *ResumeAnalyzer {
	return &ResumeAnalyzer{gw: gw}
}

func (a *ResumeAnalyzer) Name() string { return StageResumeAnalyzer }

func (a *ResumeAnalyzer) Analyze(ctx context.Context, resumeText string) (*ResumeAnalysis, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, errors.New("resume is empty")
	}

	var out ResumeAnalysis
	req := gateway.Request{
		Name:     a.Name(),
		System:   resumeAnalyzerSystem,
		Template: Prompt(StageResumeAnalyzer),
		Vars:     map[string]string{"RESUME": resumeText},
	}
	if err := a.gw.Generate(ctx, req, gateway.JSON(&out)); err != nil {
		return nil, err
	}

	return &out, nil
}
