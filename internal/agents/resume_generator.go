package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/vectorindex"
)

const resumeGeneratorSystem = "You are an expert resume writer who produces clean, compilable LaTeX. You never invent experience."

// GenerateInput carries everything the generator may use. Job and Excerpts
// are optional.
type GenerateInput struct {
	Strategy    *Strategy
	Job         *JobAnalysis
	ResumeText  string
	Excerpts    []vectorindex.Result
	Instruction string
}

// ResumeGenerator writes the tailored document.
type ResumeGenerator struct {
	gw       Gateway
	template string
}

func NewResumeGenerator(gw Gateway) *ResumeGenerator {
	return &ResumeGenerator{gw: gw, template: resumeTemplate}
}

func (a *ResumeGenerator) Name() string { return StageResumeGenerator }

func (a *ResumeGenerator) Generate(ctx context.Context, in GenerateInput) (*GeneratedDocument, error) {
	if in.Strategy == nil {
		return nil, errors.New("strategy is required")
	}
	if strings.TrimSpace(in.ResumeText) == "" {
		return nil, errors.New("resume is empty")
	}

	job := "(not available)"
	if in.Job != nil {
		job = toJSON(in.Job)
	}

	var content string
	req := gateway.Request{
		Name:     a.Name(),
		System:   resumeGeneratorSystem,
		Template: Prompt(StageResumeGenerator),
		Vars: map[string]string{
			"STRATEGY":     toJSON(in.Strategy),
			"JOB_ANALYSIS": job,
			"RESUME":       in.ResumeText,
			"INSTRUCTION":  orNone(in.Instruction),
		},
		Context: in.Excerpts,
	}
	schema := gateway.Text(a.Name(), &content, "LaTeX resume sections only, starting with the header and using \\section{...}", ValidateLaTeXBody)
	if err := a.gw.Generate(ctx, req, schema); err != nil {
		return nil, err
	}

	return &GeneratedDocument{
		FormatTag: FormatLaTeX,
		Content:   content,
		Body:      strings.Replace(a.template, contentPlaceholder, content, 1),
	}, nil
}

// ValidateLaTeXBody accepts LaTeX section markup meant for the resume
// template and rejects full documents.
func ValidateLaTeXBody(body string) error {
	for _, forbidden := range []string{`\documentclass`, `\begin{document}`, `\end{document}`} {
		if strings.Contains(body, forbidden) {
			return fmt.Errorf("body must not contain %s", forbidden)
		}
	}

	if !strings.Contains(body, `\section`) {
		return errors.New(`body has no \section`)
	}

	if open, closed := countBraces(body); open != closed {
		return fmt.Errorf("unbalanced braces: %d opening, %d closing", open, closed)
	}

	return nil
}

// countBraces counts grouping braces. Escaped \{ and \} are literal text.
func countBraces(body string) (open, closed int) {
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '{':
			open++
		case '}':
			closed++
		}
	}
	return open, closed
}
