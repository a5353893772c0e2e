// Package agents holds the stage agents of the tailoring pipeline. Each agent
// turns its inputs into one typed record through the generation gateway.
package agents

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/resume-tailor/internal/gateway"
)

// Stage names, in pipeline order.
const (
	StageJobAnalyzer     = "job_analyzer"
	StageResumeAnalyzer  = "resume_analyzer"
	StageStrategyCreator = "strategy_creator"
	StageResumeGenerator = "resume_generator"
)

//go:embed prompts/*.md
var prompts embed.FS

//go:embed templates/resume.tex
var resumeTemplate string

const contentPlaceholder = "{{CONTENT}}"

// Gateway is the part of the generation gateway the agents use.
type Gateway interface {
	Generate(ctx context.Context, req gateway.Request, schema gateway.Schema) error
}

// Prompt returns the embedded prompt template with the given name.
func Prompt(name string) string {
	data, err := prompts.ReadFile("prompts/" + name + ".md")
	if err != nil {
		panic(fmt.Sprintf("missing embedded prompt %q: %v", name, err))
	}
	return string(data)
}

// ResumeTemplate returns the LaTeX document the generated content is placed into.
func ResumeTemplate() string {
	return resumeTemplate
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
