package tailor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/spigell/resume-tailor/internal/agents"
	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/utils"
)

const (
	suggestionCount     = 5
	suggestionResumeMax = 3000
	suggestionJobMax    = 2000
	minSuggestionLength = 10

	suggestSystem = "You are an experienced resume reviewer. Your suggestions are specific and actionable."
)

type SuggestResult struct {
	Status
	Suggestions []string
}

// Suggest asks for improvement suggestions for resumeText, aimed at jobText
// when it is long enough to be meaningful.
func (s *Service) Suggest(ctx context.Context, resumeText, jobText string) (*SuggestResult, error) {
	if strings.TrimSpace(resumeText) == "" {
		err := errors.New("resume text is empty")
		return &SuggestResult{Status: failed("suggestions failed", err)}, err
	}

	prompt := "suggestions_resume_only"
	vars := map[string]string{"RESUME": utils.TruncateRunes(resumeText, suggestionResumeMax)}
	if s.meaningfulJob(jobText) {
		prompt = "suggestions"
		vars["JOB_DESCRIPTION"] = utils.TruncateRunes(jobText, suggestionJobMax)
	}

	var raw string
	req := gateway.Request{
		Name:     prompt,
		System:   suggestSystem,
		Template: agents.Prompt(prompt),
		Vars:     vars,
	}
	if err := s.gw.Generate(ctx, req, gateway.Text(prompt, &raw, "a numbered list of 5 suggestions", nil)); err != nil {
		return &SuggestResult{Status: failed("suggestions failed", err)}, err
	}

	suggestions := ParseSuggestions(raw)
	result := &SuggestResult{
		Status:      ok(fmt.Sprintf("Generated %d suggestions", len(suggestions))),
		Suggestions: suggestions,
	}
	if len(suggestions) < suggestionCount {
		result.warn(fmt.Sprintf("expected %d suggestions, got %d", suggestionCount, len(suggestions)))
	}
	return result, nil
}

// ParseSuggestions extracts list items from raw: lines starting with a digit
// or a bullet, stripped of their marker. Items of ten characters or less are
// dropped. When no line looks like a list item the non-empty lines are used
// as they are. At most five items are returned.
func ParseSuggestions(raw string) []string {
	var items, lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)

		first := []rune(line)[0]
		if !unicode.IsDigit(first) && first != '-' && first != '•' && first != '*' {
			continue
		}

		item := strings.TrimSpace(strings.TrimLeft(line, "0123456789.-•*) "))
		if len([]rune(item)) > minSuggestionLength {
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		items = lines
	}
	if len(items) > suggestionCount {
		items = items[:suggestionCount]
	}
	return items
}
