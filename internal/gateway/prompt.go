package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spigell/resume-tailor/internal/vectorindex"
)

const contextPlaceholder = "{{CONTEXT}}"

// Request describes one model call before assembly.
type Request struct {
	// Name identifies the caller in logs.
	Name string
	// System is sent as the system instruction.
	System string
	// Template is the user message with {{NAME}} placeholders.
	Template string
	// Vars fill the placeholders of Template.
	Vars map[string]string
	// Context is rendered into {{CONTEXT}}, best match first.
	Context []vectorindex.Result
}

// FormatContext renders retrieved chunks as labelled blocks.
func FormatContext(results []vectorindex.Result) string {
	if len(results) == 0 {
		return "(no retrieved context)"
	}

	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("[%s #%d] (score: %.3f)\n%s", r.Source, i+1, r.Score, strings.TrimSpace(r.Text)))
	}
	return strings.Join(parts, "\n\n")
}

// render fills every placeholder in one pass, so substituted text is never
// scanned for placeholders again.
func render(template string, vars map[string]string, results []vectorindex.Result) string {
	pairs := make([]string, 0, 2*len(vars)+2)
	if strings.Contains(template, contextPlaceholder) {
		pairs = append(pairs, contextPlaceholder, FormatContext(results))
	}
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	if len(pairs) == 0 {
		return template
	}

	return strings.NewReplacer(pairs...).Replace(template)
}

// assemble renders req so that system, message and reserve together fit in
// budget runes. Retrieved chunks with the lowest score are dropped first.
// The kept chunks are returned in their original order.
func assemble(req Request, budget, reserve int) (string, []vectorindex.Result, error) {
	kept := append([]vectorindex.Result(nil), req.Context...)
	systemLen := utf8.RuneCountInString(req.System)

	for {
		prompt := render(req.Template, req.Vars, kept)
		total := systemLen + utf8.RuneCountInString(prompt) + reserve
		if budget <= 0 || total <= budget {
			return prompt, kept, nil
		}

		if len(kept) == 0 || !strings.Contains(req.Template, contextPlaceholder) {
			return "", nil, fmt.Errorf("%w: %d runes needed, budget is %d", ErrBudgetExceeded, total, budget)
		}

		kept = dropLowest(kept)
	}
}

func dropLowest(results []vectorindex.Result) []vectorindex.Result {
	lowest := 0
	for i, r := range results {
		// on equal scores the later (less relevant by rank) chunk goes first
		if r.Score <= results[lowest].Score {
			lowest = i
		}
	}

	out := make([]vectorindex.Result, 0, len(results)-1)
	out = append(out, results[:lowest]...)
	return append(out, results[lowest+1:]...)
}
