package gateway

import (
	"errors"
	"strings"
	"testing"

	"github.com/spigell/resume-tailor/internal/vectorindex"
)

func results() []vectorindex.Result {
	return []vectorindex.Result{
		{Source: vectorindex.SourceResume, Text: strings.Repeat("r", 100), Score: 0.9},
		{Source: vectorindex.SourceJob, Text: strings.Repeat("j", 100), Score: 0.5},
		{Source: vectorindex.SourceFeedback, Text: strings.Repeat("f", 100), Score: 0.7},
	}
}

func TestFormatContext(t *testing.T) {
	t.Parallel()

	got := FormatContext([]vectorindex.Result{{Source: vectorindex.SourceResume, Text: " led a team ", Score: 0.8123}})
	want := "[resume #1] (score: 0.812)\nled a team"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if FormatContext(nil) != "(no retrieved context)" {
		t.Fatalf("unexpected empty context rendering")
	}
}

func TestAssembleFitsWithoutDropping(t *testing.T) {
	t.Parallel()

	prompt, kept, err := assemble(Request{Template: "ctx:\n{{CONTEXT}}\nask: {{Q}}", Vars: map[string]string{"Q": "why"}, Context: results()}, 10000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 3 {
		t.Fatalf("expected all context kept, got %d", len(kept))
	}
	if !strings.HasSuffix(prompt, "ask: why") || !strings.Contains(prompt, "[feedback #3]") {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestRenderDoesNotExpandSubstitutedText(t *testing.T) {
	t.Parallel()

	vars := map[string]string{
		"RESUME":   "my notes {{STRATEGY}} {{CONTEXT}}",
		"STRATEGY": `{"match_score":1}`,
	}
	got := render("R={{RESUME}}\nS={{STRATEGY}}\nC={{CONTEXT}}", vars, nil)
	want := "R=my notes {{STRATEGY}} {{CONTEXT}}\nS={\"match_score\":1}\nC=(no retrieved context)"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAssembleDropsLowestRelevanceFirst(t *testing.T) {
	t.Parallel()

	req := Request{System: "sys", Template: "{{CONTEXT}}", Context: results()}

	full, _, _ := assemble(req, 0, 0)
	budget := len([]rune(full)) + 3 - 60

	prompt, kept, err := assemble(req, budget, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(kept) != 2 {
		t.Fatalf("expected one chunk dropped, got %d kept", len(kept))
	}
	for _, r := range kept {
		if r.Source == vectorindex.SourceJob {
			t.Fatalf("expected lowest scoring job chunk to be dropped")
		}
	}
	if kept[0].Source != vectorindex.SourceResume || kept[1].Source != vectorindex.SourceFeedback {
		t.Fatalf("expected original order preserved, got %v, %v", kept[0].Source, kept[1].Source)
	}
	if n := len([]rune(prompt)) + 3; n > budget {
		t.Fatalf("prompt of %d runes exceeds budget %d", n, budget)
	}
}

func TestAssembleBudgetExceeded(t *testing.T) {
	t.Parallel()

	_, _, err := assemble(Request{Template: strings.Repeat("x", 50) + "{{CONTEXT}}", Context: results()}, 40, 0)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	_, _, err = assemble(Request{Template: strings.Repeat("x", 50)}, 40, 0)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded without context, got %v", err)
	}
}

func TestAssembleAccountsForReserve(t *testing.T) {
	t.Parallel()

	_, _, err := assemble(Request{Template: "abc"}, 10, 8)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected reserve to count against budget, got %v", err)
	}
}
