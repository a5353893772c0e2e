package tailor

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/spigell/resume-tailor/internal/feedback"
	"github.com/spigell/resume-tailor/internal/integrity"
)

func ingested(t *testing.T, gw *scriptedGateway, cfg Config) *fixture {
	t.Helper()

	f := newFixture(t, gw, cfg, nil)
	if _, err := f.svc.Ingest(context.Background(), IngestInput{SessionID: "s1", ResumeText: resumeText, JobText: jobText}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func TestTailorInstructionTransform(t *testing.T) {
	t.Parallel()

	rewritten := `\section{Professional Experience}
\resumeSubheading{Engineer}{2019 -- 2024}{Acme}{Remote}`

	gw := newScriptedGateway().
		reply("classify_intent", `{"intent": "transform"}`).
		reply("tailor_instruction", rewritten)
	f := ingested(t, gw, Config{})

	result, err := f.svc.TailorInstruction(context.Background(), "s1", "Rewrite my experience section")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Intent != IntentTransform || result.Content != rewritten {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Context) == 0 {
		t.Fatal("expected retrieved context")
	}
	if len(result.Risks) != 0 || len(result.Warnings) != 0 {
		t.Fatalf("expected a clean result, got risks %v warnings %v", result.Risks, result.Warnings)
	}

	want := []string{"classify_intent", "tailor_instruction"}
	if got := f.gw.names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected calls %v", got)
	}
	if len(f.gw.calls[1].Context) != len(result.Context) {
		t.Fatal("generation did not receive the retrieved context")
	}
}

func TestTailorInstructionFlagsInventedFacts(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().
		reply("classify_intent", `{"intent": "transform"}`).
		reply("tailor_instruction", `\section{Professional Experience}
\resumeSubheading{Lead}{2021 -- 2026}{Initech}{Austin}`)
	f := ingested(t, gw, Config{})

	result, err := f.svc.TailorInstruction(context.Background(), "s1", "Make me sound more senior")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []integrity.Risk{
		{Kind: integrity.KindEmployer, Value: "Initech"},
		{Kind: integrity.KindYear, Value: "2021"},
		{Kind: integrity.KindYear, Value: "2026"},
	}
	if !reflect.DeepEqual(result.Risks, want) {
		t.Fatalf("unexpected risks %v", result.Risks)
	}
	if !result.Success || len(result.Warnings) != len(want) {
		t.Fatalf("risks must be advisory warnings, got %+v", result.Status)
	}
}

func TestTailorInstructionQuestion(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().
		reply("classify_intent", `{"intent": "Question"}`).
		reply("answer_question", "You match the Python and leadership requirements.")
	f := ingested(t, gw, Config{})

	result, err := f.svc.TailorInstruction(context.Background(), "s1", "Am I a good fit?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != IntentQuestion || result.Risks != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTailorInstructionFallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().
		fail("classify_intent", errors.New("model down")).
		reply("answer_question", "Yes.")
	f := ingested(t, gw, Config{})

	result, err := f.svc.TailorInstruction(context.Background(), "s1", "What are my strongest skills?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != IntentQuestion {
		t.Fatalf("expected heuristic question intent, got %s", result.Intent)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected a fallback warning, got %v", result.Warnings)
	}
}

func TestTailorInstructionHeuristicMode(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().reply("tailor_instruction", "Led a team of 4 Python engineers.")
	f := ingested(t, gw, Config{IntentMode: IntentModeHeuristic})

	if _, err := f.svc.TailorInstruction(context.Background(), "s1", "Highlight my leadership"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.gw.names(); !reflect.DeepEqual(got, []string{"tailor_instruction"}) {
		t.Fatalf("heuristic mode must not call the model for intent, got %v", got)
	}
}

func TestTailorInstructionWithoutSession(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().
		reply("classify_intent", `{"intent": "transform"}`).
		reply("tailor_instruction", "A summary.")
	f := newFixture(t, gw, Config{}, nil)

	result, err := f.svc.TailorInstruction(context.Background(), "missing", "Write a summary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Context) != 0 || len(result.Warnings) == 0 {
		t.Fatalf("expected no context and an empty index warning, got %+v", result)
	}
	if f.gw.calls[1].Context != nil && len(f.gw.calls[1].Context) != 0 {
		t.Fatal("generation must run without context")
	}
}

func TestTailorInstructionGenerationFailure(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().
		reply("classify_intent", `{"intent": "transform"}`).
		fail("tailor_instruction", errors.New("quota"))
	f := ingested(t, gw, Config{})

	result, err := f.svc.TailorInstruction(context.Background(), "s1", "Rewrite it")
	if err == nil || result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestSubmitFeedbackLowRatingMakesOneExtraCall(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().
		reply("classify_intent", `{"intent": "transform"}`).
		reply("tailor_instruction", "Python engineer.", "Python engineer who led a team of 4.")
	f := ingested(t, gw, Config{})
	ctx := context.Background()

	generated, err := f.svc.TailorInstruction(ctx, "s1", "Write a one line summary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := len(f.gw.names())

	result, err := f.svc.SubmitFeedback(ctx, feedback.Submission{
		SessionID:   "s1",
		Instruction: "Write a one line summary",
		Generated:   generated.Content,
		Rating:      2,
		Comment:     "mention leadership",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := f.gw.names()
	if len(calls)-before != 1 || calls[len(calls)-1] != "tailor_instruction" {
		t.Fatalf("expected exactly one regeneration call, got %v", calls[before:])
	}
	if result.Refined != "Python engineer who led a team of 4." {
		t.Fatalf("unexpected refined content %q", result.Refined)
	}
	if got := f.gw.calls[len(f.gw.calls)-1].Vars["INSTRUCTION"]; got != feedback.RefineInstruction("Write a one line summary", "mention leadership") {
		t.Fatalf("unexpected refine instruction %q", got)
	}
	if result.ChunkID == "" || !result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubmitFeedbackChecksRefinedContent(t *testing.T) {
	t.Parallel()

	gw := newScriptedGateway().
		reply("tailor_instruction", "Python engineer at Acme since 2017.")
	f := ingested(t, gw, Config{})

	result, err := f.svc.SubmitFeedback(context.Background(), feedback.Submission{
		SessionID:   "s1",
		Instruction: "Write a one line summary",
		Rating:      1,
		Comment:     "add tenure",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []integrity.Risk{{Kind: integrity.KindYear, Value: "2017"}}
	if !reflect.DeepEqual(result.Risks, want) {
		t.Fatalf("unexpected risks %v", result.Risks)
	}
	if !result.Success || len(result.Warnings) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubmitFeedbackUnknownSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedGateway(), Config{}, nil)
	result, err := f.svc.SubmitFeedback(context.Background(), feedback.Submission{SessionID: "nope", Rating: 3})
	if !errors.Is(err, feedback.ErrSessionNotFound) || result.Success {
		t.Fatalf("expected session not found, got %+v %v", result, err)
	}
}

func TestDropSession(t *testing.T) {
	t.Parallel()

	mirror := &recordingMirror{}
	f := newFixture(t, newScriptedGateway(), Config{}, mirror)
	if _, err := f.svc.Ingest(context.Background(), IngestInput{SessionID: "s1", ResumeText: resumeText}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := f.svc.DropSession(context.Background(), "s1")
	if !result.Success || !result.Existed {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := f.sessions.Get("s1"); ok {
		t.Fatal("session still registered")
	}
	if !reflect.DeepEqual(mirror.dropped, []string{"s1"}) {
		t.Fatalf("mirror not cleaned: %v", mirror.dropped)
	}

	if again := f.svc.DropSession(context.Background(), "s1"); again.Existed {
		t.Fatal("second drop must report a missing session")
	}
}

func TestClassifyHeuristic(t *testing.T) {
	t.Parallel()

	cases := map[string]Intent{
		"Rewrite my summary":                      IntentTransform,
		"Can you shorten the experience section?": IntentTransform,
		"What skills am I missing?":               IntentQuestion,
		"is my resume too long":                   IntentQuestion,
		"Leadership bullets for Acme":             IntentTransform,
		"":                                        IntentTransform,
	}
	for instruction, want := range cases {
		if got := ClassifyHeuristic(instruction); got != want {
			t.Fatalf("ClassifyHeuristic(%q) = %s, want %s", instruction, got, want)
		}
	}
}
