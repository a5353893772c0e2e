package tailor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-tailor/internal/agents"
	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/integrity"
	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/vectorindex"

	"go.uber.org/zap"
)

type Intent string

const (
	IntentTransform Intent = "transform"
	IntentQuestion  Intent = "question"
)

const (
	instructionSystem = "You are an expert resume writer and career coach. You help candidates tailor their resumes to specific roles without inventing experience."
	classifySystem    = "You classify user instructions for a resume assistant."
)

type InstructionResult struct {
	Status
	Intent  Intent
	Content string
	Context []vectorindex.Result
	// Risks lists generated facts the source resume does not back. Advisory.
	Risks []integrity.Risk
}

// TailorInstruction answers a free-form instruction with context retrieved
// from the session. Transform requests produce rewritten resume content,
// questions produce an answer.
func (s *Service) TailorInstruction(ctx context.Context, sessionID, instruction string) (*InstructionResult, error) {
	result := &InstructionResult{}
	log := logger.WithSession(s.logger, sessionID)

	if strings.TrimSpace(instruction) == "" {
		err := errors.New("instruction is empty")
		result.Status = failed("instruction failed", err)
		return result, err
	}

	var warnings []string
	excerpts, warning := s.retrieveContext(ctx, sessionID, instruction)
	if warning != "" {
		warnings = append(warnings, warning)
	}
	result.Context = excerpts

	intent, err := s.classify(ctx, instruction)
	if err != nil {
		log.Warn("intent classification failed, using keywords", zap.Error(err))
		warnings = append(warnings, "intent classification failed, used keyword heuristic")
	}
	result.Intent = intent

	content, err := s.respond(ctx, intent, instruction, excerpts)
	if err != nil {
		log.Error("instruction failed", zap.String("intent", string(intent)), zap.Error(err))
		result.Status = failed("instruction failed", err)
		result.Warnings = warnings
		return result, err
	}
	result.Content = content

	if intent == IntentTransform {
		result.Risks = integrity.Check(s.sourceResume(sessionID), content)
		warnings = append(warnings, riskWarnings(log, result.Risks)...)
	}

	log.Info("instruction answered",
		zap.String("intent", string(intent)),
		zap.Int("context_chunks", len(excerpts)),
	)

	result.Status = ok(fmt.Sprintf("Answered %s instruction with %d context chunks", intent, len(excerpts)))
	result.Warnings = warnings
	return result, nil
}

// Refine regenerates content from an amended instruction. It always treats
// the instruction as a transform request and makes exactly one model call.
func (s *Service) Refine(ctx context.Context, sessionID, instruction string) (string, error) {
	excerpts, _ := s.retrieveContext(ctx, sessionID, instruction)
	return s.respond(ctx, IntentTransform, instruction, excerpts)
}

// sourceResume returns the resume text last ingested for sessionID, or ""
// when there is none.
func (s *Service) sourceResume(sessionID string) string {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return ""
	}
	source, _ := sess.Source(vectorindex.SourceResume)
	return source
}

func riskWarnings(log *zap.Logger, risks []integrity.Risk) []string {
	if len(risks) == 0 {
		return nil
	}
	log.Warn("generated content has unverified facts", zap.Int("risks", len(risks)))

	out := make([]string, 0, len(risks))
	for _, risk := range risks {
		out = append(out, "not found in the source resume: "+risk.String())
	}
	return out
}

// retrieveContext retrieves excerpts for query. Retrieval problems only reduce
// grounding, so they are reported as a warning.
func (s *Service) retrieveContext(ctx context.Context, sessionID, query string) ([]vectorindex.Result, string) {
	retrieved, err := s.Retrieve(ctx, sessionID, query, 0)
	if err != nil {
		return nil, "answering without retrieved context: " + err.Error()
	}
	if len(retrieved.Warnings) > 0 {
		return retrieved.Results, strings.Join(retrieved.Warnings, "; ")
	}
	return retrieved.Results, ""
}

func (s *Service) respond(ctx context.Context, intent Intent, instruction string, excerpts []vectorindex.Result) (string, error) {
	prompt := "tailor_instruction"
	if intent == IntentQuestion {
		prompt = "answer_question"
	}

	var out string
	req := gateway.Request{
		Name:     prompt,
		System:   instructionSystem,
		Template: agents.Prompt(prompt),
		Vars:     map[string]string{"INSTRUCTION": instruction},
		Context:  excerpts,
	}
	if err := s.gw.Generate(ctx, req, gateway.Text(prompt, &out, "", nil)); err != nil {
		return "", err
	}
	return out, nil
}

type intentDecision struct {
	Intent string `json:"intent"`
}

func (d *intentDecision) RequiredFields() []string { return []string{"intent"} }

func (d *intentDecision) Validate() error {
	d.Intent = strings.ToLower(strings.TrimSpace(d.Intent))
	switch Intent(d.Intent) {
	case IntentTransform, IntentQuestion:
		return nil
	default:
		return fmt.Errorf("unknown intent %q", d.Intent)
	}
}

// classify asks the model for the intent. On failure it returns the keyword
// heuristic's answer together with the error.
func (s *Service) classify(ctx context.Context, instruction string) (Intent, error) {
	if s.cfg.IntentMode == IntentModeHeuristic {
		return ClassifyHeuristic(instruction), nil
	}

	var decision intentDecision
	req := gateway.Request{
		Name:     "classify_intent",
		System:   classifySystem,
		Template: agents.Prompt("classify_intent"),
		Vars:     map[string]string{"INSTRUCTION": instruction},
	}
	if err := s.gw.Generate(ctx, req, gateway.JSON(&decision)); err != nil {
		return ClassifyHeuristic(instruction), err
	}
	return Intent(decision.Intent), nil
}

var (
	transformWords = []string{
		"rewrite", "write", "rephrase", "improve", "make", "add", "remove", "tailor",
		"generate", "create", "shorten", "expand", "emphasize", "emphasise", "highlight",
		"change", "update", "draft", "reword", "optimize", "optimise", "condense",
	}
	questionWords = []string{
		"what", "how", "why", "which", "who", "when", "where", "is", "are", "am",
		"can", "could", "should", "do", "does", "did", "would", "will",
	}
)

// ClassifyHeuristic decides the intent from keywords. Instructions that use
// an editing verb are transforms; otherwise a question mark or a leading
// question word makes a question. Anything else is a transform.
func ClassifyHeuristic(instruction string) Intent {
	words := strings.FieldsFunc(strings.ToLower(instruction), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'')
	})

	for _, w := range words {
		for _, verb := range transformWords {
			if w == verb {
				return IntentTransform
			}
		}
	}

	if strings.HasSuffix(strings.TrimSpace(instruction), "?") {
		return IntentQuestion
	}
	if len(words) > 0 {
		for _, q := range questionWords {
			if words[0] == q {
				return IntentQuestion
			}
		}
	}

	return IntentTransform
}
