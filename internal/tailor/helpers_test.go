package tailor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spigell/resume-tailor/internal/embedding"
	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/session"
	"github.com/spigell/resume-tailor/internal/vectorindex"

	"go.uber.org/zap"
)

const dims = 64

// scriptedGateway replies per request name. The last reply of a queue is
// repeated for further calls.
type scriptedGateway struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	calls   []gateway.Request
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{replies: make(map[string][]string), errs: make(map[string]error)}
}

func (g *scriptedGateway) reply(name string, replies ...string) *scriptedGateway {
	g.replies[name] = append(g.replies[name], replies...)
	return g
}

func (g *scriptedGateway) fail(name string, err error) *scriptedGateway {
	g.errs[name] = err
	return g
}

func (g *scriptedGateway) Generate(_ context.Context, req gateway.Request, schema gateway.Schema) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, req)
	if err := g.errs[req.Name]; err != nil {
		return err
	}

	queue := g.replies[req.Name]
	if len(queue) == 0 {
		return fmt.Errorf("no reply scripted for %s", req.Name)
	}
	raw := queue[0]
	if len(queue) > 1 {
		g.replies[req.Name] = queue[1:]
	}

	if err := schema.Decode(raw); err != nil {
		return &gateway.SchemaError{Schema: schema.Name(), Raw: raw, Err: err}
	}
	return nil
}

func (g *scriptedGateway) names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, len(g.calls))
	for i, c := range g.calls {
		out[i] = c.Name
	}
	return out
}

// flakyEmbedder fails every call once failing is set.
type flakyEmbedder struct {
	*embedding.HashingEmbedder
	mu      sync.Mutex
	failing bool
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return nil, errors.New("embedding service unavailable")
	}
	return f.HashingEmbedder.Embed(ctx, texts)
}

func (f *flakyEmbedder) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

type recordingMirror struct {
	mu       sync.Mutex
	replaced map[string][]vectorindex.SourceTag
	appended int
	dropped  []string
	err      error
}

func (m *recordingMirror) Replace(_ context.Context, sessionID string, batch map[vectorindex.SourceTag][]vectorindex.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaced == nil {
		m.replaced = make(map[string][]vectorindex.SourceTag)
	}
	for tag := range batch {
		m.replaced[sessionID] = append(m.replaced[sessionID], tag)
	}
	return m.err
}

func (m *recordingMirror) Append(_ context.Context, chunks []vectorindex.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended += len(chunks)
	return m.err
}

func (m *recordingMirror) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, sessionID)
	return m.err
}

type fixture struct {
	svc      *Service
	gw       *scriptedGateway
	sessions *session.Registry
	embedder *flakyEmbedder
}

func newFixture(t *testing.T, gw *scriptedGateway, cfg Config, mirror Mirror) *fixture {
	t.Helper()

	embedder := &flakyEmbedder{HashingEmbedder: embedding.NewHashingEmbedder(dims)}
	client := embedding.NewClient(embedder, embedding.Config{RetryDelay: 1}, nil)
	sessions := session.NewRegistry(dims, 0, nil)

	svc, err := New(cfg, Deps{
		Embedder: client,
		Sessions: sessions,
		Gateway:  gw,
		Mirror:   mirror,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return &fixture{svc: svc, gw: gw, sessions: sessions, embedder: embedder}
}

const (
	jobJSON = `{
  "required_skills": ["Python", "Leadership"],
  "preferred_skills": [],
  "keywords": ["Python", "team lead"],
  "experience_level": "senior"
}`

	resumeJSON = `{
  "name": "Alex Doe",
  "skills": ["Python"],
  "experience": [{"title": "Engineer", "company": "Acme", "duration": "2019-2024", "responsibilities": ["Led a team of 4"]}],
  "education": [],
  "projects": []
}`

	strategyJSON = `{
  "match_score": 85,
  "match_summary": "Five years of Python and team leadership",
  "strong_matches": ["Python", "Leadership"],
  "gaps": [],
  "emphasize": ["team leadership"],
  "add_keywords": ["Senior"],
  "action_items": ["Lead with leadership"]
}`

	documentBody = `\section{Summary}
Python engineer with five years of experience who led a team of 4.`
)

func pipelineGateway() *scriptedGateway {
	return newScriptedGateway().
		reply("job_analyzer", jobJSON).
		reply("resume_analyzer", resumeJSON).
		reply("strategy_creator", strategyJSON).
		reply("resume_generator", documentBody)
}

const (
	resumeText = `Alex Doe. Engineer at Acme from 2019 to 2024.
5 years Python, led a team of 4. Built data pipelines and mentored junior engineers.`
	jobText = `Senior Python engineer, leadership required. You will lead a small team building data services.`
)
