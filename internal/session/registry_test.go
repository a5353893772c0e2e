package session

import (
	"testing"
	"time"

	"github.com/spigell/resume-tailor/internal/vectorindex"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestGetOrCreateReusesSession(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 0, zap.NewNop())
	first := r.GetOrCreate("user-1")
	second := r.GetOrCreate(" user-1 ")

	if first != second {
		t.Fatalf("expected the same session instance")
	}
	if first.Index.Dimensions() != 4 {
		t.Fatalf("expected index dimension 4, got %d", first.Index.Dimensions())
	}

	if _, ok := r.Get("user-2"); ok {
		t.Fatalf("expected unknown session to be missing")
	}
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}

	r := NewRegistry(2, time.Hour, zap.New(core))
	r.now = clock.Now

	r.GetOrCreate("idle")
	clock.now = clock.now.Add(40 * time.Minute)
	r.GetOrCreate("active")

	clock.now = clock.now.Add(30 * time.Minute)
	if _, ok := r.Get("idle"); ok {
		t.Fatalf("expected idle session to be evicted")
	}
	if _, ok := r.Get("active"); !ok {
		t.Fatalf("expected active session to survive")
	}

	evictions := observed.FilterMessage("session evicted").All()
	if len(evictions) != 1 {
		t.Fatalf("expected 1 eviction log, got %d", len(evictions))
	}
	if evictions[0].ContextMap()["session_id"] != "idle" {
		t.Fatalf("unexpected evicted session: %v", evictions[0].ContextMap())
	}
}

func TestRegistryZeroTTLNeverEvicts(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	r := NewRegistry(2, 0, nil)
	r.now = clock.Now

	r.GetOrCreate("s")
	clock.now = clock.now.Add(24 * 365 * time.Hour)

	if r.Len() != 1 {
		t.Fatalf("expected session to be kept")
	}
}

func TestDropClearsSession(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1, 0, nil)
	s := r.GetOrCreate("s")
	s.SetSource(vectorindex.SourceResume, "resume text")
	_ = s.Index.Add([]vectorindex.Chunk{{ID: "c", SessionID: "s", Source: vectorindex.SourceResume, Embedding: []float32{1}}})

	if !r.Drop("s") {
		t.Fatalf("expected drop to report existing session")
	}
	if s.Index.Len() != 0 {
		t.Fatalf("expected index to be cleared")
	}
	if r.Drop("s") {
		t.Fatalf("expected second drop to report missing session")
	}

	if text, ok := s.Source(vectorindex.SourceResume); !ok || text != "resume text" {
		t.Fatalf("unexpected source: %q %v", text, ok)
	}
}
