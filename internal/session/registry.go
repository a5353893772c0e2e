// Package session owns the per-session vector indexes and their lifecycle.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/vectorindex"

	"go.uber.org/zap"
)

// Session is the collection of everything indexed for one user session.
type Session struct {
	ID        string
	Index     *vectorindex.Index
	CreatedAt time.Time

	mu       sync.RWMutex
	sources  map[vectorindex.SourceTag]string
	lastUsed time.Time
}

// SetSource remembers the plain text last ingested under tag.
func (s *Session) SetSource(tag vectorindex.SourceTag, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[tag] = text
}

// Source returns the plain text last ingested under tag.
func (s *Session) Source(tag vectorindex.SourceTag) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.sources[tag]
	return text, ok
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Registry maps session ids to sessions. Sessions idle for longer than the
// TTL are evicted on the next registry access; a zero TTL keeps them forever.
type Registry struct {
	dims   int
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose indexes accept vectors of dims size.
func NewRegistry(dims int, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dims:     dims,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating an empty one on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	id = strings.TrimSpace(id)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(now)

	if s, ok := r.sessions[id]; ok {
		s.touch(now)
		return s
	}

	s := &Session{
		ID:        id,
		Index:     vectorindex.New(id, r.dims),
		CreatedAt: now,
		sources:   make(map[vectorindex.SourceTag]string),
		lastUsed:  now,
	}
	r.sessions[id] = s

	logger.WithSession(r.logger, id).Debug("session created")
	return s
}

// Get returns an existing session.
func (r *Registry) Get(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(now)

	s, ok := r.sessions[id]
	if ok {
		s.touch(now)
	}
	return s, ok
}

// Drop discards a session and its chunks. It reports whether the session existed.
func (r *Registry) Drop(id string) bool {
	id = strings.TrimSpace(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.Index.Clear()
	delete(r.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(r.now())
	return len(r.sessions)
}

func (r *Registry) evictLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}

	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) <= r.ttl {
			continue
		}
		s.Index.Clear()
		delete(r.sessions, id)
		r.logger.Info("session evicted",
			zap.String(logger.FieldSession, id),
			zap.Duration("ttl", r.ttl),
		)
	}
}
