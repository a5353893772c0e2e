// Package vectorindex keeps the chunks of one session and answers
// nearest-neighbour queries over them.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

var (
	// ErrDimensionMismatch is returned for vectors whose size differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrForeignChunk is returned when a chunk belongs to another session.
	ErrForeignChunk = errors.New("chunk belongs to another session")
)

// Result is a chunk reference scored against a query.
type Result struct {
	ChunkID   string
	SessionID string
	Source    SourceTag
	Text      string
	CreatedAt time.Time
	Score     float64
}

type entry struct {
	chunk  Chunk
	vector []float32
	seq    uint64
}

// Index is an in-memory cosine similarity index for a single session.
// Readers always observe a complete state: every mutation swaps the entry
// list under the write lock.
type Index struct {
	sessionID string
	dims      int

	mu      sync.RWMutex
	entries []entry
	seq     uint64
}

// New creates an empty index accepting vectors of dims size.
func New(sessionID string, dims int) *Index {
	return &Index{sessionID: sessionID, dims: dims}
}

// SessionID returns the owning session.
func (i *Index) SessionID() string { return i.sessionID }

// Dimensions returns the accepted vector size.
func (i *Index) Dimensions() int { return i.dims }

// Replace drops every chunk whose tag is a key of batch and inserts the new
// chunks for those tags. Tags absent from batch are left untouched. Nothing
// is changed when any chunk is rejected.
func (i *Index) Replace(batch map[SourceTag][]Chunk) error {
	tags := make([]SourceTag, 0, len(batch))
	for tag := range batch {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(a, b int) bool { return tags[a] < tags[b] })

	prepared := make([]entry, 0)
	for _, tag := range tags {
		chunks := batch[tag]
		if !tag.Valid() {
			return fmt.Errorf("unknown source tag %q", tag)
		}
		for _, chunk := range chunks {
			if chunk.Source != tag {
				return fmt.Errorf("chunk %s tagged %q inside %q batch", chunk.ID, chunk.Source, tag)
			}
		}

		entries, err := i.prepare(chunks)
		if err != nil {
			return err
		}
		prepared = append(prepared, entries...)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	kept := make([]entry, 0, len(i.entries)+len(prepared))
	for _, e := range i.entries {
		if _, replaced := batch[e.chunk.Source]; !replaced {
			kept = append(kept, e)
		}
	}

	i.entries = append(kept, i.stamp(prepared)...)
	return nil
}

// Add appends chunks without removing anything.
func (i *Index) Add(chunks []Chunk) error {
	for _, chunk := range chunks {
		if !chunk.Source.Valid() {
			return fmt.Errorf("unknown source tag %q", chunk.Source)
		}
	}

	prepared, err := i.prepare(chunks)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	next := make([]entry, 0, len(i.entries)+len(prepared))
	next = append(next, i.entries...)
	i.entries = append(next, i.stamp(prepared)...)
	return nil
}

// Query returns up to k results ordered by descending similarity. Ties go to
// the most recently created chunk. An empty index yields an empty result.
func (i *Index) Query(vector []float32, k int) ([]Result, error) {
	if len(vector) != i.dims {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", ErrDimensionMismatch, len(vector), i.dims)
	}

	if k <= 0 {
		return []Result{}, nil
	}

	query := normalize(vector)

	i.mu.RLock()
	entries := i.entries
	i.mu.RUnlock()

	type scored struct {
		entry entry
		score float64
	}

	candidates := make([]scored, len(entries))
	for idx, e := range entries {
		candidates[idx] = scored{entry: e, score: dot(query, e.vector)}
	}

	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		if !ca.entry.chunk.CreatedAt.Equal(cb.entry.chunk.CreatedAt) {
			return ca.entry.chunk.CreatedAt.After(cb.entry.chunk.CreatedAt)
		}
		return ca.entry.seq > cb.entry.seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]Result, len(candidates))
	for idx, c := range candidates {
		results[idx] = Result{
			ChunkID:   c.entry.chunk.ID,
			SessionID: c.entry.chunk.SessionID,
			Source:    c.entry.chunk.Source,
			Text:      c.entry.chunk.Text,
			CreatedAt: c.entry.chunk.CreatedAt,
			Score:     c.score,
		}
	}

	return results, nil
}

// Len returns the number of chunks in the index.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Count returns the number of chunks carrying tag.
func (i *Index) Count(tag SourceTag) int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n := 0
	for _, e := range i.entries {
		if e.chunk.Source == tag {
			n++
		}
	}
	return n
}

// Clear removes every chunk.
func (i *Index) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = nil
}

func (i *Index) prepare(chunks []Chunk) ([]entry, error) {
	entries := make([]entry, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.SessionID != i.sessionID {
			return nil, fmt.Errorf("%w: chunk %s has session %q, index %q", ErrForeignChunk, chunk.ID, chunk.SessionID, i.sessionID)
		}
		if len(chunk.Embedding) != i.dims {
			return nil, fmt.Errorf("%w: chunk %s has %d, index expects %d", ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), i.dims)
		}

		chunk.Embedding = append([]float32(nil), chunk.Embedding...)
		entries = append(entries, entry{chunk: chunk, vector: normalize(chunk.Embedding)})
	}
	return entries, nil
}

// stamp must be called with the write lock held.
func (i *Index) stamp(entries []entry) []entry {
	for idx := range entries {
		i.seq++
		entries[idx].seq = i.seq
	}
	return entries
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}

	scale := 1 / math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) * scale)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
