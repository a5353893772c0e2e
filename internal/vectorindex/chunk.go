package vectorindex

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceTag tells where a chunk came from.
type SourceTag string

const (
	SourceResume   SourceTag = "resume"
	SourceJob      SourceTag = "job"
	SourceFeedback SourceTag = "feedback"
)

// Valid reports whether t is one of the known tags.
func (t SourceTag) Valid() bool {
	switch t {
	case SourceResume, SourceJob, SourceFeedback:
		return true
	default:
		return false
	}
}

// Chunk is a slice of source text together with its embedding.
// Chunks are never modified after they are handed to an Index.
type Chunk struct {
	ID        string
	SessionID string
	Source    SourceTag
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// NewChunks pairs texts with their vectors and assigns fresh ids.
func NewChunks(sessionID string, source SourceTag, texts []string, vectors [][]float32, createdAt time.Time) ([]Chunk, error) {
	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("got %d texts and %d vectors", len(texts), len(vectors))
	}

	if !source.Valid() {
		return nil, fmt.Errorf("unknown source tag %q", source)
	}

	chunks := make([]Chunk, len(texts))
	for i := range texts {
		chunks[i] = Chunk{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Source:    source,
			Text:      texts[i],
			Embedding: vectors[i],
			CreatedAt: createdAt,
		}
	}

	return chunks, nil
}
