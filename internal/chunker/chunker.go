// Package chunker splits plain text into overlapping fixed-size windows.
package chunker

import "strings"

const (
	// DefaultSize is the default number of characters per chunk.
	DefaultSize = 1000
	// DefaultOverlap is the default number of characters shared by neighbouring chunks.
	DefaultOverlap = 200
)

// Chunker splits text into windows of size characters where each window
// repeats the last overlap characters of the previous one.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSize sets the window size in characters.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between neighbouring windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options applied over the defaults.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// overlap must leave room for progress
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered windows of text. Empty or whitespace-only input
// yields no windows. Windows are measured in runes, so multi-byte characters
// are never cut in half.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)
	step := c.size - c.overlap

	chunks := make([]string, 0, total/step+1)
	for start := 0; ; start += step {
		end := start + c.size
		if end > total {
			end = total
		}

		chunks = append(chunks, string(runes[start:end]))

		if end == total {
			break
		}
	}

	return chunks
}

// Split is a shortcut for New(WithSize(size), WithOverlap(overlap)).Split(text).
func Split(text string, size, overlap int) []string {
	return New(WithSize(size), WithOverlap(overlap)).Split(text)
}
