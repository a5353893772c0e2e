package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashingDimensions = 256

// HashingEmbedder is a deterministic offline embedder. Lower-cased word tokens
// are hashed into a fixed number of signed buckets and the result is L2
// normalised, so texts sharing vocabulary land close to each other.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a HashingEmbedder producing vectors of dims size.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = defaultHashingDimensions
	}
	return &HashingEmbedder{dims: dims}
}

func (h *HashingEmbedder) Dimensions() int { return h.dims }

func (h *HashingEmbedder) Model() string { return "hashing" }

func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = h.vector(text)
	}
	return vectors, nil
}

func (h *HashingEmbedder) vector(text string) []float32 {
	vector := make([]float32, h.dims)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})

	for _, token := range tokens {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		sum := hasher.Sum32()

		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vector[int(sum%uint32(h.dims))] += sign
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}

	return vector
}
