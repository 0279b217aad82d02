// Package embedding holds the vector helpers shared by all embedders and the
// deterministic placeholder embedder used when the configured one is
// unavailable.
package embedding

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
)

// DefaultDimension is the vector size used when none is configured.
const DefaultDimension = 384

// PlaceholderName identifies indexes built with placeholder vectors.
const PlaceholderName = "placeholder"

// Normalize scales vec to unit length in place. Zero vectors are left as is.
func Normalize(vec []float64) []float64 {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// FromFloat32 converts a float32 vector as returned by most model APIs.
func FromFloat32(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// Placeholder produces fixed-dimension vectors seeded from a hash of the
// input text. The vectors carry no meaning; an index built with them only
// keeps the pipeline usable.
type Placeholder struct {
	dimension int
}

// NewPlaceholder creates a placeholder embedder with the given dimension.
func NewPlaceholder(dimension int) *Placeholder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Placeholder{dimension: dimension}
}

func (p *Placeholder) Name() string { return PlaceholderName }

func (p *Placeholder) Dimension() int { return p.dimension }

func (p *Placeholder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *Placeholder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

func (p *Placeholder) vector(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := int64(binary.BigEndian.Uint64(h.Sum(nil)))
	rng := rand.New(rand.NewSource(seed))
	vec := make([]float64, p.dimension)
	for i := range vec {
		vec[i] = rng.NormFloat64()
	}
	return Normalize(vec)
}
