// Package vectorstore contains the brute-force ranking shared by the local
// vector stores. Implementations live in the subpackages.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"lawrag/internal/domain"
)

// CosineDistance returns 1 - cosine similarity of a and b. A zero vector is
// at distance 1 from everything.
func CosineDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	return 1 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

// Rank returns the k records nearest to vector, ascending by distance.
// Records are expected in insertion order; equal distances keep that order.
func Rank(records []domain.Record, vector []float64, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	type scored struct {
		idx  int
		dist float64
	}
	scores := make([]scored, len(records))
	for i, r := range records {
		d, err := CosineDistance(r.Embedding, vector)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		scores[i] = scored{idx: i, dist: d}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]domain.Match, 0, k)
	for rank, s := range scores[:k] {
		r := records[s.idx]
		out = append(out, domain.Match{ID: r.ID, Text: r.Text, Source: r.Source, Distance: s.dist, Rank: rank})
	}
	return out, nil
}
