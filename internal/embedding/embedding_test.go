package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholder_DeterministicShape(t *testing.T) {
	p := NewPlaceholder(16)
	ctx := context.Background()

	vecs, err := p.EmbedDocuments(ctx, []string{"第一条 甲", "第二条 乙"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		assert.Len(t, v, 16)
	}

	again, err := p.EmbedQuery(ctx, "第一条 甲")
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestPlaceholder_DefaultDimension(t *testing.T) {
	p := NewPlaceholder(0)
	assert.Equal(t, DefaultDimension, p.Dimension())
	assert.Equal(t, PlaceholderName, p.Name())
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)

	zero := Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, zero)

	n := 0.0
	for _, x := range NewPlaceholder(8).vector("abc") {
		n += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(n), 1e-9)
}

func TestFromFloat32(t *testing.T) {
	assert.Equal(t, []float64{0.5, -1}, FromFloat32([]float32{0.5, -1}))
}
