package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawrag/internal/domain"
)

func record(id string, v ...float64) domain.Record {
	return domain.Record{Chunk: domain.Chunk{ID: id, Text: id, Source: "law.txt"}, Embedding: v}
}

func TestStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	require.NoError(t, s.DropCollection(ctx, "legal_documents"))
	require.NoError(t, s.CreateCollection(ctx, domain.CollectionInfo{Name: "legal_documents", Embedder: "tfidf", Dimension: 2}))
	require.NoError(t, s.Add(ctx, "legal_documents", []domain.Record{record("a", 1, 0), record("b", 0, 1)}))

	info, err := s.Info(ctx, "legal_documents")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Count)
	assert.Equal(t, "tfidf", info.Embedder)

	got, err := s.Query(ctx, "legal_documents", []float64{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	require.NoError(t, s.DropCollection(ctx, "legal_documents"))
	_, err = s.Info(ctx, "legal_documents")
	assert.True(t, errors.Is(err, domain.ErrCollectionNotFound))
}

func TestStorage_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.CreateCollection(ctx, domain.CollectionInfo{Name: "c", Dimension: 2}))
	err := s.Add(ctx, "c", []domain.Record{record("a", 1, 0, 0)})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestStorage_EmptyCollectionQuery(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.CreateCollection(ctx, domain.CollectionInfo{Name: "c", Dimension: 2}))
	got, err := s.Query(ctx, "c", []float64{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorage_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.CreateCollection(ctx, domain.CollectionInfo{Name: "c", Dimension: 1}))
	require.NoError(t, s.Add(ctx, "c", []domain.Record{record("x", 1), record("y", 1), record("z", 1)}))
	recs, err := s.List(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "x", recs[0].ID)
	assert.Equal(t, "z", recs[2].ID)
}
