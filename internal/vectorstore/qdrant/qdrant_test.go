package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawrag/internal/domain"
)

func TestPointID_StableUUID(t *testing.T) {
	a := PointID("劳动法全文.txt_1")
	assert.Equal(t, a, PointID("劳动法全文.txt_1"))
	assert.NotEqual(t, a, PointID("劳动法全文.txt_2"))
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestDropCollection_MissingIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	require.NoError(t, s.DropCollection(context.Background(), "legal_documents"))
}

func TestDropCollection_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	require.Error(t, s.DropCollection(context.Background(), "legal_documents"))
}

func TestQuery_ScoreBecomesDistance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/legal_documents/points/search", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("api-key"))
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 2, req["limit"])
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.9,"payload":{"chunk_id":"law.txt_1","text":"第二条 乙","source":"law.txt"}},
			{"score":0.4,"payload":{"chunk_id":"law.txt_0","text":"第一条 甲","source":"law.txt"}}
		]}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, APIKey: "k"})
	got, err := s.Query(context.Background(), "legal_documents", []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "law.txt_1", got[0].ID)
	assert.InDelta(t, 0.1, got[0].Distance, 1e-9)
	assert.Equal(t, 1, got[1].Rank)
}

func TestInfo_MissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	_, err := s.Info(context.Background(), "legal_documents")
	assert.True(t, errors.Is(err, domain.ErrCollectionNotFound))
}

func TestAdd_StampsCollectionInfo(t *testing.T) {
	var upserted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/c":
			_, _ = w.Write([]byte(`{"result":true}`))
		case r.Method == http.MethodGet && r.URL.Path == "/collections/c":
			_, _ = w.Write([]byte(`{"result":{"points_count":0,"config":{"params":{"vectors":{"size":2}}}}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/c/points":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			_, _ = w.Write([]byte(`{"result":{}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewStorage(Config{URL: srv.URL})
	require.NoError(t, s.CreateCollection(ctx, domain.CollectionInfo{Name: "c", Embedder: "placeholder", Dimension: 2, Degraded: true}))
	rec := domain.Record{Chunk: domain.Chunk{ID: "law.txt_0", Text: "第一条 甲", Source: "law.txt", Article: "第一条"}, Embedding: []float64{1, 0}}
	require.NoError(t, s.Add(ctx, "c", []domain.Record{rec}))

	points := upserted["points"].([]any)
	require.Len(t, points, 1)
	p := points[0].(map[string]any)
	assert.Equal(t, PointID("law.txt_0"), p["id"])
	pl := p["payload"].(map[string]any)
	assert.Equal(t, "placeholder", pl["embedder"])
	assert.Equal(t, true, pl["degraded"])
	assert.Equal(t, "第一条", pl["article"])

	err := s.Add(ctx, "c", []domain.Record{{Chunk: rec.Chunk, Embedding: []float64{1}}})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}
