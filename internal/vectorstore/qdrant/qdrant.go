package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lawrag/internal/domain"
)

// pointNamespace derives stable point UUIDs from chunk ids, which Qdrant
// does not accept as ids directly.
var pointNamespace = uuid.MustParse("6f1c2a4e-3b8d-4f7a-9c2e-1d5b8a7e4c30")

// Storage is a minimal REST client to Qdrant using cosine distance.
// Collection info travels in every point payload.
type Storage struct {
	url    string
	apiKey string
	client *http.Client

	mu    sync.Mutex
	infos map[string]domain.CollectionInfo
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		infos:  make(map[string]domain.CollectionInfo),
	}
}

// PointID returns the Qdrant point id used for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type errNotFound struct{ url string }

func (e errNotFound) Error() string { return "qdrant: not found: " + e.url }

func (s *Storage) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.infos, name)
	s.mu.Unlock()
	err := s.do(ctx, http.MethodDelete, s.collectionURL(name), nil, nil)
	var nf errNotFound
	if errors.As(err, &nf) {
		return nil
	}
	return err
}

func (s *Storage) CreateCollection(ctx context.Context, info domain.CollectionInfo) error {
	if info.Dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     info.Dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(info.Name), body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.infos[info.Name] = info
	s.mu.Unlock()
	return nil
}

// Add upserts records, stamping the collection info into each payload.
func (s *Storage) Add(ctx context.Context, collection string, records []domain.Record) error {
	info, err := s.collectionDetails(ctx, collection)
	if err != nil {
		return err
	}
	s.mu.Lock()
	meta, ok := s.infos[collection]
	s.mu.Unlock()
	if !ok {
		if meta, err = s.Info(ctx, collection); err != nil {
			return err
		}
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		if len(r.Embedding) != info.Dimension {
			return fmt.Errorf("%w: record %s has %d, collection %d", domain.ErrDimensionMismatch, r.ID, len(r.Embedding), info.Dimension)
		}
		points[i] = map[string]any{
			"id":     PointID(r.ID),
			"vector": r.Embedding,
			"payload": map[string]any{
				"chunk_id": r.ID,
				"text":     r.Text,
				"source":   r.Source,
				"article":  r.Article,
				"ordinal":  r.Ordinal,
				"seq":      info.Count + i,
				"embedder": meta.Embedder,
				"degraded": meta.Degraded,
				"built_at": meta.BuiltAt.Format(time.RFC3339),
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL(collection)+"/points?wait=true", body, nil)
}

func (s *Storage) Query(ctx context.Context, collection string, vector []float64, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL(collection)+"/points/search", req, &resp); err != nil {
		return nil, s.notFound(err, collection)
	}
	results := make([]domain.Match, 0, len(resp.Result))
	for i, r := range resp.Result {
		results = append(results, domain.Match{
			ID:       r.Payload.ChunkID,
			Text:     r.Payload.Text,
			Source:   r.Payload.Source,
			Distance: 1 - r.Score,
			Rank:     i,
		})
	}
	return results, nil
}

func (s *Storage) Info(ctx context.Context, collection string) (domain.CollectionInfo, error) {
	info, err := s.collectionDetails(ctx, collection)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	points, _, err := s.scroll(ctx, collection, nil, 1, false)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	if len(points) > 0 {
		p := points[0].Payload
		info.Embedder = p.Embedder
		info.Degraded = p.Degraded
		info.BuiltAt, _ = time.Parse(time.RFC3339, p.BuiltAt)
	}
	return info, nil
}

func (s *Storage) List(ctx context.Context, collection string) ([]domain.Record, error) {
	type seqRecord struct {
		seq int
		rec domain.Record
	}
	var all []seqRecord
	var offset any
	for {
		points, next, err := s.scroll(ctx, collection, offset, 256, true)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			all = append(all, seqRecord{seq: p.Payload.Seq, rec: domain.Record{
				Chunk: domain.Chunk{
					ID:       p.Payload.ChunkID,
					Text:     p.Payload.Text,
					Source:   p.Payload.Source,
					Article:  p.Payload.Article,
					Ordinal:  p.Payload.Ordinal,
					Preamble: p.Payload.Article == "",
				},
				Embedding: p.Vector,
			}})
		}
		if next == nil {
			break
		}
		offset = next
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]domain.Record, len(all))
	for i, r := range all {
		out[i] = r.rec
	}
	return out, nil
}

func (s *Storage) Close() error { return nil }

type payload struct {
	ChunkID  string `json:"chunk_id"`
	Text     string `json:"text"`
	Source   string `json:"source"`
	Article  string `json:"article"`
	Ordinal  int    `json:"ordinal"`
	Seq      int    `json:"seq"`
	Embedder string `json:"embedder"`
	Degraded bool   `json:"degraded"`
	BuiltAt  string `json:"built_at"`
}

type point struct {
	Payload payload   `json:"payload"`
	Vector  []float64 `json:"vector"`
}

func (s *Storage) scroll(ctx context.Context, collection string, offset any, limit int, withVector bool) ([]point, any, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  withVector,
	}
	if offset != nil {
		req["offset"] = offset
	}
	var resp struct {
		Result struct {
			Points         []point `json:"points"`
			NextPageOffset any     `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL(collection)+"/points/scroll", req, &resp); err != nil {
		return nil, nil, s.notFound(err, collection)
	}
	return resp.Result.Points, resp.Result.NextPageOffset, nil
}

func (s *Storage) collectionDetails(ctx context.Context, collection string) (domain.CollectionInfo, error) {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionURL(collection), nil, &resp); err != nil {
		return domain.CollectionInfo{}, s.notFound(err, collection)
	}
	return domain.CollectionInfo{
		Name:      collection,
		Dimension: resp.Result.Config.Params.Vectors.Size,
		Count:     resp.Result.PointsCount,
	}, nil
}

func (s *Storage) notFound(err error, collection string) error {
	var nf errNotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
	}
	return err
}

func (s *Storage) collectionURL(collection string) string {
	return fmt.Sprintf("%s/collections/%s", s.url, collection)
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound{url: url}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
