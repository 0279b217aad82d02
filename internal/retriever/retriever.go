// Package retriever answers nearest-article queries against a built index.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"lawrag/internal/domain"
	"lawrag/internal/embedding"
)

type Config struct {
	Collection string
	// RejectDegraded refuses to serve an index built with placeholder vectors.
	RejectDegraded bool
}

// Retriever embeds queries with the index's embedding function and returns
// the nearest chunks. Open must be called before Retrieve and again after
// every rebuild.
type Retriever struct {
	store    domain.VectorStore
	embedder domain.Embedder
	cfg      Config
	log      zerolog.Logger

	mu     sync.RWMutex
	active domain.Embedder
	info   domain.CollectionInfo
	empty  bool
	opened bool
}

func New(store domain.VectorStore, embedder domain.Embedder, cfg Config, log zerolog.Logger) *Retriever {
	if cfg.Collection == "" {
		cfg.Collection = "legal_documents"
	}
	return &Retriever{store: store, embedder: embedder, cfg: cfg, log: log}
}

// Open loads the collection info and aligns the query embedder with it.
func (r *Retriever) Open(ctx context.Context) error {
	info, err := r.store.Info(ctx, r.cfg.Collection)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		r.log.Warn().Str("collection", r.cfg.Collection).Msg("collection not built yet, retrieval returns nothing")
		r.set(domain.CollectionInfo{Name: r.cfg.Collection}, nil, true)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read collection info: %w", err)
	}
	if info.Count == 0 {
		r.set(info, nil, true)
		return nil
	}

	var active domain.Embedder
	switch {
	case info.Degraded:
		if r.cfg.RejectDegraded {
			return fmt.Errorf("%w: %s", domain.ErrDegradedIndex, info.Name)
		}
		r.log.Warn().
			Str("collection", info.Name).
			Time("built_at", info.BuiltAt).
			Msg("serving index built with placeholder vectors, results are not meaningful")
		active = embedding.NewPlaceholder(info.Dimension)
	case info.Embedder != r.embedder.Name():
		return fmt.Errorf("%w: index built with %q, configured %q", domain.ErrEmbedderMismatch, info.Embedder, r.embedder.Name())
	default:
		active = r.embedder
		if p, ok := active.(domain.Preparer); ok {
			records, err := r.store.List(ctx, info.Name)
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}
			texts := make([]string, len(records))
			for i, rec := range records {
				texts[i] = rec.Text
			}
			if err := p.Prepare(texts); err != nil {
				return fmt.Errorf("prepare %s: %w", active.Name(), err)
			}
		}
	}
	if d := active.Dimension(); d > 0 && d != info.Dimension {
		return fmt.Errorf("%w: embedder %d, index %d", domain.ErrDimensionMismatch, d, info.Dimension)
	}
	r.set(info, active, false)
	r.log.Debug().Str("collection", info.Name).Int("count", info.Count).Str("embedder", active.Name()).Msg("retriever opened")
	return nil
}

func (r *Retriever) set(info domain.CollectionInfo, active domain.Embedder, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info, r.active, r.empty, r.opened = info, active, empty, true
}

// Info returns the collection info read by the last Open.
func (r *Retriever) Info() domain.CollectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

// Retrieve returns up to k matches ordered by ascending cosine distance.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	r.mu.RLock()
	active, info, empty, opened := r.active, r.info, r.empty, r.opened
	r.mu.RUnlock()
	if !opened {
		return nil, errors.New("retriever not opened")
	}
	if empty {
		return []domain.Match{}, nil
	}
	vec, err := active.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.store.Query(ctx, info.Name, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", info.Name, err)
	}
	return matches, nil
}
