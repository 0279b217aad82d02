// Package indexer rebuilds the statute collection from the source documents.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lawrag/internal/domain"
	"lawrag/internal/embedding"
)

// DefaultCollection is the collection every run rebuilds.
const DefaultCollection = "legal_documents"

// Config controls how an index is built.
type Config struct {
	Collection string
	// Dimension sizes placeholder vectors when the embedder cannot report one.
	Dimension int
	// Fallback allows placeholder vectors when the embedder fails.
	Fallback bool
}

// Result summarizes one indexing run.
type Result struct {
	Collection string
	Documents  int
	Chunks     int
	Embedder   string
	Dimension  int
	Degraded   bool
	Duration   time.Duration
}

// Indexer segments documents, embeds the chunks and replaces the collection.
type Indexer struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	store    domain.VectorStore
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

func New(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, cfg Config, log zerolog.Logger) *Indexer {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	return &Indexer{chunker: chunker, embedder: embedder, store: store, cfg: cfg, log: log, now: time.Now}
}

// LoadDocuments reads every .txt file in dir in lexical order. Files that
// cannot be read are logged and returned in skipped; a directory that cannot
// be listed is an error.
func LoadDocuments(dir string, log zerolog.Logger) (docs []domain.Document, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read data dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable document")
			skipped = append(skipped, e.Name())
			continue
		}
		docs = append(docs, domain.Document{Name: e.Name(), Path: path, Content: string(data)})
	}
	return docs, skipped, nil
}

// Index rebuilds the collection from docs. The previous collection is always
// dropped first, so the result never holds records of removed documents.
func (ix *Indexer) Index(ctx context.Context, docs []domain.Document) (Result, error) {
	start := ix.now()
	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := ix.chunker.Chunk(d)
		if err != nil {
			return Result{}, fmt.Errorf("segment %s: %w", d.Name, err)
		}
		chunks = append(chunks, cs...)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var emb domain.Embedder = ix.embedder
	var vectors [][]float64
	degraded := false
	if len(texts) == 0 {
		ix.log.Warn().Int("documents", len(docs)).Msg("no chunks to index")
	} else {
		var err error
		vectors, err = embedAll(ctx, emb, texts)
		if err != nil {
			if !ix.cfg.Fallback {
				return Result{}, fmt.Errorf("embed chunks: %w", err)
			}
			emb = embedding.NewPlaceholder(ix.dimension())
			ix.log.Warn().Err(err).
				Str("embedder", ix.embedder.Name()).
				Int("dimension", emb.Dimension()).
				Msg("embedding function unavailable, index built with placeholder vectors")
			if vectors, err = embedAll(ctx, emb, texts); err != nil {
				return Result{}, fmt.Errorf("embed chunks with placeholder: %w", err)
			}
			degraded = true
		}
	}

	dim := ix.dimension()
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != dim {
			return Result{}, fmt.Errorf("%w: chunk %s has %d, expected %d", domain.ErrDimensionMismatch, c.ID, len(vectors[i]), dim)
		}
		records[i] = domain.Record{Chunk: c, Embedding: vectors[i]}
	}

	if err := ix.store.DropCollection(ctx, ix.cfg.Collection); err != nil && !errors.Is(err, domain.ErrCollectionNotFound) {
		return Result{}, fmt.Errorf("drop collection: %w", err)
	}
	info := domain.CollectionInfo{
		Name:      ix.cfg.Collection,
		Embedder:  emb.Name(),
		Dimension: dim,
		Degraded:  degraded,
		BuiltAt:   ix.now().UTC(),
	}
	if err := ix.store.CreateCollection(ctx, info); err != nil {
		return Result{}, fmt.Errorf("create collection: %w", err)
	}
	if len(records) > 0 {
		if err := ix.store.Add(ctx, ix.cfg.Collection, records); err != nil {
			return Result{}, fmt.Errorf("add records: %w", err)
		}
	}

	res := Result{
		Collection: ix.cfg.Collection,
		Documents:  len(docs),
		Chunks:     len(records),
		Embedder:   emb.Name(),
		Dimension:  dim,
		Degraded:   degraded,
		Duration:   ix.now().Sub(start),
	}
	ix.log.Info().
		Str("collection", res.Collection).
		Int("documents", res.Documents).
		Int("chunks", res.Chunks).
		Str("embedder", res.Embedder).
		Bool("degraded", res.Degraded).
		Msg("index built")
	return res, nil
}

func (ix *Indexer) dimension() int {
	if ix.cfg.Dimension > 0 {
		return ix.cfg.Dimension
	}
	if d := ix.embedder.Dimension(); d > 0 {
		return d
	}
	return embedding.DefaultDimension
}

func embedAll(ctx context.Context, emb domain.Embedder, texts []string) ([][]float64, error) {
	if p, ok := emb.(domain.Preparer); ok {
		if err := p.Prepare(texts); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", emb.Name(), err)
		}
	}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%s returned %d vectors for %d texts", emb.Name(), len(vectors), len(texts))
	}
	return vectors, nil
}
