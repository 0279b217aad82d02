package domain

import (
	"context"
	"errors"
	"time"
)

// Document represents a single statute text file loaded into the system.
type Document struct {
	Name    string
	Path    string
	Content string
}

// Chunk is one article of a statute, the atomic retrievable and citable unit.
type Chunk struct {
	ID       string
	Text     string
	Source   string
	Ordinal  int
	Article  string
	Preamble bool
}

// Record is a chunk together with its embedding vector.
type Record struct {
	Chunk
	Embedding []float64
}

// Match is a chunk returned by a similarity query. Distance is the cosine
// distance to the query vector; Rank is the 0-based position in the result.
type Match struct {
	ID       string
	Text     string
	Source   string
	Distance float64
	Rank     int
}

// Citation is the display form of a retrieved match.
type Citation struct {
	Article string `json:"article"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// CollectionInfo describes a persisted collection and the embedding
// function that produced its vectors.
type CollectionInfo struct {
	Name      string    `json:"name"`
	Embedder  string    `json:"embedder"`
	Dimension int       `json:"dimension"`
	Degraded  bool      `json:"degraded"`
	Count     int       `json:"count"`
	BuiltAt   time.Time `json:"built_at"`
}

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrEmbedderMismatch   = errors.New("query embedder does not match index embedder")
	ErrDegradedIndex      = errors.New("index was built with placeholder vectors")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
)

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// Preparer is implemented by embedders that need a pass over the corpus
// before they can embed anything.
type Preparer interface {
	Prepare(corpus []string) error
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore persists named collections of records and supports
// similarity search over them.
type VectorStore interface {
	DropCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, info CollectionInfo) error
	Add(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection string, vector []float64, k int) ([]Match, error)
	Info(ctx context.Context, collection string) (CollectionInfo, error)
	List(ctx context.Context, collection string) ([]Record, error)
	Close() error
}

// Synthesizer turns a question and its retrieved context into an answer.
// Implementations never fail: every error path resolves to a fixed answer.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, question string, chunks []string) string
}

// Generator is a text generation backend used by generative synthesizers.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
