// Package ollama connects to a local Ollama server through langchaingo for
// both embeddings and text generation.
package ollama

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	lcollama "github.com/tmc/langchaingo/llms/ollama"

	"lawrag/internal/embedding"
)

// Config configures the Ollama connection.
type Config struct {
	ServerURL      string
	EmbeddingModel string
	ChatModel      string
	Temperature    float64
	BatchSize      int
}

type embedClient interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Embedder embeds text with an Ollama embedding model.
type Embedder struct {
	model     string
	client    embedClient
	dimension int
}

// NewEmbedder creates an embedder for cfg.EmbeddingModel.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	llm, err := lcollama.New(lcollama.WithModel(cfg.EmbeddingModel), lcollama.WithServerURL(serverURL(cfg)))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	emb, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return &Embedder{model: cfg.EmbeddingModel, client: emb}, nil
}

func (e *Embedder) Name() string { return "ollama:" + e.model }

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(vecs), len(texts))
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		out[i] = embedding.FromFloat32(v)
	}
	if len(out) > 0 && e.dimension == 0 {
		e.dimension = len(out[0])
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	v, err := e.client.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed query: %w", err)
	}
	if e.dimension == 0 {
		e.dimension = len(v)
	}
	return embedding.FromFloat32(v), nil
}

// Generator produces text with an Ollama chat model.
type Generator struct {
	model       llms.Model
	temperature float64
}

// NewGenerator creates a generator for cfg.ChatModel.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "qwen2.5:1.5b"
	}
	llm, err := lcollama.New(lcollama.WithModel(cfg.ChatModel), lcollama.WithServerURL(serverURL(cfg)))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return &Generator{model: llm, temperature: cfg.Temperature}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(g.temperature))
}

func serverURL(cfg Config) string {
	if cfg.ServerURL == "" {
		return "http://localhost:11434"
	}
	return cfg.ServerURL
}
