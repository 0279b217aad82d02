// Package gemini connects to Google Gemini for embeddings and text
// generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"lawrag/internal/embedding"
)

// Config configures the Gemini client.
type Config struct {
	APIKeyEnv      string
	EmbeddingModel string
	ChatModel      string
	Temperature    float64
}

// Client wraps a genai client shared by the embedder and the generator.
type Client struct {
	cfg    Config
	client *genai.Client
}

// NewClient connects using the API key found in cfg.APIKeyEnv.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-1.5-flash"
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{cfg: cfg, client: c}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.client.Close() }

// Embedder returns an embedder backed by the configured embedding model.
func (c *Client) Embedder() *Embedder {
	return &Embedder{name: c.cfg.EmbeddingModel, model: c.client.EmbeddingModel(c.cfg.EmbeddingModel)}
}

// Generator returns a generator backed by the configured chat model.
func (c *Client) Generator() *Generator {
	m := c.client.GenerativeModel(c.cfg.ChatModel)
	m.SetTemperature(float32(c.cfg.Temperature))
	return &Generator{model: m}
}

// Embedder embeds text with a Gemini embedding model.
type Embedder struct {
	name      string
	model     *genai.EmbeddingModel
	dimension int
}

func (e *Embedder) Name() string { return "gemini:" + e.name }

func (e *Embedder) Dimension() int { return e.dimension }

// batchLimit is the maximum number of contents per batch request.
const batchLimit = 100

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchLimit {
		end := min(start+batchLimit, len(texts))
		b := e.model.NewBatch()
		for _, t := range texts[start:end] {
			b.AddContent(genai.Text(t))
		}
		res, err := e.model.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, emb := range res.Embeddings {
			out = append(out, embedding.FromFloat32(emb.Values))
		}
	}
	if len(out) > 0 && e.dimension == 0 {
		e.dimension = len(out[0])
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("gemini returned empty embedding")
	}
	if e.dimension == 0 {
		e.dimension = len(res.Embedding.Values)
	}
	return embedding.FromFloat32(res.Embedding.Values), nil
}

// Generator produces text with a Gemini chat model.
type Generator struct {
	model *genai.GenerativeModel
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("gemini candidate has no content (finish reason %v)", cand.FinishReason)
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}
