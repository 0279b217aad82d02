// Package app assembles the lawrag components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lawrag/internal/chunker"
	"lawrag/internal/config"
	"lawrag/internal/domain"
	"lawrag/internal/embedding"
	"lawrag/internal/embedding/openai"
	"lawrag/internal/embedding/tfidf"
	"lawrag/internal/indexer"
	"lawrag/internal/llm/gemini"
	"lawrag/internal/llm/ollama"
	"lawrag/internal/logger"
	"lawrag/internal/metrics"
	"lawrag/internal/retriever"
	"lawrag/internal/service"
	"lawrag/internal/synthesizer"
	"lawrag/internal/vectorstore/memory"
	"lawrag/internal/vectorstore/qdrant"
	"lawrag/internal/vectorstore/sqlite"
)

// App holds the wired components of one process.
type App struct {
	Config  *config.AppConfig
	Log     zerolog.Logger
	Metrics *metrics.Metrics
	Store   domain.VectorStore
	Service *service.QAService

	gemini *gemini.Client
}

// Build wires every component described by cfg. The retriever is not
// opened; call Service.Open or Service.Rebuild before asking.
func Build(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	emb, err := a.embedder(ctx)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store
	synth, err := a.synthesizer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	ix := indexer.New(
		chunker.NewArticleChunker(cfg.Chunker.KeepPreamble),
		emb,
		store,
		indexer.Config{Collection: cfg.VectorStore.Collection, Dimension: cfg.Embedder.Dimension, Fallback: cfg.Embedder.Fallback},
		logger.Component(log, "indexer"),
	)
	r := retriever.New(store, emb, retriever.Config{
		Collection:     cfg.VectorStore.Collection,
		RejectDegraded: cfg.Retrieval.RejectDegraded,
	}, logger.Component(log, "retriever"))
	a.Service = service.NewQAService(ix, r, synth, a.Metrics, service.Config{TopK: cfg.Retrieval.TopK}, logger.Component(log, "service"))
	return a, nil
}

// NeedsIndex reports whether the configured collection is missing or empty.
func (a *App) NeedsIndex(ctx context.Context) (bool, error) {
	info, err := a.Store.Info(ctx, a.Config.VectorStore.Collection)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return info.Count == 0, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.gemini != nil {
		errs = append(errs, a.gemini.Close())
	}
	return errors.Join(errs...)
}

func (a *App) geminiClient(ctx context.Context) (*gemini.Client, error) {
	if a.gemini != nil {
		return a.gemini, nil
	}
	gc := a.Config.Embedder.Gemini
	if gc == nil {
		gc = &config.GeminiConfig{}
	}
	c, err := gemini.NewClient(ctx, gemini.Config{
		APIKeyEnv:      gc.APIKeyEnv,
		EmbeddingModel: gc.EmbeddingModel,
		ChatModel:      gc.ChatModel,
		Temperature:    gc.Temperature,
	})
	if err != nil {
		return nil, err
	}
	a.gemini = c
	return c, nil
}

func (a *App) embedder(ctx context.Context) (domain.Embedder, error) {
	cfg := a.Config.Embedder
	var (
		emb domain.Embedder
		err error
	)
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "placeholder":
		return embedding.NewPlaceholder(cfg.Dimension), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		emb, err = openai.NewClient(openai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			BatchSize: oc.BatchSize,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
	case "ollama":
		oc := cfg.Ollama
		if oc == nil {
			oc = &config.OllamaConfig{}
		}
		emb, err = ollama.NewEmbedder(ollama.Config{ServerURL: oc.ServerURL, EmbeddingModel: oc.EmbeddingModel})
	case "gemini":
		var c *gemini.Client
		if c, err = a.geminiClient(ctx); err == nil {
			emb = c.Embedder()
		}
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if err != nil {
		if !cfg.Fallback {
			return nil, fmt.Errorf("%s embedder init failed: %w", cfg.Type, err)
		}
		a.Log.Warn().Err(err).Str("embedder", cfg.Type).Msg("embedder unavailable, indexing will use placeholder vectors")
		return unavailable{name: cfg.Type, err: err}, nil
	}
	return emb, nil
}

func (a *App) synthesizer(ctx context.Context) (domain.Synthesizer, error) {
	cfg := a.Config.Synthesizer
	log := logger.Component(a.Log, "synthesizer")
	switch cfg.Type {
	case "extractive", "":
		return synthesizer.NewExtractive(cfg.StatuteName, cfg.ShortName, log), nil
	case "generative":
	default:
		return nil, fmt.Errorf("unknown synthesizer: %s", cfg.Type)
	}

	var gen domain.Generator
	switch cfg.Backend {
	case "ollama", "":
		oc := a.Config.Embedder.Ollama
		if oc == nil {
			oc = &config.OllamaConfig{}
		}
		g, err := ollama.NewGenerator(ollama.Config{ServerURL: oc.ServerURL, ChatModel: oc.ChatModel, Temperature: oc.Temperature})
		if err != nil {
			return nil, err
		}
		gen = g
	case "gemini":
		c, err := a.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		gen = c.Generator()
	default:
		return nil, fmt.Errorf("unknown generation backend: %s", cfg.Backend)
	}
	name := cfg.Backend
	if name == "" {
		name = "ollama"
	}
	return synthesizer.NewGenerative(name, gen, log), nil
}

func newStore(cfg *config.AppConfig) (domain.VectorStore, error) {
	switch cfg.VectorStore.Type {
	case "sqlite", "":
		return sqlite.Open(cfg.VectorStore.Dir)
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		qc := cfg.VectorStore.Qdrant
		if qc == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:     qc.URL,
			APIKey:  qc.APIKey,
			Timeout: time.Duration(qc.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

// unavailable stands in for an embedder that could not be constructed, so
// indexing degrades to placeholder vectors instead of aborting.
type unavailable struct {
	name string
	err  error
}

func (u unavailable) Name() string   { return u.name }
func (u unavailable) Dimension() int { return 0 }
func (u unavailable) EmbedDocuments(context.Context, []string) ([][]float64, error) {
	return nil, u.err
}
func (u unavailable) EmbedQuery(context.Context, string) ([]float64, error) {
	return nil, u.err
}
