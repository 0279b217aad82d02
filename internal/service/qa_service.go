package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lawrag/internal/citation"
	"lawrag/internal/domain"
	"lawrag/internal/indexer"
	"lawrag/internal/metrics"
	"lawrag/internal/session"
	"lawrag/internal/synthesizer"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Request is one question from a chat surface.
type Request struct {
	Question   string `json:"question"`
	ShowSource bool   `json:"show_source"`
}

// Response carries the answer and, when asked for, the cited articles.
type Response struct {
	Answer          string            `json:"answer"`
	SourceDocuments []domain.Citation `json:"source_documents"`
}

// Retriever is the query side of the index.
type Retriever interface {
	Open(ctx context.Context) error
	Retrieve(ctx context.Context, query string, k int) ([]domain.Match, error)
	Info() domain.CollectionInfo
}

// Indexer rebuilds the index from documents.
type Indexer interface {
	Index(ctx context.Context, docs []domain.Document) (indexer.Result, error)
}

type Config struct {
	TopK int
}

// QAService runs retrieve, synthesize and cite for every question. Rebuilds
// wait for in-flight questions and block new ones until the retriever has
// been reopened.
type QAService struct {
	indexer     Indexer
	retriever   Retriever
	synthesizer domain.Synthesizer
	metrics     *metrics.Metrics
	topK        int
	log         zerolog.Logger

	mu sync.RWMutex
}

func NewQAService(ix Indexer, r Retriever, synth domain.Synthesizer, m *metrics.Metrics, cfg Config, log zerolog.Logger) *QAService {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &QAService{indexer: ix, retriever: r, synthesizer: synth, metrics: m, topK: cfg.TopK, log: log}
}

// Open prepares the retriever against the current index.
func (s *QAService) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retriever.Open(ctx)
}

// IndexInfo describes the index questions are answered from.
func (s *QAService) IndexInfo() domain.CollectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retriever.Info()
}

// Ask answers one question. Retrieval errors are returned; synthesis never fails.
func (s *QAService) Ask(ctx context.Context, req Request) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Response{}, ErrEmptyQuestion
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()
	matches, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		s.metrics.RecordRetrieval("error", time.Since(start))
		s.log.Error().Err(err).Str("question", question).Msg("retrieval failed")
		return Response{}, fmt.Errorf("retrieve: %w", err)
	}
	s.metrics.RecordRetrieval("success", time.Since(start))

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	answer := s.synthesizer.Synthesize(ctx, question, texts)
	s.metrics.RecordAnswer(s.synthesizer.Name(), outcome(answer))
	s.log.Debug().Str("question", question).Int("matches", len(matches)).Str("outcome", outcome(answer)).Msg("answered")

	resp := Response{Answer: answer, SourceDocuments: []domain.Citation{}}
	if req.ShowSource {
		resp.SourceDocuments = citation.FormatSources(matches)
	}
	return resp, nil
}

// AskInSession answers and records both turns in sess. A failed question
// leaves the history untouched.
func (s *QAService) AskInSession(ctx context.Context, sess *session.Session, req Request) (Response, error) {
	resp, err := s.Ask(ctx, req)
	if err != nil {
		return Response{}, err
	}
	sess.AppendTurn(session.Turn{Role: session.RoleUser, Content: strings.TrimSpace(req.Question)})
	sess.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: resp.Answer, Sources: resp.SourceDocuments})
	return resp, nil
}

// Rebuild re-indexes every document in dir and reopens the retriever.
func (s *QAService) Rebuild(ctx context.Context, dir string) (indexer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	docs, skipped, err := indexer.LoadDocuments(dir, s.log)
	if err != nil {
		s.metrics.RecordIndex("error", 0, false, time.Since(start))
		return indexer.Result{}, err
	}
	s.metrics.SkippedFilesTotal.Add(float64(len(skipped)))

	res, err := s.indexer.Index(ctx, docs)
	if err != nil {
		s.metrics.RecordIndex("error", 0, false, time.Since(start))
		return indexer.Result{}, err
	}
	s.metrics.RecordIndex("success", res.Chunks, res.Degraded, time.Since(start))
	if err := s.retriever.Open(ctx); err != nil {
		return res, fmt.Errorf("reopen retriever: %w", err)
	}
	return res, nil
}

func outcome(answer string) string {
	switch answer {
	case synthesizer.Fallback:
		return "fallback"
	case synthesizer.SafeError:
		return "error"
	default:
		return "answered"
	}
}
