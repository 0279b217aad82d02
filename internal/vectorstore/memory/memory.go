package memory

import (
	"context"
	"fmt"
	"sync"

	"lawrag/internal/domain"
	"lawrag/internal/vectorstore"
)

type collection struct {
	info    domain.CollectionInfo
	records []domain.Record
}

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewStorage() *Storage { return &Storage{collections: make(map[string]*collection)} }

func (s *Storage) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Storage) CreateCollection(_ context.Context, info domain.CollectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[info.Name]; ok {
		return fmt.Errorf("collection %q already exists", info.Name)
	}
	info.Count = 0
	s.collections[info.Name] = &collection{info: info}
	return nil
}

func (s *Storage) Add(_ context.Context, name string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	for _, r := range records {
		if len(r.Embedding) != c.info.Dimension {
			return fmt.Errorf("%w: record %s has %d, collection %d", domain.ErrDimensionMismatch, r.ID, len(r.Embedding), c.info.Dimension)
		}
	}
	c.records = append(c.records, records...)
	c.info.Count = len(c.records)
	return nil
}

func (s *Storage) Query(_ context.Context, name string, vector []float64, k int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	return vectorstore.Rank(c.records, vector, k)
}

func (s *Storage) Info(_ context.Context, name string) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.CollectionInfo{}, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	return c.info, nil
}

func (s *Storage) List(_ context.Context, name string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	out := make([]domain.Record, len(c.records))
	copy(out, c.records)
	return out, nil
}

func (s *Storage) Close() error { return nil }
