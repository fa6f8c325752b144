// Package memory is an in-process vector index with exact cosine search.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// IndexChunks upserts by chunk id.
func (s *Store) IndexChunks(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "memory index", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, chunk := range chunks {
		if _, ok := s.entries[chunk.ID]; !ok {
			s.order = append(s.order, chunk.ID)
		}
		vec := append([]float32(nil), vectors[i]...)
		s.entries[chunk.ID] = entry{chunk: chunk, vector: vec, norm: norm(vec)}
	}
	return nil
}

func (s *Store) Search(_ context.Context, query []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	if limit <= 0 {
		return []domain.SearchResult{}, nil
	}
	queryNorm := norm(query)

	s.mu.RLock()
	out := make([]domain.SearchResult, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		if !filter.Allows(e.chunk.Metadata.DocumentID) {
			continue
		}
		out = append(out, domain.ResultFromChunk(e.chunk, cosine(query, queryNorm, e.vector, e.norm)))
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
