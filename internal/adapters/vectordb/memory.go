// Package vectordb provides vector index adapters implementing
// ports.VectorIndex. Search is brute-force cosine distance: index
// populations here are sheets, not documents, so linear scans are cheap.
package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// InMemoryIndex holds the index in process memory. Replace swaps the record
// slices under the lock, so readers always see a complete index.
type InMemoryIndex struct {
	mu   sync.RWMutex
	docs []entities.DocRecord
	cols []entities.ColumnRecord
	dim  int
}

// NewInMemoryIndex creates an empty in-memory vector index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{}
}

// Replace installs a freshly built index atomically.
func (s *InMemoryIndex) Replace(ctx context.Context, docs []entities.DocRecord, cols []entities.ColumnRecord) error {
	dim, err := commonDimension(docs, cols)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = docs
	s.cols = cols
	s.dim = dim
	return nil
}

// SearchDocs returns the topK nearest document records, closest first.
func (s *InMemoryIndex) SearchDocs(ctx context.Context, embedding []float32, topK int) ([]entities.DocMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.docs) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(embedding), s.dim)
	}

	matches := make([]entities.DocMatch, 0, len(s.docs))
	for _, doc := range s.docs {
		matches = append(matches, entities.DocMatch{
			Record:   doc,
			Distance: cosineDistance(embedding, doc.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// SearchColumns returns the topK nearest column records, closest first.
func (s *InMemoryIndex) SearchColumns(ctx context.Context, embedding []float32, topK int) ([]entities.ColumnMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.cols) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(embedding), s.dim)
	}

	matches := make([]entities.ColumnMatch, 0, len(s.cols))
	for _, col := range s.cols {
		matches = append(matches, entities.ColumnMatch{
			Record:   col,
			Distance: cosineDistance(embedding, col.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Size reports the number of document records.
func (s *InMemoryIndex) Size(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// commonDimension validates that every record vector shares one
// dimensionality. A mismatch is a build-side wiring bug.
func commonDimension(docs []entities.DocRecord, cols []entities.ColumnRecord) (int, error) {
	dim := 0
	check := func(embedding []float32, what string) error {
		if len(embedding) == 0 {
			return fmt.Errorf("%s has an empty embedding", what)
		}
		if dim == 0 {
			dim = len(embedding)
		} else if len(embedding) != dim {
			return fmt.Errorf("%s has %d dimensions, expected %d", what, len(embedding), dim)
		}
		return nil
	}
	for _, d := range docs {
		if err := check(d.Embedding, fmt.Sprintf("doc %s/%s", d.FileName, d.SheetName)); err != nil {
			return 0, err
		}
	}
	for _, c := range cols {
		if err := check(c.Embedding, fmt.Sprintf("column %s/%s/%s", c.FileName, c.SheetName, c.ColumnName)); err != nil {
			return 0, err
		}
	}
	return dim, nil
}

// cosineDistance is 1 - cosine similarity.
func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
