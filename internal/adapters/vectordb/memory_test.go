package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

func testDocs() []entities.DocRecord {
	return []entities.DocRecord{
		{FileName: "a.xlsx", SheetName: "S1", Columns: []string{"x"}, Embedding: []float32{1, 0}},
		{FileName: "b.xlsx", SheetName: "S1", Columns: []string{"y"}, Embedding: []float32{0, 1}},
	}
}

func testCols() []entities.ColumnRecord {
	return []entities.ColumnRecord{
		{FileName: "a.xlsx", SheetName: "S1", ColumnName: "x", ColumnType: entities.ColumnNumeric, Embedding: []float32{1, 0}},
		{FileName: "b.xlsx", SheetName: "S1", ColumnName: "y", ColumnType: entities.ColumnText, Embedding: []float32{0, 1}},
	}
}

func TestInMemoryIndex_SearchOrdering(t *testing.T) {
	idx := NewInMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Replace(ctx, testDocs(), testCols()))

	matches, err := idx.SearchDocs(ctx, []float32{0.9, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a.xlsx", matches[0].Record.FileName)
	assert.Less(t, matches[0].Distance, matches[1].Distance)
}

func TestInMemoryIndex_EmptySearch(t *testing.T) {
	idx := NewInMemoryIndex()

	matches, err := idx.SearchDocs(context.Background(), []float32{1, 0}, 3)

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestInMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := NewInMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Replace(ctx, testDocs(), nil))

	_, err := idx.SearchDocs(ctx, []float32{1, 0, 0}, 1)

	assert.Error(t, err)
}

func TestInMemoryIndex_ReplaceRejectsMixedDimensions(t *testing.T) {
	idx := NewInMemoryIndex()
	docs := []entities.DocRecord{
		{FileName: "a.xlsx", SheetName: "S1", Embedding: []float32{1, 0}},
		{FileName: "b.xlsx", SheetName: "S1", Embedding: []float32{1, 0, 0}},
	}

	err := idx.Replace(context.Background(), docs, nil)

	assert.Error(t, err)
}

func TestInMemoryIndex_ReplaceSwapsWholesale(t *testing.T) {
	idx := NewInMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Replace(ctx, testDocs(), testCols()))

	next := []entities.DocRecord{
		{FileName: "c.xlsx", SheetName: "S1", Embedding: []float32{1, 1}},
	}
	require.NoError(t, idx.Replace(ctx, next, nil))

	size, err := idx.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	matches, err := idx.SearchDocs(ctx, []float32{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c.xlsx", matches[0].Record.FileName)
}

func TestInMemoryIndex_SearchColumns(t *testing.T) {
	idx := NewInMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Replace(ctx, testDocs(), testCols()))

	matches, err := idx.SearchColumns(ctx, []float32{0.1, 0.9}, 1)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "y", matches[0].Record.ColumnName)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 1.0, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 2.0, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-6)
}
