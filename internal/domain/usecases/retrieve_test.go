package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// mockEmbedder returns a fixed vector for any text.
type mockEmbedder struct {
	vector []float32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector
	}
	return out, nil
}

// mockIndex serves canned matches and records the requested topK.
type mockIndex struct {
	matches   []entities.DocMatch
	lastFetch int
}

func (m *mockIndex) Replace(ctx context.Context, docs []entities.DocRecord, cols []entities.ColumnRecord) error {
	return nil
}

func (m *mockIndex) SearchDocs(ctx context.Context, embedding []float32, topK int) ([]entities.DocMatch, error) {
	m.lastFetch = topK
	if topK > len(m.matches) {
		topK = len(m.matches)
	}
	return m.matches[:topK], nil
}

func (m *mockIndex) SearchColumns(ctx context.Context, embedding []float32, topK int) ([]entities.ColumnMatch, error) {
	return nil, nil
}

func (m *mockIndex) Size(ctx context.Context) (int, error) {
	return len(m.matches), nil
}

func docMatch(file string, distance float64, columns []string, types map[string]entities.ColumnType, dateRange string) entities.DocMatch {
	return entities.DocMatch{
		Record: entities.DocRecord{
			FileName:  file,
			SheetName: "Sheet1",
			Columns:   columns,
			Types:     types,
			DateRange: dateRange,
		},
		Distance: distance,
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, &mockIndex{})

	candidates, err := uc.Search(context.Background(), "any question", RetrieveOptions{})

	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearch_CoverageOutranksSemantics(t *testing.T) {
	index := &mockIndex{matches: []entities.DocMatch{
		// Semantically closer but its columns cover nothing.
		docMatch("notes.xlsx", 0.1, []string{"备注"}, nil, ""),
		// Semantically farther but covers the sales keyword.
		docMatch("sales.xlsx", 0.2, []string{"销售额"}, nil, ""),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "销售", RetrieveOptions{})

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "sales.xlsx", candidates[0].FileName)
	// final = (1-0.2) * (1+1.0) = 1.6 vs (1-0.1) * (1+0.0) = 0.9
	assert.InDelta(t, 1.6, candidates[0].Score, 1e-9)
	assert.InDelta(t, 0.9, candidates[1].Score, 1e-9)
	assert.InDelta(t, 1.0, candidates[0].CoverageScore, 1e-9)
	assert.InDelta(t, 0.0, candidates[1].CoverageScore, 1e-9)
}

func TestSearch_NeutralCoverageWithoutKeywords(t *testing.T) {
	index := &mockIndex{matches: []entities.DocMatch{
		docMatch("a.xlsx", 0.4, []string{"col1"}, nil, ""),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "hello", RetrieveOptions{})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, neutralCoverage, candidates[0].CoverageScore, 1e-9)
	assert.InDelta(t, 0.6*1.5, candidates[0].Score, 1e-9)
}

func TestSearch_DateBonus(t *testing.T) {
	index := &mockIndex{matches: []entities.DocMatch{
		docMatch("hit.xlsx", 0.5, []string{"sales"}, nil, "2023-01-01~2024-12-31"),
		docMatch("miss.xlsx", 0.5, []string{"sales"}, nil, "2021-01-01~2022-12-31"),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "sales in 2024", RetrieveOptions{})

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "hit.xlsx", candidates[0].FileName)
	assert.InDelta(t, dateBonusFactor, candidates[0].Score/candidates[1].Score, 1e-9)
	assert.Contains(t, candidates[0].Rationale, "日期范围匹配")
}

func TestSearch_NumericBonus(t *testing.T) {
	types := map[string]entities.ColumnType{
		"name":  entities.ColumnText,
		"sales": entities.ColumnNumeric,
	}
	index := &mockIndex{matches: []entities.DocMatch{
		docMatch("t.xlsx", 0.5, []string{"name", "sales"}, types, ""),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "total sales", RetrieveOptions{})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	// Keywords are sales (matched) and aggregation (unmatched): coverage 0.5.
	// 1 numeric of 2 columns: bonus = 1 + 0.5*0.5 = 1.25.
	assert.InDelta(t, 0.5*(1+0.5)*1.25, candidates[0].Score, 1e-9)
	assert.Contains(t, candidates[0].Rationale, "包含数值字段")
}

func TestSearch_AllowFilterDropsBeforeScoring(t *testing.T) {
	index := &mockIndex{matches: []entities.DocMatch{
		docMatch("a.xlsx", 0.1, []string{"c"}, nil, ""),
		docMatch("b.xlsx", 0.2, []string{"c"}, nil, ""),
		docMatch("c.xlsx", 0.3, []string{"c"}, nil, ""),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "q", RetrieveOptions{
		TopK:       1,
		AllowFiles: []string{"c.xlsx"},
	})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "c.xlsx", candidates[0].FileName)
	// With file filters the whole population is fetched so filtering cannot
	// starve the result set.
	assert.Equal(t, 3, index.lastFetch)
}

func TestSearch_DisallowFilter(t *testing.T) {
	index := &mockIndex{matches: []entities.DocMatch{
		docMatch("a.xlsx", 0.1, []string{"c"}, nil, ""),
		docMatch("b.xlsx", 0.2, []string{"c"}, nil, ""),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "q", RetrieveOptions{
		DisallowFiles: []string{"a.xlsx"},
	})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "b.xlsx", candidates[0].FileName)
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	var matches []entities.DocMatch
	for _, f := range []string{"a", "b", "c", "d", "e"} {
		matches = append(matches, docMatch(f+".xlsx", 0.5, []string{"c"}, nil, ""))
	}
	index := &mockIndex{matches: matches}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "q", RetrieveOptions{TopK: 2})

	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestSearch_RationaleFormat(t *testing.T) {
	index := &mockIndex{matches: []entities.DocMatch{
		docMatch("s.xlsx", 0.25, []string{"销售额", "地区"}, nil, ""),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	candidates, err := uc.Search(context.Background(), "各地区销售", RetrieveOptions{})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Contains(t, candidates[0].Rationale, "语义相似度: 0.750")
	assert.Contains(t, candidates[0].Rationale, "字段覆盖度: 1.000")
	assert.Contains(t, candidates[0].Rationale, "匹配字段: ")
	assert.Contains(t, candidates[0].Rationale, "销售额")
}

func TestSearchWithIntent_TrendNotes(t *testing.T) {
	withDate := map[string]entities.ColumnType{
		"日期":  entities.ColumnDate,
		"销售额": entities.ColumnNumeric,
	}
	withoutDate := map[string]entities.ColumnType{
		"名称": entities.ColumnText,
	}
	index := &mockIndex{matches: []entities.DocMatch{
		docMatch("dated.xlsx", 0.1, []string{"日期", "销售额"}, withDate, ""),
		docMatch("undated.xlsx", 0.2, []string{"名称"}, withoutDate, ""),
	}}
	uc := NewRetrieverUseCase(&mockEmbedder{vector: []float32{1, 0}}, index)

	parser := NewIntentParser()
	intent := parser.Parse("trend")
	candidates, err := uc.SearchWithIntent(context.Background(), intent, RetrieveOptions{})

	require.NoError(t, err)
	require.Len(t, candidates, 2)

	byFile := map[string]entities.Candidate{}
	for _, c := range candidates {
		byFile[c.FileName] = c
	}
	assert.Contains(t, byFile["dated.xlsx"].Rationale, "包含日期列: 日期")
	assert.Contains(t, byFile["undated.xlsx"].Rationale, "警告: 缺少日期列")
}
