package usecases

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// capturingIndex records what Replace received.
type capturingIndex struct {
	mockIndex
	docs []entities.DocRecord
	cols []entities.ColumnRecord
}

func (c *capturingIndex) Replace(ctx context.Context, docs []entities.DocRecord, cols []entities.ColumnRecord) error {
	c.docs = docs
	c.cols = cols
	return nil
}

func TestExpandWithSynonyms_AppendsSiblings(t *testing.T) {
	expanded := ExpandWithSynonyms("各地区汇总")

	// "地区" matches the geography category; up to three siblings follow.
	assert.Contains(t, expanded, "城市")
	assert.Contains(t, expanded, "省份")
	assert.Contains(t, expanded, "地市")
	assert.NotContains(t, expanded, "region", "only three siblings are appended")
}

func TestExpandWithSynonyms_OneExpansionPerCategory(t *testing.T) {
	// Both 地区 and 城市 belong to geography; the category expands once.
	expanded := ExpandWithSynonyms("地区和城市")

	suffix := strings.TrimPrefix(expanded, "地区和城市")
	assert.Equal(t, 1, strings.Count(suffix, "省份"))
}

func TestExpandWithSynonyms_NoMatchUnchanged(t *testing.T) {
	assert.Equal(t, "nothing here", ExpandWithSynonyms("nothing here"))
}

func TestBuild_RecordShapes(t *testing.T) {
	index := &capturingIndex{}
	uc := NewIndexUseCase(&mockEmbedder{vector: []float32{0.1, 0.2}}, index)

	summaries := []entities.TableSummary{
		{
			FileName:    "sales.xlsx",
			SheetName:   "Q1",
			TextSummary: "各地区销售汇总",
			Columns:     []string{"地区", "销售额"},
			Types: map[string]entities.ColumnType{
				"地区":  entities.ColumnCategorical,
				"销售额": entities.ColumnNumeric,
			},
			FieldDescriptions: []string{"销售区域", "区域销售总额"},
			RowCount:          120,
			DateRange:         "2024-01-01~2024-03-31",
		},
	}

	require.NoError(t, uc.Build(context.Background(), summaries))

	require.Len(t, index.docs, 1)
	doc := index.docs[0]
	assert.Equal(t, "sales.xlsx", doc.FileName)
	assert.Equal(t, "Q1", doc.SheetName)
	assert.Equal(t, []string{"地区", "销售额"}, doc.Columns)
	assert.Equal(t, 120, doc.RowCount)
	assert.Equal(t, []float32{0.1, 0.2}, doc.Embedding)

	require.Len(t, index.cols, 2)
	assert.Equal(t, "地区", index.cols[0].ColumnName)
	assert.Equal(t, "销售区域", index.cols[0].FieldDescription)
	assert.Equal(t, entities.ColumnCategorical, index.cols[0].ColumnType)
	assert.Equal(t, "销售额", index.cols[1].ColumnName)
	assert.Equal(t, entities.ColumnNumeric, index.cols[1].ColumnType)
	assert.Equal(t, []float32{0.1, 0.2}, index.cols[1].Embedding)
}

func TestBuild_EmptySummaries(t *testing.T) {
	index := &capturingIndex{}
	uc := NewIndexUseCase(&mockEmbedder{vector: []float32{1}}, index)

	require.NoError(t, uc.Build(context.Background(), nil))

	assert.Empty(t, index.docs)
	assert.Empty(t, index.cols)
}

func TestDocumentText_IncludesSummaryColumnsAndSamples(t *testing.T) {
	text := documentText(entities.TableSummary{
		TextSummary:       "summary text",
		Columns:           []string{"region", "sales"},
		FieldDescriptions: []string{"the region", "the sales"},
		SampleRows: []map[string]any{
			{"region": "North", "sales": 42},
		},
	})

	assert.Contains(t, text, "summary text")
	assert.Contains(t, text, "the region")
	assert.Contains(t, text, "region")
	assert.Contains(t, text, "North")
	assert.Contains(t, text, "42")
}

func TestFirstRunes(t *testing.T) {
	assert.Equal(t, "短文", firstRunes("短文", 200))
	assert.Equal(t, "ab", firstRunes("abcd", 2))
	assert.Equal(t, "中文", firstRunes("中文字符", 2))
}
