package codegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

func testPlanAndCandidate() (*entities.Plan, entities.Candidate) {
	plan := &entities.Plan{
		FileName:  "sales.xlsx",
		SheetName: "Q1",
		GroupBy:   []string{"地区"},
		Agg:       []entities.PlanAgg{{Col: "销售额", Op: entities.AggSum}},
		Viz:       entities.VizBar,
	}
	candidate := entities.Candidate{
		FileName:  "sales.xlsx",
		SheetName: "Q1",
		Columns:   []string{"地区", "销售额"},
		Types: map[string]entities.ColumnType{
			"地区":  entities.ColumnCategorical,
			"销售额": entities.ColumnNumeric,
		},
	}
	return plan, candidate
}

func TestGenerateCode_StripsFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Contains(t, req.Prompt, "地区")
		assert.Contains(t, req.Prompt, "销售额")

		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Response: "```python\nresult = df.groupby('地区')['销售额'].sum()\nprint(result)\n```",
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "")
	plan, candidate := testPlanAndCandidate()

	code, err := adapter.GenerateCode(context.Background(), plan, "求各地区销售额总和", candidate)

	require.NoError(t, err)
	assert.Equal(t, "result = df.groupby('地区')['销售额'].sum()\nprint(result)", code)
}

func TestGenerateCode_EmptyResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "```\n```"})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(server.URL, "")
	plan, candidate := testPlanAndCandidate()

	_, err := adapter.GenerateCode(context.Background(), plan, "q", candidate)

	assert.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", "print(1)", "print(1)"},
		{"plain fences", "```\nprint(1)\n```", "print(1)"},
		{"language tag", "```python\nprint(1)\n```", "print(1)"},
		{"surrounding whitespace", "  ```python\nprint(1)\n```  ", "print(1)"},
		{"unterminated", "```python\nprint(1)", "print(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.in))
		})
	}
}
