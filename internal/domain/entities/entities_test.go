package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanColumns_DedupFirstAppearanceOrder(t *testing.T) {
	limit := 5
	plan := Plan{
		Filters: []PlanFilter{{Col: "日期", Op: ">=", Value: "2024-01-01"}},
		GroupBy: []string{"地区"},
		Agg: []PlanAgg{
			{Col: "销售额", Op: AggSum},
			{Col: "销售额", Op: AggMean},
		},
		Trend: &PlanTrend{DateCol: "日期", ValueCols: []string{"销售额", "数量"}},
		Sort:  []PlanSort{{Col: "销售额", Order: SortDesc}},
		Limit: &limit,
	}

	assert.Equal(t, []string{"日期", "地区", "销售额", "数量"}, plan.Columns())
}

func TestPlanColumns_Empty(t *testing.T) {
	plan := Plan{}
	assert.Empty(t, plan.Columns())
}

func TestPlanValidate_MissingColumn(t *testing.T) {
	plan := Plan{GroupBy: []string{"地区"}, Agg: []PlanAgg{{Col: "利润", Op: AggSum}}}

	err := plan.Validate([]string{"地区", "销售额"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "利润")
}

func TestPlanValidate_OK(t *testing.T) {
	plan := Plan{
		GroupBy: []string{"地区"},
		Growth:  &PlanGrowth{DateCol: "日期", ValueCol: "销售额"},
		TextOps: &PlanTextOps{TextCol: "备注"},
	}

	assert.NoError(t, plan.Validate([]string{"地区", "日期", "销售额", "备注"}))
}

func TestCandidateTypedColumns_PreserveOrder(t *testing.T) {
	c := Candidate{
		Columns: []string{"日期", "销售额", "数量", "备注", "签收日期"},
		Types: map[string]ColumnType{
			"日期":   ColumnDate,
			"销售额":  ColumnNumeric,
			"数量":   ColumnNumeric,
			"备注":   ColumnText,
			"签收日期": ColumnDate,
		},
	}

	assert.Equal(t, []string{"销售额", "数量"}, c.NumericColumns())
	assert.Equal(t, []string{"日期", "签收日期"}, c.DateColumns())
	assert.Equal(t, []string{"备注"}, c.TextColumns())
}

func TestCandidateTypedColumns_NoTypes(t *testing.T) {
	c := Candidate{Columns: []string{"a", "b"}}

	assert.Empty(t, c.NumericColumns())
	assert.Empty(t, c.DateColumns())
}
