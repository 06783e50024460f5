// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "fmt"

// Language is the detected question language.
type Language string

const (
	LanguageZH Language = "zh"
	LanguageEN Language = "en"
)

// AggregationOp is a supported aggregation operation.
type AggregationOp string

const (
	AggSum    AggregationOp = "sum"
	AggMean   AggregationOp = "mean"
	AggCount  AggregationOp = "count"
	AggMax    AggregationOp = "max"
	AggMin    AggregationOp = "min"
	AggMedian AggregationOp = "median"
)

// TrendFrequency is the resampling frequency for trend analysis.
type TrendFrequency string

const (
	FreqDay     TrendFrequency = "D"
	FreqWeek    TrendFrequency = "W"
	FreqMonth   TrendFrequency = "M"
	FreqQuarter TrendFrequency = "Q"
	FreqYear    TrendFrequency = "Y"
)

// Visualization is the preferred chart type for a result.
type Visualization string

const (
	VizLine    Visualization = "line"
	VizBar     Visualization = "bar"
	VizPie     Visualization = "pie"
	VizScatter Visualization = "scatter"
	VizTable   Visualization = "table"
)

// SortOrder is a sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ColumnType is the inferred type of a table column.
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnDate        ColumnType = "date"
	ColumnText        ColumnType = "text"
)

// Growth analysis variants.
const (
	GrowthYoY     = "yoy"
	GrowthMoM     = "mom"
	GrowthGeneral = "general"
)

// FilterSpec is a filter condition on an abstract column role.
type FilterSpec struct {
	Role     string `json:"role"`
	Operator string `json:"operator"` // =, !=, >, <, >=, <=, in, not in, contains
	Value    any    `json:"value"`
}

// AggregationSpec requests an aggregation over an abstract role.
type AggregationSpec struct {
	Role string        `json:"role"`
	Op   AggregationOp `json:"op"`
}

// SortSpec requests ordering by an abstract role.
type SortSpec struct {
	Role  string    `json:"role"`
	Order SortOrder `json:"order"`
}

// TrendSpec requests a time-series trend analysis.
type TrendSpec struct {
	DateRole   string         `json:"date_role"`
	Frequency  TrendFrequency `json:"frequency"`
	ValueRoles []string       `json:"value_roles,omitempty"`
}

// GrowthSpec requests a growth (YoY/MoM/general) analysis.
type GrowthSpec struct {
	DateRole   string `json:"date_role"`
	ValueRole  string `json:"value_role"`
	GrowthType string `json:"growth_type"`
}

// TextAnalysisSpec requests keyword extraction over a text role.
type TextAnalysisSpec struct {
	TextRole string `json:"text_role"`
	TopK     int    `json:"topk"`
}

// DateRange is an ISO date interval. An empty End means open-ended.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// Intent is the structured, table-agnostic representation of a parsed
// question. It references abstract roles (e.g. "geography", "time"), never
// concrete column names, so one Intent is reusable across candidate tables.
type Intent struct {
	OriginalQuestion string   `json:"original_question"`
	Language         Language `json:"language"`

	IsAggregation   bool `json:"is_aggregation"`
	IsGroupBy       bool `json:"is_groupby"`
	IsTrend         bool `json:"is_trend"`
	IsRanking       bool `json:"is_ranking"`
	IsGrowth        bool `json:"is_growth"`
	IsTextAnalysis  bool `json:"is_text_analysis"`
	IsPriceAnalysis bool `json:"is_price_analysis"`

	Filters      []FilterSpec      `json:"filters,omitempty"`
	Aggregations []AggregationSpec `json:"aggregations,omitempty"`
	Sorts        []SortSpec        `json:"sorts,omitempty"`
	Trend        *TrendSpec        `json:"trend,omitempty"`
	Growth       *GrowthSpec       `json:"growth,omitempty"`
	TextAnalysis *TextAnalysisSpec `json:"text_analysis,omitempty"`

	TopN         *int          `json:"top_n,omitempty"`
	PreferredViz Visualization `json:"preferred_viz"`

	MentionedColumns []string   `json:"mentioned_columns,omitempty"`
	DateRange        *DateRange `json:"date_range,omitempty"`
}

// Candidate is a ranked table/sheet match for a question.
// Produced fresh per query; never persisted.
type Candidate struct {
	FileName      string                `json:"file_name"`
	SheetName     string                `json:"sheet_name"`
	Score         float64               `json:"score"`
	SemanticScore float64               `json:"semantic_score"`
	CoverageScore float64               `json:"coverage_score"`
	Columns       []string              `json:"columns"`
	Types         map[string]ColumnType `json:"types"`
	RowCount      int                   `json:"row_count"`
	DateRange     string                `json:"date_range,omitempty"`
	Rationale     string                `json:"rationale"`
}

// NumericColumns returns the candidate's numeric columns in original order.
func (c Candidate) NumericColumns() []string {
	return c.columnsOfType(ColumnNumeric)
}

// DateColumns returns the candidate's date columns in original order.
func (c Candidate) DateColumns() []string {
	return c.columnsOfType(ColumnDate)
}

// TextColumns returns the candidate's text columns in original order.
func (c Candidate) TextColumns() []string {
	return c.columnsOfType(ColumnText)
}

func (c Candidate) columnsOfType(t ColumnType) []string {
	var cols []string
	for _, col := range c.Columns {
		if c.Types[col] == t {
			cols = append(cols, col)
		}
	}
	return cols
}

// PlanFilter is a filter on a concrete column.
type PlanFilter struct {
	Col   string `json:"col"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// PlanAgg is an aggregation on a concrete column.
type PlanAgg struct {
	Col string        `json:"col"`
	Op  AggregationOp `json:"op"`
}

// PlanSort orders results by a concrete column.
type PlanSort struct {
	Col   string    `json:"col"`
	Order SortOrder `json:"order"`
}

// PlanTrend is a fully resolved trend block. Nil on a Plan means absent.
type PlanTrend struct {
	DateCol   string         `json:"date_col"`
	Frequency TrendFrequency `json:"freq"`
	ValueCols []string       `json:"value_cols,omitempty"`
}

// PlanGrowth is a fully resolved growth block. Constructed all-or-nothing:
// it exists only when both the date and the value column resolved.
type PlanGrowth struct {
	DateCol    string `json:"date_col"`
	ValueCol   string `json:"value_col"`
	GrowthType string `json:"growth_type"`
}

// PlanTextOps is a fully resolved text-analysis block.
type PlanTextOps struct {
	TextCol   string `json:"text_col"`
	Tokenizer string `json:"tokenizer"`
	TopK      int    `json:"topk"`
}

// Plan is the executable compilation target: every column reference is
// concrete and verified to exist on the selected candidate. Derived once per
// query, read-only thereafter.
type Plan struct {
	FileName  string        `json:"file_name"`
	SheetName string        `json:"sheet_name"`
	Filters   []PlanFilter  `json:"filters,omitempty"`
	GroupBy   []string      `json:"groupby,omitempty"`
	Agg       []PlanAgg     `json:"agg,omitempty"`
	Trend     *PlanTrend    `json:"trend,omitempty"`
	Growth    *PlanGrowth   `json:"growth,omitempty"`
	TextOps   *PlanTextOps  `json:"text_ops,omitempty"`
	Sort      []PlanSort    `json:"sort,omitempty"`
	Limit     *int          `json:"limit,omitempty"`
	Viz       Visualization `json:"viz"`
}

// Columns returns every concrete column the plan references, deduplicated,
// in first-appearance order.
func (p *Plan) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, f := range p.Filters {
		add(f.Col)
	}
	for _, g := range p.GroupBy {
		add(g)
	}
	for _, a := range p.Agg {
		add(a.Col)
	}
	if p.Trend != nil {
		add(p.Trend.DateCol)
		for _, v := range p.Trend.ValueCols {
			add(v)
		}
	}
	if p.Growth != nil {
		add(p.Growth.DateCol)
		add(p.Growth.ValueCol)
	}
	if p.TextOps != nil {
		add(p.TextOps.TextCol)
	}
	for _, s := range p.Sort {
		add(s.Col)
	}
	return cols
}

// Validate checks the column-existence invariant: every column the plan
// references must be a member of the candidate's column list. A violation is
// a wiring defect, not an expected runtime state.
func (p *Plan) Validate(available []string) error {
	member := make(map[string]bool, len(available))
	for _, col := range available {
		member[col] = true
	}
	for _, col := range p.Columns() {
		if !member[col] {
			return fmt.Errorf("plan references column %q absent from candidate columns", col)
		}
	}
	return nil
}

// ColumnMapping links a pre-normalization column name to the name the
// analysis code actually used.
type ColumnMapping struct {
	Original string `json:"original"`
	Used     string `json:"used"`
}

// LineageReport records which columns an analysis actually touched,
// reconciled against what the plan expected. Never mutated once produced.
type LineageReport struct {
	UsedColumns         []string        `json:"used_columns"`
	ColumnCount         int             `json:"column_count"`
	OriginalColumnCount int             `json:"original_column_count"`
	Coverage            float64         `json:"coverage"`
	Mapping             []ColumnMapping `json:"mapping"`
}

// TableSummary is the per-sheet profile produced by the (external) table
// summarizer and consumed by the index builder.
type TableSummary struct {
	FileName          string                `json:"file_name"`
	SheetName         string                `json:"sheet_name"`
	TextSummary       string                `json:"text_summary"`
	Columns           []string              `json:"columns"`
	Types             map[string]ColumnType `json:"types"`
	FieldDescriptions []string              `json:"field_descriptions,omitempty"`
	RowCount          int                   `json:"row_count"`
	DateRange         string                `json:"date_range,omitempty"`
	SampleRows        []map[string]any      `json:"sample_rows,omitempty"`
}

// DocRecord is the document-level index entry for one (file, sheet) pair.
// Built at ingestion time, immutable until the next full rebuild.
type DocRecord struct {
	Embedding []float32             `json:"-"`
	FileName  string                `json:"file_name"`
	SheetName string                `json:"sheet_name"`
	Columns   []string              `json:"columns"`
	Types     map[string]ColumnType `json:"types"`
	RowCount  int                   `json:"row_count"`
	DateRange string                `json:"date_range,omitempty"`
	Summary   string                `json:"summary"`
}

// ColumnRecord is the column-level index entry, 1:1 with a sheet's surfaced
// field descriptions, in the same order as the sheet's columns.
type ColumnRecord struct {
	Embedding        []float32  `json:"-"`
	FileName         string     `json:"file_name"`
	SheetName        string     `json:"sheet_name"`
	ColumnName       string     `json:"column_name"`
	FieldDescription string     `json:"field_description"`
	ColumnType       ColumnType `json:"column_type"`
}

// DocMatch is a nearest-neighbor hit in cosine-distance space.
type DocMatch struct {
	Record   DocRecord `json:"record"`
	Distance float64   `json:"distance"`
}

// ColumnMatch is a column-level nearest-neighbor hit.
type ColumnMatch struct {
	Record   ColumnRecord `json:"record"`
	Distance float64      `json:"distance"`
}
