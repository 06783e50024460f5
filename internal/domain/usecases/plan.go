// plan.go compiles an Intent plus a selected Candidate into an executable
// Plan with only concrete, existing column references.
package usecases

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// fuzzyThreshold is the minimum similarity ratio for the fuzzy tier.
const fuzzyThreshold = 0.6

// maxAggColumns caps how many numeric columns an aggregation fans out to.
// Intents rarely name an exact column, so the compiler casts a broad net.
const maxAggColumns = 3

// resolveStrategy attempts to bind one abstract role to a concrete column.
type resolveStrategy func(role string, columns []string, types map[string]entities.ColumnType) (string, bool)

// PlanCompiler resolves abstract semantic roles into a candidate's concrete
// columns and assembles a Plan. Column names are inconsistent across
// schema-free spreadsheets, so resolution degrades through an ordered
// cascade of decreasing-confidence strategies instead of failing the query:
// keyword pattern, declared type, then fuzzy string match. A role that
// clears none of the tiers is silently omitted.
type PlanCompiler struct {
	resolvers []resolveStrategy
}

// NewPlanCompiler creates a PlanCompiler with the standard resolver cascade.
func NewPlanCompiler() *PlanCompiler {
	return &PlanCompiler{
		resolvers: []resolveStrategy{
			resolveByKeyword,
			resolveByType,
			resolveByFuzzy,
		},
	}
}

// ResolveColumns binds each role to the first column any strategy accepts.
func (c *PlanCompiler) ResolveColumns(roles []string, columns []string, types map[string]entities.ColumnType) map[string]string {
	resolved := make(map[string]string)
	for _, role := range roles {
		if _, done := resolved[role]; done {
			continue
		}
		for _, resolve := range c.resolvers {
			if col, ok := resolve(role, columns, types); ok {
				resolved[role] = col
				break
			}
		}
	}
	return resolved
}

// Rewrite compiles the intent against one candidate. Pure function: no side
// effects, and the result never references a column absent from the
// candidate's column list.
func (c *PlanCompiler) Rewrite(intent entities.Intent, candidate entities.Candidate) entities.Plan {
	plan := entities.Plan{
		FileName:  candidate.FileName,
		SheetName: candidate.SheetName,
		Viz:       intent.PreferredViz,
	}

	columns := candidate.Columns
	types := candidate.Types

	var roles []string
	if intent.IsGroupBy {
		roles = append(roles, intent.MentionedColumns...)
	}
	if intent.IsTrend || intent.IsGrowth {
		roles = append(roles, "time", "date")
	}
	if intent.IsAggregation || intent.IsRanking {
		roles = append(roles, "sales", "value", "amount", "price", "清仓价", "价格")
	}
	if intent.IsTextAnalysis {
		roles = append(roles, "text")
	}
	resolved := c.ResolveColumns(roles, columns, types)

	// Filters degrade per entry: an unresolvable filter is dropped, the rest
	// of the list survives.
	for _, f := range intent.Filters {
		col, ok := resolved[f.Role]
		if !ok && contains(columns, f.Role) {
			col = f.Role
			ok = true
		}
		if ok && contains(columns, col) {
			plan.Filters = append(plan.Filters, entities.PlanFilter{
				Col:   col,
				Op:    f.Operator,
				Value: f.Value,
			})
		}
	}

	if intent.IsGroupBy {
		for _, role := range intent.MentionedColumns {
			if col, ok := resolved[role]; ok && contains(columns, col) && !contains(plan.GroupBy, col) {
				plan.GroupBy = append(plan.GroupBy, col)
			}
		}
	}

	if intent.IsAggregation {
		numeric := candidate.NumericColumns()
		if len(numeric) > maxAggColumns {
			numeric = numeric[:maxAggColumns]
		}
		for _, agg := range intent.Aggregations {
			for _, col := range numeric {
				plan.Agg = append(plan.Agg, entities.PlanAgg{Col: col, Op: agg.Op})
			}
		}
	}

	if intent.IsTrend && intent.Trend != nil {
		dateCol := firstResolved(resolved, "date", "time")
		if dateCol == "" {
			if dateCols := candidate.DateColumns(); len(dateCols) > 0 {
				dateCol = dateCols[0]
			}
		}
		if dateCol != "" {
			valueCols := aggColumns(plan.Agg)
			if len(valueCols) == 0 {
				valueCols = candidate.NumericColumns()
				if len(valueCols) > 2 {
					valueCols = valueCols[:2]
				}
			}
			plan.Trend = &entities.PlanTrend{
				DateCol:   dateCol,
				Frequency: intent.Trend.Frequency,
				ValueCols: valueCols,
			}
		}
	}

	// Growth is all-or-nothing: both columns resolve or the block is absent.
	if intent.IsGrowth && intent.Growth != nil {
		dateCol := firstResolved(resolved, "date", "time")
		if dateCol == "" {
			if dateCols := candidate.DateColumns(); len(dateCols) > 0 {
				dateCol = dateCols[0]
			}
		}
		valueCol := firstResolved(resolved, "value", "sales")
		if valueCol == "" {
			if numericCols := candidate.NumericColumns(); len(numericCols) > 0 {
				valueCol = numericCols[0]
			}
		}
		if dateCol != "" && valueCol != "" {
			plan.Growth = &entities.PlanGrowth{
				DateCol:    dateCol,
				ValueCol:   valueCol,
				GrowthType: intent.Growth.GrowthType,
			}
		}
	}

	if intent.IsTextAnalysis && intent.TextAnalysis != nil {
		textCol := resolved["text"]
		if textCol == "" {
			if textCols := candidate.TextColumns(); len(textCols) > 0 {
				textCol = textCols[0]
			}
		}
		if textCol != "" {
			tokenizer := "simple_en"
			if intent.Language == entities.LanguageZH {
				tokenizer = "simple_zh"
			}
			plan.TextOps = &entities.PlanTextOps{
				TextCol:   textCol,
				Tokenizer: tokenizer,
				TopK:      intent.TextAnalysis.TopK,
			}
		}
	}

	if intent.IsRanking {
		for _, s := range intent.Sorts {
			col := sortValueColumn(resolved, candidate)
			if col != "" {
				plan.Sort = append(plan.Sort, entities.PlanSort{Col: col, Order: s.Order})
			}
		}
		if intent.TopN != nil {
			limit := *intent.TopN
			plan.Limit = &limit
		} else {
			limit := defaultTopN
			plan.Limit = &limit
		}
	}

	return plan
}

// sortValueColumn falls through: role-resolved value column, then any column
// whose name looks price-like, then the first numeric column.
func sortValueColumn(resolved map[string]string, candidate entities.Candidate) string {
	if col := firstResolved(resolved, "value", "sales"); col != "" {
		return col
	}
	for _, col := range candidate.Columns {
		if strings.Contains(col, "价格") || strings.Contains(col, "清仓价") ||
			strings.Contains(strings.ToLower(col), "price") {
			return col
		}
	}
	if numericCols := candidate.NumericColumns(); len(numericCols) > 0 {
		return numericCols[0]
	}
	return ""
}

// resolveByKeyword matches a role's fixed keyword list against lowercased
// column names.
func resolveByKeyword(role string, columns []string, _ map[string]entities.ColumnType) (string, bool) {
	for _, rp := range roleResolutionPatterns {
		if rp.Role != role {
			continue
		}
		for _, col := range columns {
			colLower := strings.ToLower(col)
			for _, term := range rp.Terms {
				if strings.Contains(colLower, strings.ToLower(term)) || strings.Contains(col, term) {
					return col, true
				}
			}
		}
	}
	return "", false
}

// resolveByType picks the first column whose declared type matches the
// role's semantic type.
func resolveByType(role string, columns []string, types map[string]entities.ColumnType) (string, bool) {
	target, ok := roleTypeMapping[role]
	if !ok {
		return "", false
	}
	for _, col := range columns {
		if types[col] == target {
			return col, true
		}
	}
	return "", false
}

// resolveByFuzzy returns the single closest column by edit-distance
// similarity, if it clears the threshold.
func resolveByFuzzy(role string, columns []string, _ map[string]entities.ColumnType) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, col := range columns {
		score := similarityRatio(role, col)
		if score > bestScore {
			bestScore = score
			best = col
		}
	}
	if bestScore >= fuzzyThreshold {
		return best, true
	}
	return "", false
}

// similarityRatio normalizes edit distance into [0,1].
func similarityRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max)
}

func firstResolved(resolved map[string]string, roles ...string) string {
	for _, role := range roles {
		if col, ok := resolved[role]; ok && col != "" {
			return col
		}
	}
	return ""
}

func aggColumns(aggs []entities.PlanAgg) []string {
	var cols []string
	for _, a := range aggs {
		if !contains(cols, a.Col) {
			cols = append(cols, a.Col)
		}
	}
	return cols
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
