// intent.go parses natural-language questions into structured intents.
package usecases

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// defaultTopN is used when a ranking is detected without an explicit count.
const defaultTopN = 10

var (
	numberPattern = regexp.MustCompile(`\d+`)
	yearPattern   = regexp.MustCompile(`20\d{2}`)
)

// IntentParser converts free text into a typed Intent by running a fixed
// sequence of keyword matchers over bilingual keyword tables. Pure string
// matching: deterministic, side-effect-free, and total - malformed input
// yields an Intent with every flag false, never an error.
type IntentParser struct{}

// NewIntentParser creates an IntentParser.
func NewIntentParser() *IntentParser {
	return &IntentParser{}
}

// Parse converts a question into an Intent. Matchers run in a fixed order;
// later matchers may read flags set by earlier ones (visualization inference
// reads the trend/ranking flags).
func (p *IntentParser) Parse(question string) entities.Intent {
	intent := entities.Intent{
		OriginalQuestion: question,
		Language:         detectLanguage(question),
		PreferredViz:     entities.VizTable,
	}

	lower := strings.ToLower(question)

	// Aggregation: one spec per matched operation, column role resolved later.
	for _, op := range aggregationPatterns {
		if containsAny(question, op.Terms) || containsAny(lower, op.Terms) {
			intent.IsAggregation = true
			intent.Aggregations = append(intent.Aggregations, entities.AggregationSpec{
				Role: "value",
				Op:   op.Op,
			})
		}
	}

	// Group-by phrasing flips the flag; matched dimensions land in
	// MentionedColumns as abstract roles.
	if containsAny(question, groupByTerms) || containsAny(lower, groupByTerms) {
		intent.IsGroupBy = true
	}
	for _, dim := range dimensionPatterns {
		if containsAny(question, dim.Terms) || containsAny(lower, dim.Terms) {
			intent.IsGroupBy = true
			intent.MentionedColumns = append(intent.MentionedColumns, dim.Role)
		}
	}

	// Trend.
	if containsAny(question, trendTerms) || containsAny(lower, trendTerms) {
		intent.IsTrend = true
		freq := detectFrequency(question, lower)
		if freq == "" {
			freq = entities.FreqMonth
		}
		intent.Trend = &entities.TrendSpec{
			DateRole:  "date",
			Frequency: freq,
		}
	}

	// Ranking / top-N, with sort direction from superlative keywords.
	if containsAny(question, rankingTerms) || containsAny(lower, rankingTerms) {
		intent.IsRanking = true
		if n, ok := firstNumber(question); ok {
			intent.TopN = &n
		} else {
			n := defaultTopN
			intent.TopN = &n
		}
		switch {
		case containsAny(question, []string{"最大", "最高", "最多"}) || strings.Contains(lower, "top"):
			intent.Sorts = append(intent.Sorts, entities.SortSpec{Role: "value", Order: entities.SortDesc})
		case containsAny(question, []string{"最小", "最低", "最少"}) || strings.Contains(lower, "bottom"):
			intent.Sorts = append(intent.Sorts, entities.SortSpec{Role: "value", Order: entities.SortAsc})
		}
	}

	// Growth: the first matching variant wins, so "同比增长" stays yoy.
	for _, g := range growthTypePatterns {
		if containsAny(question, g.Terms) || containsAny(lower, g.Terms) {
			intent.IsGrowth = true
			intent.Growth = &entities.GrowthSpec{
				DateRole:   "date",
				ValueRole:  "value",
				GrowthType: g.Type,
			}
			break
		}
	}

	// Text analysis.
	if containsAny(question, textAnalysisTerms) || containsAny(lower, textAnalysisTerms) {
		intent.IsTextAnalysis = true
		intent.TextAnalysis = &entities.TextAnalysisSpec{
			TextRole: "text",
			TopK:     20,
		}
	}

	// Price analysis is a flag only; resolution happens in the compiler.
	if containsAny(question, priceTerms) || containsAny(lower, priceTerms) {
		intent.IsPriceAnalysis = true
	}

	// Date range from at most two 4-digit year tokens, expressed as filters
	// on the abstract date role.
	if dr := extractDateRange(question, lower); dr != nil {
		intent.DateRange = dr
		if dr.Start != "" {
			intent.Filters = append(intent.Filters, entities.FilterSpec{
				Role:     "date",
				Operator: ">=",
				Value:    dr.Start,
			})
		}
		if dr.End != "" {
			intent.Filters = append(intent.Filters, entities.FilterSpec{
				Role:     "date",
				Operator: "<=",
				Value:    dr.End,
			})
		}
	}

	intent.PreferredViz = detectVisualization(question, lower, intent)

	return intent
}

// detectLanguage returns zh when the question contains Han characters.
func detectLanguage(question string) entities.Language {
	for _, r := range question {
		if unicode.Is(unicode.Han, r) {
			return entities.LanguageZH
		}
	}
	return entities.LanguageEN
}

func detectFrequency(question, lower string) entities.TrendFrequency {
	for _, f := range frequencyPatterns {
		if containsAny(question, f.Terms) || containsAny(lower, f.Terms) {
			return f.Freq
		}
	}
	return ""
}

// firstNumber extracts the first run of 1+ digits.
func firstNumber(question string) (int, bool) {
	m := numberPattern.FindString(question)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// extractDateRange infers a date range from 4-digit year tokens. Two years
// span an interval; a lone year followed by an "onward" marker yields an
// open-ended range, otherwise the single year's full span.
func extractDateRange(question, lower string) *entities.DateRange {
	years := yearPattern.FindAllString(question, -1)
	switch {
	case len(years) >= 2:
		return &entities.DateRange{
			Start: years[0] + "-01-01",
			End:   years[1] + "-12-31",
		}
	case len(years) == 1:
		if strings.Contains(question, "起") || strings.Contains(lower, "since") {
			return &entities.DateRange{Start: years[0] + "-01-01"}
		}
		return &entities.DateRange{
			Start: years[0] + "-01-01",
			End:   years[0] + "-12-31",
		}
	}
	return nil
}

// detectVisualization prefers explicit chart mentions, then infers from the
// flags earlier matchers set.
func detectVisualization(question, lower string, intent entities.Intent) entities.Visualization {
	if containsAny(question, []string{"图", "图表"}) || strings.Contains(lower, "chart") {
		switch {
		case containsAny(question, []string{"折线", "趋势"}) || strings.Contains(lower, "line"):
			return entities.VizLine
		case containsAny(question, []string{"柱状", "条形"}) || strings.Contains(lower, "bar"):
			return entities.VizBar
		case strings.Contains(question, "饼图") || strings.Contains(lower, "pie"):
			return entities.VizPie
		}
	}

	switch {
	case intent.IsTrend:
		return entities.VizLine
	case intent.IsRanking || intent.IsGroupBy:
		return entities.VizBar
	case containsAny(question, []string{"占比", "比例"}) || strings.Contains(lower, "proportion"):
		return entities.VizPie
	}
	return entities.VizTable
}
