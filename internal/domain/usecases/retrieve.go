// retrieve.go ranks candidate tables for a question: nearest-neighbor search
// over the embedding index followed by a deterministic re-scoring pass.
package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
	"github.com/tablerag/tablerag-go/internal/domain/ports"
)

const (
	defaultTopK        = 3
	dateBonusFactor    = 1.2
	numericBonusWeight = 0.5
	// neutralCoverage applies when the question yields no role keywords:
	// coverage must not penalize, only discriminate.
	neutralCoverage    = 0.5
	maxRationaleCols   = 5
)

// RetrieveOptions narrow a search. Allow/Disallow filters drop candidates
// entirely before scoring, never merely down-rank them.
type RetrieveOptions struct {
	TopK          int
	AllowFiles    []string
	DisallowFiles []string
}

// RetrieverUseCase performs hybrid retrieval: cosine nearest neighbors over
// document records, re-scored by field coverage, date relevance and numeric
// content. Reads the index only; safe for concurrent callers.
type RetrieverUseCase struct {
	embedder ports.EmbeddingService
	index    ports.VectorIndex
}

// NewRetrieverUseCase creates a RetrieverUseCase with injected dependencies.
func NewRetrieverUseCase(embedder ports.EmbeddingService, index ports.VectorIndex) *RetrieverUseCase {
	return &RetrieverUseCase{embedder: embedder, index: index}
}

// Search returns up to TopK candidates, best first. An empty index or a
// fully filtered result set yields an empty slice, not an error.
func (uc *RetrieverUseCase) Search(ctx context.Context, question string, opts RetrieveOptions) ([]entities.Candidate, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	size, err := uc.index.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("sizing index: %w", err)
	}
	if size == 0 {
		return nil, nil
	}

	// Never over-request beyond the population. With file filters active the
	// whole population is fetched so pre-score filtering cannot starve the
	// result set.
	fetch := topK
	if fetch > size {
		fetch = size
	}
	if len(opts.AllowFiles) > 0 || len(opts.DisallowFiles) > 0 {
		fetch = size
	}

	embedding, err := uc.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := uc.index.SearchDocs(ctx, embedding, fetch)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	keywords := extractRoleKeywords(question)
	years := yearPattern.FindAllString(question, -1)
	wantsAggregation := containsAny(question, aggregationStyleTerms) ||
		containsAny(strings.ToLower(question), aggregationStyleTerms)

	var candidates []entities.Candidate
	for _, m := range matches {
		rec := m.Record
		if !fileAllowed(rec.FileName, opts) {
			continue
		}

		semantic := 1 - m.Distance
		coverage := fieldCoverage(keywords, rec.Columns)

		dateBonus := 1.0
		for _, y := range years {
			if rec.DateRange != "" && strings.Contains(rec.DateRange, y) {
				dateBonus = dateBonusFactor
				break
			}
		}

		numericBonus := 1.0
		if wantsAggregation && len(rec.Types) > 0 {
			numeric := 0
			for _, t := range rec.Types {
				if t == entities.ColumnNumeric {
					numeric++
				}
			}
			if numeric > 0 {
				numericBonus = 1 + float64(numeric)/float64(len(rec.Types))*numericBonusWeight
			}
		}

		final := semantic * (1 + coverage) * dateBonus * numericBonus

		candidates = append(candidates, entities.Candidate{
			FileName:      rec.FileName,
			SheetName:     rec.SheetName,
			Score:         final,
			SemanticScore: semantic,
			CoverageScore: coverage,
			Columns:       rec.Columns,
			Types:         rec.Types,
			RowCount:      rec.RowCount,
			DateRange:     rec.DateRange,
			Rationale:     buildRationale(semantic, coverage, dateBonus, numericBonus, keywords, rec.Columns),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// SearchWithIntent runs Search and enriches each rationale with intent-aware
// notes about the columns the intent will need.
func (uc *RetrieverUseCase) SearchWithIntent(ctx context.Context, intent entities.Intent, opts RetrieveOptions) ([]entities.Candidate, error) {
	candidates, err := uc.Search(ctx, intent.OriginalQuestion, opts)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		parts := []string{candidates[i].Rationale}

		if intent.IsTrend {
			if dateCols := candidates[i].DateColumns(); len(dateCols) > 0 {
				parts = append(parts, "包含日期列: "+strings.Join(dateCols, ", "))
			} else {
				parts = append(parts, "警告: 缺少日期列")
			}
		}
		if intent.IsAggregation {
			if numericCols := candidates[i].NumericColumns(); len(numericCols) > 0 {
				if len(numericCols) > 3 {
					numericCols = numericCols[:3]
				}
				parts = append(parts, "包含数值列: "+strings.Join(numericCols, ", "))
			}
		}
		if intent.IsTextAnalysis {
			if textCols := candidates[i].TextColumns(); len(textCols) > 0 {
				parts = append(parts, "包含文本列: "+strings.Join(textCols, ", "))
			}
		}

		candidates[i].Rationale = strings.Join(parts, " | ")
	}
	return candidates, nil
}

// extractRoleKeywords detects which semantic categories a question touches,
// using the same bilingual tables the rest of the pipeline uses.
func extractRoleKeywords(question string) []rolePatterns {
	lower := strings.ToLower(question)
	var found []rolePatterns
	for _, cat := range coverageCategories {
		if containsAny(question, cat.Terms) || containsAny(lower, cat.Terms) {
			found = append(found, cat)
		}
	}
	return found
}

// fieldCoverage is the fraction of detected role keywords matched by some
// column name. A category matches when its name or any of its terms is a
// substring of a column name. No keywords means a neutral 0.5.
func fieldCoverage(keywords []rolePatterns, columns []string) float64 {
	if len(keywords) == 0 {
		return neutralCoverage
	}
	matched := 0
	for _, kw := range keywords {
		if len(columnsMatching(kw, columns, 1)) > 0 {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// columnsMatching returns up to max column names matched by the category.
func columnsMatching(kw rolePatterns, columns []string, max int) []string {
	var out []string
	for _, col := range columns {
		colLower := strings.ToLower(col)
		if strings.Contains(colLower, kw.Role) || containsAny(colLower, lowered(kw.Terms)) || containsAny(col, kw.Terms) {
			out = append(out, col)
			if len(out) == max {
				return out
			}
		}
	}
	return out
}

func lowered(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}

func buildRationale(semantic, coverage, dateBonus, numericBonus float64, keywords []rolePatterns, columns []string) string {
	parts := []string{
		fmt.Sprintf("语义相似度: %.3f", semantic),
		fmt.Sprintf("字段覆盖度: %.3f", coverage),
	}
	if dateBonus > 1.0 {
		parts = append(parts, "日期范围匹配")
	}
	if numericBonus > 1.0 {
		parts = append(parts, "包含数值字段")
	}

	var matchedCols []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		for _, col := range columnsMatching(kw, columns, maxRationaleCols) {
			if !seen[col] {
				seen[col] = true
				matchedCols = append(matchedCols, col)
			}
		}
	}
	if len(matchedCols) > maxRationaleCols {
		matchedCols = matchedCols[:maxRationaleCols]
	}
	if len(matchedCols) > 0 {
		parts = append(parts, "匹配字段: "+strings.Join(matchedCols, ", "))
	}

	return strings.Join(parts, " | ")
}

func fileAllowed(fileName string, opts RetrieveOptions) bool {
	if len(opts.AllowFiles) > 0 {
		allowed := false
		for _, f := range opts.AllowFiles {
			if f == fileName {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	for _, f := range opts.DisallowFiles {
		if f == fileName {
			return false
		}
	}
	return true
}
