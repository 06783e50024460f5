// index.go builds the embedding index from table summaries.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
	"github.com/tablerag/tablerag-go/internal/domain/ports"
)

// columnContextRunes is how much of the parent document text is appended to
// each column record as disambiguating context.
const columnContextRunes = 200

// IndexUseCase builds the document- and column-level embedding index from
// table summaries and installs it atomically via the VectorIndex port.
// Rebuild-on-ingest: there is no incremental update path.
type IndexUseCase struct {
	embedder ports.EmbeddingService
	index    ports.VectorIndex
}

// NewIndexUseCase creates an IndexUseCase with injected dependencies.
func NewIndexUseCase(embedder ports.EmbeddingService, index ports.VectorIndex) *IndexUseCase {
	return &IndexUseCase{embedder: embedder, index: index}
}

// Build expands, embeds and persists one DocRecord per (file, sheet) pair
// plus ColumnRecords 1:1 with each sheet's field descriptions. The previous
// index contents are replaced wholesale.
func (uc *IndexUseCase) Build(ctx context.Context, summaries []entities.TableSummary) error {
	var (
		docTexts []string
		docs     []entities.DocRecord
		colTexts []string
		cols     []entities.ColumnRecord
	)

	for _, summary := range summaries {
		docText := documentText(summary)
		expanded := ExpandWithSynonyms(docText)

		docTexts = append(docTexts, expanded)
		docs = append(docs, entities.DocRecord{
			FileName:  summary.FileName,
			SheetName: summary.SheetName,
			Columns:   summary.Columns,
			Types:     summary.Types,
			RowCount:  summary.RowCount,
			DateRange: summary.DateRange,
			Summary:   summary.TextSummary,
		})

		context200 := firstRunes(docText, columnContextRunes)
		for i, desc := range summary.FieldDescriptions {
			colName := ""
			if i < len(summary.Columns) {
				colName = summary.Columns[i]
			}
			colType := entities.ColumnText
			if t, ok := summary.Types[colName]; ok {
				colType = t
			}

			colTexts = append(colTexts, ExpandWithSynonyms(desc+" "+context200))
			cols = append(cols, entities.ColumnRecord{
				FileName:         summary.FileName,
				SheetName:        summary.SheetName,
				ColumnName:       colName,
				FieldDescription: desc,
				ColumnType:       colType,
			})
		}
	}

	if len(docTexts) > 0 {
		embeddings, err := uc.embedder.EmbedBatch(ctx, docTexts)
		if err != nil {
			return fmt.Errorf("embedding documents: %w", err)
		}
		if len(embeddings) != len(docs) {
			return fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(docs), len(embeddings))
		}
		for i := range docs {
			docs[i].Embedding = embeddings[i]
		}
	}

	if len(colTexts) > 0 {
		embeddings, err := uc.embedder.EmbedBatch(ctx, colTexts)
		if err != nil {
			return fmt.Errorf("embedding columns: %w", err)
		}
		if len(embeddings) != len(cols) {
			return fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(cols), len(embeddings))
		}
		for i := range cols {
			cols[i].Embedding = embeddings[i]
		}
	}

	return uc.index.Replace(ctx, docs, cols)
}

// documentText assembles the free text embedded for a sheet: the summary,
// the first 20 field descriptions, the column names, and sample values from
// the first sample row.
func documentText(summary entities.TableSummary) string {
	var sb strings.Builder
	sb.WriteString(summary.TextSummary)

	descs := summary.FieldDescriptions
	if len(descs) > 20 {
		descs = descs[:20]
	}
	for _, d := range descs {
		sb.WriteString(" ")
		sb.WriteString(d)
	}

	for _, col := range summary.Columns {
		sb.WriteString(" ")
		sb.WriteString(col)
	}

	if len(summary.SampleRows) > 0 {
		count := 0
		for _, col := range summary.Columns {
			if count >= 10 {
				break
			}
			v, ok := summary.SampleRows[0][col]
			if !ok || v == nil {
				continue
			}
			s := fmt.Sprintf("%v", v)
			if s == "" {
				continue
			}
			sb.WriteString(" ")
			sb.WriteString(s)
			count++
		}
	}

	return sb.String()
}

// ExpandWithSynonyms appends up to three sibling synonyms per matched
// semantic category, biasing the embedding toward the category without the
// embedding model needing domain knowledge.
func ExpandWithSynonyms(text string) string {
	expanded := text
	for _, cat := range synonymCategories {
		for _, syn := range cat.Terms {
			if !strings.Contains(text, syn) {
				continue
			}
			var siblings []string
			for _, other := range cat.Terms {
				if other == syn {
					continue
				}
				siblings = append(siblings, other)
				if len(siblings) == 3 {
					break
				}
			}
			expanded += " " + strings.Join(siblings, " ")
			break
		}
	}
	return expanded
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
