// lineage.go recovers the columns a generated analysis script actually
// references and reconciles them with what the plan expected.
package usecases

import (
	"log"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// tabularCalls are the frame methods whose string arguments name columns.
var tabularCalls = map[string]bool{
	"groupby":     true,
	"sort_values": true,
	"drop":        true,
	"dropna":      true,
	"agg":         true,
}

// patternStoplist holds generic bracket literals that are never columns.
var patternStoplist = map[string]bool{
	"x":     true,
	"y":     true,
	"name":  true,
	"title": true,
	"text":  true,
}

var (
	// framePattern targets the known frame variables of generated code.
	framePattern = regexp.MustCompile(`(?:df|result|grouped)\[['"]([^'"]+)['"]\]`)
	// bracketPattern is the catch-all for any bracketed string literal.
	bracketPattern = regexp.MustCompile(`\[['"]([^'"]+)['"]\]`)
)

// ExtractColumns returns the union of the structural and pattern extractors'
// findings. The two stay independent: the regex path is a lower-precision
// safety net for inputs the parser cannot handle.
func ExtractColumns(code string) map[string]bool {
	columns := StructuralColumns(code)
	for col := range PatternColumns(code) {
		columns[col] = true
	}
	return columns
}

// StructuralColumns parses the code into a Python syntax tree and collects
// string literals used as subscript keys, plus string arguments (including
// dict keys) of the tabular operation calls. A syntax error degrades to an
// empty set; the pattern extractor still contributes its findings.
func StructuralColumns(code string) map[string]bool {
	columns := make(map[string]bool)

	tree, err := parser.ParseString(code, "exec")
	if err != nil {
		log.Printf("[WARN] lineage: parse failed, structural extraction skipped: %v", err)
		return columns
	}

	ast.Walk(tree, func(node ast.Ast) bool {
		switch n := node.(type) {
		case *ast.Subscript:
			switch slice := n.Slice.(type) {
			case *ast.Index:
				switch v := slice.Value.(type) {
				case *ast.Str:
					if name := string(v.S); looksLikeColumn(name) {
						columns[name] = true
					}
				case *ast.List:
					// df[['col1', 'col2']]
					for _, elt := range v.Elts {
						if s, ok := elt.(*ast.Str); ok {
							columns[string(s.S)] = true
						}
					}
				}
			}
		case *ast.Call:
			attr, ok := n.Func.(*ast.Attribute)
			if !ok || !tabularCalls[string(attr.Attr)] {
				return true
			}
			for _, arg := range n.Args {
				switch a := arg.(type) {
				case *ast.Str:
					columns[string(a.S)] = true
				case *ast.List:
					for _, elt := range a.Elts {
						if s, ok := elt.(*ast.Str); ok {
							columns[string(s.S)] = true
						}
					}
				case *ast.Dict:
					// agg({'col': 'sum'})
					for _, key := range a.Keys {
						if s, ok := key.(*ast.Str); ok {
							columns[string(s.S)] = true
						}
					}
				}
			}
		}
		return true
	})

	return columns
}

// PatternColumns scans for <frame>['...'] subscripts against the known frame
// variable names, plus a catch-all bracket scan filtered by a stoplist.
func PatternColumns(code string) map[string]bool {
	columns := make(map[string]bool)

	for _, m := range framePattern.FindAllStringSubmatch(code, -1) {
		columns[m[1]] = true
	}
	for _, m := range bracketPattern.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if len([]rune(name)) > 1 && !patternStoplist[name] {
			columns[name] = true
		}
	}
	return columns
}

// looksLikeColumn filters subscript literals down to plausible column names:
// non-Latin content, alphanumerics with common separators, or anything
// longer than one character.
func looksLikeColumn(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	stripped := strings.NewReplacer("_", "", "-", "", ".", "").Replace(name)
	if stripped != "" && isAlnum(stripped) {
		return true
	}
	return len([]rune(name)) > 1
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// MergeLineage reconciles expected and discovered columns into a report.
// used = expected ∪ discovered, mapped back through the rename mapping's
// inverse when one is supplied, then filtered and re-ordered to the original
// column order - discovered names absent from the original list are dropped.
func MergeLineage(originalColumns, expectedColumns []string, discovered map[string]bool, renameMapping map[string]string) entities.LineageReport {
	used := make(map[string]bool, len(expectedColumns)+len(discovered))
	for _, col := range expectedColumns {
		used[col] = true
	}
	for col := range discovered {
		used[col] = true
	}

	if len(renameMapping) > 0 {
		inverse := make(map[string]string, len(renameMapping))
		for original, renamed := range renameMapping {
			inverse[renamed] = original
		}
		mapped := make(map[string]bool, len(used))
		for col := range used {
			if original, ok := inverse[col]; ok {
				mapped[original] = true
			} else {
				mapped[col] = true
			}
		}
		used = mapped
	}

	usedColumns := make([]string, 0, len(used))
	for _, col := range originalColumns {
		if used[col] {
			usedColumns = append(usedColumns, col)
		}
	}

	originalCount := len(originalColumns)
	denominator := originalCount
	if denominator < 1 {
		denominator = 1
	}

	mapping := make([]entities.ColumnMapping, 0, len(usedColumns))
	for _, col := range usedColumns {
		usedAs := col
		if renamed, ok := renameMapping[col]; ok {
			usedAs = renamed
		}
		mapping = append(mapping, entities.ColumnMapping{Original: col, Used: usedAs})
	}

	return entities.LineageReport{
		UsedColumns:         usedColumns,
		ColumnCount:         len(usedColumns),
		OriginalColumnCount: originalCount,
		Coverage:            float64(len(usedColumns)) / float64(denominator),
		Mapping:             mapping,
	}
}
