// Package summaries loads table summary JSON files from a directory.
// Each file holds either a single TableSummary object or an array of them.
package summaries

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// DirLoader implements ports.SummarySource over a flat directory of .json
// files. Files that fail to parse are logged and skipped, not fatal: one bad
// summary must not block an index rebuild.
type DirLoader struct {
	dir string
}

// NewDirLoader creates a loader for the given directory.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

// Load reads every .json file in the directory, in name order.
func (l *DirLoader) Load(ctx context.Context) ([]entities.TableSummary, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading summaries directory: %w", err)
	}

	var summaries []entities.TableSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(l.dir, entry.Name())
		loaded, err := loadFile(path)
		if err != nil {
			log.Printf("[WARN] skipping summary file %s: %v", entry.Name(), err)
			continue
		}
		summaries = append(summaries, loaded...)
	}
	return summaries, nil
}

func loadFile(path string) ([]entities.TableSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []entities.TableSummary
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parsing summary array: %w", err)
		}
		return validateAll(list)
	}

	var single entities.TableSummary
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return validateAll([]entities.TableSummary{single})
}

func validateAll(list []entities.TableSummary) ([]entities.TableSummary, error) {
	for _, s := range list {
		if s.FileName == "" || s.SheetName == "" {
			return nil, fmt.Errorf("summary missing file_name or sheet_name")
		}
		if len(s.Columns) == 0 {
			return nil, fmt.Errorf("summary %s/%s has no columns", s.FileName, s.SheetName)
		}
	}
	return list, nil
}
