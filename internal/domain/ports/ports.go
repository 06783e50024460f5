// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, not concrete implementations;
// adapters implement them.
package ports

import (
	"context"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text. The same service is
// used at index-build time and query time; vector dimensionality must match
// between the two.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists and queries the document- and column-level records of
// the embedding index. The index is read-only between rebuilds; Replace must
// swap in the new records atomically rather than mutate in place, so
// concurrent readers need no coordination.
type VectorIndex interface {
	// Replace installs a freshly built index, discarding the previous one.
	Replace(ctx context.Context, docs []entities.DocRecord, cols []entities.ColumnRecord) error

	// SearchDocs returns up to topK document records nearest to the query
	// embedding in cosine-distance space, closest first. An empty index
	// yields an empty result, not an error. A query vector whose
	// dimensionality differs from the stored vectors is a wiring defect and
	// fails loudly.
	SearchDocs(ctx context.Context, embedding []float32, topK int) ([]entities.DocMatch, error)

	// SearchColumns is the column-level counterpart of SearchDocs.
	SearchColumns(ctx context.Context, embedding []float32, topK int) ([]entities.ColumnMatch, error)

	// Size reports the number of document records currently indexed.
	Size(ctx context.Context) (int, error)
}

// CodeGenerator turns a plan plus the selected candidate's schema into an
// executable analysis code string. Its internals are opaque to the core.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, plan *entities.Plan, question string, candidate entities.Candidate) (string, error)
}

// CodeRunner executes a generated code string against the table data at
// dataPath and returns the code's text output.
type CodeRunner interface {
	Run(ctx context.Context, code string, dataPath string) (string, error)
}

// SummarySource loads the table summaries produced by the (external)
// spreadsheet summarizer, the input to an index build.
type SummarySource interface {
	Load(ctx context.Context) ([]entities.TableSummary, error)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
