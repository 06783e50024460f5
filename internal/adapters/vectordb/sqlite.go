// SQLite-backed persistent vector index, keyed by a knowledge-base
// directory. Embeddings and schema metadata are stored as JSON; search is
// the same brute-force cosine scan as the in-memory index.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// SQLiteIndex implements ports.VectorIndex with SQLite persistence so the
// index survives restarts without a rebuild.
type SQLiteIndex struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteIndex opens (or creates) the index database inside the
// knowledge-base directory.
func NewSQLiteIndex(knowledgeBaseDir string) (*SQLiteIndex, error) {
	if knowledgeBaseDir == "" {
		knowledgeBaseDir = "./data/knowledge_base"
	}
	if err := os.MkdirAll(knowledgeBaseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating knowledge base directory: %w", err)
	}

	dbPath := filepath.Join(knowledgeBaseDir, "index.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS doc_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		sheet_name TEXT NOT NULL,
		columns TEXT NOT NULL,
		types TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		date_range TEXT,
		summary TEXT,
		embedding BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS column_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		sheet_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		field_description TEXT,
		column_type TEXT NOT NULL,
		embedding BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_doc_file ON doc_records(file_name, sheet_name);
	CREATE INDEX IF NOT EXISTS idx_col_file ON column_records(file_name, sheet_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Replace rebuilds both tables in a single transaction: readers see either
// the old index or the new one, never a mix.
func (s *SQLiteIndex) Replace(ctx context.Context, docs []entities.DocRecord, cols []entities.ColumnRecord) error {
	if _, err := commonDimension(docs, cols); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_records`); err != nil {
		return fmt.Errorf("clearing doc records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM column_records`); err != nil {
		return fmt.Errorf("clearing column records: %w", err)
	}

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO doc_records (file_name, sheet_name, columns, types, row_count, date_range, summary, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing doc insert: %w", err)
	}
	defer docStmt.Close()

	for _, doc := range docs {
		columnsJSON, err := json.Marshal(doc.Columns)
		if err != nil {
			return fmt.Errorf("encoding columns: %w", err)
		}
		typesJSON, err := json.Marshal(doc.Types)
		if err != nil {
			return fmt.Errorf("encoding types: %w", err)
		}
		embeddingJSON, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := docStmt.ExecContext(ctx,
			doc.FileName, doc.SheetName, columnsJSON, typesJSON,
			doc.RowCount, doc.DateRange, doc.Summary, embeddingJSON,
		); err != nil {
			return fmt.Errorf("inserting doc record: %w", err)
		}
	}

	colStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO column_records (file_name, sheet_name, column_name, field_description, column_type, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing column insert: %w", err)
	}
	defer colStmt.Close()

	for _, col := range cols {
		embeddingJSON, err := json.Marshal(col.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := colStmt.ExecContext(ctx,
			col.FileName, col.SheetName, col.ColumnName,
			col.FieldDescription, string(col.ColumnType), embeddingJSON,
		); err != nil {
			return fmt.Errorf("inserting column record: %w", err)
		}
	}

	return tx.Commit()
}

// SearchDocs loads every doc record and ranks by cosine distance.
func (s *SQLiteIndex) SearchDocs(ctx context.Context, embedding []float32, topK int) ([]entities.DocMatch, error) {
	docs, err := s.loadDocs(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs[0].Embedding) != len(embedding) {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(embedding), len(docs[0].Embedding))
	}

	matches := make([]entities.DocMatch, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, entities.DocMatch{
			Record:   doc,
			Distance: cosineDistance(embedding, doc.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// SearchColumns loads every column record and ranks by cosine distance.
func (s *SQLiteIndex) SearchColumns(ctx context.Context, embedding []float32, topK int) ([]entities.ColumnMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, sheet_name, column_name, field_description, column_type, embedding
		FROM column_records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying column records: %w", err)
	}
	defer rows.Close()

	var matches []entities.ColumnMatch
	for rows.Next() {
		var rec entities.ColumnRecord
		var colType string
		var embeddingJSON []byte
		if err := rows.Scan(&rec.FileName, &rec.SheetName, &rec.ColumnName, &rec.FieldDescription, &colType, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning column record: %w", err)
		}
		rec.ColumnType = entities.ColumnType(colType)
		if err := json.Unmarshal(embeddingJSON, &rec.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding: %w", err)
		}
		matches = append(matches, entities.ColumnMatch{
			Record:   rec,
			Distance: cosineDistance(embedding, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches[0].Record.Embedding) != len(embedding) {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(embedding), len(matches[0].Record.Embedding))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Size reports the number of document records.
func (s *SQLiteIndex) Size(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting doc records: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) loadDocs(ctx context.Context) ([]entities.DocRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, sheet_name, columns, types, row_count, date_range, summary, embedding
		FROM doc_records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying doc records: %w", err)
	}
	defer rows.Close()

	var docs []entities.DocRecord
	for rows.Next() {
		var rec entities.DocRecord
		var columnsJSON, typesJSON, embeddingJSON []byte
		if err := rows.Scan(&rec.FileName, &rec.SheetName, &columnsJSON, &typesJSON,
			&rec.RowCount, &rec.DateRange, &rec.Summary, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning doc record: %w", err)
		}
		if err := json.Unmarshal(columnsJSON, &rec.Columns); err != nil {
			return nil, fmt.Errorf("decoding columns: %w", err)
		}
		if err := json.Unmarshal(typesJSON, &rec.Types); err != nil {
			return nil, fmt.Errorf("decoding types: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &rec.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding: %w", err)
		}
		docs = append(docs, rec)
	}
	return docs, rows.Err()
}
