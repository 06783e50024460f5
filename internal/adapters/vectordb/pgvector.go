// Postgres-backed vector index using the pgvector extension. Unlike the
// SQLite and in-memory adapters, nearest-neighbor ranking runs in the
// database via the <=> cosine distance operator.
package vectordb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Postgres driver
	"github.com/pgvector/pgvector-go"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
)

// PgvectorIndex implements ports.VectorIndex on Postgres with pgvector.
type PgvectorIndex struct {
	db  *sqlx.DB
	dim int
}

// NewPgvectorIndex connects to Postgres and prepares the schema. dim fixes
// the vector column width; every embedding must match it.
func NewPgvectorIndex(dsn string, dim int) (*PgvectorIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	idx := &PgvectorIndex{db: db, dim: dim}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

func (p *PgvectorIndex) initSchema() error {
	if _, err := p.db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS doc_records (
		id BIGSERIAL PRIMARY KEY,
		file_name TEXT NOT NULL,
		sheet_name TEXT NOT NULL,
		columns JSONB NOT NULL,
		types JSONB NOT NULL,
		row_count INTEGER NOT NULL,
		date_range TEXT,
		summary TEXT,
		embedding vector(%d) NOT NULL
	);
	CREATE TABLE IF NOT EXISTS column_records (
		id BIGSERIAL PRIMARY KEY,
		file_name TEXT NOT NULL,
		sheet_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		field_description TEXT,
		column_type TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	);
	`, p.dim, p.dim)

	if _, err := p.db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Replace rebuilds both tables in a single transaction.
func (p *PgvectorIndex) Replace(ctx context.Context, docs []entities.DocRecord, cols []entities.ColumnRecord) error {
	dim, err := commonDimension(docs, cols)
	if err != nil {
		return err
	}
	if dim != 0 && dim != p.dim {
		return fmt.Errorf("records have %d dimensions, index expects %d", dim, p.dim)
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE doc_records, column_records`); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}

	for _, doc := range docs {
		columnsJSON, err := jsonMarshal(doc.Columns)
		if err != nil {
			return err
		}
		typesJSON, err := jsonMarshal(doc.Types)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO doc_records (file_name, sheet_name, columns, types, row_count, date_range, summary, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, doc.FileName, doc.SheetName, columnsJSON, typesJSON,
			doc.RowCount, doc.DateRange, doc.Summary, pgvector.NewVector(doc.Embedding),
		); err != nil {
			return fmt.Errorf("inserting doc record: %w", err)
		}
	}

	for _, col := range cols {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO column_records (file_name, sheet_name, column_name, field_description, column_type, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, col.FileName, col.SheetName, col.ColumnName,
			col.FieldDescription, string(col.ColumnType), pgvector.NewVector(col.Embedding),
		); err != nil {
			return fmt.Errorf("inserting column record: %w", err)
		}
	}

	return tx.Commit()
}

// SearchDocs ranks document records by cosine distance in the database.
func (p *PgvectorIndex) SearchDocs(ctx context.Context, embedding []float32, topK int) ([]entities.DocMatch, error) {
	if len(embedding) != p.dim {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(embedding), p.dim)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT file_name, sheet_name, columns, types, row_count, date_range, summary,
		       embedding <=> $1 AS distance
		FROM doc_records
		ORDER BY distance
		LIMIT $2
	`, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("querying doc records: %w", err)
	}
	defer rows.Close()

	var matches []entities.DocMatch
	for rows.Next() {
		var m entities.DocMatch
		var columnsJSON, typesJSON []byte
		if err := rows.Scan(&m.Record.FileName, &m.Record.SheetName, &columnsJSON, &typesJSON,
			&m.Record.RowCount, &m.Record.DateRange, &m.Record.Summary, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning doc record: %w", err)
		}
		if err := jsonUnmarshal(columnsJSON, &m.Record.Columns); err != nil {
			return nil, err
		}
		if err := jsonUnmarshal(typesJSON, &m.Record.Types); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// SearchColumns ranks column records by cosine distance in the database.
func (p *PgvectorIndex) SearchColumns(ctx context.Context, embedding []float32, topK int) ([]entities.ColumnMatch, error) {
	if len(embedding) != p.dim {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(embedding), p.dim)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT file_name, sheet_name, column_name, field_description, column_type,
		       embedding <=> $1 AS distance
		FROM column_records
		ORDER BY distance
		LIMIT $2
	`, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("querying column records: %w", err)
	}
	defer rows.Close()

	var matches []entities.ColumnMatch
	for rows.Next() {
		var m entities.ColumnMatch
		var colType string
		if err := rows.Scan(&m.Record.FileName, &m.Record.SheetName, &m.Record.ColumnName,
			&m.Record.FieldDescription, &colType, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning column record: %w", err)
		}
		m.Record.ColumnType = entities.ColumnType(colType)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Size reports the number of document records.
func (p *PgvectorIndex) Size(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting doc records: %w", err)
	}
	return count, nil
}

// Close closes the connection pool.
func (p *PgvectorIndex) Close() error {
	return p.db.Close()
}

func jsonMarshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return data, nil
}

func jsonUnmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding json: %w", err)
	}
	return nil
}
