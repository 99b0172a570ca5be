// Package postgres provides a PostgreSQL-backed document store via pgx's
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/document"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	filename VARCHAR(500) NOT NULL,
	original_filename VARCHAR(500) NOT NULL,
	file_path TEXT NOT NULL,
	file_size_bytes BIGINT NOT NULL,
	mime_type VARCHAR(100) NOT NULL DEFAULT '',
	document_type VARCHAR(100) NOT NULL DEFAULT '',
	status VARCHAR(50) NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	chunk_count INTEGER NOT NULL DEFAULT 0,
	metadata JSONB NOT NULL DEFAULT '{}',
	error_message TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	upload_date TIMESTAMPTZ NOT NULL,
	processed_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Store implements document.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore connects to PostgreSQL with the given DSN and migrates the
// documents table.
func NewStore(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	logger.Info("postgres document store initialized")

	return &Store{db: db, logger: logger}, nil
}

const columns = `id, filename, original_filename, file_path, file_size_bytes,
	mime_type, document_type, status, chunk_count, metadata, error_message,
	retry_count, upload_date, processed_date, created_at, updated_at`

// Create inserts a new document record.
func (s *Store) Create(ctx context.Context, doc *document.Document) error {
	metaJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		doc.ID, doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSizeBytes,
		doc.MimeType, doc.DocumentType, string(doc.Status), doc.ChunkCount, metaJSON,
		doc.ErrorMessage, doc.RetryCount, doc.UploadDate, nullableTime(doc.ProcessedDate),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the document with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*document.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	return doc, nil
}

// List returns all documents, newest upload first.
func (s *Store) List(ctx context.Context) ([]*document.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM documents ORDER BY upload_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Update persists changes to an existing document.
func (s *Store) Update(ctx context.Context, doc *document.Document) error {
	metaJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	doc.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET
			filename = $1, original_filename = $2, file_path = $3, file_size_bytes = $4,
			mime_type = $5, document_type = $6, status = $7, chunk_count = $8, metadata = $9,
			error_message = $10, retry_count = $11, processed_date = $12, updated_at = $13
		WHERE id = $14`,
		doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSizeBytes,
		doc.MimeType, doc.DocumentType, string(doc.Status), doc.ChunkCount, metaJSON,
		doc.ErrorMessage, doc.RetryCount, nullableTime(doc.ProcessedDate), doc.UpdatedAt,
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of document %s: %w", doc.ID, err)
	}
	if affected == 0 {
		return document.ErrNotFound
	}
	return nil
}

// Delete removes the document record.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of document %s: %w", id, err)
	}
	if affected == 0 {
		return document.ErrNotFound
	}
	return nil
}

// CountByStatus returns document counts keyed by lifecycle status.
func (s *Store) CountByStatus(ctx context.Context) (map[document.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()

	counts := make(map[document.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[document.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}

	return counts, nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*document.Document, error) {
	var (
		doc           document.Document
		status        string
		metaJSON      []byte
		processedDate sql.NullTime
	)

	err := row.Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.FilePath,
		&doc.FileSizeBytes, &doc.MimeType, &doc.DocumentType, &status, &doc.ChunkCount,
		&metaJSON, &doc.ErrorMessage, &doc.RetryCount, &doc.UploadDate, &processedDate,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	doc.Status = document.Status(status)
	if processedDate.Valid {
		t := processedDate.Time
		doc.ProcessedDate = &t
	}
	if len(metaJSON) > 0 && string(metaJSON) != "{}" {
		if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &doc, nil
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}
	return string(b), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

var _ document.Store = (*Store)(nil)
