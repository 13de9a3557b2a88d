package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/proplex/searchd/pkg/logger"
	"github.com/proplex/searchd/pkg/postgres"
	"github.com/proplex/searchd/pkg/search"
)

// Warehouse is the PostgreSQL source of truth for the corpus. Query
// services rebuild their in-memory index from it on reload.
type Warehouse struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewWarehouse creates a Warehouse over the given database.
func NewWarehouse(db *postgres.Client) *Warehouse {
	return &Warehouse{
		db:     db,
		logger: logger.WithComponent("warehouse"),
	}
}

// EnsureSchema creates the documents table if it does not exist.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	_, err := w.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			content      TEXT NOT NULL DEFAULT '',
			tags         JSONB NOT NULL DEFAULT '[]',
			category     TEXT NOT NULL DEFAULT '',
			score        DOUBLE PRECISION NOT NULL DEFAULT 0,
			metadata     JSONB NOT NULL DEFAULT '{}',
			content_hash TEXT NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Upsert writes the document, keyed by its external id. It reports false
// when the stored content hash already matches, meaning nothing changed and
// no reload needs to be signalled.
func (w *Warehouse) Upsert(ctx context.Context, doc search.Document, contentHash string) (bool, error) {
	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return false, fmt.Errorf("marshaling tags: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshaling metadata: %w", err)
	}

	var changed bool
	err = w.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, title, content, tags, category, score, metadata, content_hash, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (id) DO UPDATE SET
				title        = EXCLUDED.title,
				content      = EXCLUDED.content,
				tags         = EXCLUDED.tags,
				category     = EXCLUDED.category,
				score        = EXCLUDED.score,
				metadata     = EXCLUDED.metadata,
				content_hash = EXCLUDED.content_hash,
				updated_at   = NOW()
			WHERE documents.content_hash <> EXCLUDED.content_hash`,
			doc.ID, doc.Title, doc.Content, tags, doc.Category, doc.Score, metadata, contentHash,
		)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = rows > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return changed, nil
}

// Delete removes the document with the given id, reporting whether a row
// was actually deleted.
func (w *Warehouse) Delete(ctx context.Context, id string) (bool, error) {
	res, err := w.db.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting document %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// FetchAll returns the whole corpus ordered by id, so repeated loads assign
// the same internal ids.
func (w *Warehouse) FetchAll(ctx context.Context) ([]search.Document, error) {
	rows, err := w.db.DB.QueryContext(ctx, `
		SELECT id, title, content, tags, category, score, metadata
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []search.Document
	for rows.Next() {
		var doc search.Document
		var tags, metadata []byte
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &tags, &doc.Category, &doc.Score, &metadata); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		if err := json.Unmarshal(tags, &doc.Tags); err != nil {
			w.logger.Warn("skipping document with corrupt tags", "id", doc.ID, "error", err)
			continue
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			w.logger.Warn("skipping document with corrupt metadata", "id", doc.ID, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of stored documents.
func (w *Warehouse) Count(ctx context.Context) (int, error) {
	var count int
	err := w.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// ContentHash fingerprints every field that affects matching or ranking.
// The id is excluded so re-keying a document is always treated as a change
// on the new id.
func ContentHash(doc search.Document) string {
	payload, _ := json.Marshal(struct {
		Title    string            `json:"t"`
		Content  string            `json:"c"`
		Tags     []string          `json:"g"`
		Category string            `json:"k"`
		Score    float64           `json:"s"`
		Metadata map[string]string `json:"m"`
	}{doc.Title, doc.Content, doc.Tags, doc.Category, doc.Score, doc.Metadata})
	return fmt.Sprintf("%x", sha256.Sum256(payload))
}
