// Package ingest accepts documents into the warehouse and notifies running
// query services. Documents land in PostgreSQL as the source of truth; a
// Kafka event per change lets searchd instances reload the corpus.
package ingest

import "time"

// Ingest outcome statuses.
const (
	StatusAccepted  = "accepted"
	StatusUnchanged = "unchanged"
	StatusDeleted   = "deleted"
)

// IngestResponse is returned to the caller after a document is processed.
type IngestResponse struct {
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	ContentHash string `json:"content_hash,omitempty"`
}

// BulkResponse reports per-document outcomes of a bulk submission.
type BulkResponse struct {
	Accepted  int              `json:"accepted"`
	Unchanged int              `json:"unchanged"`
	Results   []IngestResponse `json:"results"`
}

// UpdateEvent is the Kafka payload published on the document-updates topic
// after the warehouse changes. Consumers treat it as a reload signal.
type UpdateEvent struct {
	DocumentID  string    `json:"document_id"`
	Action      string    `json:"action"`
	ContentHash string    `json:"content_hash,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update actions.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)
