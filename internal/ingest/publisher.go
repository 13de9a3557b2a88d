package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/proplex/searchd/internal/ingest/validator"
	"github.com/proplex/searchd/pkg/errors"
	"github.com/proplex/searchd/pkg/kafka"
	"github.com/proplex/searchd/pkg/logger"
	"github.com/proplex/searchd/pkg/resilience"
	"github.com/proplex/searchd/pkg/search"
)

// Publisher runs the write path: validate, store in the warehouse, then
// signal query services over Kafka. Unchanged documents are detected via
// content hash and produce no event.
type Publisher struct {
	warehouse *Warehouse
	producer  *kafka.Producer
	logger    *slog.Logger
}

// NewPublisher creates a Publisher. The producer may be nil, in which case
// documents are stored but no update events are emitted.
func NewPublisher(warehouse *Warehouse, producer *kafka.Producer) *Publisher {
	return &Publisher{
		warehouse: warehouse,
		producer:  producer,
		logger:    logger.WithComponent("ingest-publisher"),
	}
}

// Ingest validates and stores a single document. The returned status is
// "unchanged" when the stored content hash already matches.
func (p *Publisher) Ingest(ctx context.Context, doc search.Document) (IngestResponse, error) {
	if err := validator.ValidateDocument(&doc); err != nil {
		return IngestResponse{}, err
	}
	hash := ContentHash(doc)
	changed, err := p.warehouse.Upsert(ctx, doc, hash)
	if err != nil {
		return IngestResponse{}, err
	}
	resp := IngestResponse{DocumentID: doc.ID, Status: StatusUnchanged, ContentHash: hash}
	if changed {
		resp.Status = StatusAccepted
		p.publishUpdate(ctx, UpdateEvent{
			DocumentID:  doc.ID,
			Action:      ActionUpsert,
			ContentHash: hash,
			UpdatedAt:   time.Now().UTC(),
		})
	}
	return resp, nil
}

// IngestBulk validates every document up front and rejects the whole batch
// if any fails, so a partial bulk write never reaches the warehouse.
func (p *Publisher) IngestBulk(ctx context.Context, docs []search.Document) (BulkResponse, error) {
	if len(docs) == 0 {
		return BulkResponse{}, errors.InvalidInput("bulk request contains no documents")
	}
	for i := range docs {
		if err := validator.ValidateDocument(&docs[i]); err != nil {
			return BulkResponse{}, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
				"document %d (%s): %v", i, docs[i].ID, err)
		}
	}

	resp := BulkResponse{Results: make([]IngestResponse, 0, len(docs))}
	for i := range docs {
		hash := ContentHash(docs[i])
		changed, err := p.warehouse.Upsert(ctx, docs[i], hash)
		if err != nil {
			return resp, err
		}
		result := IngestResponse{DocumentID: docs[i].ID, Status: StatusUnchanged, ContentHash: hash}
		if changed {
			result.Status = StatusAccepted
			resp.Accepted++
			p.publishUpdate(ctx, UpdateEvent{
				DocumentID:  docs[i].ID,
				Action:      ActionUpsert,
				ContentHash: hash,
				UpdatedAt:   time.Now().UTC(),
			})
		} else {
			resp.Unchanged++
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// Remove deletes a document from the warehouse and signals the removal.
func (p *Publisher) Remove(ctx context.Context, id string) (IngestResponse, error) {
	if id == "" {
		return IngestResponse{}, errors.InvalidInput("document id is required")
	}
	deleted, err := p.warehouse.Delete(ctx, id)
	if err != nil {
		return IngestResponse{}, err
	}
	if !deleted {
		return IngestResponse{}, errors.Newf(errors.ErrDocumentNotFound, http.StatusNotFound, "document %s", id)
	}
	p.publishUpdate(ctx, UpdateEvent{
		DocumentID: id,
		Action:     ActionDelete,
		UpdatedAt:  time.Now().UTC(),
	})
	return IngestResponse{DocumentID: id, Status: StatusDeleted}, nil
}

// publishUpdate emits an update event with retries. Publish failures are
// logged but never fail the ingest: the warehouse write already succeeded
// and reloads will pick the change up.
func (p *Publisher) publishUpdate(ctx context.Context, event UpdateEvent) {
	if p.producer == nil {
		return
	}
	err := resilience.Retry(ctx, "publish-document-update", resilience.RetryConfig{}, func() error {
		return p.producer.Publish(ctx, kafka.Event{Key: event.DocumentID, Value: event})
	})
	if err != nil {
		p.logger.Error("failed to publish update event",
			"document_id", event.DocumentID,
			"action", event.Action,
			"error", err,
		)
	}
}
