package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/proplex/searchd/internal/ingest"
	"github.com/proplex/searchd/internal/ingest/validator"
	apperrors "github.com/proplex/searchd/pkg/errors"
	"github.com/proplex/searchd/pkg/logger"
	"github.com/proplex/searchd/pkg/search"
)

// Handler exposes the ingestion write path over HTTP.
type Handler struct {
	publisher *ingest.Publisher
	warehouse *ingest.Warehouse
	logger    *slog.Logger
}

func New(pub *ingest.Publisher, wh *ingest.Warehouse) *Handler {
	return &Handler{
		publisher: pub,
		warehouse: wh,
		logger:    logger.WithComponent("ingest-handler"),
	}
}

// Ingest handles POST /api/v1/documents. It responds 202 when the document
// changed and an update event was emitted, 200 when the content hash matched
// and nothing happened.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var doc search.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.publisher.Ingest(ctx, doc)
	if err != nil {
		h.writeIngestError(w, log, err)
		return
	}
	log.Info("document ingested",
		"doc_id", resp.DocumentID,
		"status", resp.Status,
	)
	h.writeJSON(w, ingestStatusCode(resp.Status), resp)
}

// IngestBulk handles POST /api/v1/documents/bulk with a JSON array of
// documents. The batch is all-or-nothing on validation.
func (h *Handler) IngestBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var docs []search.Document
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.publisher.IngestBulk(ctx, docs)
	if err != nil {
		h.writeIngestError(w, log, err)
		return
	}
	log.Info("bulk ingest complete",
		"total", len(resp.Results),
		"accepted", resp.Accepted,
		"unchanged", resp.Unchanged,
	)
	status := http.StatusOK
	if resp.Accepted > 0 {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, resp)
}

// Delete handles DELETE /api/v1/documents/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	resp, err := h.publisher.Remove(ctx, r.PathValue("id"))
	if err != nil {
		h.writeIngestError(w, log, err)
		return
	}
	log.Info("document deleted", "doc_id", resp.DocumentID)
	h.writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/v1/documents/stats and reports the warehouse size.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.warehouse.Count(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to count documents", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to count documents")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"documents": count})
}

func (h *Handler) writeIngestError(w http.ResponseWriter, log *slog.Logger, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	statusCode := apperrors.HTTPStatusCode(err)
	if statusCode >= http.StatusInternalServerError {
		log.Error("ingestion failed", "error", err, "status_code", statusCode)
	}
	h.writeError(w, statusCode, err.Error())
}

func ingestStatusCode(status string) int {
	if status == ingest.StatusAccepted {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
