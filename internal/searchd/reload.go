package searchd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/proplex/searchd/pkg/logger"
	"github.com/proplex/searchd/pkg/resilience"
	"github.com/proplex/searchd/pkg/search"
)

// DocumentSource yields the full corpus for an index rebuild. The document
// warehouse is the production implementation.
type DocumentSource interface {
	FetchAll(ctx context.Context) ([]search.Document, error)
}

// WarehouseReloader rebuilds the in-memory index from a DocumentSource.
// Warehouse reads are retried with backoff; the swap itself happens in one
// exclusive Load once the fetch succeeds.
type WarehouseReloader struct {
	source DocumentSource
	svc    *Service
	logger *slog.Logger
}

func NewWarehouseReloader(source DocumentSource, svc *Service) *WarehouseReloader {
	return &WarehouseReloader{
		source: source,
		svc:    svc,
		logger: logger.WithComponent("reloader"),
	}
}

// Reload fetches the corpus and swaps it in, returning the indexed count.
func (r *WarehouseReloader) Reload(ctx context.Context) (int, error) {
	var docs []search.Document
	err := resilience.Retry(ctx, "warehouse-fetch", resilience.RetryConfig{}, func() error {
		var ferr error
		docs, ferr = r.source.FetchAll(ctx)
		return ferr
	})
	if err != nil {
		return 0, fmt.Errorf("fetching corpus from warehouse: %w", err)
	}
	indexed := r.svc.Load(docs)
	r.logger.Info("index rebuilt from warehouse", "documents", indexed)
	return indexed, nil
}
