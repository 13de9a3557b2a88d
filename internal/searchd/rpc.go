package searchd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/proplex/searchd/pkg/errors"
	"github.com/proplex/searchd/pkg/resilience"
	"github.com/proplex/searchd/pkg/rpc"
	"github.com/proplex/searchd/pkg/search"
)

type suggestParams struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
}

// RegisterRPC exposes the service on the internal RPC server under the
// Engine.* method namespace. Every handler runs under the given timeout.
func RegisterRPC(srv *rpc.Server, svc *Service, timeout time.Duration) {
	srv.Register("Engine.Search", func(ctx context.Context, params json.RawMessage) (any, error) {
		var q search.Query
		if err := json.Unmarshal(params, &q); err != nil {
			return nil, errors.InvalidInput("decoding query: %v", err)
		}
		var result *search.Result
		err := resilience.WithTimeout(ctx, timeout, "rpc-search", func(ctx context.Context) error {
			var searchErr error
			result, searchErr = svc.Search(q)
			return searchErr
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	srv.Register("Engine.Suggest", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p suggestParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errors.InvalidInput("decoding suggest params: %v", err)
		}
		var suggestions []string
		err := resilience.WithTimeout(ctx, timeout, "rpc-suggest", func(ctx context.Context) error {
			suggestions = svc.Suggest(p.Prefix, p.Limit)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if suggestions == nil {
			suggestions = []string{}
		}
		return &search.SuggestResponse{Prefix: p.Prefix, Suggestions: suggestions}, nil
	})

	srv.Register("Engine.BatchScore", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req search.BatchScoreRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, errors.InvalidInput("decoding batch request: %v", err)
		}
		var results []search.BatchQueryResult
		err := resilience.WithTimeout(ctx, timeout, "rpc-batch-score", func(ctx context.Context) error {
			results = svc.BatchScore(req.Queries)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []search.BatchQueryResult{}
		}
		return &search.BatchScoreResponse{Results: results}, nil
	})

	srv.Register("Engine.Stats", func(ctx context.Context, params json.RawMessage) (any, error) {
		var stats search.Stats
		err := resilience.WithTimeout(ctx, timeout, "rpc-stats", func(ctx context.Context) error {
			stats = svc.Stats()
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &stats, nil
	})
}
