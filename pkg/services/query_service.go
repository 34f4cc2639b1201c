package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docfusion/docfusion/pkg/cache"
	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/infrastructure/metrics"
	"github.com/docfusion/docfusion/pkg/models"
)

type queryService struct {
	executor QueryExecutor
	cache    *cache.QueryCache
	metrics  metrics.Collector
	logger   zerolog.Logger
}

// NewQueryService creates the query service.
func NewQueryService(executor QueryExecutor, queryCache *cache.QueryCache, collector metrics.Collector, logger zerolog.Logger) QueryService {
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &queryService{
		executor: executor,
		cache:    queryCache,
		metrics:  collector,
		logger:   logger.With().Str("component", "query_service").Logger(),
	}
}

// ExecuteQuery runs a query, serving repeated identical queries from the
// cache. Identity is decided on the normalized query text.
func (s *queryService) ExecuteQuery(ctx context.Context, query string) (*models.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "query must not be empty")
	}

	timer := s.metrics.StartTimer("query_duration_seconds")
	key := cache.Normalize(query)

	result, err := s.cache.GetOrExecute(ctx, key, func(ctx context.Context) (*models.QueryResult, error) {
		return s.executor.Execute(ctx, query)
	})
	elapsed := timer.Stop()

	if err != nil {
		s.metrics.IncCounter("queries_total", "status", "error")
		s.logger.Warn().Err(err).Str("query", key).Msg("query failed")
		return nil, err
	}

	s.metrics.IncCounter("queries_total", "status", "ok", "cached", boolLabel(result.Cached))
	s.logger.Debug().
		Str("query", key).
		Int("rows", result.RowCount).
		Bool("cached", result.Cached).
		Dur("elapsed", elapsed).
		Msg("query executed")
	return result, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
