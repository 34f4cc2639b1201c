package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/docfusion/docfusion/pkg/cache"
	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/infrastructure/metrics"
	"github.com/docfusion/docfusion/pkg/models"
	"github.com/docfusion/docfusion/pkg/repositories"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type documentService struct {
	repo    repositories.DocumentRepository
	cache   *cache.QueryCache
	metrics metrics.Collector
	logger  zerolog.Logger
}

// NewDocumentService creates the document service.
func NewDocumentService(repo repositories.DocumentRepository, queryCache *cache.QueryCache, collector metrics.Collector, logger zerolog.Logger) DocumentService {
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &documentService{
		repo:    repo,
		cache:   queryCache,
		metrics: collector,
		logger:  logger.With().Str("component", "document_service").Logger(),
	}
}

// validateObject checks that raw is a JSON object. Scalars, arrays and
// null are rejected; containment and extraction are defined over objects.
// Unmarshaling goes through interface{} because decoding the literal null
// into a map succeeds without touching it.
func validateObject(raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return apperrors.New(apperrors.CodeInvalidRequest, "document must be a JSON object")
	}
	if _, ok := v.(map[string]interface{}); !ok {
		return apperrors.New(apperrors.CodeInvalidRequest, "document must be a JSON object")
	}
	return nil
}

// Create validates and stores one document, then invalidates the query
// cache so subsequent queries observe it.
func (s *documentService) Create(ctx context.Context, doc json.RawMessage) (*models.Document, error) {
	if err := validateObject(doc); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		s.metrics.IncCounter("documents_mutations_total", "op", "create", "status", "error")
		return nil, err
	}

	s.cache.Invalidate()
	s.metrics.IncCounter("documents_mutations_total", "op", "create", "status", "ok")
	s.logger.Info().Int64("id", created.ID).Msg("document created")
	return created, nil
}

// Get fetches one document.
func (s *documentService) Get(ctx context.Context, id int64) (*models.Document, error) {
	return s.repo.Get(ctx, id)
}

// Update replaces one document and invalidates the query cache.
func (s *documentService) Update(ctx context.Context, id int64, doc json.RawMessage) (*models.Document, error) {
	if err := validateObject(doc); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, doc)
	if err != nil {
		s.metrics.IncCounter("documents_mutations_total", "op", "update", "status", "error")
		return nil, err
	}

	s.cache.Invalidate()
	s.metrics.IncCounter("documents_mutations_total", "op", "update", "status", "ok")
	s.logger.Info().Int64("id", id).Msg("document updated")
	return updated, nil
}

// BulkCreate validates and stores up to MaxBulkDocuments documents in one
// statement, invalidating the query cache once on success.
func (s *documentService) BulkCreate(ctx context.Context, docs []json.RawMessage) (*models.BulkCreateResult, error) {
	if len(docs) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "documents must not be empty")
	}
	if len(docs) > models.MaxBulkDocuments {
		return nil, apperrors.New(apperrors.CodeInvalidRequest,
			fmt.Sprintf("bulk insert limited to %d documents, got %d", models.MaxBulkDocuments, len(docs)))
	}
	for i, doc := range docs {
		if err := validateObject(doc); err != nil {
			return nil, apperrors.New(apperrors.CodeInvalidRequest,
				fmt.Sprintf("document at index %d must be a JSON object", i))
		}
	}

	start := time.Now()
	ids, err := s.repo.BulkCreate(ctx, docs)
	if err != nil {
		s.metrics.IncCounter("documents_mutations_total", "op", "bulk_create", "status", "error")
		return nil, err
	}

	s.cache.Invalidate()
	s.metrics.IncCounter("documents_mutations_total", "op", "bulk_create", "status", "ok")
	s.metrics.AddCounter("documents_inserted_total", float64(len(ids)))
	s.logger.Info().Int("count", len(ids)).Msg("documents bulk created")
	return &models.BulkCreateResult{
		IDs:           ids,
		InsertedCount: len(ids),
		ExecutionTime: time.Since(start),
	}, nil
}

// List returns documents with a bounded page size.
func (s *documentService) List(ctx context.Context, params models.ListParams) ([]*models.Document, error) {
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return s.repo.List(ctx, params)
}

// Count returns the total number of documents.
func (s *documentService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
