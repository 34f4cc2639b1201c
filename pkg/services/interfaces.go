// Package services contains business logic between the HTTP handlers and
// the storage layer.
package services

import (
	"context"
	"encoding/json"

	"github.com/docfusion/docfusion/pkg/models"
)

// QueryExecutor runs one parsed-and-planned query. Implemented by the
// embedded engine.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*models.QueryResult, error)
}

// QueryService executes ad-hoc queries with caching.
type QueryService interface {
	ExecuteQuery(ctx context.Context, query string) (*models.QueryResult, error)
}

// DocumentService manages document lifecycle.
type DocumentService interface {
	Create(ctx context.Context, doc json.RawMessage) (*models.Document, error)
	Get(ctx context.Context, id int64) (*models.Document, error)
	Update(ctx context.Context, id int64, doc json.RawMessage) (*models.Document, error)
	BulkCreate(ctx context.Context, docs []json.RawMessage) (*models.BulkCreateResult, error)
	List(ctx context.Context, params models.ListParams) ([]*models.Document, error)
	Count(ctx context.Context) (int64, error)
}
