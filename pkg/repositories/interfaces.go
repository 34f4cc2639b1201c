// Package repositories defines data access interfaces.
package repositories

import (
	"context"
	"encoding/json"

	"github.com/docfusion/docfusion/pkg/models"
)

// DocumentRepository provides access to stored documents.
type DocumentRepository interface {
	// Create stores one document and returns it with its assigned id.
	Create(ctx context.Context, doc json.RawMessage) (*models.Document, error)
	// Get fetches one document by id.
	Get(ctx context.Context, id int64) (*models.Document, error)
	// Update replaces the document body and touches updated_at.
	Update(ctx context.Context, id int64, doc json.RawMessage) (*models.Document, error)
	// BulkCreate stores documents in one statement and returns their ids
	// in insertion order.
	BulkCreate(ctx context.Context, docs []json.RawMessage) ([]int64, error)
	// List returns documents ordered by id.
	List(ctx context.Context, params models.ListParams) ([]*models.Document, error)
	// Count returns the total number of documents.
	Count(ctx context.Context) (int64, error)
}
