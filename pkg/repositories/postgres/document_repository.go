// Package postgres implements document storage on PostgreSQL. Documents
// live in a JSONB column indexed with GIN so containment predicates use
// the inverted index.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/infrastructure/pool"
	"github.com/docfusion/docfusion/pkg/models"
	"github.com/docfusion/docfusion/pkg/repositories"
)

const documentColumns = "id, doc::text, created_at, updated_at"

// DocumentRepository implements repositories.DocumentRepository.
type DocumentRepository struct {
	pool   *pool.ConnectionPool
	logger zerolog.Logger
}

// New creates a document repository on the given pool.
func New(p *pool.ConnectionPool, logger zerolog.Logger) *DocumentRepository {
	return &DocumentRepository{
		pool:   p,
		logger: logger.With().Str("component", "document_repository").Logger(),
	}
}

var _ repositories.DocumentRepository = (*DocumentRepository)(nil)

// withConn runs fn on a checked-out connection under the shared retry
// policy. The connection is discarded when fn fails with a connection
// failure.
func (r *DocumentRepository) withConn(ctx context.Context, fn func(context.Context, *pool.Conn) error) error {
	return r.pool.Retry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Checkout(ctx)
		if err != nil {
			return err
		}
		err = fn(ctx, conn)
		conn.ReleaseWithError(err)
		return err
	})
}

func scanDocument(row interface{ Scan(...interface{}) error }) (*models.Document, error) {
	var d models.Document
	var docText string
	if err := row.Scan(&d.ID, &docText, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, apperrors.Classify(err)
	}
	d.Doc = json.RawMessage(docText)
	return &d, nil
}

// Create stores one document.
func (r *DocumentRepository) Create(ctx context.Context, doc json.RawMessage) (*models.Document, error) {
	var created *models.Document
	err := r.withConn(ctx, func(ctx context.Context, conn *pool.Conn) error {
		row := conn.QueryRowContext(ctx,
			"INSERT INTO documents (doc) VALUES ($1) RETURNING "+documentColumns,
			string(doc))
		d, err := scanDocument(row)
		if err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get fetches one document by id.
func (r *DocumentRepository) Get(ctx context.Context, id int64) (*models.Document, error) {
	var doc *models.Document
	err := r.withConn(ctx, func(ctx context.Context, conn *pool.Conn) error {
		row := conn.QueryRowContext(ctx,
			"SELECT "+documentColumns+" FROM documents WHERE id = $1", id)
		d, err := scanDocument(row)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "document not found").WithDetail("id", id)
		}
		return nil, err
	}
	return doc, nil
}

// Update replaces the document body.
func (r *DocumentRepository) Update(ctx context.Context, id int64, doc json.RawMessage) (*models.Document, error) {
	var updated *models.Document
	err := r.withConn(ctx, func(ctx context.Context, conn *pool.Conn) error {
		row := conn.QueryRowContext(ctx,
			"UPDATE documents SET doc = $2, updated_at = now() WHERE id = $1 RETURNING "+documentColumns,
			id, string(doc))
		d, err := scanDocument(row)
		if err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "document not found").WithDetail("id", id)
		}
		return nil, err
	}
	return updated, nil
}

// BulkCreate inserts all documents in one multi-VALUES statement. Ids come
// back in insertion order. The whole batch succeeds or fails together.
func (r *DocumentRepository) BulkCreate(ctx context.Context, docs []json.RawMessage) ([]int64, error) {
	if len(docs) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "no documents to insert")
	}
	if len(docs) > models.MaxBulkDocuments {
		return nil, apperrors.New(apperrors.CodeInvalidRequest,
			fmt.Sprintf("bulk insert limited to %d documents", models.MaxBulkDocuments))
	}

	placeholders := make([]string, len(docs))
	args := make([]interface{}, len(docs))
	for i, doc := range docs {
		placeholders[i] = fmt.Sprintf("($%d)", i+1)
		args[i] = string(doc)
	}
	query := "INSERT INTO documents (doc) VALUES " + strings.Join(placeholders, ", ") + " RETURNING id"

	var ids []int64
	err := r.withConn(ctx, func(ctx context.Context, conn *pool.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return apperrors.Classify(err)
		}
		defer rows.Close()

		batch := make([]int64, 0, len(docs))
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return apperrors.Classify(err)
			}
			batch = append(batch, id)
		}
		if err := rows.Err(); err != nil {
			return apperrors.Classify(err)
		}
		ids = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// List returns documents ordered by id.
func (r *DocumentRepository) List(ctx context.Context, params models.ListParams) ([]*models.Document, error) {
	var docs []*models.Document
	err := r.withConn(ctx, func(ctx context.Context, conn *pool.Conn) error {
		rows, err := conn.QueryContext(ctx,
			"SELECT "+documentColumns+" FROM documents ORDER BY id LIMIT $1 OFFSET $2",
			params.Limit, params.Offset)
		if err != nil {
			return apperrors.Classify(err)
		}
		defer rows.Close()

		batch := make([]*models.Document, 0, params.Limit)
		for rows.Next() {
			d, err := scanDocument(rows)
			if err != nil {
				return err
			}
			batch = append(batch, d)
		}
		if err := rows.Err(); err != nil {
			return apperrors.Classify(err)
		}
		docs = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the total number of documents.
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.withConn(ctx, func(ctx context.Context, conn *pool.Conn) error {
		row := conn.QueryRowContext(ctx, "SELECT count(*) FROM documents")
		if err := row.Scan(&count); err != nil {
			return apperrors.Classify(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
