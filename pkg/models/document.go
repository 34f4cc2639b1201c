// Package models provides data structures used throughout the document query server.
package models

import (
	"encoding/json"
	"time"
)

// Document is one row of the documents table. The id is store-assigned and
// immutable; Doc holds the raw JSON value.
type Document struct {
	ID        int64           `json:"id"`
	Doc       json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Row is one result row of an ad-hoc query, column name to value.
type Row map[string]interface{}

// QueryRequest represents an ad-hoc SQL query execution request.
type QueryRequest struct {
	SQL     string        `json:"sql"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// QueryResult represents the result of an ad-hoc query execution.
type QueryResult struct {
	Rows          []Row         `json:"rows"`
	RowCount      int           `json:"row_count"`
	ExecutionTime time.Duration `json:"execution_time"`
	Cached        bool          `json:"cached"`
}

// ListParams bounds a paginated document listing.
type ListParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// BulkCreateResult summarizes a bulk insert.
type BulkCreateResult struct {
	IDs           []int64       `json:"ids"`
	InsertedCount int           `json:"inserted_count"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// MaxBulkDocuments bounds a single bulk insert request.
const MaxBulkDocuments = 1000
