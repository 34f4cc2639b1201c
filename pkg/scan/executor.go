// Package scan executes filtered scans over the virtual documents table,
// pushing translatable predicates to the store and streaming results as
// Arrow record batches.
package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/infrastructure/metrics"
	"github.com/docfusion/docfusion/pkg/infrastructure/pool"
	"github.com/docfusion/docfusion/pkg/models"
	"github.com/docfusion/docfusion/pkg/translate"
)

// DefaultBatchSize is the number of rows per streamed record batch.
const DefaultBatchSize = 1000

// Virtual table columns, in schema order.
var columnTypes = map[string]arrow.DataType{
	"id":         arrow.PrimitiveTypes.Int64,
	"doc":        arrow.BinaryTypes.String,
	"created_at": arrow.FixedWidthTypes.Timestamp_us,
	"updated_at": arrow.FixedWidthTypes.Timestamp_us,
}

var allColumns = []string{"id", "doc", "created_at", "updated_at"}

// Order is an optional sort pushed into the scan.
type Order struct {
	Column string
	Desc   bool
}

// Request describes one scan over the documents table.
type Request struct {
	// Projection lists virtual columns to fetch; empty means all.
	Projection []string
	// Filters are AND-ed predicates. Translatable ones are pushed into the
	// WHERE clause; the rest come back as Residual.
	Filters []models.Expr
	// OrderBy, when set, must name a sortable schema column.
	OrderBy *Order
	// Limit is pushed into the query only when no residual filters remain.
	Limit *int64
}

// Batch is one streamed record batch or a terminal error. The receiver
// owns Record and must Release it.
type Batch struct {
	Record arrow.Record
	Err    error
}

// Result carries the stream and the predicates the store could not apply.
type Result struct {
	Schema *arrow.Schema
	// Batches closes after the last batch. A batch with Err set is final.
	Batches <-chan Batch
	// Residual predicates must be re-applied by the caller to every row.
	Residual []models.Expr
	// LimitPushed reports whether Request.Limit made it into the query.
	LimitPushed bool
}

// Executor runs scans on pooled connections.
type Executor struct {
	pool      *pool.ConnectionPool
	batchSize int
	alloc     memory.Allocator
	metrics   metrics.Collector
	logger    zerolog.Logger
}

// NewExecutor creates a scan executor. batchSize <= 0 selects the default.
func NewExecutor(p *pool.ConnectionPool, batchSize int, collector metrics.Collector, logger zerolog.Logger) *Executor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &Executor{
		pool:      p,
		batchSize: batchSize,
		alloc:     memory.NewGoAllocator(),
		metrics:   collector,
		logger:    logger.With().Str("component", "scan_executor").Logger(),
	}
}

// Scan starts a streaming scan. The returned channel is fed by a background
// goroutine holding one pooled connection; the connection is released when
// the stream ends and discarded when it ends in a connection failure.
// Canceling ctx stops the stream promptly.
func (e *Executor) Scan(ctx context.Context, req Request) (*Result, error) {
	projection, err := resolveProjection(req.Projection)
	if err != nil {
		return nil, err
	}
	schema := buildSchema(projection)

	if req.OrderBy != nil {
		if _, ok := columnTypes[req.OrderBy.Column]; !ok || req.OrderBy.Column == "doc" {
			return nil, apperrors.New(apperrors.CodeInvalidRequest,
				fmt.Sprintf("cannot order by %q", req.OrderBy.Column))
		}
	}

	where, residual := splitFilters(req.Filters)

	limitPushed := req.Limit != nil && len(residual) == 0
	query := buildQuery(projection, where, req.OrderBy, req.Limit, limitPushed)

	// Transient failures are retried only before the first row is
	// produced; a stream that already emitted rows fails to the consumer.
	var conn *pool.Conn
	var rows rowScanner
	err = e.pool.Retry(ctx, func(ctx context.Context) error {
		c, err := e.pool.Checkout(ctx)
		if err != nil {
			return err
		}
		r, err := c.QueryContext(ctx, query)
		if err != nil {
			err = apperrors.Classify(err)
			c.ReleaseWithError(err)
			return err
		}
		conn, rows = c, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.IncCounter("scans_total")
	e.logger.Debug().Str("query", query).Int("residual", len(residual)).Msg("scan started")

	out := make(chan Batch, 1)
	go e.stream(ctx, schema, projection, conn, rows, out)

	return &Result{
		Schema:      schema,
		Batches:     out,
		Residual:    residual,
		LimitPushed: limitPushed,
	}, nil
}

// rowScanner is the subset of *sql.Rows the streamer needs.
type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

func (e *Executor) stream(ctx context.Context, schema *arrow.Schema, projection []string, conn *pool.Conn, rows rowScanner, out chan<- Batch) {
	var streamErr error
	defer func() {
		_ = rows.Close()
		conn.ReleaseWithError(streamErr)
		if streamErr != nil {
			out <- Batch{Err: streamErr}
		}
		close(out)
	}()

	builder := array.NewRecordBuilder(e.alloc, schema)
	defer builder.Release()

	pending := 0
	flush := func() bool {
		if pending == 0 {
			return true
		}
		rec := builder.NewRecord()
		pending = 0
		select {
		case out <- Batch{Record: rec}:
			return true
		case <-ctx.Done():
			rec.Release()
			streamErr = apperrors.Classify(ctx.Err())
			return false
		}
	}

	var (
		id                   int64
		doc                  string
		createdAt, updatedAt time.Time
	)

	for rows.Next() {
		if ctx.Err() != nil {
			streamErr = apperrors.Classify(ctx.Err())
			return
		}

		dest := make([]interface{}, 0, len(projection))
		for _, col := range projection {
			switch col {
			case "id":
				dest = append(dest, &id)
			case "doc":
				dest = append(dest, &doc)
			case "created_at":
				dest = append(dest, &createdAt)
			case "updated_at":
				dest = append(dest, &updatedAt)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			streamErr = apperrors.Classify(err)
			return
		}

		for i, col := range projection {
			switch col {
			case "id":
				builder.Field(i).(*array.Int64Builder).Append(id)
			case "doc":
				builder.Field(i).(*array.StringBuilder).Append(doc)
			case "created_at":
				builder.Field(i).(*array.TimestampBuilder).Append(arrow.Timestamp(createdAt.UnixMicro()))
			case "updated_at":
				builder.Field(i).(*array.TimestampBuilder).Append(arrow.Timestamp(updatedAt.UnixMicro()))
			}
		}
		pending++

		if pending >= e.batchSize {
			if !flush() {
				return
			}
		}
	}
	if err := rows.Err(); err != nil {
		streamErr = apperrors.Classify(err)
		return
	}
	flush()
}

func resolveProjection(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return allColumns, nil
	}
	out := make([]string, 0, len(requested))
	for _, col := range requested {
		if _, ok := columnTypes[col]; !ok {
			return nil, apperrors.New(apperrors.CodeInvalidRequest,
				fmt.Sprintf("unknown column %q", col))
		}
		out = append(out, col)
	}
	return out, nil
}

func buildSchema(projection []string) *arrow.Schema {
	fields := make([]arrow.Field, len(projection))
	for i, col := range projection {
		fields[i] = arrow.Field{Name: col, Type: columnTypes[col]}
	}
	return arrow.NewSchema(fields, nil)
}

// splitFilters translates what it can and returns the rest untouched.
func splitFilters(filters []models.Expr) (where []string, residual []models.Expr) {
	for _, f := range filters {
		if frag, ok := translate.Translate(f); ok {
			where = append(where, frag)
		} else {
			residual = append(residual, f)
		}
	}
	return where, residual
}

func buildQuery(projection, where []string, orderBy *Order, limit *int64, limitPushed bool) string {
	cols := make([]string, len(projection))
	for i, col := range projection {
		if col == "doc" {
			cols[i] = "doc::text"
		} else {
			cols[i] = col
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM documents")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if orderBy != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy.Column)
		if orderBy.Desc {
			sb.WriteString(" DESC")
		}
	}
	if limitPushed {
		fmt.Fprintf(&sb, " LIMIT %d", *limit)
	}
	return sb.String()
}
