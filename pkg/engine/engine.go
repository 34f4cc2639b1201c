package engine

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/rs/zerolog"

	"github.com/docfusion/docfusion/pkg/models"
	"github.com/docfusion/docfusion/pkg/scan"
)

// Engine plans and executes parsed statements against the scan executor.
type Engine struct {
	executor *scan.Executor
	logger   zerolog.Logger
}

// New creates an engine on top of a scan executor.
func New(executor *scan.Executor, logger zerolog.Logger) *Engine {
	return &Engine{
		executor: executor,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Execute parses and runs one query. Predicates the store can evaluate are
// pushed into the scan; the rest are applied here, row by row, together
// with projection, LIMIT and OFFSET.
func (e *Engine) Execute(ctx context.Context, query string) (*models.QueryResult, error) {
	start := time.Now()

	stmt, err := Parse(query)
	if err != nil {
		return nil, err
	}

	var filters []models.Expr
	if stmt.Where != nil {
		filters = models.Conjuncts(stmt.Where)
	}

	var orderBy *scan.Order
	if stmt.OrderBy != nil {
		orderBy = &scan.Order{Column: stmt.OrderBy.Column, Desc: stmt.OrderBy.Desc}
	}

	// The limit is offered for pushdown only when no engine-side skipping
	// can change which rows survive.
	var pushLimit *int64
	if stmt.Limit != nil && stmt.Offset == nil {
		pushLimit = stmt.Limit
	}

	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	res, err := e.executor.Scan(scanCtx, scan.Request{
		Filters: filters,
		OrderBy: orderBy,
		Limit:   pushLimit,
	})
	if err != nil {
		return nil, err
	}

	rows, err := e.collect(cancelScan, stmt, res)
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{
		Rows:          rows,
		RowCount:      len(rows),
		ExecutionTime: time.Since(start),
	}
	e.logger.Debug().
		Int("rows", result.RowCount).
		Int("residual_filters", len(res.Residual)).
		Dur("elapsed", result.ExecutionTime).
		Msg("query executed")
	return result, nil
}

func (e *Engine) collect(cancelScan context.CancelFunc, stmt *Statement, res *scan.Result) ([]models.Row, error) {
	rows := make([]models.Row, 0)

	var skip int64
	if stmt.Offset != nil {
		skip = *stmt.Offset
	}
	limit := int64(-1)
	if stmt.Limit != nil {
		limit = *stmt.Limit
	}

	satisfied := false
	for batch := range res.Batches {
		if batch.Err != nil {
			if satisfied {
				// The stream was cancelled on purpose after the limit
				// was reached.
				break
			}
			return nil, batch.Err
		}
		if satisfied {
			batch.Record.Release()
			continue
		}

		n := int(batch.Record.NumRows())
		for i := 0; i < n && !satisfied; i++ {
			rec, err := recordAt(batch.Record, i)
			if err != nil {
				batch.Record.Release()
				drain(res.Batches)
				return nil, err
			}

			keep := true
			for _, pred := range res.Residual {
				ok, err := evalPredicate(pred, rec)
				if err != nil {
					batch.Record.Release()
					drain(res.Batches)
					return nil, err
				}
				if !ok {
					keep = false
					break
				}
			}
			if !keep {
				continue
			}

			if skip > 0 {
				skip--
				continue
			}

			row, err := projectRow(stmt, rec)
			if err != nil {
				batch.Record.Release()
				drain(res.Batches)
				return nil, err
			}
			rows = append(rows, row)

			if limit >= 0 && int64(len(rows)) >= limit {
				satisfied = true
				cancelScan()
			}
		}
		batch.Record.Release()
	}
	return rows, nil
}

// drain releases any remaining batches so the scan goroutine can finish.
func drain(batches <-chan scan.Batch) {
	for b := range batches {
		if b.Record != nil {
			b.Record.Release()
		}
	}
}

// recordAt materializes row i of an all-columns batch.
func recordAt(rec arrow.Record, i int) (*record, error) {
	id := rec.Column(0).(*array.Int64).Value(i)
	doc := rec.Column(1).(*array.String).Value(i)
	created := time.UnixMicro(int64(rec.Column(2).(*array.Timestamp).Value(i))).UTC()
	updated := time.UnixMicro(int64(rec.Column(3).(*array.Timestamp).Value(i))).UTC()
	return newRecord(id, doc, created, updated)
}

func projectRow(stmt *Statement, rec *record) (models.Row, error) {
	if stmt.Star {
		return models.Row{
			"id":         rec.ID,
			"doc":        rec.Doc,
			"created_at": rec.CreatedAt,
			"updated_at": rec.UpdatedAt,
		}, nil
	}

	row := make(models.Row, len(stmt.Items))
	for _, item := range stmt.Items {
		v, err := evalValue(item.Expr, rec)
		if err != nil {
			return nil, err
		}
		if col, ok := item.Expr.(models.Column); ok && col.Name == "doc" {
			v = rec.Doc
		}
		row[item.Name] = v
	}
	return row, nil
}
