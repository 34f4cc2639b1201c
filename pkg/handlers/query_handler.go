package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/services"
)

// QueryHandler serves ad-hoc query execution.
type QueryHandler struct {
	queries services.QueryService
	logger  zerolog.Logger
}

// NewQueryHandler creates the query handler.
func NewQueryHandler(queries services.QueryService, logger zerolog.Logger) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  logger.With().Str("component", "query_handler").Logger(),
	}
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Rows            interface{} `json:"rows"`
	RowCount        int         `json:"row_count"`
	ExecutionTimeMs float64     `json:"execution_time_ms"`
	Cached          bool        `json:"cached"`
}

// Execute handles POST /query.
func (h *QueryHandler) Execute(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}

	result, err := h.queries.ExecuteQuery(c.Request.Context(), req.SQL)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, queryResponse{
		Rows:            result.Rows,
		RowCount:        result.RowCount,
		ExecutionTimeMs: float64(result.ExecutionTime.Microseconds()) / 1000.0,
		Cached:          result.Cached,
	})
}
