package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/models"
	"github.com/docfusion/docfusion/pkg/services"
)

// DocumentHandler serves document CRUD.
type DocumentHandler struct {
	documents services.DocumentService
	logger    zerolog.Logger
}

// NewDocumentHandler creates the document handler.
func NewDocumentHandler(documents services.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger.With().Str("component", "document_handler").Logger(),
	}
}

type documentRequest struct {
	Document json.RawMessage `json:"document"`
}

type bulkRequest struct {
	Documents []json.RawMessage `json:"documents"`
}

// Create handles POST /documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}
	if len(req.Document) == 0 {
		respondError(c, apperrors.New(apperrors.CodeInvalidRequest, "document is required"))
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), req.Document)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, doc)
}

// BulkCreate handles POST /documents/bulk.
func (h *DocumentHandler) BulkCreate(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}

	result, err := h.documents.BulkCreate(c.Request.Context(), req.Documents)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, doc)
}

// Update handles PUT /documents/:id.
func (h *DocumentHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}
	if len(req.Document) == 0 {
		respondError(c, apperrors.New(apperrors.CodeInvalidRequest, "document is required"))
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), id, req.Document)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, doc)
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, err := h.documents.List(c.Request.Context(), models.ListParams{Limit: limit, Offset: offset})
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := h.documents.Count(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
		"offset":    offset,
	})
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.New(apperrors.CodeInvalidRequest, "id must be a positive integer")
	}
	return id, nil
}
