// Package handlers exposes the REST API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
)

// Response is the envelope wrapping every API reply.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorBody carries the error kind and a human-readable message.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	c.JSON(statusFor(code), Response{
		Success: false,
		Error: &ErrorBody{
			Kind:    code,
			Message: apperrors.GetMessage(err),
		},
		Timestamp: time.Now().UTC(),
	})
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidRequest, apperrors.CodeQuerySyntax:
		return http.StatusBadRequest
	case apperrors.CodeConstraint:
		return http.StatusConflict
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodePoolExhausted, apperrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.CodeConnectionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
