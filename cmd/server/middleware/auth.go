package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
)

// APIKeyHeader is the header carrying a static API key.
const APIKeyHeader = "X-API-Key"

// AuthConfig controls request authentication.
type AuthConfig struct {
	// APIKey, when set, accepts requests with a matching X-API-Key header.
	APIKey string
	// JWTSecret, when set, accepts bearer tokens signed with HS256.
	JWTSecret string
}

// Auth validates either a static API key or an HS256 bearer token.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APIKey != "" && c.GetHeader(APIKeyHeader) == cfg.APIKey {
			c.Next()
			return
		}

		if cfg.JWTSecret != "" {
			header := c.GetHeader("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				if validateJWT(token, cfg.JWTSecret) {
					c.Next()
					return
				}
			}
		}

		unauthorized(c, "missing or invalid credentials")
	}
}

func validateJWT(token, secret string) bool {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil && parsed.Valid
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    apperrors.CodeUnauthorized,
			"message": message,
		},
		"timestamp": time.Now().UTC(),
	})
}
