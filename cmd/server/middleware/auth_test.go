package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(cfg AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(cfg))
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func request(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthAPIKey(t *testing.T) {
	r := authRouter(AuthConfig{APIKey: "secret"})

	assert.Equal(t, http.StatusOK, request(r, map[string]string{APIKeyHeader: "secret"}).Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, map[string]string{APIKeyHeader: "wrong"}).Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, nil).Code)
}

func TestAuthJWT(t *testing.T) {
	secret := "jwt-secret"
	r := authRouter(AuthConfig{JWTSecret: secret})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, request(r, map[string]string{"Authorization": "Bearer " + signed}).Code)

	badSigned, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(r, map[string]string{"Authorization": "Bearer " + badSigned}).Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	expiredSigned, err := expired.SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(r, map[string]string{"Authorization": "Bearer " + expiredSigned}).Code)
}

func TestAuthEitherCredentialWorks(t *testing.T) {
	r := authRouter(AuthConfig{APIKey: "key", JWTSecret: "secret"})

	assert.Equal(t, http.StatusOK, request(r, map[string]string{APIKeyHeader: "key"}).Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, request(r, map[string]string{"Authorization": "Bearer " + token}).Code)
}
