package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(s *Signer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", s.JWTAuth())
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetInt("user_id"), "ws": c.GetString("workspace")})
	})
	api.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	r := newRouter(s)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", "garbage").Code)

	other, err := NewSigner("other", time.Hour).Issue(1, "n", "member", "core")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", other).Code)

	token, err := s.Issue(7, "Ann", "member", "core")
	require.NoError(t, err)
	w := get(r, "/api/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":7,"ws":"core"}`, w.Body.String())
	// under a day left, so a fresh token is offered
	assert.NotEmpty(t, w.Header().Get("X-New-Token"))
}

func TestAdminOnly(t *testing.T) {
	s := NewSigner("secret", 48*time.Hour)
	r := newRouter(s)

	member, _ := s.Issue(1, "m", "member", "core")
	admin, _ := s.Issue(2, "a", "admin", "core")
	assert.Equal(t, http.StatusForbidden, get(r, "/api/admin", member).Code)
	w := get(r, "/api/admin", admin)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-New-Token"))
}
