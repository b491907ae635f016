package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeResolver implements Resolver
type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, header string) (*models.User, error) {
	switch header {
	case "Bearer admin":
		return &models.User{ID: "a1", Role: "Admin", Active: true}, nil
	case "Bearer agent":
		return &models.User{ID: "g1", Role: "agent", Active: true}, nil
	case "Bearer broken":
		return nil, errors.New("store down")
	}
	return nil, nil
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(fakeResolver{}), func(c *gin.Context) {
		u := CurrentUser(c)
		require.NotNil(t, u)
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	})

	require.Equal(t, http.StatusUnauthorized, serve(g, "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer nope").Code)
	require.Equal(t, http.StatusInternalServerError, serve(g, "Bearer broken").Code)

	rw := serve(g, "Bearer agent")
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "g1", got["id"])
}

func TestRequireRole(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(fakeResolver{}), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusUnauthorized, serve(g, "").Code, "authentication runs first")
	require.Equal(t, http.StatusForbidden, serve(g, "Bearer agent").Code)
	require.Equal(t, http.StatusOK, serve(g, "Bearer admin").Code, "role match is case-insensitive")
}

func TestRequireRole_WithoutUser(t *testing.T) {
	g := gin.New()
	g.GET("/", RequireRole("admin", "agent"), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer admin").Code)
}

func TestOptionalAuth(t *testing.T) {
	g := gin.New()
	g.GET("/", OptionalAuth(fakeResolver{}), func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.ID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	require.Equal(t, "anonymous", serve(g, "").Body.String())
	require.Equal(t, "anonymous", serve(g, "Bearer broken").Body.String())
	require.Equal(t, "a1", serve(g, "Bearer admin").Body.String())
}
