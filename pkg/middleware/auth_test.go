package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeVerifier accepts exactly "goodtoken"
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (map[string]interface{}, error) {
	if raw == "goodtoken" {
		return map[string]interface{}{"sub": "owner", "jti": "j1"}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func serve(req *http.Request) *httptest.ResponseRecorder {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, "opsdash_session"), func(c *gin.Context) {
		claims, _ := c.Get("claims")
		c.JSON(http.StatusOK, gin.H{"claims": claims})
	})
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	rw := serve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "BadHeader")
	require.Equal(t, http.StatusUnauthorized, serve(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	require.Equal(t, http.StatusUnauthorized, serve(req).Code)
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer goodtoken")
	rw := serve(req)

	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "owner", got["claims"]["sub"])
}

func TestAuthMiddleware_CookieToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "opsdash_session", Value: "goodtoken"})
	require.Equal(t, http.StatusOK, serve(req).Code)

	// a header takes precedence over the cookie
	req.Header.Set("Authorization", "Bearer bad")
	require.Equal(t, http.StatusUnauthorized, serve(req).Code)
}
