package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Verifier checks a raw session token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, raw string) (map[string]interface{}, error)
}

// TokenFromRequest extracts the session token: an "Authorization: Bearer" header wins,
// otherwise the named cookie is used. ok is false when neither is present.
func TokenFromRequest(c *gin.Context, cookieName string) (token string, ok bool, malformed bool) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		scheme, rest, found := strings.Cut(auth, " ")
		rest = strings.TrimSpace(rest)
		if !found || !strings.EqualFold(scheme, "Bearer") || rest == "" {
			return "", false, true
		}
		return rest, true, false
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v, true, false
		}
	}
	return "", false, false
}

// AuthMiddleware rejects requests without a valid session token and stores the verified
// claims under "claims".
func AuthMiddleware(ver Verifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok, malformed := TokenFromRequest(c, cookieName)
		if malformed {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		claims, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
