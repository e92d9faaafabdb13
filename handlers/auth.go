package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zewo/opsdash/internal/gate"
	"github.com/zewo/opsdash/pkg/logger"
	"github.com/zewo/opsdash/pkg/middleware"
)

// LoginRequest carries the dashboard passphrase.
type LoginRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

// Gate is the subset of gate.Service used by the auth routes.
type Gate interface {
	Login(ctx context.Context, passphrase string) (*gate.Session, error)
	Logout(ctx context.Context, raw string) error
}

// AuthHandler holds dependencies
type AuthHandler struct {
	gate         Gate
	cookieName   string
	secureCookie bool
}

func NewAuthHandler(g Gate, cookieName string, secureCookie bool) *AuthHandler {
	return &AuthHandler{gate: g, cookieName: cookieName, secureCookie: secureCookie}
}

// Register routes under /auth. Extra handlers (e.g. a rate limiter) run before login.
func (h *AuthHandler) Register(rg *gin.RouterGroup, loginGuards ...gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/login", append(loginGuards, h.Login)...)
	a.POST("/logout", h.Logout)
}

// Login exchanges the passphrase for a session token, returned in the body and as an
// HttpOnly cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passphrase required"})
		return
	}
	sess, err := h.gate.Login(c.Request.Context(), req.Passphrase)
	if err != nil {
		if errors.Is(err, gate.ErrInvalidPassphrase) {
			logger.With("ip", c.ClientIP()).Warnf("login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		logger.Errorf("login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, sess.Token, maxAge, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "expiresAt": sess.ExpiresAt})
}

// Logout revokes the presented session (header or cookie) and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, ok, _ := middleware.TokenFromRequest(c, h.cookieName); ok {
		if err := h.gate.Logout(c.Request.Context(), token); err != nil {
			logger.Errorf("logout failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke session"})
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
