package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/signflow/signflow-server/internal/auth"
	"github.com/signflow/signflow-server/internal/config"
	"github.com/signflow/signflow-server/internal/document/service"
	"github.com/signflow/signflow-server/internal/oidc"
	"github.com/signflow/signflow-server/internal/sessions"
	"github.com/signflow/signflow-server/internal/tokens"
	"github.com/signflow/signflow-server/internal/users"
	"github.com/signflow/signflow-server/pkg/logger"
	"github.com/signflow/signflow-server/pkg/middleware"
)

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	blacklist   *sessions.Blacklist
	docs        *service.Service
	google      *oidc.Google
}

func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, bl *sessions.Blacklist, docs *service.Service, google *oidc.Google) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, blacklist: bl, docs: docs, google: google}
}

// Register routes under /auth. authMW rejects anonymous callers; optionalMW
// only attaches the user when a valid token is sent.
func (h *AuthHandler) Register(rg *gin.RouterGroup, authMW, optionalMW gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/register", optionalMW, h.Signup)
	a.POST("/login", h.Login)
	a.GET("/me", authMW, h.Me)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
	a.POST("/google-verify", h.GoogleVerify)
	a.GET("/google-login", h.GoogleLogin)
	a.GET("/google-callback", h.GoogleCallback)
}

// Signup creates an agent account. Only an authenticated admin can create
// another admin.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}
	caller := middleware.CurrentUser(c)
	u, err := h.usersSvc.Register(c.Request.Context(), users.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	}, caller.IsAdmin())
	switch {
	case errors.Is(err, users.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	case errors.Is(err, users.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User with this email already exists"})
		return
	case err != nil:
		logger.Errorf("register %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register user"})
		return
	}
	logger.Infof("user %s registered with role %s", u.ID, u.Role)
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// Login checks email and password and returns an access token plus a
// refresh token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	if err != nil {
		logger.Errorf("login %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Errorf("sign access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}
	refresh, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        access,
		"refreshToken": refresh,
		"expiresIn":    int64(h.cfg.JWT.AccessTokenTTL / time.Second),
		"user":         u,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Legacy       string `json:"refresh_token"`
}

func (r refreshRequest) token() string {
	if r.RefreshToken != "" {
		return r.RefreshToken
	}
	return r.Legacy
}

// Refresh rotates a refresh token and returns a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.token() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "refreshToken is required"})
		return
	}
	ctx := c.Request.Context()
	sess, next, err := h.sessionsSvc.Rotate(ctx, req.token(), h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("refresh: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Refresh failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetByID(ctx, sess.UserID)
	if err != nil {
		logger.Errorf("refresh: user lookup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Refresh failed"})
		return
	}
	if u == nil || !u.Active {
		_ = h.sessionsSvc.DeleteRefresh(ctx, next)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid refresh token"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        access,
		"refreshToken": next,
		"expiresIn":    int64(h.cfg.JWT.AccessTokenTTL / time.Second),
	})
}

// Logout drops the refresh session and revokes the bearer access token
// until it would have expired anyway.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	ctx := c.Request.Context()

	if raw, ok := auth.BearerToken(c.GetHeader("Authorization")); ok && h.blacklist.Enabled() {
		if claims, err := tokens.ParseAccessToken(h.cfg, raw); err == nil {
			if err := h.blacklist.Revoke(ctx, raw, time.Until(claims.ExpiresAt)); err != nil {
				logger.Errorf("logout: blacklist: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"message": "Logout failed"})
				return
			}
		}
	}
	if t := req.token(); t != "" {
		if err := h.sessionsSvc.DeleteRefresh(ctx, t); err != nil {
			logger.Errorf("logout: remove session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Logout failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
