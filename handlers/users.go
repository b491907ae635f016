package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/internal/users"
	"github.com/signflow/signflow-server/pkg/logger"
	"github.com/signflow/signflow-server/pkg/middleware"
)

// UsersHandler serves account administration and the caller's profile.
type UsersHandler struct {
	svc *users.Service
}

func NewUsersHandler(svc *users.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// Register routes under /users.
func (h *UsersHandler) Register(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	u := rg.Group("/users", authMW)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	u.GET("", adminOnly, h.List)
	u.PATCH("/:id/toggle", adminOnly, h.Toggle)
	u.DELETE("/:id", adminOnly, h.Delete)
	u.POST("/profile", h.Profile)
}

func (h *UsersHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		logger.Errorf("list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *UsersHandler) Toggle(c *gin.Context) {
	active, err := h.svc.ToggleActive(c.Request.Context(), c.Param("id"))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		logger.Errorf("toggle user %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to toggle user"})
		return
	}
	logger.Infof("user %s active=%t", c.Param("id"), active)
	c.JSON(http.StatusOK, gin.H{"ok": true, "active": active})
}

func (h *UsersHandler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, users.ErrAdminDeletion):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot delete admin user"})
	case err != nil:
		logger.Errorf("delete user %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete user"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// Profile updates the caller's name and stored signature. Absent fields are
// left unchanged.
func (h *UsersHandler) Profile(c *gin.Context) {
	var req struct {
		Name      *string `json:"name"`
		Signature *string `json:"signature"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload"})
		return
	}
	me := middleware.CurrentUser(c)
	if req.Name == nil && req.Signature == nil {
		c.JSON(http.StatusOK, gin.H{"user": me})
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), me.ID, req.Name, req.Signature)
	if errors.Is(err, users.ErrNotFound) || (err == nil && u == nil) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		logger.Errorf("update profile %s: %v", me.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
