package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signflow/signflow-server/internal/document/service"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/pkg/logger"
	"github.com/signflow/signflow-server/pkg/middleware"
)

// maxImportBody bounds bulk import payloads.
const maxImportBody = 50 << 20

// RegisterDocumentRoutes mounts the document API on rg. auth must reject
// unauthenticated requests and store the user for middleware.CurrentUser.
func RegisterDocumentRoutes(rg *gin.RouterGroup, svc *service.Service, auth gin.HandlerFunc) {
	docs := rg.Group("/documents")
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleAgent)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	docs.GET("", auth, func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), middleware.CurrentUser(c), service.ListQuery{
			Status:   c.Query("status"),
			AgentID:  c.Query("agentId"),
			ClientID: c.Query("clientId"),
		})
		if err != nil {
			writeError(c, err, "Failed to list documents")
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": list})
	})

	docs.GET("/stats", auth, func(c *gin.Context) {
		st, err := svc.Stats(c.Request.Context(), middleware.CurrentUser(c))
		if err != nil {
			writeError(c, err, "Failed to load stats")
			return
		}
		c.JSON(http.StatusOK, st)
	})

	docs.GET("/:id", auth, func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
		if err != nil {
			writeError(c, err, "Failed to fetch document")
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": d})
	})

	docs.GET("/:id/public", func(c *gin.Context) {
		d, err := svc.GetPublic(c.Request.Context(), c.Param("id"), c.Query("token"))
		if err != nil {
			writeError(c, err, "Failed to load document")
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": d})
	})

	docs.GET("/:id/download", auth, func(c *gin.Context) {
		out, err := svc.Download(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
		if err != nil {
			writeError(c, err, "Failed to download document")
			return
		}
		sendPDF(c, out)
	})

	docs.GET("/:id/public/download", func(c *gin.Context) {
		out, err := svc.DownloadPublic(c.Request.Context(), c.Param("id"), c.Query("token"))
		if err != nil {
			writeError(c, err, "Failed to download document")
			return
		}
		sendPDF(c, out)
	})

	docs.POST("", auth, staff, func(c *gin.Context) {
		var in service.CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload"})
			return
		}
		out, err := svc.Create(c.Request.Context(), middleware.CurrentUser(c), in)
		if err != nil {
			writeError(c, err, "Failed to create document")
			return
		}
		c.JSON(http.StatusCreated, out)
	})

	docs.POST("/import", auth, adminOnly, func(c *gin.Context) {
		items, err := service.DecodeImport(io.LimitReader(c.Request.Body, maxImportBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload"})
			return
		}
		results, err := svc.Import(c.Request.Context(), middleware.CurrentUser(c), items)
		if err != nil {
			writeError(c, err, "Failed to import documents")
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	docs.POST("/:id/resend", auth, staff, func(c *gin.Context) {
		out, err := svc.Resend(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
		if err != nil {
			writeError(c, err, "Failed to resend document")
			return
		}
		c.JSON(http.StatusCreated, out)
	})

	docs.POST("/:id/sign", func(c *gin.Context) {
		var req struct {
			DataURL     string `json:"dataUrl"`
			Token       string `json:"token"`
			SignerEmail string `json:"signerEmail"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload"})
			return
		}
		d, err := svc.Sign(c.Request.Context(), c.Param("id"), service.SignInput{
			Signature:   req.DataURL,
			Token:       req.Token,
			SignerEmail: req.SignerEmail,
			SignerIP:    c.ClientIP(),
		})
		if err != nil {
			writeError(c, err, "Failed to sign document")
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": d})
	})

	docs.DELETE("/:id", auth, adminOnly, func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
			writeError(c, err, "Failed to delete document")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
}

func sendPDF(c *gin.Context, out *service.SignedPDF) {
	if out.RedirectURL != "" {
		c.Redirect(http.StatusFound, out.RedirectURL)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
	c.Data(http.StatusOK, "application/pdf", out.Data)
}

func writeError(c *gin.Context, err error, internalMsg string) {
	var mismatch *service.SignerMismatchError
	switch {
	case errors.As(err, &mismatch):
		c.JSON(http.StatusForbidden, gin.H{"message": mismatch.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	default:
		logger.Errorf("%s: %v", internalMsg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": internalMsg})
	}
}

// WriteError exposes the document error mapping to other handlers.
func WriteError(c *gin.Context, err error, internalMsg string) { writeError(c, err, internalMsg) }
