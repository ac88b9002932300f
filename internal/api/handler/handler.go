// Package handler exposes the chat room over HTTP with gin.
package handler

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/chathub"
	"batepapo/backend/internal/messaging"
	"batepapo/backend/internal/presence"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler holds the services behind the HTTP routes.
type Handler struct {
	Registry *presence.Registry
	Messages *messaging.Log
	Hub      *chathub.ManagerService

	// Ready reports whether the store is connected.
	Ready func() bool

	Secret   []byte
	TokenTTL time.Duration

	log *slog.Logger
}

func NewHandler(registry *presence.Registry, messages *messaging.Log, hub *chathub.ManagerService, ready func() bool, secret string, ttl time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Registry: registry,
		Messages: messages,
		Hub:      hub,
		Ready:    ready,
		Secret:   []byte(secret),
		TokenTTL: ttl,
		log:      log,
	}
}

// Register mounts every route on r. Only /healthz answers before the store is ready.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)

	api := r.Group("/", h.RequireReady())

	api.GET("/participants", h.ListParticipants)
	api.POST("/participants", h.JoinParticipant)
	api.DELETE("/participants/:id", h.LeaveParticipant)

	api.GET("/messages", h.ListMessages)
	api.POST("/messages", h.PostMessage)
	api.PUT("/messages/:id", h.EditMessage)
	api.DELETE("/messages/:id", h.DeleteMessage)

	api.POST("/status", h.Heartbeat)

	api.GET("/ws", h.ServeWebSocket)
}

// Health reports whether the store is connected.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ready": h.Ready()})
}

// RequireReady rejects requests with 503 until the store is connected.
func (h *Handler) RequireReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.Ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": apperr.ErrNotReady.Error()})
			return
		}
		c.Next()
	}
}

// AccessLog logs one line per request.
func AccessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", attrs...)
			return
		}
		log.Info("Request", attrs...)
	}
}

// fail writes the response for err.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verr.Fields})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Error("Request error", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
