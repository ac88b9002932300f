package handler

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/messaging"
	"batepapo/backend/internal/models"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListMessages returns the messages the user header may see, optionally tail-limited.
func (h *Handler) ListMessages(c *gin.Context) {
	limit := messaging.ParseLimit(c.Query("limit"))

	msgs, err := h.Messages.ListFor(c.Request.Context(), c.GetHeader("user"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) PostMessage(c *gin.Context) {
	var req models.MessageRequest
	if !bindBody(c, &req) {
		return
	}

	msg, err := h.Messages.Post(c.Request.Context(), c.GetHeader("user"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) EditMessage(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}
	var req models.MessageRequest
	if !bindBody(c, &req) {
		return
	}

	msg, err := h.Messages.Edit(c.Request.Context(), id, c.GetHeader("user"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}

	if err := h.Messages.Delete(c.Request.Context(), id, c.GetHeader("user")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// messageID parses :id. An id that cannot exist is reported as not found.
func (h *Handler) messageID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.fail(c, apperr.ErrNotFound)
		return 0, false
	}
	return uint(id), true
}

// bindBody decodes a JSON body into dst. An empty body leaves dst zeroed so
// field validation reports what is missing.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": apperr.Invalid("body", "body must be a JSON object").Fields})
		return false
	}
	return true
}
