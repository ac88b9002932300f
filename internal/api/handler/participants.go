package handler

import (
	"batepapo/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListParticipants returns the active participants.
func (h *Handler) ListParticipants(c *gin.Context) {
	participants, err := h.Registry.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, participants)
}

// JoinParticipant registers a name and returns it with a token for /ws.
func (h *Handler) JoinParticipant(c *gin.Context) {
	var req models.JoinRequest
	if !bindBody(c, &req) {
		return
	}

	p, err := h.Registry.Join(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}

	token, err := generateJWT(p.Name, h.Secret, h.TokenTTL)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"participant": p, "token": token})
}

// LeaveParticipant removes a participant by id.
func (h *Handler) LeaveParticipant(c *gin.Context) {
	if err := h.Registry.Leave(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Heartbeat renews the lastSeen of the participant named in the user header.
func (h *Handler) Heartbeat(c *gin.Context) {
	if err := h.Registry.Heartbeat(c.Request.Context(), c.GetHeader("user")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}
