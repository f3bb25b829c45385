package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type userRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

func (h *Handler) listNotifications(c *gin.Context) {
	notifications, err := h.notifications.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, notifications)
}

func (h *Handler) markRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) clearNotifications(c *gin.Context) {
	n, err := h.notifications.ClearAll(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) currentUser(c *gin.Context) {
	user, err := h.teams.CurrentUser(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}

func (h *Handler) availableUsers(c *gin.Context) {
	users, err := h.teams.AvailableUsers(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}

func (h *Handler) myTeam(c *gin.Context) {
	users, err := h.teams.MyTeam(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}

func (h *Handler) assignUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	user, err := h.teams.Assign(c.Request.Context(), actorFrom(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}

func (h *Handler) unassignUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	user, err := h.teams.Unassign(c.Request.Context(), actorFrom(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}
