package session

import (
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

type ratingRequest struct {
	Score *int `json:"score"`
}

// statusRequest accepts {"status": null} to clear the status.
type statusRequest struct {
	Status *Status `json:"status"`
}

// Get handles GET /session.
func (h *Handler) Get(c *gin.Context) {
	state, err := h.manager.State(c.Request.Context(), IDFrom(c))
	h.respond(c, state, err)
}

// SetRating handles PUT /session/ratings/:activityId.
func (h *Handler) SetRating(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	if req.Score == nil {
		response.RespondError(c, apperr.Validation("score is required"))
		return
	}
	state, err := h.manager.SetRating(c.Request.Context(), IDFrom(c), c.Param("activityId"), *req.Score)
	h.respond(c, state, err)
}

// RemoveRating handles DELETE /session/ratings/:activityId.
func (h *Handler) RemoveRating(c *gin.Context) {
	state, err := h.manager.RemoveRating(c.Request.Context(), IDFrom(c), c.Param("activityId"))
	h.respond(c, state, err)
}

// SetStatus handles PUT /session/statuses/:activityId.
func (h *Handler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	state, err := h.manager.SetStatus(c.Request.Context(), IDFrom(c), c.Param("activityId"), req.Status)
	h.respond(c, state, err)
}

// Reset handles POST /session/reset.
func (h *Handler) Reset(c *gin.Context) {
	state, err := h.manager.Reset(c.Request.Context(), IDFrom(c))
	h.respond(c, state, err)
}

func (h *Handler) respond(c *gin.Context, state State, err error) {
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, state)
}

// RegisterRoutes mounts the session endpoints on rg. write runs before
// every mutating route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	g := rg.Group("/session")
	g.GET("", h.Get)

	w := g.Group("", write...)
	w.PUT("/ratings/:activityId", h.SetRating)
	w.DELETE("/ratings/:activityId", h.RemoveRating)
	w.PUT("/statuses/:activityId", h.SetStatus)
	w.POST("/reset", h.Reset)
}
