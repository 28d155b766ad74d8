package analysis

import (
	"context"
	"net/http"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/response"
	"github.com/gin-gonic/gin"
)

// SessionBinder connects an analysis run to the caller's session.
type SessionBinder interface {
	// BeginAnalysis marks the session as analyzing and returns what to analyze.
	BeginAnalysis(ctx context.Context, sessionID string) (Request, error)
	// FinishAnalysis attaches result to the session. A nil result only
	// clears the analyzing flag.
	FinishAnalysis(ctx context.Context, sessionID string, result *Result)
}

type Handler struct {
	service  *Service
	sessions SessionBinder
	caller   func(c *gin.Context) string
}

// NewHandler wires the analysis endpoints. caller returns the request's session id.
func NewHandler(service *Service, sessions SessionBinder, caller func(c *gin.Context) string) *Handler {
	return &Handler{service: service, sessions: sessions, caller: caller}
}

// Create handles POST /analysis.
func (h *Handler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := h.caller(c)

	req, err := h.sessions.BeginAnalysis(ctx, sessionID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	result, err := h.service.Analyze(ctx, req)
	h.sessions.FinishAnalysis(context.WithoutCancel(ctx), sessionID, result)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Get handles GET /analysis/:id. Results are shareable by id.
func (h *Handler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analysis", h.Create)
	rg.GET("/analysis/:id", h.Get)
}
