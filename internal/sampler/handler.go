package sampler

import (
	"strconv"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/response"
	"github.com/gin-gonic/gin"
)

// ExcludeFunc returns the activity ids the caller already answered.
type ExcludeFunc func(c *gin.Context) (map[string]struct{}, error)

type Handler struct {
	service *Service
	exclude ExcludeFunc
}

func NewHandler(service *Service, exclude ExcludeFunc) *Handler {
	return &Handler{service: service, exclude: exclude}
}

// GetActivities handles GET /activities?offset=&limit=.
func (h *Handler) GetActivities(c *gin.Context) {
	offset, err := queryInt(c, "offset")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.RespondError(c, err)
		return
	}

	exclude, err := h.exclude(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	page, err := h.service.Page(c.Request.Context(), exclude, offset, limit)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, page)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/activities", h.GetActivities)
}

// queryInt parses an optional integer query parameter; absent is 0.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}
