package rating

import (
	"net/http"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/response"
	"github.com/gin-gonic/gin"
)

// CallerFunc returns the session and (possibly empty) user of the request.
type CallerFunc func(c *gin.Context) (sessionID, userID string)

type Handler struct {
	repo   *Repository
	caller CallerFunc
}

func NewHandler(repo *Repository, caller CallerFunc) *Handler {
	return &Handler{repo: repo, caller: caller}
}

type upsertRequest struct {
	ActivityID string `json:"activityId"`
	Score      *int   `json:"score"`
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId"`
}

type entryResponse struct {
	ActivityID string `json:"activityId"`
	Score      int    `json:"score"`
}

type listResponse struct {
	Ratings []entryResponse `json:"ratings"`
}

// resolve picks the identity a request acts for. An explicit id must belong
// to the caller; with none given the user wins over the session.
func (h *Handler) resolve(c *gin.Context, sessionID, userID string) (Identity, error) {
	callerSession, callerUser := h.caller(c)
	id := Identity{SessionID: sessionID, UserID: userID}
	if err := id.Validate(); err != nil {
		if sessionID != "" && userID != "" {
			return Identity{}, err
		}
		if callerUser != "" {
			return ForUser(callerUser), nil
		}
		return ForSession(callerSession), nil
	}
	if id.UserID != "" && id.UserID != callerUser {
		return Identity{}, apperr.Validation("userId does not match the signed-in user")
	}
	if id.SessionID != "" && id.SessionID != callerSession {
		return Identity{}, apperr.Validation("sessionId does not match the current session")
	}
	return id, nil
}

// Upsert handles POST /ratings.
func (h *Handler) Upsert(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	if req.Score == nil {
		response.RespondError(c, apperr.Validation("score is required"))
		return
	}
	id, err := h.resolve(c, req.SessionID, req.UserID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if err := h.repo.Upsert(c.Request.Context(), id, req.ActivityID, *req.Score); err != nil {
		response.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryResponse{ActivityID: req.ActivityID, Score: *req.Score})
}

// List handles GET /ratings.
func (h *Handler) List(c *gin.Context) {
	id, err := h.resolve(c, c.Query("sessionId"), c.Query("userId"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	entries, err := h.repo.ListByIdentity(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	out := listResponse{Ratings: make([]entryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Ratings = append(out.Ratings, entryResponse{ActivityID: e.ActivityID, Score: e.Score})
	}
	response.RespondOK(c, out)
}

// RegisterRoutes mounts the record endpoints on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	rg.GET("/ratings", h.List)
	rg.Group("", write...).POST("/ratings", h.Upsert)
}
