package api

import (
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/identity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/startup"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/sampler"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every route of the service.
func NewRouter(app *startup.App) *gin.Engine {
	cfg := app.Config
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(app.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", app.Health.Handler)

	SetupRoutes(r, app)
	return r
}

// SetupRoutes registers the /api routes.
func SetupRoutes(router *gin.Engine, app *startup.App) {
	sessions := app.Sessions

	api := router.Group("/api",
		session.Middleware(sessions, app.Signer, session.CookieOptions{
			MaxAge: app.Config.Quiz.SessionSlotTTL,
			Secure: app.Config.Server.CookieSecure,
		}, app.Log),
		identity.Middleware(app.Verifier, app.Log),
		session.AttachUser(sessions, identity.UserFrom, app.Log),
	)
	write := app.Limiter.Middleware(writeKey)

	session.NewHandler(sessions).RegisterRoutes(api, write)

	rating.NewHandler(app.Ratings, func(c *gin.Context) (string, string) {
		return session.IDFrom(c), identity.UserFrom(c)
	}).RegisterRoutes(api, write)

	sampler.NewHandler(app.Sampler, func(c *gin.Context) (map[string]struct{}, error) {
		return sessions.AnsweredIDs(c.Request.Context(), session.IDFrom(c))
	}).RegisterRoutes(api)

	analysis.NewHandler(app.Analysis, sessions, session.IDFrom).RegisterRoutes(api)
}
