package router

import (
	"github.com/conduithq/conduit/internal/http/handler"
	"github.com/conduithq/conduit/internal/http/middleware"
	"github.com/conduithq/conduit/internal/oauth"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/service"
	"github.com/conduithq/conduit/internal/store"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	DashboardURL     string
	OAuthCallbackURL string
	InternalAPIKey   string
	IsProduction     bool
}

func SetupRoutes(
	router *gin.Engine,
	services *service.Services,
	stores *store.Stores,
	controller *oauth.Controller,
	hub *realtime.Hub,
	cfg RouterConfig,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authService := services.Auth()
	requireSession := middleware.RequireSession(authService)

	authHandler := handler.NewAuthHandler(authService, cfg.DashboardURL, cfg.IsProduction)
	AuthRouter(router.Group("/auth"), authHandler, requireSession)

	v1 := router.Group("/api/v1")
	v1.Use(requireSession)
	{
		connectorHandler := handler.NewConnectorHandler(stores.Connectors(), services.Connections())
		ConnectorRouter(v1.Group("/connectors"), connectorHandler)

		connectionHandler := handler.NewConnectionHandler(services.Connections(), controller)
		ConnectionRouter(v1.Group("/connections"), connectionHandler)

		oauthHandler := handler.NewOAuthHandler(controller, cfg.DashboardURL, cfg.OAuthCallbackURL)
		OAuthRouter(v1.Group("/oauth"), oauthHandler)

		jobHandler := handler.NewJobHandler(services.Jobs())
		JobRouter(v1.Group("/jobs"), jobHandler)

		streamHandler := handler.NewEventStreamHandler(hub)
		v1.GET("/events", streamHandler.Stream)

		preferenceHandler := handler.NewPreferenceHandler(services.Preferences())
		PreferenceRouter(v1.Group("/preferences"), preferenceHandler)
	}

	internal := router.Group("/internal/v1")
	internal.Use(middleware.RequireInternalKey(cfg.InternalAPIKey))
	{
		jobHandler := handler.NewJobHandler(services.Jobs())
		internal.POST("/jobs", jobHandler.IngestJob)
		internal.POST("/jobs/:id/events", jobHandler.IngestEvent)
	}
}
