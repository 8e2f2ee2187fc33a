package router

import (
	"github.com/conduithq/conduit/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func ConnectorRouter(rg *gin.RouterGroup, h *handler.ConnectorHandler) {
	rg.GET("", h.List)
	rg.GET("/:slug", h.GetBySlug)
}
