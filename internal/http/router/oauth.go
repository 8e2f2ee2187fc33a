package router

import (
	"github.com/conduithq/conduit/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func OAuthRouter(rg *gin.RouterGroup, h *handler.OAuthHandler) {
	rg.GET("/connect/:connectorID", h.Start)
	rg.GET("/callback", h.Callback)
}
