package router

import (
	"github.com/conduithq/conduit/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func ConnectionRouter(rg *gin.RouterGroup, h *handler.ConnectionHandler) {
	rg.GET("", h.List)
	rg.POST("", h.Connect)
	rg.DELETE("/:id", h.Disconnect)
	rg.POST("/:id/refresh", h.Refresh)
}
