package router

import (
	"github.com/conduithq/conduit/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func PreferenceRouter(rg *gin.RouterGroup, h *handler.PreferenceHandler) {
	rg.GET("", h.Get)
	rg.PUT("", h.Update)
}
