package router

import (
	"github.com/conduithq/conduit/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func JobRouter(rg *gin.RouterGroup, h *handler.JobHandler) {
	rg.GET("", h.List)
	rg.GET("/:id/events", h.Events)
}
