package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/middleware"
)

type RouterDeps struct {
	Records   *RecordHandler
	Search    *SearchHandler
	Chat      *ChatHandler
	Admin     *AdminHandler
	JWTSecret []byte
	// SaveWindow rate-limits the capture endpoint; extensions double-fire.
	SaveWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/records", middleware.RateLimit(deps.SaveWindow), deps.Records.Save)
	authGroup.GET("/records", deps.Records.List)
	authGroup.GET("/records/:id", deps.Records.Get)
	authGroup.PUT("/records/:id", deps.Records.Update)
	authGroup.DELETE("/records/:id", deps.Records.Delete)

	authGroup.GET("/search", deps.Search.Search)
	authGroup.POST("/chat", deps.Chat.Chat)

	authGroup.GET("/admin/migration", deps.Admin.MigrationStatus)
	authGroup.POST("/admin/resync", deps.Admin.Resync)
}
