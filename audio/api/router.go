package api

import (
	"github.com/gin-gonic/gin"
)

// RouteLimits holds the per-route limiter middleware. Nil entries are skipped.
type RouteLimits struct {
	Languages     gin.HandlerFunc
	GetByLanguage gin.HandlerFunc
	Upload        gin.HandlerFunc
}

func RegisterAudioRoutes(r gin.IRouter, handler *AudioHandler, limits RouteLimits) {
	audioGroup := r.Group("/api/audio")
	{
		audioGroup.GET("/languages", withLimit(limits.Languages, handler.ListLanguages)...)
		audioGroup.POST("/upload", withLimit(limits.Upload, handler.Upload)...)
		audioGroup.GET("/files/:filename", handler.ServeFile)
		audioGroup.GET("/", handler.ListAll)
		audioGroup.GET("/:language", withLimit(limits.GetByLanguage, handler.GetByLanguage)...)
		audioGroup.PATCH("/:id", handler.Update)
		audioGroup.DELETE("/:id", handler.Delete)
	}
}

func withLimit(limit, handler gin.HandlerFunc) []gin.HandlerFunc {
	if limit == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{limit, handler}
}
