package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter returns a gin engine with CORS for allowedOrigins and every
// route registered. With no origins configured any origin is allowed, but
// without credentials.
func NewRouter(handler *Handler, allowedOrigins []string) *gin.Engine {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
		corsConfig.AllowCredentials = true
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig))

	SetupRoutes(router, handler)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)

		api.GET("/draft", handler.GetDraft)
		api.POST("/draft/reset", handler.ResetDraft)
		api.PATCH("/draft/fields", handler.UpdateField)
		api.POST("/draft/services/:name/toggle", handler.ToggleService)
		api.POST("/draft/comparables", handler.AddComparable)
		api.PATCH("/draft/comparables/:index", handler.UpdateComparable)
		api.DELETE("/draft/comparables/:index", handler.RemoveComparable)
		api.POST("/draft/import", handler.ImportDraft)
		api.GET("/draft/export", handler.ExportDraft)
		api.GET("/draft/report", handler.GetReport)
		api.POST("/draft/submit", handler.SubmitDraft)

		api.GET("/analyses", handler.ListAnalyses)
		api.GET("/analyses/:id", handler.GetAnalysis)
	}
}
