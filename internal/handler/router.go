package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragdex/internal/middleware"
)

type RouterDeps struct {
	Search          *SearchHandler
	Collections     *CollectionHandler
	Ingest          *IngestHandler
	Health          *HealthHandler
	AdminAPIKey     string
	SearchRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.Health.Health)
	api.GET("/collections", deps.Collections.List)
	api.GET("/collections/:name", deps.Collections.Get)

	searchGroup := api.Group("")
	searchGroup.Use(middleware.RateLimit(deps.SearchRateLimit))
	searchGroup.POST("/search", deps.Search.Search)

	adminGroup := api.Group("")
	adminGroup.Use(middleware.APIKeyAuth(deps.AdminAPIKey))
	adminGroup.POST("/ingest", deps.Ingest.Ingest)
	adminGroup.DELETE("/collections/:name", deps.Collections.Delete)
	adminGroup.DELETE("/collections", deps.Collections.Clear)
}
